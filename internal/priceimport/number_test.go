package priceimport

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{in: "1234", want: "1234", ok: true},
		{in: "1 234,50", want: "1234.5", ok: true},
		{in: "1 234,50 ₽", want: "1234.5", ok: true},
		{in: "20,000", want: "20000", ok: true},
		{in: "20,5", want: "20.5", ok: true},
		{in: "20,50", want: "20.5", ok: true},
		{in: "1,2345", want: "12345", ok: true},
		{in: "1.234,56", want: "1234.56", ok: true},
		{in: "1,234.56", want: "1234.56", ok: true},
		{in: "12.5", want: "12.5", ok: true},
		{in: "12.345", want: "12.345", ok: true},
		{in: "1234.5678", want: "12345678", ok: true},
		{in: "1.234.567", want: "1.234", ok: true},
		{in: "100 руб.", want: "100", ok: true},
		{in: "$ 99.99", want: "99.99", ok: true},
		{in: "-15", want: "15", ok: true},
		{in: "0", want: "0", ok: true},
		{in: "", ok: false},
		{in: "abc", ok: false},
		{in: ".", ok: false},
		{in: ",,", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParsePrice(tt.in)
			assert.Equal(t, tt.ok, ok)
			if !tt.ok {
				return
			}
			want := decimal.RequireFromString(tt.want)
			assert.True(t, want.Equal(got), "want %s, got %s", want, got)
		})
	}
}
