package priceimport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

func encode(t *testing.T, enc encoding.Encoding, s string) []byte {
	t.Helper()
	b, err := enc.NewEncoder().Bytes([]byte(s))
	require.NoError(t, err)
	return b
}

func TestDecodeText(t *testing.T) {
	const russian = "Молоко;120,50\nХлеб;45"

	tests := []struct {
		name     string
		input    []byte
		wantText string
		wantEnc  string
	}{
		{
			name:     "windows-1251",
			input:    encode(t, charmap.Windows1251, russian),
			wantText: russian,
			wantEnc:  "windows-1251",
		},
		{
			name:     "utf-8",
			input:    []byte(russian),
			wantText: russian,
			wantEnc:  "utf-8",
		},
		{
			name:     "cp866",
			input:    encode(t, charmap.CodePage866, "молоко;120"),
			wantText: "молоко;120",
			wantEnc:  "cp866",
		},
		{
			name:     "utf-16le with bom",
			input:    encode(t, unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), russian),
			wantText: russian,
			wantEnc:  "utf-16le",
		},
		{
			name:     "utf-8 with bom",
			input:    append([]byte{0xEF, 0xBB, 0xBF}, []byte(russian)...),
			wantText: russian,
			wantEnc:  "utf-8",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, enc := DecodeText(tt.input)
			assert.Equal(t, tt.wantText, text)
			assert.Equal(t, tt.wantEnc, enc)
		})
	}
}

func TestDecodeText_LatinOnly(t *testing.T) {
	text, _ := DecodeText([]byte("Widget;10\nGadget;20"))
	assert.Equal(t, "Widget;10\nGadget;20", text)
}

func TestDecodeText_Fallback(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		text, enc := DecodeText(nil)
		assert.Empty(t, text)
		assert.Equal(t, "utf-8", enc)
	})
	t.Run("control bytes", func(t *testing.T) {
		text, enc := DecodeText([]byte{0x01, 0x02, 0x03})
		assert.Equal(t, "\x01\x02\x03", text)
		assert.Equal(t, "utf-8", enc)
	})
}

func TestTextStats(t *testing.T) {
	st := measure("Ёж a1\x01")
	assert.Equal(t, 6, st.runes)
	assert.Equal(t, 2, st.cyrillic)
	assert.Equal(t, 1, st.latin)
	assert.Equal(t, 1, st.digits)
	assert.Equal(t, 1, st.garbage)
	assert.False(t, st.plausible(), "one control rune in six is too noisy")
	assert.True(t, measure("Ёжик и ёлка 1").plausible())

	// Carriage returns count against the candidate.
	assert.True(t, isGarbage('\r'))
	assert.False(t, isGarbage('\n'))
	assert.False(t, isGarbage('\t'))
}
