package priceimport

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParsePrice reads a human-written price such as "1 234,50", "20,000",
// "1.234,56" or "12.50 ₽" and reports whether a non-negative amount was
// found.
//
// Only digits, dots and commas are kept. When both separators appear the
// last one is the decimal separator. A lone comma followed by exactly three
// digits groups thousands, one or two digits make it decimal. A lone dot
// followed by one to three digits is decimal, otherwise dots group
// thousands. The longest numeric prefix of the result is the amount.
func ParsePrice(s string) (decimal.Decimal, bool) {
	cleaned := cleanPrice(s)
	if !strings.ContainsAny(cleaned, "0123456789") {
		return decimal.Zero, false
	}
	return parseNumericPrefix(normalizeSeparators(cleaned))
}

func cleanPrice(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		// Currency marks and grouping spaces are dropped.
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func normalizeSeparators(s string) string {
	lastComma := strings.LastIndexByte(s, ',')
	lastDot := strings.LastIndexByte(s, '.')

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		tail := s[lastComma+1:]
		switch {
		case len(tail) == 3 && isDigits(tail):
			return strings.ReplaceAll(s, ",", "")
		case len(tail) == 1 || len(tail) == 2:
			return strings.Replace(s, ",", ".", 1)
		default:
			return strings.ReplaceAll(s, ",", "")
		}
	case lastDot >= 0:
		tail := s[lastDot+1:]
		if len(tail) >= 1 && len(tail) <= 3 {
			return s
		}
		return strings.ReplaceAll(s, ".", "")
	}
	return s
}

// parseNumericPrefix parses the longest leading "digits[.digits]" run.
func parseNumericPrefix(s string) (decimal.Decimal, bool) {
	i := 0
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	intPart := s[:i]
	var frac string
	if i < len(s) && s[i] == '.' {
		j := i + 1
		for j < len(s) && isDigit(s[j]) {
			j++
		}
		frac = s[i+1 : j]
	}
	if intPart == "" && frac == "" {
		return decimal.Zero, false
	}
	if intPart == "" {
		intPart = "0"
	}
	lit := intPart
	if frac != "" {
		lit += "." + frac
	}
	d, err := decimal.NewFromString(lit)
	if err != nil || d.IsNegative() {
		return decimal.Zero, false
	}
	return d, true
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isDigits(s string) bool {
	for i := range len(s) {
		if !isDigit(s[i]) {
			return false
		}
	}
	return s != ""
}
