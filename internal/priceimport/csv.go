package priceimport

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Row is a single (name, price) entry of a price list.
type Row struct {
	Name  string
	Price decimal.Decimal
}

var headerKeywords = []string{"название", "name", "цена", "price"}

func isHeader(s string) bool {
	s = strings.ToLower(s)
	for _, kw := range headerKeywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// ParseCSV extracts price rows from unlabeled delimited text.
//
// Each non-empty line is split on ';' if present, otherwise on a tab,
// otherwise on ','. The first column is the product name and the second the
// price. The first line is dropped when it looks like a header. Lines with an
// empty name or no usable price are skipped.
func ParseCSV(text string) []Row {
	text = strings.TrimPrefix(text, "\uFEFF")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var (
		rows  []Row
		first = true
	)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if first {
			first = false
			if isHeader(line) {
				continue
			}
		}

		fields := splitFields(line, pickDelimiter(line))
		if len(fields) < 2 {
			continue
		}
		name := fields[0]
		price, ok := ParsePrice(fields[1])
		if name == "" || !ok {
			continue
		}
		rows = append(rows, Row{Name: name, Price: price})
	}
	return rows
}

func pickDelimiter(line string) rune {
	switch {
	case strings.ContainsRune(line, ';'):
		return ';'
	case strings.ContainsRune(line, '\t'):
		return '\t'
	default:
		return ','
	}
}

// splitFields tokenizes a line. A '"' or '\'' opens a quoted run that ends
// at the next occurrence of the same character; delimiters inside it are
// literal. A trailing empty field is dropped.
func splitFields(line string, delim rune) []string {
	var (
		fields []string
		cur    strings.Builder
		quote  rune
	)
	for _, r := range line {
		switch {
		case quote == 0 && (r == '"' || r == '\''):
			quote = r
		case quote != 0 && r == quote:
			quote = 0
		case quote == 0 && r == delim:
			fields = append(fields, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if last := strings.TrimSpace(cur.String()); last != "" {
		fields = append(fields, last)
	}
	for i, f := range fields {
		fields[i] = stripQuotes(f)
	}
	return fields
}

func stripQuotes(s string) string {
	if s != "" && (s[0] == '"' || s[0] == '\'') {
		s = s[1:]
	}
	if n := len(s); n > 0 && (s[n-1] == '"' || s[n-1] == '\'') {
		s = s[:n-1]
	}
	return strings.TrimSpace(s)
}
