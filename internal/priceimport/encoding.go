package priceimport

import (
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Candidate encodings in trial order. On equal scores the earlier one wins.
var candidates = []struct {
	name string
	enc  encoding.Encoding
}{
	{"windows-1251", charmap.Windows1251},
	{"utf-8", unicode.UTF8BOM},
	{"cp866", charmap.CodePage866},
	{"koi8-r", charmap.KOI8R},
	{"iso-8859-5", charmap.ISO8859_5},
	{"utf-16le", unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)},
	{"utf-16be", unicode.UTF16(unicode.BigEndian, unicode.UseBOM)},
}

const (
	cyrillicWeight = 2.0
	garbageWeight  = 2.0

	// Maximum share of garbage runes for text that contains cyrillic.
	maxGarbageCyrillic = 0.10
	// Maximum share of garbage runes for latin-only text.
	maxGarbageLatin = 0.05
)

// textStats counts character classes of a decoded candidate.
type textStats struct {
	runes    int
	cyrillic int
	latin    int
	digits   int
	garbage  int
}

func measure(s string) textStats {
	var st textStats
	for _, r := range s {
		st.runes++
		switch {
		case isCyrillic(r):
			st.cyrillic++
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			st.latin++
		case r >= '0' && r <= '9':
			st.digits++
		case isGarbage(r):
			st.garbage++
		}
	}
	return st
}

func isCyrillic(r rune) bool {
	return (r >= 'а' && r <= 'я') || (r >= 'А' && r <= 'Я') || r == 'ё' || r == 'Ё'
}

// isGarbage reports replacement characters and control runes other than
// tab and line feed.
func isGarbage(r rune) bool {
	switch {
	case r == '\uFFFD':
		return true
	case r <= 0x08:
		return true
	case r >= 0x0B && r <= 0x1F:
		return true
	case r >= 0x7F && r <= 0x9F:
		return true
	}
	return false
}

func (st textStats) score() float64 {
	n := float64(st.runes)
	good := cyrillicWeight*float64(st.cyrillic) + float64(st.latin) + float64(st.digits)
	return good/n - garbageWeight*float64(st.garbage)/n
}

func (st textStats) plausible() bool {
	if st.runes == 0 {
		return false
	}
	ratio := float64(st.garbage) / float64(st.runes)
	if st.cyrillic > 0 {
		return ratio < maxGarbageCyrillic
	}
	return st.latin > 0 && st.digits > 0 && ratio < maxGarbageLatin
}

// DecodeText converts a text upload of unknown encoding to UTF-8. Every
// candidate is decoded and scored; the best plausible candidate with a
// positive score wins. When nothing qualifies the bytes are read as UTF-8.
// It returns the decoded text and the name of the chosen encoding.
func DecodeText(buf []byte) (string, string) {
	var (
		best      string
		bestName  string
		bestScore float64
	)
	for _, c := range candidates {
		decoded, err := c.enc.NewDecoder().Bytes(buf)
		if err != nil || len(decoded) == 0 {
			continue
		}
		text := string(decoded)
		st := measure(text)
		if !st.plausible() {
			continue
		}
		if score := st.score(); score > bestScore {
			best, bestName, bestScore = text, c.name, score
		}
	}
	if bestName != "" && bestScore > 0 {
		return best, bestName
	}

	if decoded, err := unicode.UTF8BOM.NewDecoder().Bytes(buf); err == nil {
		return string(decoded), "utf-8"
	}
	return string(buf), "raw"
}
