// Package slug derives lowercase, hyphen-separated URL identifiers from titles.
package slug

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// symbols spells out characters that carry meaning in a title
var symbols = map[rune]string{
	'&': "and",
	'$': "dollar",
	'%': "percent",
	'<': "less",
	'>': "greater",
	'|': "or",
	'¢': "cent",
	'£': "pound",
	'¥': "yen",
	'€': "euro",
	'©': "c",
	'®': "r",
	'ß': "ss",
	'æ': "ae",
	'Æ': "AE",
	'ø': "o",
	'Ø': "O",
	'ł': "l",
	'Ł': "L",
	'đ': "d",
	'Đ': "D",
	'œ': "oe",
	'Œ': "OE",
	'þ': "th",
	'Þ': "TH",
}

// Make returns the slug of title. Accents are stripped, known symbols are
// spelled out, hyphens count as word separators and any other character
// outside [A-Za-z0-9] is dropped. Words are joined with a single hyphen.
//
//	Make("Wireless Earbuds") == "wireless-earbuds"
//	Make("T-Shirt")          == "t-shirt"
//	Make("Tom's Café")       == "toms-cafe"
func Make(title string) string {
	folded := fold(title)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if s, ok := symbols[r]; ok {
			b.WriteString(s)
			continue
		}
		switch {
		case r == '-' || unicode.IsSpace(r):
			b.WriteByte(' ')
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		}
	}

	return strings.ToLower(strings.Join(strings.Fields(b.String()), "-"))
}

// fold decomposes s and removes combining marks, so "é" becomes "e"
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// reserved slugs collide with fixed routes under /api/products/
var reserved = map[string]struct{}{
	"categories": {},
}

// Reserved reports whether s cannot be used as a product slug
func Reserved(s string) bool {
	_, ok := reserved[s]
	return ok
}
