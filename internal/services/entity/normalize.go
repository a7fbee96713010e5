package entity

import (
	"strings"
	"unicode"
)

// corporateSuffixes are dropped from the end of a name, repeatedly.
var corporateSuffixes = map[string]struct{}{
	"inc": {}, "incorporated": {}, "corp": {}, "corporation": {},
	"co": {}, "company": {}, "ltd": {}, "limited": {}, "llc": {},
	"plc": {}, "ag": {}, "sa": {}, "nv": {}, "se": {}, "lp": {},
	"holdings": {}, "group": {},
}

// Normalize lowercases name, strips corporate suffixes and punctuation and
// collapses whitespace. "Apple, Inc." and "apple" normalize identically.
func Normalize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		switch {
		case r == '.' || r == '\'' || r == ',':
			// "A.T.&T." -> "at t", "McDonald's" -> "mcdonalds"
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}

	fields := strings.Fields(b.String())
	if len(fields) > 1 && fields[0] == "the" {
		fields = fields[1:]
	}
	for len(fields) > 1 {
		if _, ok := corporateSuffixes[fields[len(fields)-1]]; !ok {
			break
		}
		fields = fields[:len(fields)-1]
	}
	return strings.Join(fields, " ")
}

// normalizeTicker accepts "$aapl", " AAPL " and "aapl".
func normalizeTicker(t string) string {
	return strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(t), "$"))
}
