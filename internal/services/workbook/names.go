package workbook

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lowercases s, trims it and strips accents, so "Variação" and
// "variacao" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return strings.ToLower(strings.TrimSpace(s))
	}
	return folded
}

// ResolveSheet picks the sheet whose folded name equals target, then one
// whose folded name contains hint, then the first sheet. It returns "" for
// a workbook without sheets.
func ResolveSheet(names []string, target, hint string) string {
	want := Fold(target)
	for _, name := range names {
		if Fold(name) == want {
			return name
		}
	}
	if hint != "" {
		for _, name := range names {
			if strings.Contains(Fold(name), hint) {
				return name
			}
		}
	}
	if len(names) > 0 {
		return names[0]
	}
	return ""
}

// FindColumn returns the index of the first header whose folded text
// contains one of the candidates, tried in order. It returns -1 when none
// matches.
func FindColumn(header []string, candidates ...string) int {
	folded := make([]string, len(header))
	for i, h := range header {
		folded[i] = Fold(h)
	}
	for _, want := range candidates {
		for i, h := range folded {
			if strings.Contains(h, want) {
				return i
			}
		}
	}
	return -1
}
