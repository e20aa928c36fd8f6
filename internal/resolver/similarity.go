package resolver

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// normalize prepares user input and catalog entries for comparison:
// casefold, trim, collapse whitespace, strip punctuation other than
// the dash and dot that appear in slugs and product names.
func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return r
		case r == ' ' || r == '-' || r == '.':
			return r
		default:
			return -1
		}
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// similarity is normalized edit distance in [0,1].
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	n := len([]rune(a))
	if m := len([]rune(b)); m > n {
		n = m
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(n)
}
