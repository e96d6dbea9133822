package match

import (
	"strings"
	"unicode"
)

// DefaultThreshold is the minimum similarity for a fuzzy suggestion. It is
// the pg_trgm default so the Postgres similarity() function agrees.
const DefaultThreshold = 0.3

type trigramSet map[string]struct{}

// trigrams returns the pg_trgm style trigram set of s: lower-cased,
// split into alphanumeric words, each word padded with two leading blanks
// and one trailing blank.
func trigrams(s string) trigramSet {
	set := make(trigramSet)
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		padded := []rune("  " + w + " ")
		for i := 0; i+3 <= len(padded); i++ {
			set[string(padded[i:i+3])] = struct{}{}
		}
	}
	return set
}

func similarity(a, b trigramSet) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	for t := range a {
		if _, ok := b[t]; ok {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	return float64(shared) / float64(union)
}

// Score returns the trigram similarity of a and b in [0, 1]. Identical
// non-empty inputs score 1 and an empty input scores 0.
func Score(a, b string) float64 {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return 0
	}
	if a == b {
		return 1
	}
	return similarity(trigrams(a), trigrams(b))
}
