// Package foodname canonicalizes raw food names into catalog keys.
package foodname

import (
	"regexp"
	"strings"
)

// typoFixes maps common misspellings seen in model output to their
// canonical form. Applied token-wise after lowercasing.
var typoFixes = map[string]string{
	"avocato":    "avocado",
	"humus":      "hummus",
	"bolonese":   "bolognese",
	"omlette":    "omelette",
	"margharita": "margherita",
}

var (
	multiSpace   = regexp.MustCompile(`\s+`)
	nonWordEdges = regexp.MustCompile(`(?i)^[^a-z0-9]+|[^a-z0-9]+$`)
)

// Normalize returns the canonical form of a raw food name: trimmed,
// lowercased, non-alphanumeric edges stripped, whitespace collapsed,
// known typos substituted. Idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = nonWordEdges.ReplaceAllString(s, "")
	s = multiSpace.ReplaceAllString(s, " ")

	tokens := strings.Split(s, " ")
	out := tokens[:0]
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		if fixed, ok := typoFixes[tok]; ok {
			tok = fixed
		}
		out = append(out, tok)
	}
	return strings.Join(out, " ")
}
