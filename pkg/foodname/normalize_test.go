package foodname

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercases and trims", "  Avocado  Toast ", "avocado toast"},
		{"collapses internal whitespace", "pad \t  thai", "pad thai"},
		{"strips decoration edges", "**Falafel!**", "falafel"},
		{"fixes avocato typo", "Avocato", "avocado"},
		{"fixes humus typo", "HUMUS", "hummus"},
		{"fixes typo inside phrase", "spaghetti bolonese", "spaghetti bolognese"},
		{"fixes margharita", "margharita pizza", "margherita pizza"},
		{"empty input", "", ""},
		{"only decoration", "***", ""},
		{"already canonical", "lentil soup", "lentil soup"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"  Avocado  Toast ",
		"HUMUS",
		"**Chicken Shawarma**",
		"spaghetti bolonese",
		"",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "Normalize must be idempotent for %q", in)
	}
}

func TestNormalizeCaseAndWhitespaceInsensitive(t *testing.T) {
	assert.Equal(t, Normalize("avocado toast"), Normalize(" Avocado  Toast "))
}
