package llm

import (
	"regexp"
	"strings"

	"github.com/goccy/go-json"
)

// The top-three parser is an ordered cascade of pure strategies tried in
// sequence; the first one yielding exactly three non-empty trimmed strings
// wins. Each strategy is independently testable with literal fixtures.

type parseStrategy func(string) ([]string, bool)

var topThreeStrategies = []parseStrategy{
	parseStrictJSONArray,
	parseEmbeddedJSONArray,
	parseQuotedTriple,
	parseDelimitedTriple,
}

var (
	fenceOpen   = regexp.MustCompile("(?i)^\\s*```(?:json)?\\s*")
	fenceClose  = regexp.MustCompile("\\s*```\\s*$")
	jsonArrayRe = regexp.MustCompile(`(?s)\[\s*.*?\s*\]`)
	quotedRe    = regexp.MustCompile(`"([^"]+)"`)
	decorEdges  = regexp.MustCompile("^[\\[\\]`*\\-•\\s]+|[\\[\\]`*\\-•\\s]+$")
)

// parseTopThree recovers exactly three food names from free-form model
// text, or fails with UnparseableResponseError carrying a bounded snippet.
func parseTopThree(text string) ([]string, error) {
	s := stripMarkdownFences(strings.TrimSpace(text))
	for _, strategy := range topThreeStrategies {
		if items, ok := strategy(s); ok {
			return items, nil
		}
	}
	return nil, &UnparseableResponseError{Snippet: snippet(strings.TrimSpace(text))}
}

func stripMarkdownFences(s string) string {
	s = fenceOpen.ReplaceAllString(s, "")
	s = fenceClose.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// threeClean keeps non-empty trimmed strings and accepts only exact triples.
func threeClean(raw []string) ([]string, bool) {
	items := make([]string, 0, len(raw))
	for _, r := range raw {
		if t := strings.TrimSpace(r); t != "" {
			items = append(items, t)
		}
	}
	if len(items) != 3 {
		return nil, false
	}
	return items, true
}

// Strategy 1: the whole trimmed response is a JSON array.
func parseStrictJSONArray(s string) ([]string, bool) {
	var data []string
	if err := json.Unmarshal([]byte(s), &data); err != nil {
		return nil, false
	}
	return threeClean(data)
}

// Strategy 2: the first JSON-array-shaped substring parses as JSON.
func parseEmbeddedJSONArray(s string) ([]string, bool) {
	m := jsonArrayRe.FindString(s)
	if m == "" {
		return nil, false
	}
	var data []string
	if err := json.Unmarshal([]byte(m), &data); err != nil {
		return nil, false
	}
	return threeClean(data)
}

// Strategy 3: exactly three double-quoted substrings.
func parseQuotedTriple(s string) ([]string, bool) {
	matches := quotedRe.FindAllStringSubmatch(s, -1)
	quoted := make([]string, 0, len(matches))
	for _, m := range matches {
		quoted = append(quoted, m[1])
	}
	return threeClean(quoted)
}

// Strategy 4: split on comma/semicolon/newline and strip bullet and
// markdown decoration from each piece.
func parseDelimitedTriple(s string) ([]string, bool) {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n'
	})
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		if c := decorEdges.ReplaceAllString(strings.TrimSpace(p), ""); c != "" {
			cleaned = append(cleaned, c)
		}
	}
	return threeClean(cleaned)
}

// classifyPayload is the structured shape Classify accepts besides a
// bare label.
type classifyPayload struct {
	Diet       string   `json:"diet"`
	Confidence *float64 `json:"confidence"`
}

// parseClassification reads either {"diet": ..., "confidence": ...} or a
// bare label from model text. The returned label is lowercased but not
// validated against the vocabulary; that is the caller's decision.
func parseClassification(text string) (string, *float64) {
	s := stripMarkdownFences(strings.TrimSpace(text))
	var payload classifyPayload
	if err := json.Unmarshal([]byte(s), &payload); err == nil && payload.Diet != "" {
		return strings.ToLower(strings.TrimSpace(payload.Diet)), payload.Confidence
	}
	return strings.ToLower(strings.TrimSpace(s)), nil
}
