// Package sim drives simulated favorite-food conversations end to end.
package sim

import (
	"fmt"
	"sort"
	"strings"

	"github.com/thebtf/forkcast/pkg/foodname"
)

// cuisineBuckets nudge variety across consecutive runs; iterations rotate
// through them so trios cluster around different regions.
var cuisineBuckets = []string{
	"Middle Eastern",
	"African",
	"Southeast Asian",
	"South Asian (non-Indian staples)",
	"Eastern European",
	"Mediterranean (non-Italian staples)",
	"Latin American (non-Mexican staples)",
	"East Asian (non-Japanese staples)",
	"Oceania / Pacific",
	"Regional North American (not burgers or pizza)",
}

const basePrompt = "Give your top-3 favorite foods.\n" +
	"Return exactly three short food names (no brands), as a JSON array of three strings.\n" +
	"Prefer items typical of a single cuisine or region so the three feel coherent."

const guardrails = "Avoid globally popular defaults unless they truly fit the chosen cuisine: " +
	"pizza, sushi, tacos, burger, pasta."

const avoidLine = "\nAvoid repeating: pizza, sushi, tacos, burger, pasta."

// composePrompt builds the ask-step prompt for one iteration. The seed
// text makes each prompt distinct so providers don't collapse consecutive
// asks into identical answers.
func composePrompt(runID string, iteration int, bucketHint bool) string {
	var sb strings.Builder
	sb.WriteString(basePrompt)
	sb.WriteString("\n")
	if bucketHint {
		bucket := cuisineBuckets[iteration%len(cuisineBuckets)]
		fmt.Fprintf(&sb, "Use the perspective of %s cuisine.\n", bucket)
	}
	sb.WriteString(guardrails)
	fmt.Fprintf(&sb, "\n(seed:%s-%d)", runID, iteration)
	return sb.String()
}

// trioKey canonicalizes a trio for duplicate detection: normalized names,
// order-insensitive.
func trioKey(foods []string) string {
	norm := make([]string, len(foods))
	for i, f := range foods {
		norm[i] = foodname.Normalize(f)
	}
	sort.Strings(norm)
	return strings.Join(norm, "|")
}
