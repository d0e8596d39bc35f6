// Package models contains domain models for forkcast.
package models

import "strings"

// DietLabel classifies a food or a user into a diet category.
type DietLabel string

const (
	DietVegan      DietLabel = "vegan"
	DietVegetarian DietLabel = "vegetarian"
	DietOmnivore   DietLabel = "omnivore"
	DietUnknown    DietLabel = "unknown"
)

// ParseDietLabel maps free-form text onto the diet vocabulary.
// Matching is case-insensitive; anything outside the vocabulary
// returns ok=false.
func ParseDietLabel(s string) (DietLabel, bool) {
	switch DietLabel(strings.ToLower(strings.TrimSpace(s))) {
	case DietVegan:
		return DietVegan, true
	case DietVegetarian:
		return DietVegetarian, true
	case DietOmnivore:
		return DietOmnivore, true
	case DietUnknown:
		return DietUnknown, true
	}
	return DietUnknown, false
}

// ReduceDiets folds per-food diet labels into a single user-level diet.
// The least restrictive diet observed dominates: one omnivore pick makes
// the user an omnivore regardless of the other picks. Blank or
// unrecognized entries are ignored; an empty set reduces to unknown.
func ReduceDiets(labels []string) DietLabel {
	seen := make(map[DietLabel]bool, len(labels))
	for _, l := range labels {
		if strings.TrimSpace(l) == "" {
			continue
		}
		seen[DietLabel(strings.ToLower(strings.TrimSpace(l)))] = true
	}
	switch {
	case seen[DietOmnivore]:
		return DietOmnivore
	case seen[DietVegetarian]:
		return DietVegetarian
	case seen[DietVegan]:
		return DietVegan
	}
	return DietUnknown
}
