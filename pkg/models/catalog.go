// Package models contains domain models for forkcast.
package models

import (
	"database/sql"

	"github.com/goccy/go-json"
)

// CatalogSource identifies where a catalog entry's diet label came from.
type CatalogSource string

const (
	SourceStatic CatalogSource = "static"
	SourceLLM    CatalogSource = "llm"
	SourceManual CatalogSource = "manual"
)

// CatalogEntry is one known food's diet classification. The food name is
// always the normalized form; lookups must normalize before matching.
type CatalogEntry struct {
	ID             int64           `db:"id" json:"id"`
	FoodName       string          `db:"food_name" json:"food_name"`
	Diet           DietLabel       `db:"diet" json:"diet"`
	Source         CatalogSource   `db:"source" json:"source"`
	Confidence     sql.NullFloat64 `db:"confidence" json:"confidence,omitempty"`
	CreatedAt      string          `db:"created_at" json:"created_at"`
	CreatedAtEpoch int64           `db:"created_at_epoch" json:"created_at_epoch"`
	UpdatedAt      string          `db:"updated_at" json:"updated_at"`
	UpdatedAtEpoch int64           `db:"updated_at_epoch" json:"updated_at_epoch"`
}

// catalogEntryJSON is a JSON-friendly representation of CatalogEntry.
type catalogEntryJSON struct {
	ID         int64         `json:"id"`
	FoodName   string        `json:"food_name"`
	Diet       DietLabel     `json:"diet"`
	Source     CatalogSource `json:"source"`
	Confidence *float64      `json:"confidence,omitempty"`
	UpdatedAt  string        `json:"updated_at"`
}

// MarshalJSON converts sql.NullFloat64 confidence to a plain optional float.
func (e *CatalogEntry) MarshalJSON() ([]byte, error) {
	j := catalogEntryJSON{
		ID:        e.ID,
		FoodName:  e.FoodName,
		Diet:      e.Diet,
		Source:    e.Source,
		UpdatedAt: e.UpdatedAt,
	}
	if e.Confidence.Valid {
		j.Confidence = &e.Confidence.Float64
	}
	return json.Marshal(j)
}
