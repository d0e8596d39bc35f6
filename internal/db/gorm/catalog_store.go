// Package gorm provides GORM-based database operations for forkcast.
package gorm

import (
	"context"
	"database/sql"
	"errors"

	"gorm.io/gorm"

	"github.com/thebtf/forkcast/pkg/foodname"
	"github.com/thebtf/forkcast/pkg/models"
)

// CatalogStore provides catalog-related database operations. Construct it
// over a transaction handle to bind its writes to that transaction.
type CatalogStore struct {
	db *gorm.DB
}

// NewCatalogStore creates a catalog store over the given handle.
func NewCatalogStore(db *gorm.DB) *CatalogStore {
	return &CatalogStore{db: db}
}

// Lookup finds the entry for a raw food name. The name is normalized
// first; matching is exact on the normalized key, no fuzzy matching.
// Returns nil on a miss.
func (s *CatalogStore) Lookup(ctx context.Context, rawName string) (*models.CatalogEntry, error) {
	norm := foodname.Normalize(rawName)

	var entry CatalogEntry
	err := s.db.WithContext(ctx).Where("food_name = ?", norm).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toModelCatalogEntry(&entry), nil
}

// Upsert writes a diet label for a normalized food name, overwriting any
// existing entry (last writer wins for diet/source/confidence). The
// created flag is informational only.
func (s *CatalogStore) Upsert(ctx context.Context, foodName string, diet models.DietLabel, source models.CatalogSource, confidence *float64) (*models.CatalogEntry, bool, error) {
	norm := foodname.Normalize(foodName)

	var entry CatalogEntry
	err := s.db.WithContext(ctx).Where("food_name = ?", norm).First(&entry).Error
	created := errors.Is(err, gorm.ErrRecordNotFound)
	if err != nil && !created {
		return nil, false, err
	}

	entry.FoodName = norm
	entry.Diet = string(diet)
	entry.Source = string(source)
	entry.Confidence = nullFloat64(confidence)

	if err := s.db.WithContext(ctx).Save(&entry).Error; err != nil {
		return nil, false, err
	}
	return toModelCatalogEntry(&entry), created, nil
}

// Count returns the number of catalog entries.
func (s *CatalogStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&CatalogEntry{}).Count(&count).Error
	return count, err
}

// DistinctFoods returns up to n food names from a sorted catalog snapshot.
// The deterministic order keeps dry-run and offline picks reproducible.
func (s *CatalogStore) DistinctFoods(ctx context.Context, n int) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).
		Model(&CatalogEntry{}).
		Order("food_name").
		Limit(n).
		Pluck("food_name", &names).Error
	return names, err
}

// AllFoods returns every food name in sorted order.
func (s *CatalogStore) AllFoods(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).
		Model(&CatalogEntry{}).
		Order("food_name").
		Pluck("food_name", &names).Error
	return names, err
}

// DietFor returns the stored diet and confidence for a raw name, with
// ok=false on a catalog miss. Satisfies the dry-run catalog view of the
// classifier client.
func (s *CatalogStore) DietFor(ctx context.Context, rawName string) (models.DietLabel, *float64, bool, error) {
	entry, err := s.Lookup(ctx, rawName)
	if err != nil {
		return models.DietUnknown, nil, false, err
	}
	if entry == nil {
		return models.DietUnknown, nil, false, nil
	}
	var confidence *float64
	if entry.Confidence.Valid {
		confidence = &entry.Confidence.Float64
	}
	return entry.Diet, confidence, true, nil
}

// toModelCatalogEntry converts a GORM CatalogEntry to pkg/models.CatalogEntry.
func toModelCatalogEntry(e *CatalogEntry) *models.CatalogEntry {
	return &models.CatalogEntry{
		ID:             e.ID,
		FoodName:       e.FoodName,
		Diet:           models.DietLabel(e.Diet),
		Source:         models.CatalogSource(e.Source),
		Confidence:     e.Confidence,
		CreatedAt:      e.CreatedAt,
		CreatedAtEpoch: e.CreatedAtEpoch,
		UpdatedAt:      e.UpdatedAt,
		UpdatedAtEpoch: e.UpdatedAtEpoch,
	}
}

// nullFloat64 converts an optional float to sql.NullFloat64.
func nullFloat64(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
