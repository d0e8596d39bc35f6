// Package catalog maintains the food classification cache: bulk seed
// loading and lookup with LLM fallback.
package catalog

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	gormdb "github.com/thebtf/forkcast/internal/db/gorm"
	"github.com/thebtf/forkcast/pkg/foodname"
	"github.com/thebtf/forkcast/pkg/models"
)

const (
	maxFoodNameLen = 120
	maxSourceLen   = 16
)

// SeedError reports a failed seed load. Row is 1-indexed counting the
// header as row 1, so the first data row is 2.
type SeedError struct {
	Row    int
	Fields map[string]string
	Err    error
}

func (e *SeedError) Error() string {
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+e.Fields[k])
		}
		return fmt.Sprintf("seed row %d invalid (%s)", e.Row, strings.Join(parts, "; "))
	}
	return fmt.Sprintf("seed row %d: %v", e.Row, e.Err)
}

func (e *SeedError) Unwrap() error { return e.Err }

// seedRow is one validated CSV row.
type seedRow struct {
	foodName string
	diet     models.DietLabel
	source   string
}

// validateSeedRow cleans one CSV row or reports field-level errors.
// diet defaults to unknown when absent or invalid; source defaults to
// "static". food_name is required and length-bounded after normalization.
func validateSeedRow(row map[string]string) (*seedRow, map[string]string) {
	fieldErrs := map[string]string{}
	cleaned := &seedRow{}

	raw := strings.TrimSpace(row["food_name"])
	if raw == "" {
		fieldErrs["food_name"] = "required"
	} else {
		norm := foodname.Normalize(raw)
		if n := utf8.RuneCountInString(norm); n > maxFoodNameLen {
			fieldErrs["food_name"] = fmt.Sprintf("length %d > max %d", n, maxFoodNameLen)
		}
		cleaned.foodName = norm
	}

	diet, ok := models.ParseDietLabel(row["diet"])
	if !ok {
		diet = models.DietUnknown
	}
	cleaned.diet = diet

	source := strings.ToLower(strings.TrimSpace(row["source"]))
	if source == "" {
		source = string(models.SourceStatic)
	}
	if n := utf8.RuneCountInString(source); n > maxSourceLen {
		fieldErrs["source"] = fmt.Sprintf("length %d > max %d", n, maxSourceLen)
	}
	cleaned.source = source

	if len(fieldErrs) > 0 {
		return nil, fieldErrs
	}
	return cleaned, nil
}

// LoadSeed bulk-loads the seed CSV into the catalog inside one
// transaction: any row failure rolls back the entire load. A missing file
// is not an error; it returns 0 with a warning. Returns the number of
// rows that created new entries.
func LoadSeed(ctx context.Context, db *gorm.DB, path string) (int, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		log.Warn().Str("path", path).Msg("catalog.seed_missing")
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read seed header: %w", err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	inserts := 0
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store := gormdb.NewCatalogStore(tx)

		for rowNum := 2; ; rowNum++ {
			record, err := reader.Read()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return &SeedError{Row: rowNum, Err: err}
			}

			row := map[string]string{}
			for i, col := range header {
				if i < len(record) {
					row[col] = record[i]
				}
			}

			cleaned, fieldErrs := validateSeedRow(row)
			if fieldErrs != nil {
				log.Error().Int("row", rowNum).
					Interface("errors", fieldErrs).
					Msg("catalog.seed_row_invalid")
				return &SeedError{Row: rowNum, Fields: fieldErrs}
			}

			var confidence *float64 // seed rows never carry confidence
			_, created, err := store.Upsert(ctx, cleaned.foodName, cleaned.diet, models.CatalogSource(cleaned.source), confidence)
			if err != nil {
				log.Error().Int("row", rowNum).Err(err).Msg("catalog.seed_row_db_error")
				return &SeedError{Row: rowNum, Err: err}
			}
			if created {
				inserts++
			}
		}
	})
	if err != nil {
		return 0, err
	}

	if inserts > 0 {
		log.Info().Int("count", inserts).Msg("catalog.seed_loaded")
	}
	return inserts, nil
}
