package catalog

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	gormdb "github.com/thebtf/forkcast/internal/db/gorm"
	"github.com/thebtf/forkcast/internal/llm"
	"github.com/thebtf/forkcast/pkg/foodname"
	"github.com/thebtf/forkcast/pkg/models"
)

// Resolver answers "what diet is this food" from the catalog, falling back
// to the classifier on a miss and caching the answer. Bind it to a
// transaction handle so fallback writes roll back with their iteration.
type Resolver struct {
	store  *gormdb.CatalogStore
	client *llm.Client
}

// NewResolver creates a resolver over the given handle.
func NewResolver(db *gorm.DB, client *llm.Client) *Resolver {
	return &Resolver{store: gormdb.NewCatalogStore(db), client: client}
}

// Store exposes the underlying catalog store.
func (r *Resolver) Store() *gormdb.CatalogStore {
	return r.store
}

// Resolve returns the catalog entry for a raw food name, classifying and
// caching it on a miss. A classification outside the diet vocabulary is
// non-fatal: the entry comes back nil and the caller proceeds with
// unknown. Budget exhaustion and transport errors propagate.
func (r *Resolver) Resolve(ctx context.Context, rawName string) (*models.CatalogEntry, error) {
	norm := foodname.Normalize(rawName)

	entry, err := r.store.Lookup(ctx, norm)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		return entry, nil
	}

	diet, confidence, err := r.client.Classify(ctx, norm)
	if errors.Is(err, llm.ErrUnmappedLabel) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if diet == models.DietUnknown {
		// Dry-run miss. Not cached so a later live run can classify it.
		return nil, nil
	}

	entry, _, err = r.store.Upsert(ctx, norm, diet, models.SourceLLM, confidence)
	if err != nil {
		return nil, err
	}
	log.Info().Str("food", norm).Str("diet", string(diet)).
		Float64("cost_usd", r.client.CostUSD()).
		Msg("catalog.llm_cached")
	return entry, nil
}
