// Package gorm provides GORM-based database operations for forkcast.
package gorm

import (
	"context"
	"database/sql"

	"gorm.io/gorm"

	"github.com/thebtf/forkcast/pkg/models"
)

// RunStore persists the per-iteration records: users, conversation turns,
// and favorite foods. Construct it over a transaction handle so one
// iteration's writes are all-or-nothing.
type RunStore struct {
	db *gorm.DB
}

// NewRunStore creates a run store over the given handle.
func NewRunStore(db *gorm.DB) *RunStore {
	return &RunStore{db: db}
}

// CreateUser inserts a new simulated user with an unknown diet.
func (s *RunStore) CreateUser(ctx context.Context, runID string) (*models.UserProfile, error) {
	user := &UserProfile{
		Diet:  string(models.DietUnknown),
		RunID: runID,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return &models.UserProfile{
		ID:             user.ID,
		Diet:           models.DietLabel(user.Diet),
		RunID:          user.RunID,
		CreatedAt:      user.CreatedAt,
		CreatedAtEpoch: user.CreatedAtEpoch,
	}, nil
}

// SetUserDiet records the reduced diet for a user. Called exactly once per
// user, at the end of its iteration.
func (s *RunStore) SetUserDiet(ctx context.Context, userID string, diet models.DietLabel) error {
	return s.db.WithContext(ctx).
		Model(&UserProfile{}).
		Where("id = ?", userID).
		Update("diet", string(diet)).Error
}

// TurnRecord carries the fields of a turn insert. Token fields are
// optional; pass nil pointers for a turn whose accounting is not yet known.
type TurnRecord struct {
	UserID           string
	Role             models.TurnRole
	Prompt           string
	Response         string
	Model            string
	PromptTokens     *int64
	CompletionTokens *int64
	EstimatedCostUSD *float64
	RunID            string
}

// CreateTurn inserts one conversation turn and returns its id.
func (s *RunStore) CreateTurn(ctx context.Context, rec TurnRecord) (int64, error) {
	turn := &ConversationTurn{
		UserID:           rec.UserID,
		Role:             string(rec.Role),
		Prompt:           rec.Prompt,
		Response:         rec.Response,
		Model:            rec.Model,
		PromptTokens:     nullInt64Ptr(rec.PromptTokens),
		CompletionTokens: nullInt64Ptr(rec.CompletionTokens),
		EstimatedCostUSD: nullFloat64(rec.EstimatedCostUSD),
		RunID:            rec.RunID,
	}
	if rec.PromptTokens != nil && rec.CompletionTokens != nil {
		total := *rec.PromptTokens + *rec.CompletionTokens
		turn.TotalTokens = sql.NullInt64{Int64: total, Valid: true}
	}
	if err := s.db.WithContext(ctx).Create(turn).Error; err != nil {
		return 0, err
	}
	return turn.ID, nil
}

// UpdateTurnTokens fills in a turn's token and cost fields once the step
// it accounts for has completed.
func (s *RunStore) UpdateTurnTokens(ctx context.Context, turnID, promptTokens, completionTokens int64, costUSD float64) error {
	return s.db.WithContext(ctx).
		Model(&ConversationTurn{}).
		Where("id = ?", turnID).
		Updates(map[string]interface{}{
			"prompt_tokens":      promptTokens,
			"completion_tokens":  completionTokens,
			"total_tokens":       promptTokens + completionTokens,
			"estimated_cost_usd": costUSD,
		}).Error
}

// CreateFavorite inserts one ranked food pick.
func (s *RunStore) CreateFavorite(ctx context.Context, userID string, rank int, nameRaw, foodName string, catalogID *int64) error {
	fav := &FavoriteFood{
		UserID:    userID,
		Rank:      rank,
		NameRaw:   nameRaw,
		FoodName:  foodName,
		CatalogID: nullInt64Ptr(catalogID),
	}
	return s.db.WithContext(ctx).Create(fav).Error
}

// GetUser retrieves one user by id, nil when absent.
func (s *RunStore) GetUser(ctx context.Context, userID string) (*models.UserProfile, error) {
	var user UserProfile
	err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &models.UserProfile{
		ID:             user.ID,
		Diet:           models.DietLabel(user.Diet),
		RunID:          user.RunID,
		CreatedAt:      user.CreatedAt,
		CreatedAtEpoch: user.CreatedAtEpoch,
	}, nil
}

// DietCount is one row of the diet report.
type DietCount struct {
	Diet  string `json:"diet"`
	Count int64  `json:"count"`
}

// CountUsersByDiet aggregates users per diet label, optionally filtered by
// run. Backs the diet report endpoint.
func (s *RunStore) CountUsersByDiet(ctx context.Context, runID string) ([]DietCount, error) {
	query := s.db.WithContext(ctx).
		Model(&UserProfile{}).
		Select("diet, COUNT(*) as count").
		Group("diet").
		Order("diet")
	if runID != "" {
		query = query.Where("run_id = ?", runID)
	}

	var counts []DietCount
	err := query.Scan(&counts).Error
	return counts, err
}

// CostTotals aggregates token and cost accounting across turns, optionally
// filtered by run. Backs the cost report endpoint.
type CostTotals struct {
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	TotalTokens      int64   `json:"total_tokens"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
	Turns            int64   `json:"turns"`
}

// SumCosts sums the token/cost columns over conversation turns.
func (s *RunStore) SumCosts(ctx context.Context, runID string) (*CostTotals, error) {
	query := s.db.WithContext(ctx).
		Model(&ConversationTurn{}).
		Select(`COALESCE(SUM(prompt_tokens), 0) as prompt_tokens,
			COALESCE(SUM(completion_tokens), 0) as completion_tokens,
			COALESCE(SUM(total_tokens), 0) as total_tokens,
			COALESCE(SUM(estimated_cost_usd), 0) as estimated_cost_usd,
			COUNT(*) as turns`)
	if runID != "" {
		query = query.Where("run_id = ?", runID)
	}

	var totals CostTotals
	err := query.Scan(&totals).Error
	if err != nil {
		return nil, err
	}
	return &totals, nil
}

// nullInt64Ptr converts an optional int64 to sql.NullInt64.
func nullInt64Ptr(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
