// Package models contains domain models for forkcast.
package models

import "database/sql"

// TurnRole marks which side of the two-turn dialogue a row represents.
// A is the question turn, B the answer turn.
type TurnRole string

const (
	RoleAsk    TurnRole = "A"
	RoleAnswer TurnRole = "B"
)

// UserProfile is one simulated identity per run iteration. Diet starts as
// unknown and is set exactly once after the three favorites are resolved.
type UserProfile struct {
	ID             string    `db:"id" json:"id"`
	Diet           DietLabel `db:"diet" json:"diet"`
	RunID          string    `db:"run_id" json:"run_id"`
	CreatedAt      string    `db:"created_at" json:"created_at"`
	CreatedAtEpoch int64     `db:"created_at_epoch" json:"created_at_epoch"`
}

// ConversationTurn is one exchange in a simulated dialogue. Token counts on
// turn A cover only the ask-three-foods call; counts on turn B cover only
// the classification calls made while resolving that user's foods.
type ConversationTurn struct {
	ID               int64           `db:"id" json:"id"`
	UserID           string          `db:"user_id" json:"user_id"`
	Role             TurnRole        `db:"role" json:"role"`
	Prompt           string          `db:"prompt" json:"prompt"`
	Response         string          `db:"response" json:"response"`
	Model            string          `db:"model" json:"model"`
	PromptTokens     sql.NullInt64   `db:"prompt_tokens" json:"prompt_tokens,omitempty"`
	CompletionTokens sql.NullInt64   `db:"completion_tokens" json:"completion_tokens,omitempty"`
	TotalTokens      sql.NullInt64   `db:"total_tokens" json:"total_tokens,omitempty"`
	EstimatedCostUSD sql.NullFloat64 `db:"estimated_cost_usd" json:"estimated_cost_usd,omitempty"`
	RunID            string          `db:"run_id" json:"run_id"`
	CreatedAt        string          `db:"created_at" json:"created_at"`
	CreatedAtEpoch   int64           `db:"created_at_epoch" json:"created_at_epoch"`
}

// FavoriteFood is one ranked food pick for a user. The catalog reference is
// weak: deleting the catalog entry nulls it without removing the pick.
type FavoriteFood struct {
	ID        int64         `db:"id" json:"id"`
	UserID    string        `db:"user_id" json:"user_id"`
	Rank      int           `db:"rank" json:"rank"`
	NameRaw   string        `db:"name_raw" json:"name_raw"`
	FoodName  string        `db:"food_name" json:"food_name"`
	CatalogID sql.NullInt64 `db:"catalog_id" json:"catalog_id,omitempty"`
}
