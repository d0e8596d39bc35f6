// Package gorm provides GORM-based database operations for forkcast.
package gorm

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORM Models

// CatalogEntry caches one food's diet label so already-labeled foods never
// pay LLM cost again. food_name is always the normalized form.
type CatalogEntry struct {
	ID             int64           `gorm:"primaryKey;autoIncrement"`
	FoodName       string          `gorm:"uniqueIndex;size:120;not null"`
	Diet           string          `gorm:"type:text;check:diet IN ('vegan', 'vegetarian', 'omnivore', 'unknown');default:'unknown';index"`
	Source         string          `gorm:"size:16;default:'static';not null"`
	Confidence     sql.NullFloat64 `gorm:"type:real"`
	CreatedAt      string          `gorm:"not null"`
	CreatedAtEpoch int64           `gorm:"not null"`
	UpdatedAt      string          `gorm:"not null"`
	UpdatedAtEpoch int64           `gorm:"index:idx_catalog_updated,sort:desc;not null"`
}

func (CatalogEntry) TableName() string { return "food_catalog" }

// BeforeSave hook to keep timestamps current on create and overwrite.
func (e *CatalogEntry) BeforeSave(tx *gorm.DB) error {
	now := time.Now()
	if e.CreatedAtEpoch == 0 {
		e.CreatedAtEpoch = now.UnixMilli()
	}
	if e.CreatedAt == "" {
		e.CreatedAt = now.Format(time.RFC3339)
	}
	e.UpdatedAtEpoch = now.UnixMilli()
	e.UpdatedAt = now.Format(time.RFC3339)
	return nil
}

// UserProfile is one simulated identity. Diet starts unknown and is set
// once after the user's three favorites resolve.
type UserProfile struct {
	ID             string `gorm:"primaryKey;size:36"`
	Diet           string `gorm:"type:text;check:diet IN ('vegan', 'vegetarian', 'omnivore', 'unknown');default:'unknown';index"`
	RunID          string `gorm:"index;size:36"`
	CreatedAt      string `gorm:"not null"`
	CreatedAtEpoch int64  `gorm:"index:idx_users_created,sort:desc;not null"`
}

func (UserProfile) TableName() string { return "user_profile" }

// BeforeCreate hook to assign the id and timestamps.
func (u *UserProfile) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now()
	if u.CreatedAtEpoch == 0 {
		u.CreatedAtEpoch = now.UnixMilli()
	}
	if u.CreatedAt == "" {
		u.CreatedAt = now.Format(time.RFC3339)
	}
	return nil
}

// ConversationTurn is one exchange of the simulated dialogue. Token fields
// stay null until the step they account for has completed. run_id is a
// denormalized copy of the owner's run_id for batch filtering without a join.
type ConversationTurn struct {
	ID               int64        `gorm:"primaryKey;autoIncrement"`
	UserID           string       `gorm:"index;size:36;not null"`
	User             *UserProfile `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Role             string       `gorm:"type:text;check:role IN ('A', 'B');index;not null"`
	Prompt           string       `gorm:"type:text"`
	Response         string       `gorm:"type:text"`
	Model            string       `gorm:"size:64"`
	PromptTokens     sql.NullInt64
	CompletionTokens sql.NullInt64
	TotalTokens      sql.NullInt64
	EstimatedCostUSD sql.NullFloat64 `gorm:"column:estimated_cost_usd;type:real"`
	RunID            string          `gorm:"index;size:36"`
	CreatedAt        string          `gorm:"not null"`
	CreatedAtEpoch   int64           `gorm:"index:idx_turns_created,sort:desc;not null"`
}

func (ConversationTurn) TableName() string { return "conversation_turn" }

// BeforeCreate hook to ensure timestamps are set.
func (t *ConversationTurn) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if t.CreatedAtEpoch == 0 {
		t.CreatedAtEpoch = now.UnixMilli()
	}
	if t.CreatedAt == "" {
		t.CreatedAt = now.Format(time.RFC3339)
	}
	return nil
}

// FavoriteFood is one ranked pick for a user, unique per (user, rank). The
// catalog reference nulls out if the entry is ever deleted; the pick stays.
type FavoriteFood struct {
	ID             int64         `gorm:"primaryKey;autoIncrement"`
	UserID         string        `gorm:"size:36;uniqueIndex:idx_favorite_user_rank,priority:1;not null"`
	User           *UserProfile  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Rank           int           `gorm:"uniqueIndex:idx_favorite_user_rank,priority:2;not null"`
	NameRaw        string        `gorm:"size:120;not null"`
	FoodName       string        `gorm:"size:120;index"`
	CatalogID      sql.NullInt64 `gorm:"index"`
	Catalog        *CatalogEntry `gorm:"foreignKey:CatalogID;constraint:OnDelete:SET NULL"`
	CreatedAt      string        `gorm:"not null"`
	CreatedAtEpoch int64         `gorm:"not null"`
}

func (FavoriteFood) TableName() string { return "favorite_food" }

// BeforeCreate hook to ensure timestamps are set.
func (f *FavoriteFood) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if f.CreatedAtEpoch == 0 {
		f.CreatedAtEpoch = now.UnixMilli()
	}
	if f.CreatedAt == "" {
		f.CreatedAt = now.Format(time.RFC3339)
	}
	return nil
}
