// Package gorm provides GORM-based database operations for forkcast.
package gorm

import (
	"fmt"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// runMigrations runs all database migrations using gormigrate.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		// Migration 001: Food catalog cache
		{
			ID: "001_food_catalog",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&CatalogEntry{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("food_catalog")
			},
		},

		// Migration 002: Simulation tables (users, turns, favorites)
		{
			ID: "002_simulation_tables",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&UserProfile{}); err != nil {
					return err
				}
				if err := tx.AutoMigrate(&ConversationTurn{}); err != nil {
					return err
				}
				return tx.AutoMigrate(&FavoriteFood{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("favorite_food", "conversation_turn", "user_profile")
			},
		},
	})

	if err := m.Migrate(); err != nil {
		return fmt.Errorf("run gormigrate migrations: %w", err)
	}

	return nil
}
