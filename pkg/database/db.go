package database

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/makeouthillx32/Discord/internal/model"
)

// Connect opens the postgres store from a DSN/URL and returns the handle.
// Callers own the handle; there is no package-level singleton.
func Connect(databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

// Migrate creates or updates every table the core owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.Guild{},
		&model.UserGuildStats{},
		&model.PointsTransaction{},
		&model.DailyActivity{},
		&model.VoiceSession{},
		&model.ReactionRoleMapping{},
		&model.ReactionRoleLog{},
	)
}
