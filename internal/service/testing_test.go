package service

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/makeouthillx32/Discord/internal/cache"
	"github.com/makeouthillx32/Discord/internal/config"
	"github.com/makeouthillx32/Discord/internal/model"
)

func testPointsConfig() config.PointsConfig {
	return config.PointsConfig{
		MessageSent:      1,
		ReactionGiven:    1,
		ReactionReceived: 2,
		VoiceMinute:      5,
		CommandUsed:      3,
		FirstMessageDay:  10,
		LongMessage:      5,
		EmojiUsed:        1,
		ThreadCreated:    15,
		InviteCreated:    20,
		LevelMultiplier:  100,
		DailyBonus:       50,
		WeeklyBonus:      200,
		MonthlyBonus:     1000,
	}
}

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// A second pooled connection would see its own empty in-memory DB.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	err = db.AutoMigrate(
		&model.User{},
		&model.Guild{},
		&model.PointsTransaction{},
		&model.UserGuildStats{},
		&model.DailyActivity{},
		&model.VoiceSession{},
		&model.ReactionRoleMapping{},
		&model.ReactionRoleLog{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func setupServiceCache(t *testing.T) (*cache.Service, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return cache.NewService(client, zap.NewNop()), mr
}
