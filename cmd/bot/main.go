package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/makeouthillx32/Discord/internal/cache"
	"github.com/makeouthillx32/Discord/internal/config"
	"github.com/makeouthillx32/Discord/internal/discord"
	"github.com/makeouthillx32/Discord/internal/repository"
	"github.com/makeouthillx32/Discord/internal/server"
	"github.com/makeouthillx32/Discord/internal/service"
	"github.com/makeouthillx32/Discord/pkg/database"
	"github.com/makeouthillx32/Discord/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zlog, cleanup, err := logger.New(cfg.AppEnv)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer cleanup()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		zlog.Fatal("database connection failed", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		zlog.Fatal("migration failed", zap.Error(err))
	}

	// The bot runs without Redis, just degraded: no dedup, no cross-node
	// visibility, every read hits the database.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			zlog.Fatal("invalid REDIS_URL", zap.Error(err))
		}
		redisClient = redis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			zlog.Warn("redis unreachable, running without coordination cache", zap.Error(err))
			redisClient = nil
		}
		cancel()
	}
	cacheSvc := cache.NewService(redisClient, zlog)
	cacheSvc.SetTTLs(cfg.StatsCacheTTL, cfg.LeaderboardCacheTTL)

	statsRepo := repository.NewStatsRepository(db, cfg.Points.LevelMultiplier)
	voiceRepo := repository.NewVoiceRepository(db)
	rrRepo := repository.NewReactionRoleRepository(db)

	ledger := service.NewLedger(statsRepo, cacheSvc, cfg.Points, cfg.NodeID, zlog)
	tracker := service.NewVoiceTracker(voiceRepo, ledger, cfg.Points, cfg.AccrualInterval, zlog)
	roleClient := discord.NewRoleClient(cfg.BotToken, zlog)
	reactionRoles := service.NewReactionRoles(rrRepo, roleClient, ledger, cfg.Points, zlog)

	coordinator := service.NewNodeCoordinator(cacheSvc, cfg.NodeID, cfg.HeartbeatInterval, zlog)
	coordinator.Start(context.Background())

	maintenance := service.NewMaintenance(cacheSvc, statsRepo, voiceRepo, ledger, cfg.Points, zlog)
	if err := maintenance.Start(); err != nil {
		zlog.Fatal("maintenance scheduler failed", zap.Error(err))
	}

	srv := server.New(cfg, db, cacheSvc, ledger, reactionRoles, coordinator, tracker, zlog)
	go func() {
		zlog.Info("http server listening", zap.String("port", cfg.Port))
		if err := srv.Run(":" + cfg.Port); err != nil {
			zlog.Fatal("http server exited", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info("shutting down", zap.String("node_id", cfg.NodeID))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Open voice sessions pay out before the node disappears.
	tracker.ForceEndAll(shutdownCtx)
	maintenance.Stop()
	coordinator.Stop(shutdownCtx)

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Warn("http shutdown failed", zap.Error(err))
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			zlog.Warn("redis close failed", zap.Error(err))
		}
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	zlog.Info("shutdown complete")
}
