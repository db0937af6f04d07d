package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// PointsConfig holds every point value the ledger, voice tracker and
// reaction-role engine hand out. Levels derive from totals as
// totalPoints/LevelMultiplier + 1.
type PointsConfig struct {
	MessageSent      int
	ReactionGiven    int
	ReactionReceived int
	VoiceMinute      int
	CommandUsed      int
	FirstMessageDay  int
	LongMessage      int
	EmojiUsed        int
	ThreadCreated    int
	InviteCreated    int
	LevelMultiplier  int
	DailyBonus       int
	WeeklyBonus      int
	MonthlyBonus     int
}

type Config struct {
	AppEnv         string
	Port           string
	AllowedOrigins string

	NodeID    string
	BotToken  string
	JWTSecret string

	DatabaseURL string
	RedisURL    string

	Points PointsConfig

	HeartbeatInterval time.Duration
	AccrualInterval   time.Duration

	StatsCacheTTL       time.Duration
	LeaderboardCacheTTL time.Duration
}

func Load() (*Config, error) {
	// Don't fail if .env doesn't exist (might be prod env vars)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "3000"),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "http://localhost:3000"),

		NodeID:    os.Getenv("NODE_ID"),
		BotToken:  os.Getenv("DISCORD_TOKEN"),
		JWTSecret: os.Getenv("JWT_SECRET"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379"),

		Points: PointsConfig{
			MessageSent:      getEnvInt("POINTS_MESSAGE_SENT", 1),
			ReactionGiven:    getEnvInt("POINTS_REACTION_GIVEN", 1),
			ReactionReceived: getEnvInt("POINTS_REACTION_RECEIVED", 2),
			VoiceMinute:      getEnvInt("POINTS_VOICE_MINUTE", 5),
			CommandUsed:      getEnvInt("POINTS_COMMAND_USED", 3),
			FirstMessageDay:  getEnvInt("POINTS_FIRST_MESSAGE_DAY", 10),
			LongMessage:      getEnvInt("POINTS_LONG_MESSAGE", 5),
			EmojiUsed:        getEnvInt("POINTS_EMOJI_USED", 1),
			ThreadCreated:    getEnvInt("POINTS_THREAD_CREATED", 15),
			InviteCreated:    getEnvInt("POINTS_INVITE_CREATED", 20),
			LevelMultiplier:  getEnvInt("POINTS_LEVEL_MULTIPLIER", 100),
			DailyBonus:       getEnvInt("POINTS_DAILY_BONUS", 50),
			WeeklyBonus:      getEnvInt("POINTS_WEEKLY_BONUS", 200),
			MonthlyBonus:     getEnvInt("POINTS_MONTHLY_BONUS", 1000),
		},
	}

	if cfg.NodeID == "" {
		return nil, fmt.Errorf("NODE_ID is required")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.Points.LevelMultiplier <= 0 {
		return nil, fmt.Errorf("POINTS_LEVEL_MULTIPLIER must be positive")
	}

	var err error
	cfg.HeartbeatInterval, err = parseDuration(getEnv("HEARTBEAT_INTERVAL", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid HEARTBEAT_INTERVAL: %w", err)
	}
	cfg.AccrualInterval, err = parseDuration(getEnv("VOICE_ACCRUAL_INTERVAL", "60s"))
	if err != nil {
		return nil, fmt.Errorf("invalid VOICE_ACCRUAL_INTERVAL: %w", err)
	}
	cfg.StatsCacheTTL, err = parseDuration(getEnv("STATS_CACHE_TTL", "300s"))
	if err != nil {
		return nil, fmt.Errorf("invalid STATS_CACHE_TTL: %w", err)
	}
	cfg.LeaderboardCacheTTL, err = parseDuration(getEnv("LEADERBOARD_CACHE_TTL", "120s"))
	if err != nil {
		return nil, fmt.Errorf("invalid LEADERBOARD_CACHE_TTL: %w", err)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func parseDuration(s string) (time.Duration, error) {
	return time.ParseDuration(s)
}
