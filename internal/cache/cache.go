package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultStatsTTL       = 5 * time.Minute
	defaultLeaderboardTTL = 2 * time.Minute
	dedupTTL              = 24 * time.Hour
)

// Service wraps the shared key-value store every node coordinates through.
// A nil client is a valid state: every method degrades to a safe default so
// the bot keeps running without cross-node coordination. Nothing may treat
// cached values as authoritative; only the durable store is.
type Service struct {
	client *redis.Client
	log    *zap.Logger

	statsTTL       time.Duration
	leaderboardTTL time.Duration
}

func NewService(client *redis.Client, log *zap.Logger) *Service {
	if log == nil {
		log = zap.L()
	}
	return &Service{
		client:         client,
		log:            log,
		statsTTL:       defaultStatsTTL,
		leaderboardTTL: defaultLeaderboardTTL,
	}
}

// SetTTLs overrides the snapshot lifetimes. Zero values keep the defaults.
func (s *Service) SetTTLs(stats, leaderboard time.Duration) {
	if stats > 0 {
		s.statsTTL = stats
	}
	if leaderboard > 0 {
		s.leaderboardTTL = leaderboard
	}
}

// Available reports whether a cache client was configured at all.
func (s *Service) Available() bool {
	return s.client != nil
}

func (s *Service) Ping(ctx context.Context) error {
	if s.client == nil {
		return redis.ErrClosed
	}
	return s.client.Ping(ctx).Err()
}

// CheckFirstMessageToday flags the user's first message of the UTC calendar
// day in a guild. The underlying SETNX is a single atomic conditional set,
// so exactly one concurrent caller observes true per key per day.
func (s *Service) CheckFirstMessageToday(ctx context.Context, userID, guildID string) (bool, error) {
	if s.client == nil {
		// No cache, no dedup: report not-first so the bonus is never
		// double-awarded across nodes.
		return false, nil
	}

	day := time.Now().UTC().Format("2006-01-02")
	key := fmt.Sprintf("daily:%s:%s:%s", guildID, userID, day)

	wasSet, err := s.client.SetNX(ctx, key, "1", dedupTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check first message flag: %w", err)
	}
	return wasSet, nil
}

func userStatsKey(userID, guildID string) string {
	return fmt.Sprintf("cache:user:%s:%s", guildID, userID)
}

// CacheUserStats stores a JSON snapshot of aggregate stats with a short TTL.
func (s *Service) CacheUserStats(ctx context.Context, userID, guildID string, stats any) error {
	if s.client == nil {
		return nil
	}
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, userStatsKey(userID, guildID), data, s.statsTTL).Err()
}

// CachedUserStats loads a cached snapshot into out. Returns false on miss.
func (s *Service) CachedUserStats(ctx context.Context, userID, guildID string, out any) (bool, error) {
	if s.client == nil {
		return false, nil
	}
	data, err := s.client.Get(ctx, userStatsKey(userID, guildID)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		// Corrupt entry; drop it and treat as a miss.
		_ = s.client.Del(ctx, userStatsKey(userID, guildID)).Err()
		return false, nil
	}
	return true, nil
}

// InvalidateUserStats is delete-only. Readers racing the delete see either
// the old or the new state, never a stale write-back.
func (s *Service) InvalidateUserStats(ctx context.Context, userID, guildID string) error {
	if s.client == nil {
		return nil
	}
	return s.client.Del(ctx, userStatsKey(userID, guildID)).Err()
}

func leaderboardKey(guildID string, limit int) string {
	return fmt.Sprintf("cache:leaderboard:%s:%d", guildID, limit)
}

func (s *Service) CacheLeaderboard(ctx context.Context, guildID string, limit int, entries any) error {
	if s.client == nil {
		return nil
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, leaderboardKey(guildID, limit), data, s.leaderboardTTL).Err()
}

func (s *Service) CachedLeaderboard(ctx context.Context, guildID string, limit int, out any) (bool, error) {
	if s.client == nil {
		return false, nil
	}
	data, err := s.client.Get(ctx, leaderboardKey(guildID, limit)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		_ = s.client.Del(ctx, leaderboardKey(guildID, limit)).Err()
		return false, nil
	}
	return true, nil
}

// InvalidateLeaderboards drops every cached page size for a guild.
func (s *Service) InvalidateLeaderboards(ctx context.Context, guildID string) error {
	if s.client == nil {
		return nil
	}
	iter := s.client.Scan(ctx, 0, fmt.Sprintf("cache:leaderboard:%s:*", guildID), 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
