package service

import (
	"context"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/makeouthillx32/Discord/internal/cache"
	"github.com/makeouthillx32/Discord/internal/config"
	"github.com/makeouthillx32/Discord/internal/model"
	"github.com/makeouthillx32/Discord/internal/repository"
	"github.com/makeouthillx32/Discord/pkg/apperror"
)

const (
	leaderboardDefaultLimit = 10
	leaderboardMaxLimit     = 100

	longMessageThreshold = 100

	reasonWeeklyBonus  = "Weekly Streak Bonus"
	reasonMonthlyBonus = "Monthly Streak Bonus"
)

var customEmojiRE = regexp.MustCompile(`<a?:\w+:\d+>`)

// Ledger is the single entry point for changing a user's points. Every
// award goes through the repository's transaction protocol; counters,
// daily aggregates, cache invalidation and metrics are best-effort
// side effects that never fail the award itself.
type Ledger struct {
	repo   repository.StatsRepository
	cache  *cache.Service
	points config.PointsConfig
	nodeID string
	log    *zap.Logger
}

func NewLedger(repo repository.StatsRepository, cacheSvc *cache.Service, points config.PointsConfig, nodeID string, log *zap.Logger) *Ledger {
	return &Ledger{
		repo:   repo,
		cache:  cacheSvc,
		points: points,
		nodeID: nodeID,
		log:    log,
	}
}

// AwardResult reports the user's standing after an award.
type AwardResult struct {
	TotalPoints int  `json:"total_points"`
	Level       int  `json:"level"`
	LeveledUp   bool `json:"leveled_up"`
}

func (l *Ledger) AwardPoints(ctx context.Context, userID, guildID string, points int, reason, activityType string, metadata model.Metadata) (*AwardResult, error) {
	if userID == "" {
		return nil, apperror.ErrMissingUserID
	}
	if guildID == "" {
		return nil, apperror.ErrMissingGuildID
	}
	if points == 0 {
		return nil, apperror.ErrInvalidInput
	}
	if activityType == "" {
		activityType = model.ActivityGeneral
	}

	total, level, err := l.repo.AwardPoints(ctx, repository.AwardParams{
		UserID:       userID,
		GuildID:      guildID,
		Points:       points,
		Reason:       reason,
		ActivityType: activityType,
		Metadata:     metadata,
		NodeID:       l.nodeID,
	})
	if err != nil {
		return nil, err
	}

	leveledUp := level > l.LevelForPoints(total-points)
	if leveledUp {
		l.log.Info("user leveled up",
			zap.String("user_id", userID),
			zap.String("guild_id", guildID),
			zap.Int("level", level),
			zap.Int("total_points", total))
	}

	l.recordSideEffects(ctx, userID, guildID, points, activityType)

	return &AwardResult{TotalPoints: total, Level: level, LeveledUp: leveledUp}, nil
}

// recordSideEffects updates activity counters, the daily aggregate, the
// cross-node metric and drops stale cache entries. Failures here are
// logged and swallowed; the award already committed.
func (l *Ledger) recordSideEffects(ctx context.Context, userID, guildID string, points int, activityType string) {
	delta, daily := l.activityDelta(activityType, points)
	daily.Points = points

	if delta > 0 {
		if err := l.repo.IncrementActivity(ctx, userID, guildID, activityType, delta); err != nil {
			l.log.Warn("activity counter update failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	if err := l.repo.UpsertDailyActivity(ctx, userID, guildID, daily); err != nil {
		l.log.Warn("daily activity update failed", zap.String("user_id", userID), zap.Error(err))
	}

	if err := l.cache.InvalidateUserStats(ctx, userID, guildID); err != nil {
		l.log.Warn("stats cache invalidation failed", zap.Error(err))
	}
	if err := l.cache.InvalidateLeaderboards(ctx, guildID); err != nil {
		l.log.Warn("leaderboard cache invalidation failed", zap.Error(err))
	}
	if err := l.cache.RecordMetric(ctx, "points_awarded", float64(points)); err != nil {
		l.log.Warn("metric record failed", zap.Error(err))
	}
}

func (l *Ledger) activityDelta(activityType string, points int) (int, repository.DailyDelta) {
	switch activityType {
	case model.ActivityMessage:
		return 1, repository.DailyDelta{Messages: 1}
	case model.ActivityCommand:
		return 1, repository.DailyDelta{Commands: 1}
	case model.ActivityReactionGiven, model.ActivityReactionRole:
		return 1, repository.DailyDelta{Reactions: 1}
	case model.ActivityReactionReceived:
		return 1, repository.DailyDelta{}
	case model.ActivityVoice:
		// Voice awards are denominated in whole minutes.
		seconds := 0
		if l.points.VoiceMinute > 0 {
			seconds = points / l.points.VoiceMinute * 60
		}
		return seconds, repository.DailyDelta{VoiceSeconds: seconds}
	default:
		return 0, repository.DailyDelta{}
	}
}

// UserStatsView is a user's aggregate plus their leaderboard rank.
type UserStatsView struct {
	model.UserGuildStats
	Rank int64 `json:"rank"`
}

func (l *Ledger) GetUserStats(ctx context.Context, userID, guildID string) (*UserStatsView, error) {
	if userID == "" {
		return nil, apperror.ErrMissingUserID
	}
	if guildID == "" {
		return nil, apperror.ErrMissingGuildID
	}

	var view UserStatsView
	if hit, err := l.cache.CachedUserStats(ctx, userID, guildID, &view); err != nil {
		l.log.Warn("stats cache read failed", zap.Error(err))
	} else if hit {
		return &view, nil
	}

	stats, err := l.repo.GetUserStats(ctx, userID, guildID)
	if err != nil {
		return nil, err
	}
	rank, err := l.repo.GuildRank(ctx, userID, guildID)
	if err != nil {
		return nil, err
	}
	view = UserStatsView{UserGuildStats: *stats, Rank: rank}

	if err := l.cache.CacheUserStats(ctx, userID, guildID, &view); err != nil {
		l.log.Warn("stats cache write failed", zap.Error(err))
	}
	return &view, nil
}

func (l *Ledger) GetLeaderboard(ctx context.Context, guildID string, limit int) ([]model.UserGuildStats, error) {
	if guildID == "" {
		return nil, apperror.ErrMissingGuildID
	}
	if limit <= 0 {
		limit = leaderboardDefaultLimit
	}
	if limit > leaderboardMaxLimit {
		limit = leaderboardMaxLimit
	}

	var cached []model.UserGuildStats
	if hit, err := l.cache.CachedLeaderboard(ctx, guildID, limit, &cached); err != nil {
		l.log.Warn("leaderboard cache read failed", zap.Error(err))
	} else if hit {
		return cached, nil
	}

	board, err := l.repo.GetLeaderboard(ctx, guildID, limit)
	if err != nil {
		return nil, err
	}
	if err := l.cache.CacheLeaderboard(ctx, guildID, limit, board); err != nil {
		l.log.Warn("leaderboard cache write failed", zap.Error(err))
	}
	return board, nil
}

// CalculateMessagePoints prices one message: the flat per-message value
// plus bonuses for length, custom emoji and the first message of the
// UTC day. The returned metadata names each bonus that fired.
func (l *Ledger) CalculateMessagePoints(ctx context.Context, userID, guildID, content string) (int, model.Metadata) {
	points := l.points.MessageSent
	meta := model.Metadata{}

	if len(content) > longMessageThreshold {
		points += l.points.LongMessage
		meta["long_message"] = true
	}
	if n := len(customEmojiRE.FindAllStringIndex(content, -1)); n > 0 {
		points += l.points.EmojiUsed * n
		meta["emoji_count"] = n
	}

	first, err := l.cache.CheckFirstMessageToday(ctx, userID, guildID)
	if err != nil {
		l.log.Warn("first-message check failed", zap.Error(err))
	}
	if first {
		points += l.points.FirstMessageDay
		meta["first_message_of_day"] = true
	}

	return points, meta
}

// StreakResult reports the user's current streak and any bonuses paid
// out by this check.
type StreakResult struct {
	Days           int  `json:"days"`
	WeeklyAwarded  bool `json:"weekly_awarded"`
	MonthlyAwarded bool `json:"monthly_awarded"`
}

// CheckDailyStreak pays the weekly and monthly streak bonuses when the
// streak is long enough and the matching watermark is at least a full
// period old, so each bonus fires at most once per period.
func (l *Ledger) CheckDailyStreak(ctx context.Context, userID, guildID string) (*StreakResult, error) {
	if userID == "" {
		return nil, apperror.ErrMissingUserID
	}
	if guildID == "" {
		return nil, apperror.ErrMissingGuildID
	}

	days, err := l.repo.StreakDays(ctx, userID, guildID)
	if err != nil {
		return nil, err
	}
	result := &StreakResult{Days: days}
	now := time.Now()

	if days >= 7 {
		awarded, err := l.payBonus(ctx, userID, guildID, repository.BonusWeekly, l.points.WeeklyBonus, reasonWeeklyBonus, 7*24*time.Hour, days, now)
		if err != nil {
			return nil, err
		}
		result.WeeklyAwarded = awarded
	}
	if days >= 30 {
		awarded, err := l.payBonus(ctx, userID, guildID, repository.BonusMonthly, l.points.MonthlyBonus, reasonMonthlyBonus, 30*24*time.Hour, days, now)
		if err != nil {
			return nil, err
		}
		result.MonthlyAwarded = awarded
	}
	return result, nil
}

func (l *Ledger) payBonus(ctx context.Context, userID, guildID string, period repository.BonusPeriod, points int, reason string, minAge time.Duration, streak int, now time.Time) (bool, error) {
	last, err := l.repo.LastBonusAt(ctx, userID, guildID, period)
	if err != nil {
		return false, err
	}
	if last != nil && now.Sub(*last) < minAge {
		return false, nil
	}

	// The watermark advances before the award so a failure between the
	// two skips a bonus rather than double-paying it.
	if err := l.repo.MarkBonusAwarded(ctx, userID, guildID, period, now); err != nil {
		return false, err
	}
	_, err = l.AwardPoints(ctx, userID, guildID, points, reason, model.ActivityStreak, model.Metadata{
		"streak_days": streak,
		"period":      string(period),
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// LevelForPoints maps a point total to a level. Level 1 starts at zero.
func (l *Ledger) LevelForPoints(points int) int {
	if points < 0 {
		points = 0
	}
	return points/l.points.LevelMultiplier + 1
}

// PointsToNextLevel is how many more points the total needs before the
// level ticks over.
func (l *Ledger) PointsToNextLevel(points int) int {
	if points < 0 {
		points = 0
	}
	return l.points.LevelMultiplier - points%l.points.LevelMultiplier
}
