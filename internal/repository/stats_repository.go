package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/makeouthillx32/Discord/internal/model"
)

// AwardParams carries one point award through the transaction protocol.
type AwardParams struct {
	UserID       string
	GuildID      string
	Points       int
	Reason       string
	ActivityType string
	Metadata     model.Metadata
	NodeID       string
}

// BonusPeriod selects which streak-bonus watermark to read or advance.
type BonusPeriod string

const (
	BonusWeekly  BonusPeriod = "weekly"
	BonusMonthly BonusPeriod = "monthly"
)

type StatsRepository interface {
	// AwardPoints runs the full award transaction: placeholder user/guild
	// upserts, append-only transaction row, stats increment and level
	// recompute. Returns the post-award total and level.
	AwardPoints(ctx context.Context, params AwardParams) (total int, level int, err error)
	GetUserStats(ctx context.Context, userID, guildID string) (*model.UserGuildStats, error)
	GetLeaderboard(ctx context.Context, guildID string, limit int) ([]model.UserGuildStats, error)
	GuildRank(ctx context.Context, userID, guildID string) (int64, error)
	IncrementActivity(ctx context.Context, userID, guildID, activityType string, delta int) error
	UpsertDailyActivity(ctx context.Context, userID, guildID string, delta DailyDelta) error
	StreakDays(ctx context.Context, userID, guildID string) (int, error)
	LastBonusAt(ctx context.Context, userID, guildID string, period BonusPeriod) (*time.Time, error)
	MarkBonusAwarded(ctx context.Context, userID, guildID string, period BonusPeriod, at time.Time) error
	SyncUser(ctx context.Context, user *model.User) error
	SyncGuild(ctx context.Context, guild *model.Guild) error
	CleanupTransactions(ctx context.Context, olderThan time.Duration) (int64, error)
}

type statsRepository struct {
	db              *gorm.DB
	levelMultiplier int
}

func NewStatsRepository(db *gorm.DB, levelMultiplier int) StatsRepository {
	return &statsRepository{db: db, levelMultiplier: levelMultiplier}
}

func (r *statsRepository) AwardPoints(ctx context.Context, p AwardParams) (int, int, error) {
	var total, level int

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Placeholder rows keep the aggregate foreign-key-safe even before
		// profile sync has run. Existing profiles are left untouched.
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).Create(&model.User{ID: p.UserID, Username: "Unknown", DisplayName: "Unknown"}).Error; err != nil {
			return err
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).Create(&model.Guild{ID: p.GuildID, Name: "Unknown Guild"}).Error; err != nil {
			return err
		}

		record := model.PointsTransaction{
			UserID:       p.UserID,
			GuildID:      p.GuildID,
			PointsChange: p.Points,
			Reason:       p.Reason,
			ActivityType: p.ActivityType,
			Metadata:     p.Metadata,
			NodeID:       p.NodeID,
			CreatedAt:    time.Now(),
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}

		// Increment the total via an upsert expression so concurrent awards
		// from other nodes cannot lose updates, then recompute the level
		// from the stored total inside the same transaction.
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "guild_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"total_points": gorm.Expr("user_guild_stats.total_points + ?", p.Points),
				"updated_at":   time.Now(),
			}),
		}).Create(&model.UserGuildStats{
			UserID:      p.UserID,
			GuildID:     p.GuildID,
			TotalPoints: p.Points,
			Level:       levelFor(p.Points, r.levelMultiplier),
		}).Error; err != nil {
			return err
		}

		if err := tx.Model(&model.UserGuildStats{}).
			Where("user_id = ? AND guild_id = ?", p.UserID, p.GuildID).
			Update("level", gorm.Expr("total_points / ? + 1", r.levelMultiplier)).Error; err != nil {
			return err
		}

		var row model.UserGuildStats
		if err := tx.Where("user_id = ? AND guild_id = ?", p.UserID, p.GuildID).
			First(&row).Error; err != nil {
			return err
		}
		total, level = row.TotalPoints, row.Level
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return total, level, nil
}

func levelFor(points, multiplier int) int {
	if points < 0 {
		return 1
	}
	return points/multiplier + 1
}

func (r *statsRepository) GetUserStats(ctx context.Context, userID, guildID string) (*model.UserGuildStats, error) {
	var stats model.UserGuildStats
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND guild_id = ?", userID, guildID).
		First(&stats).Error
	if err == gorm.ErrRecordNotFound {
		// Users with no history get a fully-populated default-zero record.
		return &model.UserGuildStats{
			UserID:  userID,
			GuildID: guildID,
			Level:   1,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (r *statsRepository) GetLeaderboard(ctx context.Context, guildID string, limit int) ([]model.UserGuildStats, error) {
	var stats []model.UserGuildStats
	err := r.db.WithContext(ctx).
		Where("guild_id = ? AND total_points > 0", guildID).
		Order("total_points DESC").
		Limit(limit).
		Find(&stats).Error
	return stats, err
}

func (r *statsRepository) GuildRank(ctx context.Context, userID, guildID string) (int64, error) {
	stats, err := r.GetUserStats(ctx, userID, guildID)
	if err != nil {
		return 0, err
	}
	var ahead int64
	err = r.db.WithContext(ctx).Model(&model.UserGuildStats{}).
		Where("guild_id = ? AND total_points > ?", guildID, stats.TotalPoints).
		Count(&ahead).Error
	return ahead + 1, err
}

var activityColumns = map[string]string{
	model.ActivityMessage:          "messages_sent",
	model.ActivityCommand:          "commands_used",
	model.ActivityReactionGiven:    "reactions_given",
	model.ActivityReactionReceived: "reactions_received",
	model.ActivityVoice:            "voice_time_seconds",
}

func (r *statsRepository) IncrementActivity(ctx context.Context, userID, guildID, activityType string, delta int) error {
	column, ok := activityColumns[activityType]
	if !ok {
		return nil
	}

	seed := &model.UserGuildStats{UserID: userID, GuildID: guildID, Level: 1}
	switch column {
	case "messages_sent":
		seed.MessagesSent = delta
	case "commands_used":
		seed.CommandsUsed = delta
	case "reactions_given":
		seed.ReactionsGiven = delta
	case "reactions_received":
		seed.ReactionsReceived = delta
	case "voice_time_seconds":
		seed.VoiceTimeSeconds = delta
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "guild_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			column:       gorm.Expr("user_guild_stats."+column+" + ?", delta),
			"updated_at": time.Now(),
		}),
	}).Create(seed).Error
}

// DailyDelta is the activity added to a user's per-day aggregate row.
type DailyDelta struct {
	Messages     int
	Commands     int
	VoiceSeconds int
	Reactions    int
	Points       int
}

func (r *statsRepository) UpsertDailyActivity(ctx context.Context, userID, guildID string, d DailyDelta) error {
	now := time.Now()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "guild_id"}, {Name: "activity_date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"messages_sent":      gorm.Expr("daily_activities.messages_sent + ?", d.Messages),
			"commands_used":      gorm.Expr("daily_activities.commands_used + ?", d.Commands),
			"voice_time_seconds": gorm.Expr("daily_activities.voice_time_seconds + ?", d.VoiceSeconds),
			"reactions_given":    gorm.Expr("daily_activities.reactions_given + ?", d.Reactions),
			"points_earned":      gorm.Expr("daily_activities.points_earned + ?", d.Points),
			"last_activity_at":   now,
		}),
	}).Create(&model.DailyActivity{
		UserID:           userID,
		GuildID:          guildID,
		ActivityDate:     now.UTC().Format("2006-01-02"),
		MessagesSent:     d.Messages,
		CommandsUsed:     d.Commands,
		VoiceTimeSeconds: d.VoiceSeconds,
		ReactionsGiven:   d.Reactions,
		PointsEarned:     d.Points,
		FirstActivityAt:  now,
		LastActivityAt:   now,
	}).Error
}

// StreakDays counts consecutive active UTC days ending today (or yesterday,
// so a streak is not broken before the user's first activity of the day).
func (r *statsRepository) StreakDays(ctx context.Context, userID, guildID string) (int, error) {
	var dates []string
	err := r.db.WithContext(ctx).Model(&model.DailyActivity{}).
		Where("user_id = ? AND guild_id = ?", userID, guildID).
		Order("activity_date DESC").
		Limit(62).
		Pluck("activity_date", &dates).Error
	if err != nil {
		return 0, err
	}
	if len(dates) == 0 {
		return 0, nil
	}

	day := time.Now().UTC().Truncate(24 * time.Hour)
	today := day.Format("2006-01-02")
	yesterday := day.AddDate(0, 0, -1).Format("2006-01-02")
	if dates[0] != today && dates[0] != yesterday {
		return 0, nil
	}

	streak := 1
	prev, _ := time.Parse("2006-01-02", dates[0])
	for _, d := range dates[1:] {
		cur, err := time.Parse("2006-01-02", d)
		if err != nil {
			break
		}
		if prev.Sub(cur) != 24*time.Hour {
			break
		}
		streak++
		prev = cur
	}
	return streak, nil
}

func (r *statsRepository) LastBonusAt(ctx context.Context, userID, guildID string, period BonusPeriod) (*time.Time, error) {
	stats, err := r.GetUserStats(ctx, userID, guildID)
	if err != nil {
		return nil, err
	}
	if period == BonusMonthly {
		return stats.LastMonthlyBonusAt, nil
	}
	return stats.LastWeeklyBonusAt, nil
}

func (r *statsRepository) MarkBonusAwarded(ctx context.Context, userID, guildID string, period BonusPeriod, at time.Time) error {
	column := "last_weekly_bonus_at"
	if period == BonusMonthly {
		column = "last_monthly_bonus_at"
	}
	return r.db.WithContext(ctx).Model(&model.UserGuildStats{}).
		Where("user_id = ? AND guild_id = ?", userID, guildID).
		Update(column, at).Error
}

func (r *statsRepository) SyncUser(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"username", "display_name", "avatar_url", "updated_at",
		}),
	}).Create(user).Error
}

func (r *statsRepository) SyncGuild(ctx context.Context, guild *model.Guild) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "icon_url", "updated_at",
		}),
	}).Create(guild).Error
}

func (r *statsRepository) CleanupTransactions(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	result := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&model.PointsTransaction{})
	return result.RowsAffected, result.Error
}
