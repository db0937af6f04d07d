package model

import "time"

// Activity types accepted by the ledger. They select which counter on
// UserGuildStats gets bumped alongside the point award.
const (
	ActivityGeneral          = "general"
	ActivityMessage          = "message"
	ActivityCommand          = "command"
	ActivityVoice            = "voice"
	ActivityReactionGiven    = "reaction_given"
	ActivityReactionReceived = "reaction_received"
	ActivityReactionRole     = "reaction_role"
	ActivityStreak           = "streak"
)

// Metadata rides along with a points transaction and records which bonuses
// fired. Serialized as JSON in the transactions table.
type Metadata map[string]any

// PointsTransaction is the append-only audit log. Rows are never mutated;
// UserGuildStats.TotalPoints is a materialized view over the sum of this log.
type PointsTransaction struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       string    `gorm:"size:32;index:idx_tx_user_guild,priority:1;not null" json:"user_id"`
	GuildID      string    `gorm:"size:32;index:idx_tx_user_guild,priority:2;not null" json:"guild_id"`
	PointsChange int       `gorm:"not null" json:"points_change"`
	Reason       string    `gorm:"size:100" json:"reason"`
	ActivityType string    `gorm:"size:50;not null;default:general" json:"activity_type"`
	Metadata     Metadata  `gorm:"serializer:json" json:"metadata"`
	NodeID       string    `gorm:"size:50" json:"node_id"`
	CreatedAt    time.Time `gorm:"index:idx_tx_created" json:"created_at"`
}

// UserGuildStats is the core mutable aggregate, unique per (user, guild).
// Level is always recomputed from TotalPoints inside the same transaction
// that changes it; the two are never independently mutated.
type UserGuildStats struct {
	UserID             string     `gorm:"size:32;primaryKey" json:"user_id"`
	GuildID            string     `gorm:"size:32;primaryKey" json:"guild_id"`
	TotalPoints        int        `gorm:"not null;default:0" json:"total_points"`
	Level              int        `gorm:"not null;default:1" json:"level"`
	MessagesSent       int        `gorm:"not null;default:0" json:"messages_sent"`
	CommandsUsed       int        `gorm:"not null;default:0" json:"commands_used"`
	ReactionsGiven     int        `gorm:"not null;default:0" json:"reactions_given"`
	ReactionsReceived  int        `gorm:"not null;default:0" json:"reactions_received"`
	VoiceTimeSeconds   int        `gorm:"not null;default:0" json:"voice_time_seconds"`
	LastWeeklyBonusAt  *time.Time `json:"last_weekly_bonus_at"`
	LastMonthlyBonusAt *time.Time `json:"last_monthly_bonus_at"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// DailyActivity aggregates one user's activity for one UTC calendar day,
// unique per (user, guild, date). Streak checks walk consecutive dates here.
type DailyActivity struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	UserID           string    `gorm:"size:32;uniqueIndex:idx_daily_user_guild_date,priority:1;not null" json:"user_id"`
	GuildID          string    `gorm:"size:32;uniqueIndex:idx_daily_user_guild_date,priority:2;not null" json:"guild_id"`
	ActivityDate     string    `gorm:"size:10;uniqueIndex:idx_daily_user_guild_date,priority:3;not null" json:"activity_date"` // YYYY-MM-DD, UTC
	MessagesSent     int       `gorm:"not null;default:0" json:"messages_sent"`
	CommandsUsed     int       `gorm:"not null;default:0" json:"commands_used"`
	VoiceTimeSeconds int       `gorm:"not null;default:0" json:"voice_time_seconds"`
	ReactionsGiven   int       `gorm:"not null;default:0" json:"reactions_given"`
	PointsEarned     int       `gorm:"not null;default:0" json:"points_earned"`
	FirstActivityAt  time.Time `json:"first_activity_at"`
	LastActivityAt   time.Time `json:"last_activity_at"`
}
