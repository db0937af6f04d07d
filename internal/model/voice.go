package model

import (
	"time"

	"github.com/google/uuid"
)

// VoiceSession is one continuous voice-channel presence interval. At most one
// open row (EndedAt IS NULL) exists per (user, guild); the repository closes
// any prior open session before opening a new one.
type VoiceSession struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          string     `gorm:"size:32;index:idx_voice_user_guild,priority:1;not null" json:"user_id"`
	GuildID         string     `gorm:"size:32;index:idx_voice_user_guild,priority:2;not null" json:"guild_id"`
	ChannelID       string     `gorm:"size:32;not null" json:"channel_id"`
	StartedAt       time.Time  `gorm:"not null" json:"started_at"`
	EndedAt         *time.Time `gorm:"index" json:"ended_at"`
	DurationSeconds int        `gorm:"not null;default:0" json:"duration_seconds"`
	PointsAwarded   int        `gorm:"not null;default:0" json:"points_awarded"`
	Muted           bool       `gorm:"not null;default:false" json:"muted"`
	Deafened        bool       `gorm:"not null;default:false" json:"deafened"`
}
