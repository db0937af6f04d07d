package model

import "time"

// ReactionRoleMapping binds one (message, emoji) pair to a role, unique per
// (guild, message, emoji). Created by admins, read by the engine on every
// reaction event.
type ReactionRoleMapping struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	GuildID     string    `gorm:"size:32;uniqueIndex:idx_rr_guild_msg_emoji,priority:1;not null" json:"guild_id"`
	MessageID   string    `gorm:"size:32;uniqueIndex:idx_rr_guild_msg_emoji,priority:2;not null" json:"message_id"`
	Emoji       string    `gorm:"size:100;uniqueIndex:idx_rr_guild_msg_emoji,priority:3;not null" json:"emoji"`
	RoleID      string    `gorm:"size:32;not null" json:"role_id"`
	Description string    `gorm:"size:255" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

const (
	RoleActionAdded   = "added"
	RoleActionRemoved = "removed"
)

// ReactionRoleLog is the immutable record of every grant/revoke the engine
// performed.
type ReactionRoleLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	GuildID   string    `gorm:"size:32;index;not null" json:"guild_id"`
	UserID    string    `gorm:"size:32;not null" json:"user_id"`
	RoleID    string    `gorm:"size:32;not null" json:"role_id"`
	MessageID string    `gorm:"size:32;not null" json:"message_id"`
	Action    string    `gorm:"size:20;not null" json:"action"`
	CreatedAt time.Time `json:"created_at"`
}
