package model

import "time"

// User mirrors the platform-assigned identity. Rows are created on first
// observed activity and refreshed by profile sync; never deleted here.
type User struct {
	ID          string    `gorm:"primaryKey;size:32" json:"id"`
	Username    string    `gorm:"size:100;not null;default:Unknown" json:"username"`
	DisplayName string    `gorm:"size:100" json:"display_name"`
	AvatarURL   *string   `gorm:"size:255" json:"avatar_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Guild struct {
	ID        string    `gorm:"primaryKey;size:32" json:"id"`
	Name      string    `gorm:"size:100;not null;default:'Unknown Guild'" json:"name"`
	IconURL   *string   `gorm:"size:255" json:"icon_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
