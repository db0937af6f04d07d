package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/makeouthillx32/Discord/internal/model"
)

type VoiceRepository interface {
	// StartSession opens a new session, force-closing any session still open
	// for the same (user, guild) so at most one open row ever exists per key.
	StartSession(ctx context.Context, userID, guildID, channelID string) (uuid.UUID, error)
	// EndSession closes the open session and records final duration/points.
	// Closing when nothing is open is a no-op.
	EndSession(ctx context.Context, userID, guildID string, pointsAwarded int) (durationSeconds int, err error)
	SwitchChannel(ctx context.Context, sessionID uuid.UUID, channelID string) error
	SetFlags(ctx context.Context, sessionID uuid.UUID, muted, deafened bool) error
	OpenSession(ctx context.Context, userID, guildID string) (*model.VoiceSession, error)
	// CloseAbandoned closes sessions left open past the threshold by nodes
	// that exited uncleanly, crediting a floor(minutes)*pointsPerMinute
	// estimate. Returns the sessions it closed.
	CloseAbandoned(ctx context.Context, olderThan time.Duration, pointsPerMinute int) ([]model.VoiceSession, error)
}

type voiceRepository struct {
	db *gorm.DB
}

func NewVoiceRepository(db *gorm.DB) VoiceRepository {
	return &voiceRepository{db: db}
}

func (r *voiceRepository) StartSession(ctx context.Context, userID, guildID, channelID string) (uuid.UUID, error) {
	session := model.VoiceSession{
		ID:        uuid.New(),
		UserID:    userID,
		GuildID:   guildID,
		ChannelID: channelID,
		StartedAt: time.Now(),
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var open []model.VoiceSession
		if err := tx.Where("user_id = ? AND guild_id = ? AND ended_at IS NULL", userID, guildID).
			Find(&open).Error; err != nil {
			return err
		}
		now := time.Now()
		for i := range open {
			if err := tx.Model(&open[i]).Updates(map[string]interface{}{
				"ended_at":         now,
				"duration_seconds": int(now.Sub(open[i].StartedAt).Seconds()),
			}).Error; err != nil {
				return err
			}
		}
		return tx.Create(&session).Error
	})
	if err != nil {
		return uuid.Nil, err
	}
	return session.ID, nil
}

func (r *voiceRepository) EndSession(ctx context.Context, userID, guildID string, pointsAwarded int) (int, error) {
	var open []model.VoiceSession
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND guild_id = ? AND ended_at IS NULL", userID, guildID).
		Order("started_at DESC").
		Find(&open).Error
	if err != nil {
		return 0, err
	}
	if len(open) == 0 {
		return 0, nil
	}

	now := time.Now()
	duration := int(now.Sub(open[0].StartedAt).Seconds())
	for i := range open {
		d := int(now.Sub(open[i].StartedAt).Seconds())
		if err := r.db.WithContext(ctx).Model(&open[i]).Updates(map[string]interface{}{
			"ended_at":         now,
			"duration_seconds": d,
			"points_awarded":   pointsAwarded,
		}).Error; err != nil {
			return 0, err
		}
	}
	return duration, nil
}

func (r *voiceRepository) SwitchChannel(ctx context.Context, sessionID uuid.UUID, channelID string) error {
	return r.db.WithContext(ctx).Model(&model.VoiceSession{}).
		Where("id = ?", sessionID).
		Update("channel_id", channelID).Error
}

func (r *voiceRepository) SetFlags(ctx context.Context, sessionID uuid.UUID, muted, deafened bool) error {
	return r.db.WithContext(ctx).Model(&model.VoiceSession{}).
		Where("id = ?", sessionID).
		Updates(map[string]interface{}{"muted": muted, "deafened": deafened}).Error
}

func (r *voiceRepository) OpenSession(ctx context.Context, userID, guildID string) (*model.VoiceSession, error) {
	var sessions []model.VoiceSession
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND guild_id = ? AND ended_at IS NULL", userID, guildID).
		Order("started_at DESC").
		Limit(1).
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, nil
	}
	return &sessions[0], nil
}

func (r *voiceRepository) CloseAbandoned(ctx context.Context, olderThan time.Duration, pointsPerMinute int) ([]model.VoiceSession, error) {
	cutoff := time.Now().Add(-olderThan)

	var abandoned []model.VoiceSession
	err := r.db.WithContext(ctx).
		Where("ended_at IS NULL AND started_at < ?", cutoff).
		Find(&abandoned).Error
	if err != nil {
		return nil, err
	}

	// The close is conditional on the row still being open so that when
	// several nodes sweep concurrently, exactly one of them wins each
	// session and credits the estimate.
	now := time.Now()
	closed := abandoned[:0]
	for i := range abandoned {
		duration := int(now.Sub(abandoned[i].StartedAt).Seconds())
		points := (duration / 60) * pointsPerMinute
		res := r.db.WithContext(ctx).Model(&model.VoiceSession{}).
			Where("id = ? AND ended_at IS NULL", abandoned[i].ID).
			Updates(map[string]interface{}{
				"ended_at":         now,
				"duration_seconds": duration,
				"points_awarded":   points,
			})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected != 1 {
			continue
		}
		abandoned[i].DurationSeconds = duration
		abandoned[i].PointsAwarded = points
		closed = append(closed, abandoned[i])
	}
	return closed, nil
}
