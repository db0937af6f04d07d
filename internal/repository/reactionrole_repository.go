package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/makeouthillx32/Discord/internal/model"
	"github.com/makeouthillx32/Discord/pkg/apperror"
)

type ReactionRoleRepository interface {
	// FindMapping returns apperror.ErrNoMapping when the (guild, message,
	// emoji) triple has no configured role.
	FindMapping(ctx context.Context, guildID, messageID, emoji string) (*model.ReactionRoleMapping, error)
	CreateMapping(ctx context.Context, mapping *model.ReactionRoleMapping) error
	DeleteMapping(ctx context.Context, guildID, messageID, emoji string) error
	ListMappings(ctx context.Context, guildID string) ([]model.ReactionRoleMapping, error)
	LogAction(ctx context.Context, log *model.ReactionRoleLog) error
	LogsForGuild(ctx context.Context, guildID string, limit int) ([]model.ReactionRoleLog, error)
}

type reactionRoleRepository struct {
	db *gorm.DB
}

func NewReactionRoleRepository(db *gorm.DB) ReactionRoleRepository {
	return &reactionRoleRepository{db: db}
}

func (r *reactionRoleRepository) FindMapping(ctx context.Context, guildID, messageID, emoji string) (*model.ReactionRoleMapping, error) {
	// Find with a slice avoids gorm's "record not found" log noise.
	var mappings []model.ReactionRoleMapping
	err := r.db.WithContext(ctx).
		Where("guild_id = ? AND message_id = ? AND emoji = ?", guildID, messageID, emoji).
		Limit(1).
		Find(&mappings).Error
	if err != nil {
		return nil, err
	}
	if len(mappings) == 0 {
		return nil, apperror.ErrNoMapping
	}
	return &mappings[0], nil
}

func (r *reactionRoleRepository) CreateMapping(ctx context.Context, mapping *model.ReactionRoleMapping) error {
	err := r.db.WithContext(ctx).Create(mapping).Error
	if err != nil && isUniqueViolation(err) {
		return apperror.ErrDuplicateMapping
	}
	return err
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}

func (r *reactionRoleRepository) DeleteMapping(ctx context.Context, guildID, messageID, emoji string) error {
	return r.db.WithContext(ctx).
		Where("guild_id = ? AND message_id = ? AND emoji = ?", guildID, messageID, emoji).
		Delete(&model.ReactionRoleMapping{}).Error
}

func (r *reactionRoleRepository) ListMappings(ctx context.Context, guildID string) ([]model.ReactionRoleMapping, error) {
	var mappings []model.ReactionRoleMapping
	err := r.db.WithContext(ctx).
		Where("guild_id = ?", guildID).
		Order("message_id, emoji").
		Find(&mappings).Error
	return mappings, err
}

func (r *reactionRoleRepository) LogAction(ctx context.Context, log *model.ReactionRoleLog) error {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *reactionRoleRepository) LogsForGuild(ctx context.Context, guildID string, limit int) ([]model.ReactionRoleLog, error) {
	var logs []model.ReactionRoleLog
	err := r.db.WithContext(ctx).
		Where("guild_id = ?", guildID).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}
