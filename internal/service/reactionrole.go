package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/makeouthillx32/Discord/internal/config"
	"github.com/makeouthillx32/Discord/internal/model"
	"github.com/makeouthillx32/Discord/internal/repository"
	"github.com/makeouthillx32/Discord/pkg/apperror"
)

const reasonReactionRole = "Reaction Role Obtained"

// RoleManager is the gateway-side role API. Implementations talk to
// the chat platform; tests stub it.
type RoleManager interface {
	AddRole(ctx context.Context, guildID, userID, roleID string) error
	RemoveRole(ctx context.Context, guildID, userID, roleID string) error
	HasRole(ctx context.Context, guildID, userID, roleID string) (bool, error)
}

// ReactionRoles maps message reactions to role grants. Role API
// failures are logged and skipped so a misconfigured mapping never
// takes the event loop down.
type ReactionRoles struct {
	repo     repository.ReactionRoleRepository
	roles    RoleManager
	ledger   pointsAwarder
	points   config.PointsConfig
	validate *validator.Validate
	log      *zap.Logger
}

func NewReactionRoles(repo repository.ReactionRoleRepository, roles RoleManager, ledger pointsAwarder, points config.PointsConfig, log *zap.Logger) *ReactionRoles {
	return &ReactionRoles{
		repo:     repo,
		roles:    roles,
		ledger:   ledger,
		points:   points,
		validate: validator.New(),
		log:      log,
	}
}

// HandleReactionAdd grants the mapped role and pays the one-time bonus.
// Reactions on unmapped messages and repeat reactions by a user who
// already holds the role are no-ops.
func (r *ReactionRoles) HandleReactionAdd(ctx context.Context, guildID, messageID, emoji, userID string) error {
	mapping, err := r.repo.FindMapping(ctx, guildID, messageID, emoji)
	if err != nil {
		if err == apperror.ErrNoMapping {
			return nil
		}
		return err
	}

	has, err := r.roles.HasRole(ctx, guildID, userID, mapping.RoleID)
	if err != nil {
		r.log.Warn("role membership check failed",
			zap.String("user_id", userID),
			zap.String("role_id", mapping.RoleID),
			zap.Error(err))
		return nil
	}
	if has {
		return nil
	}

	if err := r.roles.AddRole(ctx, guildID, userID, mapping.RoleID); err != nil {
		if apperror.IsRoleFailure(err) {
			r.log.Warn("role grant skipped",
				zap.String("user_id", userID),
				zap.String("role_id", mapping.RoleID),
				zap.Error(err))
			return nil
		}
		return err
	}

	if err := r.repo.LogAction(ctx, &model.ReactionRoleLog{
		GuildID:   guildID,
		UserID:    userID,
		RoleID:    mapping.RoleID,
		MessageID: messageID,
		Action:    model.RoleActionAdded,
	}); err != nil {
		r.log.Warn("role action log failed", zap.Error(err))
	}

	bonus := 2 * r.points.ReactionGiven
	if _, err := r.ledger.AwardPoints(ctx, userID, guildID, bonus, reasonReactionRole, model.ActivityReactionRole, model.Metadata{
		"role_id": mapping.RoleID,
		"emoji":   emoji,
	}); err != nil {
		r.log.Warn("reaction role bonus failed",
			zap.String("user_id", userID), zap.Error(err))
	}

	r.log.Info("role granted",
		zap.String("guild_id", guildID),
		zap.String("user_id", userID),
		zap.String("role_id", mapping.RoleID))
	return nil
}

// HandleReactionRemove revokes the mapped role. No points move; the
// grant bonus was a one-time payment.
func (r *ReactionRoles) HandleReactionRemove(ctx context.Context, guildID, messageID, emoji, userID string) error {
	mapping, err := r.repo.FindMapping(ctx, guildID, messageID, emoji)
	if err != nil {
		if err == apperror.ErrNoMapping {
			return nil
		}
		return err
	}

	has, err := r.roles.HasRole(ctx, guildID, userID, mapping.RoleID)
	if err != nil {
		r.log.Warn("role membership check failed",
			zap.String("user_id", userID),
			zap.String("role_id", mapping.RoleID),
			zap.Error(err))
		return nil
	}
	if !has {
		return nil
	}

	if err := r.roles.RemoveRole(ctx, guildID, userID, mapping.RoleID); err != nil {
		if apperror.IsRoleFailure(err) {
			r.log.Warn("role removal skipped",
				zap.String("user_id", userID),
				zap.String("role_id", mapping.RoleID),
				zap.Error(err))
			return nil
		}
		return err
	}

	if err := r.repo.LogAction(ctx, &model.ReactionRoleLog{
		GuildID:   guildID,
		UserID:    userID,
		RoleID:    mapping.RoleID,
		MessageID: messageID,
		Action:    model.RoleActionRemoved,
	}); err != nil {
		r.log.Warn("role action log failed", zap.Error(err))
	}
	return nil
}

// CreateMappingInput is the admin-facing payload for a new mapping.
type CreateMappingInput struct {
	GuildID     string `json:"guild_id" validate:"required,numeric"`
	MessageID   string `json:"message_id" validate:"required,numeric"`
	Emoji       string `json:"emoji" validate:"required,max=100"`
	RoleID      string `json:"role_id" validate:"required,numeric"`
	Description string `json:"description" validate:"max=255"`
}

func (r *ReactionRoles) CreateMapping(ctx context.Context, input CreateMappingInput) (*model.ReactionRoleMapping, error) {
	if err := r.validate.Struct(input); err != nil {
		return nil, err
	}

	mapping := &model.ReactionRoleMapping{
		GuildID:     input.GuildID,
		MessageID:   input.MessageID,
		Emoji:       input.Emoji,
		RoleID:      input.RoleID,
		Description: input.Description,
	}
	if err := r.repo.CreateMapping(ctx, mapping); err != nil {
		return nil, err
	}
	return mapping, nil
}

func (r *ReactionRoles) RemoveMapping(ctx context.Context, guildID, messageID, emoji string) error {
	return r.repo.DeleteMapping(ctx, guildID, messageID, emoji)
}

func (r *ReactionRoles) ListMappings(ctx context.Context, guildID string) ([]model.ReactionRoleMapping, error) {
	if guildID == "" {
		return nil, apperror.ErrMissingGuildID
	}
	return r.repo.ListMappings(ctx, guildID)
}

func (r *ReactionRoles) RecentActions(ctx context.Context, guildID string, limit int) ([]model.ReactionRoleLog, error) {
	if guildID == "" {
		return nil, apperror.ErrMissingGuildID
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return r.repo.LogsForGuild(ctx, guildID, limit)
}
