package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	playgroundValidator "github.com/go-playground/validator/v10"

	"github.com/makeouthillx32/Discord/internal/service"
	"github.com/makeouthillx32/Discord/pkg/apperror"
	"github.com/makeouthillx32/Discord/pkg/validator"
)

type ReactionRoleHandler struct {
	roles *service.ReactionRoles
}

func NewReactionRoleHandler(roles *service.ReactionRoles) *ReactionRoleHandler {
	return &ReactionRoleHandler{roles: roles}
}

func (h *ReactionRoleHandler) CreateMapping(c *gin.Context) {
	var input service.CreateMappingInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	input.GuildID = c.Param("guild_id")

	mapping, err := h.roles.CreateMapping(c.Request.Context(), input)
	if err != nil {
		var validationErrors playgroundValidator.ValidationErrors
		if errors.As(err, &validationErrors) {
			c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
			return
		}
		if errors.Is(err, apperror.ErrDuplicateMapping) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"data": mapping,
	})
}

func (h *ReactionRoleHandler) ListMappings(c *gin.Context) {
	mappings, err := h.roles.ListMappings(c.Request.Context(), c.Param("guild_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": mappings,
	})
}

func (h *ReactionRoleHandler) DeleteMapping(c *gin.Context) {
	messageID := c.Query("message_id")
	emoji := c.Query("emoji")
	if messageID == "" || emoji == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message_id and emoji are required"})
		return
	}

	if err := h.roles.RemoveMapping(c.Request.Context(), c.Param("guild_id"), messageID, emoji); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "mapping removed",
	})
}

func (h *ReactionRoleHandler) RecentActions(c *gin.Context) {
	limitStr := c.Query("limit")
	limit := 50
	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	logs, err := h.roles.RecentActions(c.Request.Context(), c.Param("guild_id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": logs,
	})
}
