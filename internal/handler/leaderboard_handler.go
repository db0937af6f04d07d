package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/makeouthillx32/Discord/internal/service"
	"github.com/makeouthillx32/Discord/pkg/apperror"
)

type LeaderboardHandler struct {
	ledger *service.Ledger
}

func NewLeaderboardHandler(ledger *service.Ledger) *LeaderboardHandler {
	return &LeaderboardHandler{ledger: ledger}
}

func (h *LeaderboardHandler) GetLeaderboard(c *gin.Context) {
	limitStr := c.Query("limit")
	limit := 10
	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	board, err := h.ledger.GetLeaderboard(c.Request.Context(), c.Param("guild_id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": board,
	})
}

func (h *LeaderboardHandler) GetUserStats(c *gin.Context) {
	stats, err := h.ledger.GetUserStats(c.Request.Context(), c.Param("user_id"), c.Param("guild_id"))
	if err != nil {
		if errors.Is(err, apperror.ErrMissingUserID) || errors.Is(err, apperror.ErrMissingGuildID) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": stats,
	})
}
