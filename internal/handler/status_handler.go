package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/makeouthillx32/Discord/internal/cache"
	"github.com/makeouthillx32/Discord/internal/service"
)

type StatusHandler struct {
	db          *gorm.DB
	cache       *cache.Service
	coordinator *service.NodeCoordinator
	tracker     *service.VoiceTracker
	nodeID      string
}

func NewStatusHandler(db *gorm.DB, cacheSvc *cache.Service, coordinator *service.NodeCoordinator, tracker *service.VoiceTracker, nodeID string) *StatusHandler {
	return &StatusHandler{
		db:          db,
		cache:       cacheSvc,
		coordinator: coordinator,
		tracker:     tracker,
		nodeID:      nodeID,
	}
}

func (h *StatusHandler) Health(c *gin.Context) {
	dbStatus := "ok"
	if sqlDB, err := h.db.DB(); err != nil {
		dbStatus = err.Error()
	} else if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		dbStatus = err.Error()
	}

	cacheStatus := "ok"
	if !h.cache.Available() {
		cacheStatus = "disabled"
	} else if err := h.cache.Ping(c.Request.Context()); err != nil {
		cacheStatus = err.Error()
	}

	status := http.StatusOK
	if dbStatus != "ok" {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"node_id":  h.nodeID,
		"database": dbStatus,
		"cache":    cacheStatus,
	})
}

func (h *StatusHandler) Status(c *gin.Context) {
	ctx := c.Request.Context()

	peers, err := h.coordinator.Peers(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	awarded, err := h.cache.MetricSum(ctx, "points_awarded", 60)
	if err != nil {
		awarded = 0
	}

	c.JSON(http.StatusOK, gin.H{
		"node_id":             h.nodeID,
		"nodes":               peers,
		"voice_sessions":      h.tracker.ActiveSessions(),
		"points_awarded_hour": awarded,
	})
}
