package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/makeouthillx32/Discord/internal/cache"
	"github.com/makeouthillx32/Discord/internal/config"
	"github.com/makeouthillx32/Discord/internal/handler"
	"github.com/makeouthillx32/Discord/internal/middleware"
	"github.com/makeouthillx32/Discord/internal/service"
)

// Server is the node's HTTP surface: liveness for orchestrators,
// cluster status for operators, and the admin API for leaderboards and
// reaction-role mappings.
type Server struct {
	engine *gin.Engine
	http   *http.Server
}

func New(cfg *config.Config, db *gorm.DB, cacheSvc *cache.Service, ledger *service.Ledger, roles *service.ReactionRoles, coordinator *service.NodeCoordinator, tracker *service.VoiceTracker, log *zap.Logger) *Server {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	setupCORS(router, cfg.AllowedOrigins)
	router.Use(gin.Recovery())
	router.Use(requestLogger(log))

	statusHandler := handler.NewStatusHandler(db, cacheSvc, coordinator, tracker, cfg.NodeID)
	leaderboardHandler := handler.NewLeaderboardHandler(ledger)
	reactionRoleHandler := handler.NewReactionRoleHandler(roles)

	router.GET("/health", statusHandler.Health)
	router.GET("/status", statusHandler.Status)

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWTSecret)

	api := router.Group("/api")
	{
		api.GET("/leaderboard/:guild_id", leaderboardHandler.GetLeaderboard)
		api.GET("/guilds/:guild_id/users/:user_id/stats", leaderboardHandler.GetUserStats)
		api.GET("/guilds/:guild_id/reaction-roles", reactionRoleHandler.ListMappings)

		admin := api.Group("")
		admin.Use(authMiddleware.RequireAuth())
		{
			admin.POST("/guilds/:guild_id/reaction-roles", reactionRoleHandler.CreateMapping)
			admin.DELETE("/guilds/:guild_id/reaction-roles", reactionRoleHandler.DeleteMapping)
			admin.GET("/guilds/:guild_id/reaction-roles/logs", reactionRoleHandler.RecentActions)
		}
	}

	return &Server{engine: router}
}

func (s *Server) Run(addr string) error {
	s.http = &http.Server{
		Addr:    addr,
		Handler: s.engine,
	}
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// Handler exposes the router for httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func setupCORS(router *gin.Engine, allowedOrigins string) {
	var origins []string
	if allowedOrigins != "" {
		origins = strings.Split(allowedOrigins, ",")
	} else {
		origins = []string{"http://localhost:3000"}
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}
