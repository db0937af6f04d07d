package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/makeouthillx32/Discord/internal/cache"
	"github.com/makeouthillx32/Discord/internal/config"
	"github.com/makeouthillx32/Discord/internal/model"
	"github.com/makeouthillx32/Discord/internal/repository"
	"github.com/makeouthillx32/Discord/internal/service"
)

type nullRoleManager struct{}

func (nullRoleManager) AddRole(ctx context.Context, guildID, userID, roleID string) error {
	return nil
}
func (nullRoleManager) RemoveRole(ctx context.Context, guildID, userID, roleID string) error {
	return nil
}
func (nullRoleManager) HasRole(ctx context.Context, guildID, userID, roleID string) (bool, error) {
	return false, nil
}

func newTestServer(t *testing.T) (*Server, *service.Ledger) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// A second pooled connection would see its own empty in-memory DB.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	err = db.AutoMigrate(
		&model.User{},
		&model.Guild{},
		&model.PointsTransaction{},
		&model.UserGuildStats{},
		&model.DailyActivity{},
		&model.VoiceSession{},
		&model.ReactionRoleMapping{},
		&model.ReactionRoleLog{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	cacheSvc := cache.NewService(client, zap.NewNop())

	cfg := &config.Config{
		AppEnv: "test",
		NodeID: "node-test",
		Points: config.PointsConfig{
			MessageSent:     1,
			ReactionGiven:   1,
			VoiceMinute:     5,
			LevelMultiplier: 100,
		},
	}

	statsRepo := repository.NewStatsRepository(db, cfg.Points.LevelMultiplier)
	voiceRepo := repository.NewVoiceRepository(db)
	rrRepo := repository.NewReactionRoleRepository(db)

	ledger := service.NewLedger(statsRepo, cacheSvc, cfg.Points, cfg.NodeID, zap.NewNop())
	tracker := service.NewVoiceTracker(voiceRepo, ledger, cfg.Points, time.Hour, zap.NewNop())
	roles := service.NewReactionRoles(rrRepo, nullRoleManager{}, ledger, cfg.Points, zap.NewNop())
	coordinator := service.NewNodeCoordinator(cacheSvc, cfg.NodeID, time.Hour, zap.NewNop())
	coordinator.Start(context.Background())
	t.Cleanup(func() { coordinator.Stop(context.Background()) })

	return New(cfg, db, cacheSvc, ledger, roles, coordinator, tracker, zap.NewNop()), ledger
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["database"] != "ok" || body["cache"] != "ok" {
		t.Errorf("unexpected health body: %v", body)
	}
	if body["node_id"] != "node-test" {
		t.Errorf("node_id = %v", body["node_id"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body struct {
		Nodes         []cache.NodeRecord `json:"nodes"`
		VoiceSessions int                `json:"voice_sessions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Nodes) != 1 || body.Nodes[0].NodeID != "node-test" {
		t.Errorf("nodes = %+v", body.Nodes)
	}
}

func TestLeaderboardEndpoint(t *testing.T) {
	srv, ledger := newTestServer(t)
	ctx := context.Background()

	for i, u := range []string{"u1", "u2"} {
		if _, err := ledger.AwardPoints(ctx, u, "g1", (i+1)*10, "Message", model.ActivityMessage, nil); err != nil {
			t.Fatalf("AwardPoints failed: %v", err)
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/leaderboard/g1?limit=5", nil)
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var body struct {
		Data []model.UserGuildStats `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Data) != 2 || body.Data[0].UserID != "u2" {
		t.Errorf("unexpected leaderboard: %+v", body.Data)
	}
}

func TestUserStatsEndpoint(t *testing.T) {
	srv, ledger := newTestServer(t)

	if _, err := ledger.AwardPoints(context.Background(), "u1", "g1", 250, "Message", model.ActivityMessage, nil); err != nil {
		t.Fatalf("AwardPoints failed: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/guilds/g1/users/u1/stats", nil)
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var body struct {
		Data service.UserStatsView `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Data.TotalPoints != 250 || body.Data.Level != 3 {
		t.Errorf("stats = %+v, want total 250 level 3", body.Data)
	}
}

func TestReactionRoleEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	payload := `{"message_id":"223456789012345678","emoji":"🎮","role_id":"323456789012345678"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/guilds/123456789012345678/reaction-roles", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", w.Code, w.Body.String())
	}

	// Duplicate mapping conflicts.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/guilds/123456789012345678/reaction-roles", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", w.Code)
	}

	// Invalid payload rejected.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/guilds/123456789012345678/reaction-roles", strings.NewReader(`{"emoji":"🎮"}`))
	req.Header.Set("Content-Type", "application/json")
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid status = %d, want 400", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/guilds/123456789012345678/reaction-roles", nil)
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var list struct {
		Data []model.ReactionRoleMapping `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Data) != 1 {
		t.Fatalf("mappings = %d, want 1", len(list.Data))
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/api/guilds/123456789012345678/reaction-roles?message_id=223456789012345678&emoji=🎮", nil)
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d: %s", w.Code, w.Body.String())
	}
}
