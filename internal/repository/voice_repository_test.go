package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/makeouthillx32/Discord/internal/model"
)

func TestStartSessionOpensOne(t *testing.T) {
	repo := NewVoiceRepository(setupTestDB(t))
	ctx := context.Background()

	id, err := repo.StartSession(ctx, "u1", "g1", "c1")
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if id == uuid.Nil {
		t.Fatal("expected a session id")
	}

	open, err := repo.OpenSession(ctx, "u1", "g1")
	if err != nil {
		t.Fatalf("OpenSession failed: %v", err)
	}
	if open == nil || open.ID != id {
		t.Fatalf("open session mismatch: %+v", open)
	}
	if open.ChannelID != "c1" {
		t.Errorf("ChannelID = %q, want c1", open.ChannelID)
	}
}

func TestStartSessionClosesStaleOpenSessions(t *testing.T) {
	db := setupTestDB(t)
	repo := NewVoiceRepository(db)
	ctx := context.Background()

	first, err := repo.StartSession(ctx, "u1", "g1", "c1")
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	second, err := repo.StartSession(ctx, "u1", "g1", "c2")
	if err != nil {
		t.Fatalf("second StartSession failed: %v", err)
	}
	if first == second {
		t.Fatal("expected a fresh session id")
	}

	// At most one open session per (user, guild).
	var openCount int64
	db.Model(&model.VoiceSession{}).
		Where("user_id = ? AND guild_id = ? AND ended_at IS NULL", "u1", "g1").
		Count(&openCount)
	if openCount != 1 {
		t.Fatalf("open sessions = %d, want 1", openCount)
	}

	var stale model.VoiceSession
	if err := db.First(&stale, "id = ?", first).Error; err != nil {
		t.Fatalf("load stale session: %v", err)
	}
	if stale.EndedAt == nil {
		t.Error("stale session should be closed")
	}
}

func TestEndSessionReturnsDuration(t *testing.T) {
	db := setupTestDB(t)
	repo := NewVoiceRepository(db)
	ctx := context.Background()

	id, err := repo.StartSession(ctx, "u1", "g1", "c1")
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	// Backdate the start so the duration is observable.
	started := time.Now().Add(-130 * time.Second)
	if err := db.Model(&model.VoiceSession{}).
		Where("id = ?", id).
		Update("started_at", started).Error; err != nil {
		t.Fatalf("backdate session: %v", err)
	}

	duration, err := repo.EndSession(ctx, "u1", "g1", 10)
	if err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}
	if duration < 130 || duration > 135 {
		t.Errorf("duration = %d, want ~130", duration)
	}

	var row model.VoiceSession
	if err := db.First(&row, "id = ?", id).Error; err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if row.EndedAt == nil {
		t.Error("session not closed")
	}
	if row.PointsAwarded != 10 {
		t.Errorf("PointsAwarded = %d, want 10", row.PointsAwarded)
	}

	open, err := repo.OpenSession(ctx, "u1", "g1")
	if err != nil {
		t.Fatalf("OpenSession failed: %v", err)
	}
	if open != nil {
		t.Error("expected no open session after end")
	}
}

func TestEndSessionNoOpenSession(t *testing.T) {
	repo := NewVoiceRepository(setupTestDB(t))

	duration, err := repo.EndSession(context.Background(), "u1", "g1", 0)
	if err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}
	if duration != 0 {
		t.Errorf("duration = %d, want 0", duration)
	}
}

func TestSwitchChannelAndFlags(t *testing.T) {
	db := setupTestDB(t)
	repo := NewVoiceRepository(db)
	ctx := context.Background()

	id, err := repo.StartSession(ctx, "u1", "g1", "c1")
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	if err := repo.SwitchChannel(ctx, id, "c2"); err != nil {
		t.Fatalf("SwitchChannel failed: %v", err)
	}
	if err := repo.SetFlags(ctx, id, true, false); err != nil {
		t.Fatalf("SetFlags failed: %v", err)
	}

	open, err := repo.OpenSession(ctx, "u1", "g1")
	if err != nil {
		t.Fatalf("OpenSession failed: %v", err)
	}
	if open == nil {
		t.Fatal("session should still be open")
	}
	if open.ChannelID != "c2" {
		t.Errorf("ChannelID = %q, want c2", open.ChannelID)
	}
	if !open.Muted || open.Deafened {
		t.Errorf("flags = muted:%v deafened:%v, want true/false", open.Muted, open.Deafened)
	}
}

func TestCloseAbandoned(t *testing.T) {
	db := setupTestDB(t)
	repo := NewVoiceRepository(db)
	ctx := context.Background()

	stale, err := repo.StartSession(ctx, "u1", "g1", "c1")
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if err := db.Model(&model.VoiceSession{}).
		Where("id = ?", stale).
		Update("started_at", time.Now().Add(-7*time.Hour)).Error; err != nil {
		t.Fatalf("backdate session: %v", err)
	}
	if _, err := repo.StartSession(ctx, "u2", "g1", "c1"); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	closed, err := repo.CloseAbandoned(ctx, 6*time.Hour, 5)
	if err != nil {
		t.Fatalf("CloseAbandoned failed: %v", err)
	}
	if len(closed) != 1 {
		t.Fatalf("closed = %d sessions, want 1", len(closed))
	}
	if closed[0].ID != stale {
		t.Errorf("closed wrong session: %s", closed[0].ID)
	}
	// 7h at 5 points/minute.
	if want := 7 * 60 * 5; closed[0].PointsAwarded != want {
		t.Errorf("PointsAwarded = %d, want %d", closed[0].PointsAwarded, want)
	}

	// Fresh session untouched.
	open, err := repo.OpenSession(ctx, "u2", "g1")
	if err != nil {
		t.Fatalf("OpenSession failed: %v", err)
	}
	if open == nil {
		t.Error("fresh session should remain open")
	}

	// A second sweep finds nothing left to close.
	closed, err = repo.CloseAbandoned(ctx, 6*time.Hour, 5)
	if err != nil {
		t.Fatalf("CloseAbandoned failed: %v", err)
	}
	if len(closed) != 0 {
		t.Errorf("second sweep closed %d sessions, want 0", len(closed))
	}
}

func TestCloseAbandonedExactlyOncePerSession(t *testing.T) {
	db := setupTestDB(t)
	repo := NewVoiceRepository(db)
	ctx := context.Background()

	stale, err := repo.StartSession(ctx, "u1", "g1", "c1")
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if err := db.Model(&model.VoiceSession{}).
		Where("id = ?", stale).
		Update("started_at", time.Now().Add(-7*time.Hour)).Error; err != nil {
		t.Fatalf("backdate session: %v", err)
	}

	// Concurrent sweeps, as run by sibling nodes: the conditional close
	// lets exactly one of them report the session.
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			closed, err := repo.CloseAbandoned(ctx, 6*time.Hour, 5)
			if err != nil {
				t.Errorf("CloseAbandoned failed: %v", err)
				return
			}
			mu.Lock()
			total += len(closed)
			mu.Unlock()
		}()
	}
	wg.Wait()

	if total != 1 {
		t.Errorf("session reported closed %d times across sweeps, want 1", total)
	}
}
