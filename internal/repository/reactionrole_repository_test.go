package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/makeouthillx32/Discord/internal/model"
	"github.com/makeouthillx32/Discord/pkg/apperror"
)

func TestFindMappingNotFound(t *testing.T) {
	repo := NewReactionRoleRepository(setupTestDB(t))

	_, err := repo.FindMapping(context.Background(), "g1", "m1", "🎮")
	if !errors.Is(err, apperror.ErrNoMapping) {
		t.Fatalf("err = %v, want ErrNoMapping", err)
	}
}

func TestCreateAndFindMapping(t *testing.T) {
	repo := NewReactionRoleRepository(setupTestDB(t))
	ctx := context.Background()

	mapping := &model.ReactionRoleMapping{
		GuildID:   "g1",
		MessageID: "m1",
		Emoji:     "🎮",
		RoleID:    "r1",
	}
	if err := repo.CreateMapping(ctx, mapping); err != nil {
		t.Fatalf("CreateMapping failed: %v", err)
	}

	got, err := repo.FindMapping(ctx, "g1", "m1", "🎮")
	if err != nil {
		t.Fatalf("FindMapping failed: %v", err)
	}
	if got.RoleID != "r1" {
		t.Errorf("RoleID = %q, want r1", got.RoleID)
	}

	// Same message, different emoji is a distinct mapping.
	other := &model.ReactionRoleMapping{
		GuildID:   "g1",
		MessageID: "m1",
		Emoji:     "🎨",
		RoleID:    "r2",
	}
	if err := repo.CreateMapping(ctx, other); err != nil {
		t.Fatalf("CreateMapping failed for second emoji: %v", err)
	}
}

func TestCreateMappingDuplicate(t *testing.T) {
	repo := NewReactionRoleRepository(setupTestDB(t))
	ctx := context.Background()

	mapping := &model.ReactionRoleMapping{
		GuildID: "g1", MessageID: "m1", Emoji: "🎮", RoleID: "r1",
	}
	if err := repo.CreateMapping(ctx, mapping); err != nil {
		t.Fatalf("CreateMapping failed: %v", err)
	}

	dup := &model.ReactionRoleMapping{
		GuildID: "g1", MessageID: "m1", Emoji: "🎮", RoleID: "r2",
	}
	err := repo.CreateMapping(ctx, dup)
	if !errors.Is(err, apperror.ErrDuplicateMapping) {
		t.Fatalf("err = %v, want ErrDuplicateMapping", err)
	}
}

func TestDeleteMapping(t *testing.T) {
	repo := NewReactionRoleRepository(setupTestDB(t))
	ctx := context.Background()

	mapping := &model.ReactionRoleMapping{
		GuildID: "g1", MessageID: "m1", Emoji: "🎮", RoleID: "r1",
	}
	if err := repo.CreateMapping(ctx, mapping); err != nil {
		t.Fatalf("CreateMapping failed: %v", err)
	}
	if err := repo.DeleteMapping(ctx, "g1", "m1", "🎮"); err != nil {
		t.Fatalf("DeleteMapping failed: %v", err)
	}

	_, err := repo.FindMapping(ctx, "g1", "m1", "🎮")
	if !errors.Is(err, apperror.ErrNoMapping) {
		t.Fatalf("err = %v, want ErrNoMapping after delete", err)
	}
}

func TestListMappingsScopedToGuild(t *testing.T) {
	repo := NewReactionRoleRepository(setupTestDB(t))
	ctx := context.Background()

	for _, m := range []*model.ReactionRoleMapping{
		{GuildID: "g1", MessageID: "m1", Emoji: "🎮", RoleID: "r1"},
		{GuildID: "g1", MessageID: "m2", Emoji: "🎨", RoleID: "r2"},
		{GuildID: "g2", MessageID: "m3", Emoji: "🎮", RoleID: "r3"},
	} {
		if err := repo.CreateMapping(ctx, m); err != nil {
			t.Fatalf("CreateMapping failed: %v", err)
		}
	}

	got, err := repo.ListMappings(ctx, "g1")
	if err != nil {
		t.Fatalf("ListMappings failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("len = %d, want 2", len(got))
	}
}

func TestLogActionAndRead(t *testing.T) {
	repo := NewReactionRoleRepository(setupTestDB(t))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := repo.LogAction(ctx, &model.ReactionRoleLog{
			GuildID:   "g1",
			UserID:    "u1",
			RoleID:    "r1",
			MessageID: "m1",
			Action:    model.RoleActionAdded,
		})
		if err != nil {
			t.Fatalf("LogAction failed: %v", err)
		}
	}

	logs, err := repo.LogsForGuild(ctx, "g1", 2)
	if err != nil {
		t.Fatalf("LogsForGuild failed: %v", err)
	}
	if len(logs) != 2 {
		t.Errorf("len = %d, want 2", len(logs))
	}
	if logs[0].Action != model.RoleActionAdded {
		t.Errorf("Action = %q, want %q", logs[0].Action, model.RoleActionAdded)
	}
}
