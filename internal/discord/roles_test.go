package discord

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/makeouthillx32/Discord/pkg/apperror"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *RoleClient {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewRoleClient("test-token", zap.NewNop())
	client.baseURL = srv.URL
	return client
}

func TestAddRoleSendsAuth(t *testing.T) {
	var gotAuth, gotPath, gotMethod string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotMethod = r.Method
		w.WriteHeader(http.StatusNoContent)
	})

	if err := client.AddRole(context.Background(), "g1", "u1", "r1"); err != nil {
		t.Fatalf("AddRole failed: %v", err)
	}
	if gotAuth != "Bot test-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotPath != "/guilds/g1/members/u1/roles/r1" {
		t.Errorf("path = %q", gotPath)
	}
	if gotMethod != http.MethodPut {
		t.Errorf("method = %q, want PUT", gotMethod)
	}
}

func TestMutateRoleErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"missing permissions", http.StatusForbidden, `{"code":50013,"message":"Missing Permissions"}`, apperror.ErrPermissionDenied},
		{"hierarchy", http.StatusForbidden, `{"code":0,"message":"Forbidden"}`, apperror.ErrRoleHierarchy},
		{"unknown role", http.StatusNotFound, `{"code":10011,"message":"Unknown Role"}`, apperror.ErrRoleNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			})

			err := client.RemoveRole(context.Background(), "g1", "u1", "r1")
			if !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
			if !apperror.IsRoleFailure(err) {
				t.Errorf("expected %v to be a role failure", err)
			}
		})
	}
}

func TestHasRole(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"roles":["r1","r2"]}`))
	})

	has, err := client.HasRole(context.Background(), "g1", "u1", "r2")
	if err != nil {
		t.Fatalf("HasRole failed: %v", err)
	}
	if !has {
		t.Error("expected member to hold r2")
	}

	has, err = client.HasRole(context.Background(), "g1", "u1", "r9")
	if err != nil {
		t.Fatalf("HasRole failed: %v", err)
	}
	if has {
		t.Error("member must not hold r9")
	}
}

func TestHasRoleUnknownMember(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	has, err := client.HasRole(context.Background(), "g1", "ghost", "r1")
	if err != nil {
		t.Fatalf("HasRole failed: %v", err)
	}
	if has {
		t.Error("unknown member cannot hold a role")
	}
}
