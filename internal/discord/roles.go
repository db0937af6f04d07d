package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/makeouthillx32/Discord/pkg/apperror"
)

const defaultBaseURL = "https://discord.com/api/v10"

// missing-permissions error code in Discord API error payloads
const codeMissingPermissions = 50013

// RoleClient grants and revokes guild roles over the Discord REST API.
// It implements the role manager used by the reaction-role engine.
type RoleClient struct {
	token   string
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

func NewRoleClient(token string, log *zap.Logger) *RoleClient {
	return &RoleClient{
		token:   token,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *RoleClient) do(ctx context.Context, method, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	req.Header.Set("Content-Type", "application/json")
	return c.http.Do(req)
}

func (c *RoleClient) mutateRole(ctx context.Context, method, guildID, userID, roleID string) error {
	resp, err := c.do(ctx, method, fmt.Sprintf("/guilds/%s/members/%s/roles/%s", guildID, userID, roleID))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		return nil
	case http.StatusForbidden:
		var apiErr apiError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Code == codeMissingPermissions {
			return apperror.ErrPermissionDenied
		}
		// A 403 on a role the bot can see but not assign means the role
		// sits above the bot in the guild's role list.
		return apperror.ErrRoleHierarchy
	case http.StatusNotFound:
		return apperror.ErrRoleNotFound
	case http.StatusTooManyRequests:
		c.log.Warn("discord rate limit hit",
			zap.String("retry_after", resp.Header.Get("Retry-After")))
		return fmt.Errorf("discord api: rate limited")
	default:
		return fmt.Errorf("discord api: unexpected status %d", resp.StatusCode)
	}
}

func (c *RoleClient) AddRole(ctx context.Context, guildID, userID, roleID string) error {
	return c.mutateRole(ctx, http.MethodPut, guildID, userID, roleID)
}

func (c *RoleClient) RemoveRole(ctx context.Context, guildID, userID, roleID string) error {
	return c.mutateRole(ctx, http.MethodDelete, guildID, userID, roleID)
}

func (c *RoleClient) HasRole(ctx context.Context, guildID, userID, roleID string) (bool, error) {
	resp, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/guilds/%s/members/%s", guildID, userID))
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("discord api: unexpected status %d", resp.StatusCode)
	}

	var member struct {
		Roles []string `json:"roles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&member); err != nil {
		return false, err
	}
	for _, r := range member.Roles {
		if r == roleID {
			return true, nil
		}
	}
	return false, nil
}
