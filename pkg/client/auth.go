package client

import (
	"context"
	"fmt"

	"github.com/chitchat/chitchat/pkg/domain"
)

// Login exchanges credentials for a session. The returned token is not
// installed on the client; callers decide when to adopt it.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (*domain.Session, error) {
	body := map[string]string{
		"usernameOrEmail": creds.Identifier,
		"password":        creds.Password,
	}
	var resp authDTO
	if err := c.post(ctx, "/api/auth/login", body, &resp); err != nil {
		return nil, fmt.Errorf("client.Login: %w", err)
	}
	s, err := resp.toDomain()
	if err != nil {
		return nil, fmt.Errorf("client.Login: %w", err)
	}
	return s, nil
}

// Register creates an account and returns its first session.
func (c *Client) Register(ctx context.Context, reg domain.Registration) (*domain.Session, error) {
	body := map[string]string{
		"username": reg.Username,
		"email":    reg.Email,
		"password": reg.Password,
		"fullName": reg.DisplayName,
	}
	var resp authDTO
	if err := c.post(ctx, "/api/auth/register", body, &resp); err != nil {
		return nil, fmt.Errorf("client.Register: %w", err)
	}
	s, err := resp.toDomain()
	if err != nil {
		return nil, fmt.Errorf("client.Register: %w", err)
	}
	return s, nil
}

// GetProfile returns the authenticated user's profile.
func (c *Client) GetProfile(ctx context.Context) (*domain.User, error) {
	var u userDTO
	if err := c.get(ctx, "/api/auth/profile", &u); err != nil {
		return nil, fmt.Errorf("client.GetProfile: %w", err)
	}
	out := u.toDomain()
	return &out, nil
}

// UpdateProfile edits the authenticated user's own profile fields.
func (c *Client) UpdateProfile(ctx context.Context, upd domain.ProfileUpdate) (*domain.User, error) {
	body := map[string]string{}
	if upd.DisplayName != "" {
		body["fullName"] = upd.DisplayName
	}
	if upd.AvatarURL != "" {
		body["avatarUrl"] = upd.AvatarURL
	}
	var u userDTO
	if err := c.put(ctx, "/api/auth/profile", body, &u); err != nil {
		return nil, fmt.Errorf("client.UpdateProfile: %w", err)
	}
	out := u.toDomain()
	return &out, nil
}

// Logout ends the session on the server.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.post(ctx, "/api/auth/logout", nil, nil); err != nil {
		return fmt.Errorf("client.Logout: %w", err)
	}
	return nil
}
