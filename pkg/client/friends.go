package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/chitchat/chitchat/pkg/domain"
)

// ListFriends returns the authenticated user's friends.
func (c *Client) ListFriends(ctx context.Context) ([]domain.User, error) {
	var users []userDTO
	if err := c.get(ctx, "/api/friends", &users); err != nil {
		return nil, fmt.Errorf("client.ListFriends: %w", err)
	}
	return mapUsers(users), nil
}

// ListFriendRequests returns pending friend requests addressed to the user.
func (c *Client) ListFriendRequests(ctx context.Context) ([]domain.FriendRequest, error) {
	var reqs []friendRequestDTO
	if err := c.get(ctx, "/api/friends/requests", &reqs); err != nil {
		return nil, fmt.Errorf("client.ListFriendRequests: %w", err)
	}
	out := make([]domain.FriendRequest, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// SendFriendRequest asks the user identified by email or handle to be friends.
func (c *Client) SendFriendRequest(ctx context.Context, identifier string) error {
	body := map[string]string{"email": identifier}
	if !strings.Contains(identifier, "@") {
		body = map[string]string{"username": identifier, "email": identifier}
	}
	if err := c.post(ctx, "/api/friends/requests", body, nil); err != nil {
		return fmt.Errorf("client.SendFriendRequest: %w", err)
	}
	return nil
}

// AcceptFriendRequest accepts a pending request.
func (c *Client) AcceptFriendRequest(ctx context.Context, requestID string) error {
	if err := c.put(ctx, "/api/friends/requests/"+url.PathEscape(requestID)+"/accept", nil, nil); err != nil {
		return fmt.Errorf("client.AcceptFriendRequest: %w", err)
	}
	return nil
}

// RejectFriendRequest declines a pending request.
func (c *Client) RejectFriendRequest(ctx context.Context, requestID string) error {
	if err := c.put(ctx, "/api/friends/requests/"+url.PathEscape(requestID)+"/reject", nil, nil); err != nil {
		return fmt.Errorf("client.RejectFriendRequest: %w", err)
	}
	return nil
}

// RemoveFriend ends a friendship.
func (c *Client) RemoveFriend(ctx context.Context, friendID string) error {
	if err := c.delete(ctx, "/api/friends/"+url.PathEscape(friendID)); err != nil {
		return fmt.Errorf("client.RemoveFriend: %w", err)
	}
	return nil
}

// SearchUsers returns users matching query.
func (c *Client) SearchUsers(ctx context.Context, query string) ([]domain.User, error) {
	params := url.Values{}
	params.Set("q", query)

	var users []userDTO
	if err := c.get(ctx, "/api/users/search?"+params.Encode(), &users); err != nil {
		return nil, fmt.Errorf("client.SearchUsers: %w", err)
	}
	return mapUsers(users), nil
}

// FindUser looks up a single user by email or handle. A miss is reported
// as an HTTPError with status 404.
func (c *Client) FindUser(ctx context.Context, query string) (*domain.UserMatch, error) {
	params := url.Values{}
	params.Set("q", query)

	var resp struct {
		User   *userDTO `json:"user"`
		Status string   `json:"status"`
	}
	if err := c.get(ctx, "/api/users/find?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("client.FindUser: %w", err)
	}
	if resp.User == nil || resp.User.ID == "" {
		return nil, fmt.Errorf("client.FindUser: %w", &HTTPError{StatusCode: 404, Message: "user not found"})
	}
	return &domain.UserMatch{
		User:         resp.User.toDomain(),
		Relationship: parseRelationship(resp.Status),
	}, nil
}

func parseRelationship(s string) domain.Relationship {
	switch domain.Relationship(strings.ToLower(s)) {
	case domain.RelationFriends:
		return domain.RelationFriends
	case domain.RelationPending:
		return domain.RelationPending
	case domain.RelationReceived:
		return domain.RelationReceived
	default:
		return domain.RelationNone
	}
}

func mapUsers(in []userDTO) []domain.User {
	out := make([]domain.User, 0, len(in))
	for _, u := range in {
		out = append(out, u.toDomain())
	}
	return out
}
