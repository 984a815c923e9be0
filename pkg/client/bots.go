package client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/chitchat/chitchat/pkg/domain"
)

// ConfigureBot registers a provider/model/key triple and returns the bot identity.
func (c *Client) ConfigureBot(ctx context.Context, cfg domain.BotConfig) (*domain.Bot, error) {
	body := map[string]string{
		"botName":  cfg.Name,
		"provider": cfg.Provider,
		"model":    cfg.Model,
		"apiKey":   cfg.APIKey,
	}
	var resp botDTO
	if err := c.post(ctx, "/api/gemini/configure", body, &resp); err != nil {
		return nil, fmt.Errorf("client.ConfigureBot: %w", err)
	}
	b := resp.toDomain()
	if b.Name == "" {
		b.Name = cfg.Name
	}
	if b.Provider == "" {
		b.Provider = cfg.Provider
	}
	if b.Model == "" {
		b.Model = cfg.Model
	}
	return &b, nil
}

// ListBots returns the bots the user has configured.
func (c *Client) ListBots(ctx context.Context) ([]domain.Bot, error) {
	var resp struct {
		Bots []botDTO `json:"bots"`
	}
	if err := c.get(ctx, "/api/gemini/bots", &resp); err != nil {
		return nil, fmt.Errorf("client.ListBots: %w", err)
	}
	out := make([]domain.Bot, 0, len(resp.Bots))
	for _, b := range resp.Bots {
		out = append(out, b.toDomain())
	}
	return out, nil
}

// GenerateBotResponse asks a configured bot to answer prompt.
func (c *Client) GenerateBotResponse(ctx context.Context, botID, prompt string) (string, error) {
	var resp struct {
		Response string `json:"response"`
	}
	if err := c.post(ctx, "/api/gemini/bot/"+url.PathEscape(botID)+"/response", map[string]string{"prompt": prompt}, &resp); err != nil {
		return "", fmt.Errorf("client.GenerateBotResponse: %w", err)
	}
	return resp.Response, nil
}
