package domain

import (
	"errors"
	"strings"
)

// Supported bot providers.
const (
	ProviderGemini  = "gemini"
	ProviderOpenAI  = "openai"
	ProviderMistral = "mistral"
)

var validProviders = map[string]bool{
	ProviderGemini:  true,
	ProviderOpenAI:  true,
	ProviderMistral: true,
}

// ValidProvider reports whether p names a supported bot provider.
func ValidProvider(p string) bool {
	return validProviders[strings.ToLower(p)]
}

// BotConfig registers a provider/model/credential triple as a bot.
type BotConfig struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	APIKey   string `json:"-"`
}

// Validate checks the config before it is sent.
func (c BotConfig) Validate() error {
	switch {
	case strings.TrimSpace(c.Name) == "":
		return errors.New("bot name is required")
	case !ValidProvider(c.Provider):
		return errors.New("unsupported provider " + c.Provider)
	case strings.TrimSpace(c.Model) == "":
		return errors.New("model is required")
	case strings.TrimSpace(c.APIKey) == "":
		return errors.New("api key is required")
	}
	return nil
}

// Bot is a configured bot identity usable as a room participant.
type Bot struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// User returns the bot as a room participant.
func (b Bot) User() User {
	return User{
		ID:          b.ID,
		DisplayName: b.Name,
		Handle:      b.Name,
		Online:      true,
		Bot:         &BotProfile{Provider: b.Provider, Model: b.Model, Configured: true},
	}
}
