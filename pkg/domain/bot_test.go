package domain

import "testing"

func TestBotConfigValidate(t *testing.T) {
	ok := BotConfig{Name: "Gemi", Provider: "gemini", Model: "gemini-1.5-flash", APIKey: "k"}
	if err := ok.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}

	bad := []BotConfig{
		{Provider: "gemini", Model: "m", APIKey: "k"},
		{Name: "x", Provider: "claude-ish", Model: "m", APIKey: "k"},
		{Name: "x", Provider: "openai", APIKey: "k"},
		{Name: "x", Provider: "openai", Model: "m"},
	}
	for i, c := range bad {
		if err := c.Validate(); err == nil {
			t.Errorf("bad[%d].Validate() = nil, want error", i)
		}
	}
}

func TestBotUserIsTagged(t *testing.T) {
	u := Bot{ID: "b1", Name: "Gemi", Provider: ProviderGemini, Model: "m"}.User()
	if !u.IsBot() {
		t.Fatal("bot user should carry a bot profile")
	}
	if !u.Bot.Configured {
		t.Error("registered bot should be configured")
	}
	if (User{ID: "b1"}).IsBot() {
		t.Error("user without profile must be human")
	}
}
