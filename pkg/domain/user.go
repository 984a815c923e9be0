package domain

// BotProfile marks a participant as an AI bot. A nil *BotProfile on a User
// means the participant is human.
type BotProfile struct {
	Provider   string `json:"provider"`
	Model      string `json:"model,omitempty"`
	Configured bool   `json:"configured"`
}

// User is a chat participant as seen by this client.
type User struct {
	ID          string      `json:"id"`
	DisplayName string      `json:"display_name"`
	Handle      string      `json:"handle"`
	Email       string      `json:"email,omitempty"`
	AvatarURL   string      `json:"avatar_url,omitempty"`
	Online      bool        `json:"online"`
	Bot         *BotProfile `json:"bot,omitempty"`
}

// IsBot reports whether the user is a bot participant.
func (u User) IsBot() bool {
	return u.Bot != nil
}

// Name returns the best human-readable label for the user.
func (u User) Name() string {
	switch {
	case u.DisplayName != "":
		return u.DisplayName
	case u.Handle != "":
		return u.Handle
	default:
		return u.ID
	}
}

// ProfileUpdate is the set of profile fields a user may edit on themselves.
type ProfileUpdate struct {
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}
