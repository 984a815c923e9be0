package domain

// Credentials are what a user logs in with.
type Credentials struct {
	Identifier string `json:"identifier"` // username or email
	Password   string `json:"password"`
}

// Registration is the payload for creating an account.
type Registration struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// Session is an authenticated identity together with its bearer credential.
type Session struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}
