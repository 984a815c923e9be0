package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TokenFile persists the login token in a single owner-only file.
type TokenFile struct {
	Path string
}

// DefaultTokenFile returns the token file at ~/.chitchat/token.
func DefaultTokenFile() (*TokenFile, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	return &TokenFile{Path: filepath.Join(dir, "token")}, nil
}

// Load returns the stored token, or "" when there is none.
func (f *TokenFile) Load() (string, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Save writes the token with mode 0600, creating the directory if needed.
func (f *TokenFile) Save(token string) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	if err := os.WriteFile(f.Path, []byte(token), 0600); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// Clear removes the stored token. Clearing an absent token is not an error.
func (f *TokenFile) Clear() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token: %w", err)
	}
	return nil
}

// EnvToken wraps a token store so that a token supplied through the
// environment wins over the file. Such a token is never written or removed.
type EnvToken struct {
	Token string
	File  *TokenFile
}

// Load returns the environment token when set, else the stored one.
func (e EnvToken) Load() (string, error) {
	if e.Token != "" {
		return e.Token, nil
	}
	return e.File.Load()
}

// Save stores token unless an environment token is in effect.
func (e EnvToken) Save(token string) error {
	if e.Token != "" {
		return nil
	}
	return e.File.Save(token)
}

// Clear removes the stored token unless an environment token is in effect.
func (e EnvToken) Clear() error {
	if e.Token != "" {
		return nil
	}
	return e.File.Clear()
}
