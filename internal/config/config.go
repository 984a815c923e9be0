// Package config resolves ChitChat's runtime settings and the persisted
// login token.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAPIURL = "http://localhost:8080"

	defaultLogLevel    = "info"
	defaultBotDelay    = time.Second
	defaultPageSize    = 50
	defaultHTTPTimeout = 30 * time.Second
)

// Config holds resolved settings. Precedence: environment > YAML file > defaults.
type Config struct {
	APIURL          string        `yaml:"api_url"`
	WSURL           string        `yaml:"ws_url"`
	LogLevel        string        `yaml:"log_level"`
	LogFile         string        `yaml:"log_file"`
	BotReplyDelay   time.Duration `yaml:"bot_reply_delay"`
	HistoryPageSize int           `yaml:"history_page_size"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`

	// Token comes only from CHITCHAT_TOKEN; the token file is read by TokenFile.
	Token string `yaml:"-"`
	// Dir is the per-user state directory, ~/.chitchat.
	Dir string `yaml:"-"`
}

// Dir returns ~/.chitchat.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".chitchat"), nil
}

// Load reads .env from the working directory, then the config file named by
// CHITCHAT_CONFIG (or ~/.chitchat/config.yaml), then the environment.
// A missing config file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load(".env") //nolint:errcheck // .env is optional

	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	path := os.Getenv("CHITCHAT_CONFIG")
	if path == "" {
		path = filepath.Join(dir, "config.yaml")
	}
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	cfg.Dir = dir
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	cfg.fill()
	return cfg, nil
}

// LoadFile parses a YAML config file without applying the environment or
// defaults. A file that does not exist yields an empty config.
func LoadFile(path string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	set := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set("CHITCHAT_API_URL", &c.APIURL)
	set("CHITCHAT_WS_URL", &c.WSURL)
	set("CHITCHAT_LOG_LEVEL", &c.LogLevel)
	set("CHITCHAT_LOG_FILE", &c.LogFile)
	set("CHITCHAT_TOKEN", &c.Token)

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"CHITCHAT_BOT_REPLY_DELAY", &c.BotReplyDelay},
		{"CHITCHAT_REQUEST_TIMEOUT", &c.RequestTimeout},
	}
	for _, d := range durations {
		v := strings.TrimSpace(getenv(d.key))
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = parsed
	}
	if v := strings.TrimSpace(getenv("CHITCHAT_HISTORY_PAGE_SIZE")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CHITCHAT_HISTORY_PAGE_SIZE: %w", err)
		}
		c.HistoryPageSize = n
	}
	return nil
}

func (c *Config) fill() {
	c.APIURL = strings.TrimRight(c.APIURL, "/")
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.LogFile == "" && c.Dir != "" {
		c.LogFile = filepath.Join(c.Dir, "chitchat.log")
	}
	if c.BotReplyDelay <= 0 {
		c.BotReplyDelay = defaultBotDelay
	}
	if c.HistoryPageSize <= 0 {
		c.HistoryPageSize = defaultPageSize
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultHTTPTimeout
	}
}
