package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/odyssey-erp/odyssey-desk/internal/realtime"
)

// Token store backends.
const (
	TokenStoreFile   = "file"
	TokenStoreRedis  = "redis"
	TokenStoreMemory = "memory"
)

// Config holds runtime configuration for the desk agent.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8090"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"0s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	APIURL     string        `envconfig:"DESK_API_URL" required:"true"`
	WSURL      string        `envconfig:"DESK_WS_URL"`
	APITimeout time.Duration `envconfig:"DESK_API_TIMEOUT" default:"15s"`

	TokenStore string `envconfig:"DESK_TOKEN_STORE" default:"file"`
	TokenFile  string `envconfig:"DESK_TOKEN_FILE"`
	RedisAddr  string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	TokenKey   string `envconfig:"DESK_TOKEN_KEY" default:"odyssey_desk:token"`

	RealtimeHeartbeat     time.Duration `envconfig:"REALTIME_HEARTBEAT" default:"30s"`
	RealtimeReconnectBase time.Duration `envconfig:"REALTIME_RECONNECT_BASE" default:"5s"`
	RealtimeMaxAttempts   int           `envconfig:"REALTIME_MAX_ATTEMPTS" default:"5"`
	RealtimeDialTimeout   time.Duration `envconfig:"REALTIME_DIAL_TIMEOUT" default:"10s"`

	ConnectivityInterval time.Duration `envconfig:"CONNECTIVITY_INTERVAL" default:"15s"`
	LoginRateLimit       int           `envconfig:"LOGIN_RATE_LIMIT" default:"10"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates the config and fills derived values. It runs again
// after command-line overrides.
func (c *Config) Normalize() error {
	c.APIURL = strings.TrimSpace(c.APIURL)
	if c.APIURL == "" {
		return errors.New("desk api url must be provided")
	}
	if c.WSURL == "" {
		base, err := realtime.BaseFromAPI(c.APIURL)
		if err != nil {
			return err
		}
		c.WSURL = base
	}
	c.TokenStore = strings.ToLower(strings.TrimSpace(c.TokenStore))
	switch c.TokenStore {
	case TokenStoreFile:
		if c.TokenFile == "" {
			dir, err := os.UserConfigDir()
			if err != nil {
				return fmt.Errorf("resolve token file: %w", err)
			}
			c.TokenFile = filepath.Join(dir, "odyssey-desk", "token")
		}
	case TokenStoreRedis, TokenStoreMemory:
	default:
		return fmt.Errorf("unknown token store %q", c.TokenStore)
	}
	if c.RealtimeMaxAttempts < 0 {
		return errors.New("realtime max attempts must not be negative")
	}
	if c.LoginRateLimit <= 0 {
		c.LoginRateLimit = 10
	}
	return nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
