package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config keeps runtime settings for the task service. It is built once at
// startup and handed to the components that need it.
type Config struct {
	Env      string
	HTTPAddr string

	JWTSecret       []byte
	TokenTTL        time.Duration
	EphemeralSecret bool
	BcryptCost      int

	DefaultPriority int
	DefaultStatus   string

	Notify NotifyConfig

	DigestCron string
}

// NotifyConfig selects how notifications leave the process.
type NotifyConfig struct {
	// Queue is one of "redis", "memory" or "sync".
	Queue         string
	RedisURL      string
	RedisKey      string
	MemoryBuffer  int
	SendTimeout   time.Duration
	SendGridKey   string
	FromAddress   string
	FromName      string
	WorkerThreads int
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	cfg := Config{
		Env:             strings.TrimSpace(os.Getenv("APP_ENV")),
		HTTPAddr:        strings.TrimSpace(os.Getenv("HTTP_ADDR")),
		JWTSecret:       []byte(os.Getenv("JWT_SECRET")),
		TokenTTL:        time.Duration(intEnv("JWT_TTL_MINUTES", 60)) * time.Minute,
		BcryptCost:      intEnv("BCRYPT_COST", 12),
		DefaultPriority: intEnv("TASK_DEFAULT_PRIORITY", 1),
		DefaultStatus:   "pending",
		Notify: NotifyConfig{
			Queue:         strings.ToLower(strings.TrimSpace(os.Getenv("NOTIFY_QUEUE"))),
			RedisURL:      strings.TrimSpace(os.Getenv("REDIS_URL")),
			RedisKey:      strings.TrimSpace(os.Getenv("NOTIFY_REDIS_KEY")),
			MemoryBuffer:  intEnv("NOTIFY_BUFFER", 256),
			SendTimeout:   time.Duration(intEnv("NOTIFY_TIMEOUT_SECONDS", 10)) * time.Second,
			SendGridKey:   strings.TrimSpace(os.Getenv("SENDGRID_API_KEY")),
			FromAddress:   strings.TrimSpace(os.Getenv("MAIL_FROM")),
			FromName:      strings.TrimSpace(os.Getenv("MAIL_FROM_NAME")),
			WorkerThreads: intEnv("NOTIFY_WORKERS", 2),
		},
		DigestCron: "0 8 * * *",
	}
	if v, ok := os.LookupEnv("DIGEST_CRON"); ok {
		cfg.DigestCron = strings.TrimSpace(v)
	}

	if cfg.Env == "" {
		cfg.Env = "production"
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = "0.0.0.0:8431"
	}
	if cfg.Notify.Queue == "" {
		cfg.Notify.Queue = "memory"
		if cfg.Notify.RedisURL != "" {
			cfg.Notify.Queue = "redis"
		}
	}
	if cfg.Notify.RedisKey == "" {
		cfg.Notify.RedisKey = "pitchfork:notifications"
	}
	if cfg.Notify.FromAddress == "" {
		cfg.Notify.FromAddress = "donotreply@localhost"
	}
	if cfg.Notify.FromName == "" {
		cfg.Notify.FromName = "pitchfork tasks"
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.JWTSecret) == 0 {
		if c.Env != "development" {
			return fmt.Errorf("JWT_SECRET is required")
		}
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return fmt.Errorf("generate ephemeral secret: %w", err)
		}
		c.JWTSecret = []byte(hex.EncodeToString(secret))
		c.EphemeralSecret = true
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("JWT_TTL_MINUTES must be positive")
	}
	switch c.Notify.Queue {
	case "memory", "sync":
	case "redis":
		if c.Notify.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when NOTIFY_QUEUE=redis")
		}
	default:
		return fmt.Errorf("unknown NOTIFY_QUEUE %q", c.Notify.Queue)
	}
	if c.Notify.SendTimeout <= 0 {
		return fmt.Errorf("NOTIFY_TIMEOUT_SECONDS must be positive")
	}
	return nil
}

func intEnv(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
