package utils

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

type StorageMode string

const (
	InMemory   StorageMode = "inmemory"
	Relational StorageMode = "sql"
	Mongo      StorageMode = "mongo"
)

type Config struct {
	Port        string
	StorageMode StorageMode
	// DatabaseURL is a postgres:// URL or a SQLite file path.
	DatabaseURL string
	MongoURL    string
	MongoDBName string
	// RedisURL enables the post cache when set.
	RedisURL string

	SecretKey     string
	SessionTTL    time.Duration
	SecureCookies bool

	// AuthRateLimit is the sustained number of login, registration and
	// token requests allowed per client per minute.
	AuthRateLimit float64
	AuthBurst     int
	PageSize      int
	LogLevel      string
}

// LoadDotEnv loads .env from the working directory if it exists. Variables
// already set in the environment win.
func LoadDotEnv() {
	if err := godotenv.Load(); err == nil {
		log.Debug("Loaded .env")
	}
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:        GetEnvVarWithDefault("SERVER_PORT", "8080"),
		StorageMode: StorageMode(GetEnvVarWithDefault("STORAGE_MODE", string(Relational))),
		DatabaseURL: GetEnvVarWithDefault("DATABASE_URL", "twipost.db"),
		MongoURL:    GetEnvVarWithDefault("MONGO_URL", ""),
		MongoDBName: GetEnvVarWithDefault("MONGO_DBNAME", "twipost"),
		RedisURL:    GetEnvVarWithDefault("REDIS_URL", ""),
		SecretKey:   GetEnvVarWithDefault("SECRET_KEY", ""),
		LogLevel:    GetEnvVarWithDefault("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.SessionTTL, err = GetEnvDurationWithDefault("SESSION_TTL", 14*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.SecureCookies, err = GetEnvBoolWithDefault("SECURE_COOKIES", false); err != nil {
		return nil, err
	}
	if cfg.AuthRateLimit, err = GetEnvFloatWithDefault("AUTH_RATE_LIMIT", 30); err != nil {
		return nil, err
	}
	if cfg.AuthBurst, err = GetEnvIntWithDefault("AUTH_RATE_BURST", 10); err != nil {
		return nil, err
	}
	if cfg.PageSize, err = GetEnvIntWithDefault("PAGE_SIZE", 50); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	switch c.StorageMode {
	case InMemory, Relational:
	case Mongo:
		if c.MongoURL == "" {
			return fmt.Errorf("'MONGO_URL' not specified for '%s' STORAGE_MODE", c.StorageMode)
		}
	default:
		return fmt.Errorf("invalid 'STORAGE_MODE' %q", c.StorageMode)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("'SESSION_TTL' must be positive")
	}
	if c.AuthRateLimit <= 0 || c.AuthBurst < 1 {
		return fmt.Errorf("'AUTH_RATE_LIMIT' and 'AUTH_RATE_BURST' must be positive")
	}
	if c.PageSize < 1 {
		return fmt.Errorf("'PAGE_SIZE' must be positive")
	}
	if c.SecretKey == "" {
		log.Warn("'SECRET_KEY' not specified, sessions will not survive a restart")
		c.SecretKey = uuid.New().String()
	}
	return nil
}

func ConfigureLogging(level string) error {
	parsed, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid 'LOG_LEVEL': %w", err)
	}
	log.SetLevel(parsed)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	return nil
}
