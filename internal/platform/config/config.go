package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures everything the binaries read from the environment so main
// stays lean.
type Config struct {
	Env  string
	Addr string

	DatabaseURL string
	FernetKey   string

	Redis RedisConfig

	KafkaBrokers []string
	AuditTopic   string

	BotToken   string
	AdminIDs   []int64
	SessionTTL time.Duration
}

// RedisConfig tunes the session store connection. An empty URL disables Redis
// and falls back to in-memory sessions.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv loads .env when present, then builds the config from environment
// variables with development defaults.
func FromEnv() (Config, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := Config{
		Env:         envOr("WINDSEAT_ENV", "development"),
		Addr:        envOr("WINDSEAT_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		FernetKey:   os.Getenv("FERNET_KEY"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		AuditTopic: envOr("AUDIT_TOPIC", "windseat.order-events"),
		BotToken:   os.Getenv("BOT_TOKEN"),
		SessionTTL: 15 * time.Minute,
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	if raw := os.Getenv("ADMIN_IDS"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				return Config{}, fmt.Errorf("parse ADMIN_IDS entry %q: %w", part, err)
			}
			cfg.AdminIDs = append(cfg.AdminIDs, id)
		}
	}

	if ttl := os.Getenv("SESSION_TTL"); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return Config{}, fmt.Errorf("parse SESSION_TTL: %w", err)
		}
		cfg.SessionTTL = d
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
