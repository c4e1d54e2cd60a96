// Package config loads process configuration from the environment so main
// stays lean.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr       string
	AdminToken string
	// AdminLinkBase prefixes review links in admin notification emails.
	AdminLinkBase string
	// DatabaseURL selects the Postgres stores when set; empty runs in-memory.
	DatabaseURL string
	// VouchSigningKey signs vouch handoff tokens.
	VouchSigningKey string
	VouchTokenTTL   time.Duration
	LogLevel        slog.Level

	Redis RedisConfig
	Kafka KafkaConfig
}

// RedisConfig tunes the optional form-config cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CacheTTL     time.Duration
}

// KafkaConfig tunes the optional decision broadcast.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	return Server{
		Addr:            envOr("VERIFLOW_ADDR", ":8080"),
		AdminToken:      os.Getenv("VERIFLOW_ADMIN_TOKEN"),
		AdminLinkBase:   envOr("VERIFLOW_ADMIN_LINK_BASE", "/admin/requests/"),
		DatabaseURL:     os.Getenv("VERIFLOW_DATABASE_URL"),
		VouchSigningKey: envOr("VERIFLOW_VOUCH_SIGNING_KEY", "dev-secret-key-change-in-production"),
		VouchTokenTTL:   envDuration("VERIFLOW_VOUCH_TOKEN_TTL", 7*24*time.Hour),
		LogLevel:        parseLogLevel(os.Getenv("VERIFLOW_LOG_LEVEL")),
		Redis: RedisConfig{
			URL:          os.Getenv("VERIFLOW_REDIS_URL"),
			PoolSize:     envInt("VERIFLOW_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("VERIFLOW_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("VERIFLOW_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("VERIFLOW_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("VERIFLOW_REDIS_WRITE_TIMEOUT", 3*time.Second),
			CacheTTL:     envDuration("VERIFLOW_REDIS_CACHE_TTL", 5*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("VERIFLOW_KAFKA_BROKERS")),
			Topic:   envOr("VERIFLOW_KAFKA_TOPIC", "veriflow.decisions"),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseLogLevel(v string) slog.Level {
	switch strings.ToLower(v) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
