package config

import (
	"os"
	"strings"
	"time"
)

// Config captures process-level configuration. Values come from the
// environment so main stays lean; zero values select in-memory fallbacks for
// local development.
type Config struct {
	Addr          string
	PostgresURL   string
	RedisURL      string
	KafkaBrokers  []string
	KafkaTopic    string
	JWTSigningKey string

	// TargetsFile and ReviewersFile point at JSON snapshot exports from the
	// upstream mapping and identity systems.
	TargetsFile   string
	ReviewersFile string

	// LockTTL bounds how long an inactive reviewer can hold a target.
	// A policy knob, not a correctness requirement; expired leases are
	// reclaimed lazily on the next acquire.
	LockTTL time.Duration

	// SLASweepInterval controls how often the SLA breach sweep runs.
	SLASweepInterval time.Duration
}

const (
	defaultAddr             = ":8080"
	defaultLockTTL          = 30 * time.Minute
	defaultSLASweepInterval = 5 * time.Minute
	defaultKafkaTopic       = "attest.review-events"
)

// FromEnv builds the configuration from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:             envOr("ATTEST_ADDR", defaultAddr),
		PostgresURL:      os.Getenv("ATTEST_POSTGRES_URL"),
		RedisURL:         os.Getenv("ATTEST_REDIS_URL"),
		KafkaTopic:       envOr("ATTEST_KAFKA_TOPIC", defaultKafkaTopic),
		JWTSigningKey:    os.Getenv("ATTEST_JWT_SIGNING_KEY"),
		TargetsFile:      os.Getenv("ATTEST_TARGETS_FILE"),
		ReviewersFile:    os.Getenv("ATTEST_REVIEWERS_FILE"),
		LockTTL:          durationOr("ATTEST_LOCK_TTL", defaultLockTTL),
		SLASweepInterval: durationOr("ATTEST_SLA_SWEEP_INTERVAL", defaultSLASweepInterval),
	}
	if brokers := os.Getenv("ATTEST_KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}
	if cfg.JWTSigningKey == "" {
		// Development default - must be overridden in production.
		cfg.JWTSigningKey = "dev-secret-key-change-in-production"
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
