// Package config loads the core engine's configuration exclusively from
// the environment, per the External Interfaces contract: no CLI flag or
// config file is part of the core itself.
package config

import (
	"fmt"
	"time"

	"go-simpler.org/env"
)

// Config is the full set of environment-driven settings for the
// ingestion and retrieval core.
type Config struct {
	Database   Database
	Embedding  Embedding
	RateLimit  RateLimitDefaults
	Breaker    BreakerDefaults
	FRPEI      FRPEI
	Crawler    Crawler
	HTTP       HTTP
	Logging    Logging
}

// Crawler configures the Adaptive Relay Crawler's bootstrap and
// content-backfill behavior.
type Crawler struct {
	SeedRelays   []string      `env:"BEACON_CRAWLER_SEED_RELAYS" default:"wss://relay.damus.io,wss://relay.nostr.band"`
	CrawlInterval time.Duration `env:"BEACON_CRAWLER_INTERVAL" default:"10m"`
	DiscoveryCacheSize int      `env:"BEACON_CRAWLER_DISCOVERY_CACHE_SIZE" default:"100000"`
}

// HTTP configures the combined FRPEI + Query Engine HTTP listener.
type HTTP struct {
	Addr string `env:"BEACON_HTTP_ADDR" default:":8080"`
}

// Database holds the relational store connection settings.
type Database struct {
	URL               string `env:"BEACON_DATABASE_URL" default:"file:beacon.db?_fk=1"`
	EmbeddingDim      int    `env:"BEACON_EMBEDDING_DIM" default:"768"`
	MaxOpenConns      int    `env:"BEACON_DB_MAX_OPEN_CONNS" default:"10"`
}

// Embedding holds the coordinates of the external Embed(text) -> vector
// function the core treats as a collaborator, never implements.
type Embedding struct {
	Endpoint string        `env:"BEACON_EMBEDDING_ENDPOINT"`
	Timeout  time.Duration `env:"BEACON_EMBEDDING_TIMEOUT" default:"5s"`
}

// RateLimitDefaults seed RelayConfig for a relay seen for the first time.
type RateLimitDefaults struct {
	MaxEventsPerSecond int `env:"BEACON_RELAY_MAX_EPS" default:"5"`
	BurstSize          int `env:"BEACON_RELAY_BURST_SIZE" default:"10"`
	CooldownMs         int `env:"BEACON_RELAY_COOLDOWN_MS" default:"100"`
	MaxFilterSize      int `env:"BEACON_RELAY_MAX_FILTER_SIZE" default:"500"`
}

// BreakerDefaults configure the FRPEI per-provider circuit breaker.
type BreakerDefaults struct {
	FailureThreshold int           `env:"BEACON_BREAKER_FAILURE_THRESHOLD" default:"3"`
	SuccessThreshold int           `env:"BEACON_BREAKER_SUCCESS_THRESHOLD" default:"2"`
	ResetTimeout     time.Duration `env:"BEACON_BREAKER_RESET_TIMEOUT" default:"30s"`
}

// FRPEI configures the federated provider router.
type FRPEI struct {
	CacheTTL          time.Duration `env:"BEACON_FRPEI_CACHE_TTL" default:"5m"`
	CacheEngine       string        `env:"BEACON_FRPEI_CACHE_ENGINE" default:"memory"` // memory|redis
	RedisURL          string        `env:"BEACON_FRPEI_REDIS_URL"`
	DefaultTimeoutMs  int           `env:"BEACON_FRPEI_DEFAULT_TIMEOUT_MS" default:"3000"`
	FeedbackDecayDays int           `env:"BEACON_FRPEI_FEEDBACK_DECAY_DAYS" default:"14"`
}

// Logging configures the structured logger.
type Logging struct {
	Level  string `env:"BEACON_LOG_LEVEL" default:"info"`
	Format string `env:"BEACON_LOG_FORMAT" default:"text"`
}

// Load reads Config from the process environment. Unlike the teacher's
// YAML-file config, the core never falls back to disk: the hosting
// process is solely responsible for supplying the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Load(cfg, &env.Options{SliceSep: ","}); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	return cfg, nil
}
