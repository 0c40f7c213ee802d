package model

import "time"

// RelayHealth tracks the runtime health signal of a single relay.
type RelayHealth struct {
	LastSuccess   time.Time
	FailureCount  int
	EMALatencyMs  float64
}

// RelayConfig is the runtime, in-memory, per-URL configuration and
// health record maintained by the Relay Pool Manager. It is never
// persisted across restarts.
type RelayConfig struct {
	URL                string
	MaxEventsPerSecond int
	BurstSize          int
	CooldownMs         int
	MaxFilterSize      int
	RequireAuth        bool
	Health             RelayHealth

	// RequestWindow holds the unix-millis timestamps of requests issued
	// to this relay in roughly the last second, used by the token
	// bucket rate limiter.
	RequestWindow []int64
}

// CompositeHealthScore ranks a relay for SelectRelays: lower is better.
func (c *RelayConfig) CompositeHealthScore() float64 {
	return float64(c.Health.FailureCount)*1000 + c.Health.EMALatencyMs
}

// Capabilities is the result of NIP-11 capability discovery for a relay.
type Capabilities struct {
	URL              string
	MaxSubscriptions int
	MaxFilters       int
	RequireAuth      bool
	SupportedNIPs    []int
	Software         string
	Version          string
	CheckedAt        time.Time
	ExpiresAt        time.Time
}
