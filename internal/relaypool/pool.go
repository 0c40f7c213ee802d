// Package relaypool implements the Relay Pool Manager (§4.A): a
// url -> RelayConfig map with NIP-11 capability discovery, a per-relay
// token-bucket rate limiter, EMA latency tracking and exponential
// backoff on repeated failure.
package relaypool

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/beacon-search/beacon/internal/config"
	"github.com/beacon-search/beacon/internal/model"
	"github.com/beacon-search/beacon/internal/ops"
)

// Pool maintains runtime RelayConfig state keyed by relay URL. State is
// in-memory only: the Data Model marks RelayConfig volatile, never
// persisted across restarts.
type Pool struct {
	configs  *xsync.MapOf[string, *model.RelayConfig]
	caps     *xsync.MapOf[string, *model.Capabilities]
	defaults config.RateLimitDefaults
	client   *nostr.SimplePool
	logger   *ops.Logger
	mu       sync.Mutex // serializes sleep-then-proceed per relay to avoid interleaved backoff math
}

// New constructs an empty Pool.
func New(ctx context.Context, defaults config.RateLimitDefaults, logger *ops.Logger) *Pool {
	return &Pool{
		configs:  xsync.NewMapOf[string, *model.RelayConfig](),
		caps:     xsync.NewMapOf[string, *model.Capabilities](),
		defaults: defaults,
		client:   nostr.NewSimplePool(ctx),
		logger:   logger,
	}
}

func (p *Pool) configFor(url string) *model.RelayConfig {
	cfg, _ := p.configs.LoadOrCompute(url, func() *model.RelayConfig {
		return &model.RelayConfig{
			URL:                url,
			MaxEventsPerSecond: p.defaults.MaxEventsPerSecond,
			BurstSize:          p.defaults.BurstSize,
			CooldownMs:         p.defaults.CooldownMs,
			MaxFilterSize:      p.defaults.MaxFilterSize,
		}
	})
	return cfg
}

// Discover performs NIP-11 capability discovery against a relay,
// converting wss:// to https:// per the protocol. A failed discovery
// bumps the failure count of an already-registered relay and never
// removes it from the pool; an unknown relay is not registered.
func (p *Pool) Discover(ctx context.Context, url string) (*model.Capabilities, error) {
	if cached, ok := p.caps.Load(url); ok && time.Now().Before(cached.ExpiresAt) {
		return cached, nil
	}

	info, err := fetchNIP11(ctx, url)
	if err != nil {
		// Failed discovery must not register the relay in p.configs: doing
		// so would make it eligible for SelectRelays before it has ever
		// proven reachable. Track the failure against whatever config (if
		// any) already exists without creating a fresh one.
		if cfg, ok := p.configs.Load(url); ok {
			cfg.Health.FailureCount++
		}
		return nil, fmt.Errorf("failed to discover capabilities for %s: %w", url, err)
	}

	cfg := p.configFor(url)
	caps := &model.Capabilities{
		URL:              url,
		MaxSubscriptions: info.Limitation.MaxSubscriptions,
		MaxFilters:       info.Limitation.MaxFilters,
		RequireAuth:      info.Limitation.AuthRequired,
		SupportedNIPs:    info.SupportedNIPs,
		Software:         info.Software,
		Version:          info.Version,
		CheckedAt:        time.Now().UTC(),
		ExpiresAt:        time.Now().UTC().Add(7 * 24 * time.Hour),
	}
	cfg.MaxFilterSize = maxInt(caps.MaxFilters, cfg.MaxFilterSize)
	cfg.RequireAuth = caps.RequireAuth
	p.caps.Store(url, caps)
	return caps, nil
}

// Fetch issues a rate-limited, filtered fetch against each relay and
// deduplicates the combined result set by event id.
func (p *Pool) Fetch(ctx context.Context, relays []string, filter nostr.Filter, batchSize int) ([]*nostr.Event, error) {
	seen := make(map[string]struct{})
	var out []*nostr.Event

	for _, url := range relays {
		cfg := p.configFor(url)
		if err := p.awaitSlot(ctx, cfg); err != nil {
			return out, err
		}

		f := filter
		f.Limit = minInt(batchSize, cfg.BurstSize)

		start := time.Now()
		events, err := p.fetchOne(ctx, url, f)
		latency := time.Since(start)
		if err != nil {
			cfg.Health.FailureCount++
			p.logger.LogRelayFetch(url, 0, latency, err)
			continue
		}
		cfg.Health.EMALatencyMs = 0.9*cfg.Health.EMALatencyMs + 0.1*float64(latency.Milliseconds())
		cfg.Health.LastSuccess = time.Now().UTC()
		cfg.Health.FailureCount = 0
		p.logger.LogRelayFetch(url, len(events), latency, nil)

		for _, ev := range events {
			if _, dup := seen[ev.ID]; dup {
				continue
			}
			seen[ev.ID] = struct{}{}
			out = append(out, ev)
		}
	}
	return out, nil
}

func (p *Pool) fetchOne(ctx context.Context, url string, filter nostr.Filter) ([]*nostr.Event, error) {
	var events []*nostr.Event
	for relayEvent := range p.client.SubManyEose(ctx, []string{url}, nostr.Filters{filter}) {
		if relayEvent.Event != nil {
			events = append(events, relayEvent.Event)
		}
	}
	return events, nil
}

// awaitSlot blocks until the relay's token bucket admits another
// request, applying the sliding-window + exponential-backoff rules of
// §4.A.
func (p *Pool) awaitSlot(ctx context.Context, cfg *model.RelayConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now().UnixMilli()
	cfg.RequestWindow = pruneWindow(cfg.RequestWindow, now)

	if cfg.Health.FailureCount > 3 {
		backoff := math.Min(float64(cfg.CooldownMs)*math.Pow(2, float64(cfg.Health.FailureCount-3)), 60_000)
		if err := sleepCtx(ctx, time.Duration(backoff)*time.Millisecond); err != nil {
			return err
		}
	}

	// BurstSize is the sole admission gate: up to BurstSize requests in the
	// trailing second proceed with no wait at all, which is what lets a
	// relay configured with burst_size > max_events_per_second (the normal
	// case) absorb a burst without being paced mid-burst. Only once that
	// allowance is spent does the relay pay cooldown_ms, stretched further
	// if needed so the MaxEventsPerSecond-th-oldest request in the window
	// is still at least a second old — i.e. the steady-state pace catches
	// up with MaxEventsPerSecond once the burst credit runs out.
	if len(cfg.RequestWindow) >= cfg.BurstSize {
		wait := cfg.CooldownMs
		if cfg.MaxEventsPerSecond > 0 {
			idx := len(cfg.RequestWindow) - cfg.MaxEventsPerSecond
			if idx < 0 {
				idx = 0
			}
			oldest := cfg.RequestWindow[idx]
			if paced := int(1000 - (now - oldest)); paced > wait {
				wait = paced
			}
		}
		if err := sleepCtx(ctx, time.Duration(wait)*time.Millisecond); err != nil {
			return err
		}
	}

	cfg.RequestWindow = append(cfg.RequestWindow, time.Now().UnixMilli())
	return nil
}

func pruneWindow(window []int64, now int64) []int64 {
	cutoff := now - 1000
	i := 0
	for i < len(window) && window[i] < cutoff {
		i++
	}
	return window[i:]
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SelectRelays ranks known relays by composite health score (ascending;
// lower is better) and returns the top k urls.
func (p *Pool) SelectRelays(k int) []string {
	type scored struct {
		url   string
		score float64
	}
	var all []scored
	p.configs.Range(func(url string, cfg *model.RelayConfig) bool {
		all = append(all, scored{url: url, score: cfg.CompositeHealthScore()})
		return true
	})
	sort.Slice(all, func(i, j int) bool { return all[i].score < all[j].score })

	if k > len(all) {
		k = len(all)
	}
	out := make([]string, k)
	for i := 0; i < k; i++ {
		out[i] = all[i].url
	}
	return out
}

// Seed registers a relay URL with default configuration without
// requiring a Fetch/Discover call first, used to bootstrap the crawler
// from a seed list.
func (p *Pool) Seed(url string) {
	p.configFor(url)
}

// Close tears down the underlying relay connections.
func (p *Pool) Close() {
	p.client.Close("pool shutting down")
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
