package relaypool

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beacon-search/beacon/internal/config"
	"github.com/beacon-search/beacon/internal/model"
	"github.com/beacon-search/beacon/internal/ops"
)

func testDefaults() config.RateLimitDefaults {
	return config.RateLimitDefaults{
		MaxEventsPerSecond: 5, BurstSize: 10, CooldownMs: 50, MaxFilterSize: 500,
	}
}

func newTestPool(t *testing.T) *Pool {
	t.Helper()
	logger := ops.NewLoggerWithWriter(&config.Logging{Level: "error", Format: "text"}, io.Discard)
	p := New(context.Background(), testDefaults(), logger)
	t.Cleanup(p.Close)
	return p
}

func TestPruneWindow_DropsEntriesOlderThanOneSecond(t *testing.T) {
	now := int64(10_000)
	window := []int64{8_500, 9_200, 9_600, 9_999}
	out := pruneWindow(window, now)
	assert.Equal(t, []int64{9_200, 9_600, 9_999}, out)
}

func TestSeed_RegistersRelayWithDefaultConfig(t *testing.T) {
	p := newTestPool(t)
	p.Seed("wss://relay.example.com")

	selected := p.SelectRelays(5)
	require.Len(t, selected, 1)
	assert.Equal(t, "wss://relay.example.com", selected[0])
}

func TestSelectRelays_OrdersByCompositeHealthScoreAscending(t *testing.T) {
	p := newTestPool(t)
	p.Seed("wss://healthy.example.com")
	p.Seed("wss://flaky.example.com")

	flaky := p.configFor("wss://flaky.example.com")
	flaky.Health.FailureCount = 5

	healthy := p.configFor("wss://healthy.example.com")
	healthy.Health.EMALatencyMs = 20

	out := p.SelectRelays(2)
	require.Len(t, out, 2)
	assert.Equal(t, "wss://healthy.example.com", out[0])
	assert.Equal(t, "wss://flaky.example.com", out[1])
}

func TestSelectRelays_CapsAtAvailableCount(t *testing.T) {
	p := newTestPool(t)
	p.Seed("wss://only.example.com")

	out := p.SelectRelays(10)
	assert.Len(t, out, 1)
}

func TestAwaitSlot_AdmitsWithinBurstWithoutBlocking(t *testing.T) {
	p := newTestPool(t)
	cfg := p.configFor("wss://burst.example.com")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	start := time.Now()
	require.NoError(t, p.awaitSlot(ctx, cfg))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
	assert.Len(t, cfg.RequestWindow, 1)
}

func TestAwaitSlot_AppliesBackoffAfterRepeatedFailures(t *testing.T) {
	p := newTestPool(t)
	cfg := p.configFor("wss://backoff.example.com")
	cfg.Health.FailureCount = 4
	cfg.CooldownMs = 10

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	start := time.Now()
	require.NoError(t, p.awaitSlot(ctx, cfg))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestAwaitSlot_OnlyTheEleventhOfTwentyBackToBackRequestsSleeps(t *testing.T) {
	// spec.md §8 scenario 6: max_events_per_second=5, burst_size=10,
	// cooldown_ms=100; firing 20 requests back-to-back must leave the
	// first 10 unblocked and sleep on the 11th.
	p := newTestPool(t)
	cfg := p.configFor("wss://scenario6.example.com")
	cfg.MaxEventsPerSecond = 5
	cfg.BurstSize = 10
	cfg.CooldownMs = 100

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var total time.Duration
	for i := 0; i < 10; i++ {
		start := time.Now()
		require.NoError(t, p.awaitSlot(ctx, cfg))
		elapsed := time.Since(start)
		total += elapsed
		assert.Lessf(t, elapsed, 50*time.Millisecond, "request %d should not block", i+1)
	}

	start := time.Now()
	require.NoError(t, p.awaitSlot(ctx, cfg))
	eleventh := time.Since(start)
	total += eleventh
	assert.GreaterOrEqual(t, eleventh, 100*time.Millisecond)
	assert.GreaterOrEqual(t, total, 100*time.Millisecond)
	assert.Len(t, cfg.RequestWindow, 11)
}

func TestMinMaxInt(t *testing.T) {
	assert.Equal(t, 3, minInt(3, 7))
	assert.Equal(t, 7, maxInt(3, 7))
}

func TestDiscover_ReturnsCachedCapabilitiesBeforeExpiry(t *testing.T) {
	p := newTestPool(t)
	cached := &model.Capabilities{URL: "wss://cached.example.com", ExpiresAt: time.Now().Add(time.Hour)}
	p.caps.Store("wss://cached.example.com", cached)

	got, err := p.Discover(context.Background(), "wss://cached.example.com")
	require.NoError(t, err)
	assert.Same(t, cached, got)
}

func TestDiscover_FailedDiscoveryDoesNotRegisterRelayInPool(t *testing.T) {
	p := newTestPool(t)

	// A plain-HTTP server reached over a "wss://" (-> https://) URL fails
	// the TLS handshake, giving a deterministic NIP-11 failure with no
	// real network dependency.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	url := "wss://" + strings.TrimPrefix(srv.URL, "http://")

	_, err := p.Discover(context.Background(), url)
	require.Error(t, err)

	_, registered := p.configs.Load(url)
	assert.False(t, registered, "a failed discovery must not add the relay to the query pool")
	assert.NotContains(t, p.SelectRelays(10), url)
}
