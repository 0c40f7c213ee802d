package crawler

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beacon-search/beacon/internal/config"
	"github.com/beacon-search/beacon/internal/discovery"
	"github.com/beacon-search/beacon/internal/ops"
	"github.com/beacon-search/beacon/internal/relaypool"
	"github.com/beacon-search/beacon/internal/storage"
)

func newTestCrawler(t *testing.T, ingest IngestFunc) *Crawler {
	t.Helper()
	logger := ops.NewLoggerWithWriter(&config.Logging{Level: "error", Format: "text"}, io.Discard)
	pool := relaypool.New(context.Background(), config.RateLimitDefaults{
		MaxEventsPerSecond: 5, BurstSize: 10, CooldownMs: 10, MaxFilterSize: 500,
	}, logger)
	t.Cleanup(pool.Close)

	disc, err := discovery.New(1000)
	require.NoError(t, err)

	if ingest == nil {
		ingest = func(ctx context.Context, ev *nostr.Event) error { return nil }
	}
	return New(pool, disc, ingest, logger)
}

func TestBootstrap_NoSeedRelaysNeverCallsIngest(t *testing.T) {
	called := false
	c := newTestCrawler(t, func(ctx context.Context, ev *nostr.Event) error {
		called = true
		return nil
	})

	require.NoError(t, c.Bootstrap(context.Background(), nil))
	assert.False(t, called)
}

func TestCrawlContent_NoRelaysReturnsImmediately(t *testing.T) {
	c := newTestCrawler(t, nil)
	require.NoError(t, c.CrawlContent(context.Background(), nil))
}

func TestCrawlAuthors_NoRelaysReturnsImmediately(t *testing.T) {
	c := newTestCrawler(t, nil)
	require.NoError(t, c.CrawlAuthors(context.Background(), nil, []string{"pubkey1"}))
}

func TestIngestOne_AbsorbsNonFatalErrorAndReturnsNil(t *testing.T) {
	c := newTestCrawler(t, func(ctx context.Context, ev *nostr.Event) error {
		return fmt.Errorf("malformed event: %w", assert.AnError)
	})

	err := c.ingestOne(context.Background(), &nostr.Event{ID: "evt-1", Kind: 1})
	assert.NoError(t, err)
}

func TestIngestOne_PropagatesFatalError(t *testing.T) {
	c := newTestCrawler(t, func(ctx context.Context, ev *nostr.Event) error {
		return fmt.Errorf("index write failed: %w", storage.ErrEmbeddingDimMismatch)
	})

	err := c.ingestOne(context.Background(), &nostr.Event{ID: "evt-1", Kind: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrEmbeddingDimMismatch)
}

func TestPriorityKinds_IncludesNotesAndLongformContent(t *testing.T) {
	assert.Contains(t, PriorityKinds, 1)
	assert.Contains(t, PriorityKinds, 30023)
}
