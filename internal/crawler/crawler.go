// Package crawler implements the Adaptive Crawler (§4.C): a two-phase
// bootstrap-then-content crawl over the relay network, feeding the
// Ingestion Pipeline and the Relay Discovery/Pool Manager.
package crawler

import (
	"context"
	"fmt"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"golang.org/x/sync/errgroup"

	"github.com/beacon-search/beacon/internal/discovery"
	"github.com/beacon-search/beacon/internal/ops"
	"github.com/beacon-search/beacon/internal/relaypool"
	"github.com/beacon-search/beacon/internal/storage"
)

// DefaultBatchSize is B from §4.C: the page size requested per
// pagination round, and the end-of-history signal threshold.
const DefaultBatchSize = 500

// PriorityKinds is the configured content-crawl kind list.
var PriorityKinds = []int{1, 30023, 30024, 30402, 30040, 1063, 30311}

// IngestFunc hands one crawled event to the Ingestion Pipeline. Kept as
// a function type rather than an interface import to avoid a dependency
// cycle between crawler and ingestion.
type IngestFunc func(ctx context.Context, ev *nostr.Event) error

// Crawler orchestrates the bootstrap and content-crawl phases.
type Crawler struct {
	pool      *relaypool.Pool
	discovery *discovery.Discovery
	ingest    IngestFunc
	batchSize int
	logger    *ops.Logger
}

// New constructs a Crawler wired to a Pool Manager, Discovery tracker
// and the Ingestion Pipeline's entry point.
func New(pool *relaypool.Pool, disc *discovery.Discovery, ingest IngestFunc, logger *ops.Logger) *Crawler {
	return &Crawler{pool: pool, discovery: disc, ingest: ingest, batchSize: DefaultBatchSize, logger: logger}
}

// Bootstrap fetches every kind-10002 relay list event from the known
// relay set and feeds discovered relays to the Pool Manager. Failed
// capability discovery for a relay keeps it out of the query pool but
// never errors the bootstrap as a whole.
func (c *Crawler) Bootstrap(ctx context.Context, seedRelays []string) error {
	filter := nostr.Filter{Kinds: []int{10002}, Limit: c.batchSize}
	events, err := c.pool.Fetch(ctx, seedRelays, filter, c.batchSize)
	if err != nil {
		return fmt.Errorf("failed to bootstrap relay lists: %w", err)
	}

	for _, ev := range events {
		if err := c.ingestOne(ctx, ev); err != nil {
			return fmt.Errorf("aborting bootstrap: %w", err)
		}
		for _, url := range c.discovery.ExtractRelayURLs(ev) {
			if _, err := c.pool.Discover(ctx, url); err != nil {
				continue
			}
			c.pool.Seed(url)
		}
	}
	return nil
}

// ingestOne hands ev to the Ingestion Pipeline. Per §7's propagation
// policy, only a Fatal-class error aborts the calling task; every other
// ingestion error is logged and absorbed so one malformed event never
// poisons a batch.
func (c *Crawler) ingestOne(ctx context.Context, ev *nostr.Event) error {
	err := c.ingest(ctx, ev)
	if err == nil {
		return nil
	}
	if storage.IsFatal(err) {
		return fmt.Errorf("fatal error ingesting event %s: %w", ev.ID, err)
	}
	c.logger.LogIngestEvent(ev.ID, ev.Kind, "error", err.Error())
	return nil
}

// CrawlContent runs the content-crawl phase: one task per configured
// kind in parallel, each paginating backwards through history
// sequentially until a short batch signals end-of-history.
func (c *Crawler) CrawlContent(ctx context.Context, relays []string) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, kind := range PriorityKinds {
		kind := kind
		g.Go(func() error {
			return c.crawlKind(gctx, relays, kind, nil)
		})
	}
	return g.Wait()
}

// CrawlAuthors runs author-centric crawl for a pubkey set across the
// configured priority kinds, which increases yield per relay query
// versus an unfiltered content crawl.
func (c *Crawler) CrawlAuthors(ctx context.Context, relays []string, authors []string) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, kind := range PriorityKinds {
		kind := kind
		g.Go(func() error {
			return c.crawlKind(gctx, relays, kind, authors)
		})
	}
	return g.Wait()
}

func (c *Crawler) crawlKind(ctx context.Context, relays []string, kind int, authors []string) error {
	until := nostr.Timestamp(time.Now().Unix())

	for {
		filter := nostr.Filter{Kinds: []int{kind}, Until: &until, Limit: c.batchSize}
		if len(authors) > 0 {
			filter.Authors = authors
		}

		selected := c.pool.SelectRelays(len(relays))
		if len(selected) == 0 {
			selected = relays
		}

		events, err := c.pool.Fetch(ctx, selected, filter, c.batchSize)
		if err != nil {
			return fmt.Errorf("failed to crawl kind %d: %w", kind, err)
		}

		oldest := until
		for _, ev := range events {
			if err := c.ingestOne(ctx, ev); err != nil {
				return fmt.Errorf("aborting crawl of kind %d: %w", kind, err)
			}
			for _, url := range c.discovery.ExtractRelayURLs(ev) {
				if _, err := c.pool.Discover(ctx, url); err != nil {
					continue
				}
				c.pool.Seed(url)
			}
			if ev.CreatedAt < oldest {
				oldest = ev.CreatedAt
			}
		}

		if len(events) < c.batchSize {
			return nil
		}
		until = oldest - 1

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}
