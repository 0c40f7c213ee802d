// Package ingestion implements the Ingestion Pipeline (§4.D): classify,
// extract, spam-filter, deduplicate and index every crawled event.
package ingestion

import (
	"context"
	"fmt"

	"github.com/nbd-wtf/go-nostr"

	"github.com/beacon-search/beacon/internal/model"
	"github.com/beacon-search/beacon/internal/ops"
	"github.com/beacon-search/beacon/internal/storage"
)

// Pipeline wires the four ingestion stages together against a store.
type Pipeline struct {
	store      *storage.Storage
	thresholds SpamThresholds
	rateTrack  *PostRateTracker
	logger     *ops.Logger
}

// New constructs a Pipeline with the default spam thresholds; override
// them via WithThresholds (no environment variable sets them).
func New(store *storage.Storage, logger *ops.Logger) *Pipeline {
	return &Pipeline{
		store:      store,
		thresholds: DefaultSpamThresholds,
		rateTrack:  NewPostRateTracker(),
		logger:     logger,
	}
}

// WithThresholds overrides the default spam thresholds.
func (p *Pipeline) WithThresholds(t SpamThresholds) *Pipeline {
	p.thresholds = t
	return p
}

// Ingest runs one event through classify, extract, spam-filter,
// deduplicate-and-index. Dropped events (low priority, ephemeral,
// spam) return nil with no storage write, matching "dropped silently".
func (p *Pipeline) Ingest(ctx context.Context, ev *nostr.Event) error {
	exists, err := p.store.EventExists(ctx, ev.ID)
	if err != nil {
		return fmt.Errorf("failed to check event existence: %w", err)
	}

	classification := Classify(ev.Kind)
	if classification.Priority < 3 {
		p.logger.LogIngestEvent(ev.ID, ev.Kind, "dropped", "priority below threshold")
		return nil
	}

	extracted := Extract(ev, classification)

	postCount := p.rateTrack.Record(ev.PubKey)
	if spam, reason := IsSpam(extracted.Body, p.thresholds, postCount); spam {
		p.logger.LogIngestEvent(ev.ID, ev.Kind, "dropped", reason)
		return nil
	}

	doc := &model.Document{
		ExternalID:   ev.ID,
		SourceID:     "nostr",
		Title:        extracted.Title,
		Content:      extracted.Body,
		DocumentType: classification.Category,
		ContentType:  model.ContentTypeText,
		Attributes:   metadataToAttributes(extracted.Metadata),
	}
	eventRecord := &model.NostrEventRecord{
		EventID:        ev.ID,
		PubKey:         ev.PubKey,
		Kind:           ev.Kind,
		EventCreatedAt: int64(ev.CreatedAt),
		Tags:           tagsToSlices(ev.Tags),
		QualityScore:   extracted.QualityScore,
	}

	docID, err := p.store.UpsertDocumentAndEvent(ctx, doc, eventRecord)
	if err != nil {
		return fmt.Errorf("failed to index event %s: %w", ev.ID, err)
	}

	if err := p.store.ReplaceFacetRows(ctx, docID, extracted.Tags, extracted.Entities, extracted.Metadata); err != nil {
		return fmt.Errorf("failed to write facet rows for %s: %w", ev.ID, err)
	}

	outcome := "indexed"
	if exists {
		outcome = "reindexed"
	}
	p.logger.LogIngestEvent(ev.ID, ev.Kind, outcome, "")
	return nil
}

func metadataToAttributes(metadata map[string]string) map[string]any {
	out := make(map[string]any, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}

func tagsToSlices(tags nostr.Tags) [][]string {
	out := make([][]string, len(tags))
	for i, t := range tags {
		out[i] = []string(t)
	}
	return out
}
