package ops

import (
	"context"
	"fmt"
	"time"

	"github.com/beacon-search/beacon/internal/storage"
)

// Purger runs admin-invoked document deletion. Unlike the teacher's
// retention engine, nothing here runs on a schedule: every call is a
// deliberate operator action, matching the data model's "documents are
// deleted only via explicit admin command" rule.
type Purger struct {
	storage *storage.Storage
	logger  *Logger
}

// NewPurger creates a purger bound to a store.
func NewPurger(store *storage.Storage, logger *Logger) *Purger {
	return &Purger{storage: store, logger: logger.WithComponent("purge")}
}

// PurgeOlderThan deletes documents created before cutoff.
func (p *Purger) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return p.run(ctx, fmt.Sprintf("older-than:%s", cutoff.Format(time.RFC3339)),
		storage.PurgeCriteria{OlderThan: cutoff})
}

// PurgeByDocumentType deletes every document of the given type.
func (p *Purger) PurgeByDocumentType(ctx context.Context, documentType string) (int64, error) {
	return p.run(ctx, "document-type:"+documentType, storage.PurgeCriteria{DocumentType: documentType})
}

// PurgeBySource deletes every document ingested from the given source.
func (p *Purger) PurgeBySource(ctx context.Context, sourceID string) (int64, error) {
	return p.run(ctx, "source:"+sourceID, storage.PurgeCriteria{SourceID: sourceID})
}

func (p *Purger) run(ctx context.Context, reason string, criteria storage.PurgeCriteria) (int64, error) {
	start := time.Now()
	deleted, err := p.storage.PurgeDocuments(ctx, criteria)
	p.logger.LogPurge(reason, deleted, time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("purge failed: %w", err)
	}
	return deleted, nil
}
