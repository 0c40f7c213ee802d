package ingestion_test

import (
	"context"
	"io"
	"testing"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beacon-search/beacon/internal/config"
	"github.com/beacon-search/beacon/internal/ingestion"
	"github.com/beacon-search/beacon/internal/ops"
	"github.com/beacon-search/beacon/internal/storage"
)

func newTestStorage(t *testing.T) *storage.Storage {
	t.Helper()
	st, err := storage.New(context.Background(), &config.Database{
		URL: "file::memory:?cache=shared", MaxOpenConns: 1, EmbeddingDim: 3,
	})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func testPipeline(st *storage.Storage) *ingestion.Pipeline {
	logger := ops.NewLoggerWithWriter(&config.Logging{Level: "error", Format: "text"}, io.Discard)
	return ingestion.New(st, logger)
}

func documentCount(t *testing.T, st *storage.Storage) int {
	t.Helper()
	var n int
	require.NoError(t, st.DB().Get(&n, `SELECT COUNT(1) FROM documents`))
	return n
}

func noteEvent() *nostr.Event {
	return &nostr.Event{
		ID: "evt-1", PubKey: "pk-1", Kind: 1, CreatedAt: nostr.Timestamp(1000),
		Content: "hello from a real note with enough words to pass spam filtering",
	}
}

func TestIngest_ReingestingSameEventUpdatesRatherThanDuplicates(t *testing.T) {
	st := newTestStorage(t)
	p := testPipeline(st)
	ctx := context.Background()
	ev := noteEvent()

	require.NoError(t, p.Ingest(ctx, ev))
	assert.Equal(t, 1, documentCount(t, st))

	require.NoError(t, p.Ingest(ctx, ev))
	assert.Equal(t, 1, documentCount(t, st), "re-ingesting the same event must not create a second Document")
}

func TestIngest_DropsLowPriorityKindWithoutStoring(t *testing.T) {
	st := newTestStorage(t)
	p := testPipeline(st)
	ctx := context.Background()

	ev := &nostr.Event{ID: "evt-ephemeral", PubKey: "pk-1", Kind: 20001, CreatedAt: nostr.Timestamp(1000), Content: "+"}
	require.NoError(t, p.Ingest(ctx, ev))
	assert.Equal(t, 0, documentCount(t, st))
}

func TestIngest_StoresDocumentKeyedByNostrExternalID(t *testing.T) {
	st := newTestStorage(t)
	p := testPipeline(st)
	ctx := context.Background()
	ev := noteEvent()

	require.NoError(t, p.Ingest(ctx, ev))

	var doc struct {
		ExternalID string `db:"external_id"`
		SourceID   string `db:"source_id"`
	}
	require.NoError(t, st.DB().Get(&doc, `SELECT external_id, source_id FROM documents LIMIT 1`))
	assert.Equal(t, ev.ID, doc.ExternalID)
	assert.Equal(t, "nostr", doc.SourceID)
}
