package ops

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beacon-search/beacon/internal/config"
	"github.com/beacon-search/beacon/internal/model"
	"github.com/beacon-search/beacon/internal/storage"
)

func newPurgeTestStorage(t *testing.T) *storage.Storage {
	t.Helper()
	st, err := storage.New(context.Background(), &config.Database{
		URL: "file::memory:?cache=shared", MaxOpenConns: 1, EmbeddingDim: 3,
	})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func seedPurgeDoc(t *testing.T, st *storage.Storage, id, documentType, sourceID string) {
	t.Helper()
	_, err := st.UpsertDocumentAndEvent(context.Background(), &model.Document{
		ID: id, Title: id, Content: "content", DocumentType: documentType,
		ContentType: model.ContentTypeText, SourceID: sourceID, ExternalID: id,
	}, &model.NostrEventRecord{EventID: "ev-" + id, PubKey: "pk", Kind: 1, EventCreatedAt: 1})
	require.NoError(t, err)
}

func TestPurger_PurgeByDocumentType_RemovesOnlyMatchingDocuments(t *testing.T) {
	st := newPurgeTestStorage(t)
	ctx := context.Background()
	seedPurgeDoc(t, st, "doc-note", "note", "relay-a")
	seedPurgeDoc(t, st, "doc-article", "article", "relay-a")

	p := NewPurger(st, testLogger(t))
	deleted, err := p.PurgeByDocumentType(ctx, "note")
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	doc, err := st.GetDocument(ctx, "doc-note")
	require.NoError(t, err)
	assert.Nil(t, doc)

	kept, err := st.GetDocument(ctx, "doc-article")
	require.NoError(t, err)
	assert.NotNil(t, kept)
}

func TestPurger_PurgeBySource_RemovesOnlyMatchingDocuments(t *testing.T) {
	st := newPurgeTestStorage(t)
	ctx := context.Background()
	seedPurgeDoc(t, st, "doc-a", "note", "relay-a")
	seedPurgeDoc(t, st, "doc-b", "note", "relay-b")

	p := NewPurger(st, testLogger(t))
	deleted, err := p.PurgeBySource(ctx, "relay-a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	kept, err := st.GetDocument(ctx, "doc-b")
	require.NoError(t, err)
	assert.NotNil(t, kept)
}

func TestPurger_PurgeOlderThan_KeepsDocumentsNewerThanCutoff(t *testing.T) {
	st := newPurgeTestStorage(t)
	ctx := context.Background()
	seedPurgeDoc(t, st, "doc-fresh", "note", "relay-a")

	p := NewPurger(st, testLogger(t))
	deleted, err := p.PurgeOlderThan(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)

	kept, err := st.GetDocument(ctx, "doc-fresh")
	require.NoError(t, err)
	assert.NotNil(t, kept)

	deleted, err = p.PurgeOlderThan(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}
