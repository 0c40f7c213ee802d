package storage_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beacon-search/beacon/internal/config"
	"github.com/beacon-search/beacon/internal/model"
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

func TestUpsertDocumentAndEvent_InsertsDocumentAndEvent(t *testing.T) {
	st := newTestStorage(t)
	ctx := context.Background()

	id1, err := st.UpsertDocumentAndEvent(ctx, &model.Document{
		ID: "doc-1", Title: "Original title", Content: "original content",
		DocumentType: "note", ContentType: model.ContentTypeText,
	}, &model.NostrEventRecord{EventID: "ev-1", PubKey: "pk1", Kind: 1, EventCreatedAt: 100})
	require.NoError(t, err)

	exists, err := st.EventExists(ctx, "ev-1")
	require.NoError(t, err)
	assert.True(t, exists)

	doc, err := st.GetDocument(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, "Original title", doc.Title)
}

func TestUpsertDocumentAndEvent_ReingestSameSourceAndExternalIDUpdatesInPlace(t *testing.T) {
	st := newTestStorage(t)
	ctx := context.Background()

	id1, err := st.UpsertDocumentAndEvent(ctx, &model.Document{
		ExternalID: "ext-1", SourceID: "nostr", Title: "first pass", Content: "original content",
		DocumentType: "note", ContentType: model.ContentTypeText,
	}, &model.NostrEventRecord{EventID: "ev-reingest", PubKey: "pk1", Kind: 1, EventCreatedAt: 100})
	require.NoError(t, err)

	id2, err := st.UpsertDocumentAndEvent(ctx, &model.Document{
		ExternalID: "ext-1", SourceID: "nostr", Title: "second pass", Content: "updated content",
		DocumentType: "note", ContentType: model.ContentTypeText,
	}, &model.NostrEventRecord{EventID: "ev-reingest", PubKey: "pk1", Kind: 1, EventCreatedAt: 100})
	require.NoError(t, err)

	assert.Equal(t, id1, id2, "re-ingesting the same (source_id, external_id) must update, not insert")

	var count int
	require.NoError(t, st.DB().Get(&count, `SELECT COUNT(1) FROM documents WHERE source_id = ? AND external_id = ?`, "nostr", "ext-1"))
	assert.Equal(t, 1, count)

	doc, err := st.GetDocument(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, "second pass", doc.Title)
}

func TestUpsertDocumentAndEvent_RejectsMismatchedEmbeddingDimension(t *testing.T) {
	st := newTestStorage(t)
	_, err := st.UpsertDocumentAndEvent(context.Background(), &model.Document{
		ID: "doc-bad", Title: "t", Content: "c", DocumentType: "note",
		ContentType: model.ContentTypeText, Embedding: []float32{0.1, 0.2},
	}, &model.NostrEventRecord{EventID: "ev-bad", PubKey: "pk", Kind: 1, EventCreatedAt: 1})
	assert.ErrorIs(t, err, storage.ErrEmbeddingDimMismatch)
}

func TestDeleteDocument_RemovesRow(t *testing.T) {
	st := newTestStorage(t)
	ctx := context.Background()

	id, err := st.UpsertDocumentAndEvent(ctx, &model.Document{
		ID: "doc-del", Title: "t", Content: "c", DocumentType: "note", ContentType: model.ContentTypeText,
	}, &model.NostrEventRecord{EventID: "ev-del", PubKey: "pk", Kind: 1, EventCreatedAt: 1})
	require.NoError(t, err)

	require.NoError(t, st.DeleteDocument(ctx, id))
	doc, err := st.GetDocument(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestSearchVector_RanksByCosineSimilarityDescending(t *testing.T) {
	st := newTestStorage(t)
	ctx := context.Background()

	seed := func(id string, emb []float32) {
		_, err := st.UpsertDocumentAndEvent(ctx, &model.Document{
			ID: id, Title: id, Content: "content", DocumentType: "note",
			ContentType: model.ContentTypeText, Embedding: emb,
		}, &model.NostrEventRecord{EventID: "ev-" + id, PubKey: "pk", Kind: 1, EventCreatedAt: 1})
		require.NoError(t, err)
	}
	seed("close", []float32{1, 0, 0})
	seed("far", []float32{0, 1, 0})

	results, err := st.SearchVector(ctx, []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "close", results[0].Document.ID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestSearchText_ScoresByTermHitRatio(t *testing.T) {
	st := newTestStorage(t)
	ctx := context.Background()

	_, err := st.UpsertDocumentAndEvent(ctx, &model.Document{
		ID: "doc-full", Title: "nostr relay guide", Content: "operating a relay",
		DocumentType: "note", ContentType: model.ContentTypeText,
	}, &model.NostrEventRecord{EventID: "ev-full", PubKey: "pk", Kind: 1, EventCreatedAt: 1})
	require.NoError(t, err)

	results, err := st.SearchText(ctx, []string{"nostr", "relay"}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
}

func TestFilterDocumentIDs_FiltersByContentType(t *testing.T) {
	st := newTestStorage(t)
	ctx := context.Background()

	_, err := st.UpsertDocumentAndEvent(ctx, &model.Document{
		ID: "doc-text", Title: "t", Content: "c", DocumentType: "note", ContentType: model.ContentTypeText,
	}, &model.NostrEventRecord{EventID: "ev-text", PubKey: "pk", Kind: 1, EventCreatedAt: 1})
	require.NoError(t, err)

	allowed, err := st.FilterDocumentIDs(ctx, storage.DocumentFilter{ContentType: "text"})
	require.NoError(t, err)
	assert.Contains(t, allowed, "doc-text")

	none, err := st.FilterDocumentIDs(ctx, storage.DocumentFilter{ContentType: "audio"})
	require.NoError(t, err)
	assert.NotContains(t, none, "doc-text")
}

func TestTagFacets_CountsPerTag(t *testing.T) {
	st := newTestStorage(t)
	ctx := context.Background()

	_, err := st.UpsertDocumentAndEvent(ctx, &model.Document{
		ID: "doc-tagged", Title: "t", Content: "c", DocumentType: "note", ContentType: model.ContentTypeText,
	}, &model.NostrEventRecord{EventID: "ev-tagged", PubKey: "pk", Kind: 1, EventCreatedAt: 1})
	require.NoError(t, err)
	require.NoError(t, st.ReplaceFacetRows(ctx, "doc-tagged", []string{"nostr", "nostr", "relay"}, nil, nil))

	facets, err := st.TagFacets(ctx, []string{"doc-tagged"})
	require.NoError(t, err)
	require.Len(t, facets, 2)
	assert.Equal(t, "nostr", facets[0].Value)
	assert.Equal(t, 2, facets[0].Count)
}

func TestSaveConcept_FindConceptByTermMatchesPreferredTermOrAlias(t *testing.T) {
	st := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, st.SaveConcept(ctx, &model.Concept{
		PreferredTerm: "nostr",
		Aliases:       []model.ConceptAlias{{Alias: "decentralized social", Type: model.AliasSynonym, Weight: 0.8}},
	}))

	byTerm, err := st.FindConceptByTerm(ctx, "nostr")
	require.NoError(t, err)
	require.NotNil(t, byTerm)

	byAlias, err := st.FindConceptByTerm(ctx, "decentralized social")
	require.NoError(t, err)
	require.NotNil(t, byAlias)
	assert.Equal(t, byTerm.ID, byAlias.ID)

	missing, err := st.FindConceptByTerm(ctx, "unrelated")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSaveFeedback_FeedbackBoostDecaysLinearlyOverWindow(t *testing.T) {
	st := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, st.SaveFeedback(ctx, &model.Feedback{
		ID: "fb-1", CandidateID: "cand-1", Sentiment: model.FeedbackPositive,
	}))

	boost, err := st.FeedbackBoost(ctx, "cand-1", 14, 0.05)
	require.NoError(t, err)
	assert.Greater(t, boost, 0.0)

	noFeedback, err := st.FeedbackBoost(ctx, "cand-missing", 14, 0.05)
	require.NoError(t, err)
	assert.Equal(t, 0.0, noFeedback)
}

func TestIsFatal_ClassifiesEmbeddingDimMismatchButNotOrdinaryErrors(t *testing.T) {
	assert.True(t, storage.IsFatal(fmt.Errorf("wrapped: %w", storage.ErrEmbeddingDimMismatch)))
	assert.True(t, storage.IsFatal(sql.ErrConnDone))
	assert.False(t, storage.IsFatal(sql.ErrNoRows))
	assert.False(t, storage.IsFatal(nil))
}
