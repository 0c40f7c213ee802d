package frpei

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beacon-search/beacon/internal/model"
)

func TestLocalProvider_SearchReturnsCandidatesFromStore(t *testing.T) {
	st := newTestStorage(t)
	ctx := context.Background()

	_, err := st.UpsertDocumentAndEvent(ctx, &model.Document{
		ID: "doc-1", Title: "Relay health guide", Content: "how to keep a relay healthy and fast",
		DocumentType: "note", ContentType: model.ContentTypeText,
	}, &model.NostrEventRecord{EventID: "ev-1", PubKey: "pk", Kind: 1, EventCreatedAt: 1700000000})
	require.NoError(t, err)

	p := NewLocalProvider(st, nil)
	assert.Equal(t, "local", p.Name())
	assert.Equal(t, model.TrustHigh, p.TrustTier())

	candidates, err := p.Search(ctx, "relay", 10)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "Relay health guide", candidates[0].Title)
	assert.Equal(t, "local", candidates[0].Source.Provider)
	assert.True(t, candidates[0].Signals.HasFreshness)
}

func TestLocalProvider_SearchReturnsEmptyForNoMatches(t *testing.T) {
	st := newTestStorage(t)
	p := NewLocalProvider(st, nil)

	candidates, err := p.Search(context.Background(), "nonexistentterm", 10)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestSnippet_TruncatesLongContent(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	out := snippet(string(long), 240)
	assert.Len(t, out, 243)
	assert.Equal(t, "...", out[240:])
}

func TestSnippet_LeavesShortContentUnchanged(t *testing.T) {
	assert.Equal(t, "short", snippet("short", 240))
}
