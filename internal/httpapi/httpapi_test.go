package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beacon-search/beacon/internal/config"
	"github.com/beacon-search/beacon/internal/frpei"
	"github.com/beacon-search/beacon/internal/model"
	"github.com/beacon-search/beacon/internal/ops"
	"github.com/beacon-search/beacon/internal/storage"
)

func newTestServer(t *testing.T) (*Server, *storage.Storage) {
	t.Helper()
	st, err := storage.New(context.Background(), &config.Database{
		URL: "file::memory:?cache=shared", MaxOpenConns: 1, EmbeddingDim: 4,
	})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	logger := ops.NewLoggerWithWriter(&config.Logging{Level: "error", Format: "text"}, io.Discard)

	registry := frpei.NewRegistry()
	registry.Register(frpei.NewLocalProvider(st, nil), 3, 2, time.Minute, 2*time.Second)

	router := frpei.NewRouter(st, registry, frpei.NewMemoryCache(), time.Minute, 2*time.Second, frpei.DefaultFeedbackDecayDays, logger)

	return NewServer(st, router, nil, logger), st
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleRetrieve_RequiresQuery(t *testing.T) {
	s, _ := newTestServer(t)
	router := NewRouter(s)

	rec := doRequest(t, router, http.MethodPost, "/retrieve", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRetrieve_ReturnsLocalCandidates(t *testing.T) {
	s, st := newTestServer(t)
	router := NewRouter(s)

	_, err := st.UpsertDocumentAndEvent(context.Background(), &model.Document{
		ID: "doc-1", Title: "Nostr relay guide", Content: "relay operations and uptime",
		DocumentType: "note", ContentType: model.ContentTypeText,
	}, &model.NostrEventRecord{EventID: "ev-1", PubKey: "pk", Kind: 1, EventCreatedAt: 1700000000})
	require.NoError(t, err)

	rec := doRequest(t, router, http.MethodPost, "/retrieve", map[string]any{
		"query": "relay", "providers": []string{"local"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp retrieveResponseBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Nostr relay guide", resp.Results[0].Title)
}

func TestHandleFeedback_CreatesRecordAndReturns201(t *testing.T) {
	s, _ := newTestServer(t)
	router := NewRouter(s)

	rec := doRequest(t, router, http.MethodPost, "/feedback", map[string]any{
		"candidateId": "cand-1", "requestId": "req-1", "action": "click",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["id"])
	assert.NotEmpty(t, body["createdAt"])
}

func TestHandleFeedback_ReturnedIDMatchesPersistedRecord(t *testing.T) {
	s, st := newTestServer(t)
	router := NewRouter(s)

	rec := doRequest(t, router, http.MethodPost, "/feedback", map[string]any{
		"candidateId": "cand-2", "requestId": "req-2", "action": "like",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	returnedID, _ := body["id"].(string)
	require.NotEmpty(t, returnedID)

	var persistedID string
	require.NoError(t, st.DB().Get(&persistedID, `SELECT id FROM frpei_feedback WHERE candidate_id = ?`, "cand-2"))
	assert.Equal(t, persistedID, returnedID)
}

func TestHandleRetrieve_HonorsEnableCacheFlag(t *testing.T) {
	s, st := newTestServer(t)
	router := NewRouter(s)

	_, err := st.UpsertDocumentAndEvent(context.Background(), &model.Document{
		ID: "doc-cache", Title: "Cached relay doc", Content: "relay relay relay",
		DocumentType: "note", ContentType: model.ContentTypeText,
	}, &model.NostrEventRecord{EventID: "ev-cache", PubKey: "pk", Kind: 1, EventCreatedAt: 1700000000})
	require.NoError(t, err)

	rec1 := doRequest(t, router, http.MethodPost, "/retrieve", map[string]any{
		"query": "relay", "providers": []string{"local"}, "enableCache": true,
	})
	require.Equal(t, http.StatusOK, rec1.Code)
	var resp1 retrieveResponseBody
	require.NoError(t, json.Unmarshal(rec1.Body.Bytes(), &resp1))
	assert.False(t, resp1.Metrics.Cached)

	rec2 := doRequest(t, router, http.MethodPost, "/retrieve", map[string]any{
		"query": "relay", "providers": []string{"local"}, "enableCache": true,
	})
	require.Equal(t, http.StatusOK, rec2.Code)
	var resp2 retrieveResponseBody
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &resp2))
	assert.True(t, resp2.Metrics.Cached, "second request with enableCache must hit the cache populated by the first")
}

func TestHandleSearch_RequiresQParam(t *testing.T) {
	s, _ := newTestServer(t)
	router := NewRouter(s)

	rec := doRequest(t, router, http.MethodGet, "/search", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSearch_DegradesToTextModeWithoutEmbedder(t *testing.T) {
	s, st := newTestServer(t)
	router := NewRouter(s)

	_, err := st.UpsertDocumentAndEvent(context.Background(), &model.Document{
		ID: "doc-2", Title: "Another relay doc", Content: "relay relay relay",
		DocumentType: "note", ContentType: model.ContentTypeText,
	}, &model.NostrEventRecord{EventID: "ev-2", PubKey: "pk", Kind: 1, EventCreatedAt: 1700000000})
	require.NoError(t, err)

	rec := doRequest(t, router, http.MethodGet, "/search?q=relay&mode=vector", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp searchResponseBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "text", resp.Mode)
	assert.Contains(t, resp.Warning, "degraded")
}

func TestHandleMetrics_ReturnsProviderSnapshot(t *testing.T) {
	s, _ := newTestServer(t)
	router := NewRouter(s)

	rec := doRequest(t, router, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var snap frpei.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Len(t, snap.Providers, 1)
	assert.Equal(t, "local", snap.Providers[0].Provider)
}
