package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/beacon-search/beacon/internal/query"
)

type searchResultBody struct {
	DocumentID string  `json:"documentId"`
	Score      float64 `json:"score"`
}

type searchResponseBody struct {
	Query   string             `json:"query"`
	Mode    string             `json:"mode"`
	Results []searchResultBody `json:"results"`
	Warning string             `json:"warning,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	text := q.Get("q")
	if text == "" {
		writeError(w, http.StatusBadRequest, errRequired("q"))
		return
	}

	mode := query.Mode(q.Get("mode"))
	if mode == "" {
		mode = query.ModeHybrid
	}

	limit, offset := 20, 0
	if v := q.Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if v := q.Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}

	filters := query.Filters{
		ContentType:  q.Get("contentType"),
		DocumentType: q.Get("documentType"),
		Author:       q.Get("author"),
	}

	rewritten, err := query.Rewrite(r.Context(), s.store, text, query.DefaultOptions)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	embedder := s.embedder
	warning := ""
	if mode != query.ModeText && embedder == nil {
		mode = query.ModeText
		warning = "embedding unavailable, degraded to text mode"
	}

	results, err := query.Retrieve(r.Context(), s.store, embedder, rewritten, mode, filters, query.Page{Offset: offset, Limit: limit})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	body := searchResponseBody{Query: text, Mode: string(mode), Warning: warning, Results: make([]searchResultBody, 0, len(results))}
	for _, res := range results {
		body.Results = append(body.Results, searchResultBody{DocumentID: res.DocumentID, Score: res.Score})
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleFacets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	text := q.Get("q")
	ids := q.Get("documentIds")

	var documentIDs []string
	if ids != "" {
		documentIDs = strings.Split(ids, ",")
	} else if text != "" {
		rewritten, err := query.Rewrite(r.Context(), s.store, text, query.DefaultOptions)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		results, err := query.Retrieve(r.Context(), s.store, s.embedder, rewritten, query.ModeHybrid, query.Filters{}, query.Page{Limit: 200})
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		for _, res := range results {
			documentIDs = append(documentIDs, res.DocumentID)
		}
	}

	facets, err := query.ComputeFacets(r.Context(), s.store, documentIDs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, facets)
}
