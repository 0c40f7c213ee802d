package httpapi

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/beacon-search/beacon/internal/frpei"
	"github.com/beacon-search/beacon/internal/model"
)

type retrieveRequestBody struct {
	Query       string   `json:"query"`
	Limit       int      `json:"limit"`
	Providers   []string `json:"providers"`
	Types       []string `json:"types"`
	Mode        string   `json:"mode"`
	Expand      bool     `json:"expand"`
	Explain     bool     `json:"explain"`
	EnableCache bool     `json:"enableCache"`
	Dedupe      bool     `json:"dedupe"`
	TimeoutMs   int      `json:"timeoutMs"`
}

type retrieveResponseBody struct {
	RequestID string                `json:"requestId"`
	Query     string                `json:"query"`
	Results   []*model.Candidate    `json:"results"`
	Providers []string              `json:"providers"`
	Metrics   retrieveMetrics       `json:"metrics"`
	Errors    []model.ProviderError `json:"errors,omitempty"`
}

type retrieveMetrics struct {
	Cached      bool `json:"cached"`
	ResultCount int  `json:"resultCount"`
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var body retrieveRequestBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if body.Query == "" {
		writeError(w, http.StatusBadRequest, errRequired("query"))
		return
	}

	req := frpei.Request{
		RequestID:   uuid.NewString(),
		Query:       body.Query,
		Limit:       body.Limit,
		Mode:        body.Mode,
		Providers:   body.Providers,
		Types:       body.Types,
		Expand:      body.Expand,
		TimeoutMs:   body.TimeoutMs,
		EnableCache: body.EnableCache,
		Dedupe:      body.Dedupe,
	}

	resp, err := s.router.Retrieve(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, retrieveResponseBody{
		RequestID: resp.RequestID, Query: resp.Query, Results: resp.Candidates,
		Providers: resp.Providers, Errors: resp.Errors,
		Metrics: retrieveMetrics{Cached: resp.Cached, ResultCount: len(resp.Candidates)},
	})
}

type enrichRequestBody struct {
	Candidates []*model.Candidate `json:"candidates"`
}

func (s *Server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	var body enrichRequestBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	for _, c := range body.Candidates {
		if err := frpei.Canonicalize(r.Context(), s.store, c); err != nil {
			s.logger.Warn("enrich canonicalize failed", "error", err)
			continue
		}
		if err := frpei.Enrich(r.Context(), s.store, c); err != nil {
			s.logger.Warn("enrich failed", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"enriched": body.Candidates})
}

type rankRequestBody struct {
	Query      string              `json:"query"`
	Candidates []*model.Candidate  `json:"candidates"`
}

func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	var body rankRequestBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := frpei.Rank(r.Context(), s.store, body.Candidates, frpei.DefaultFeedbackDecayDays); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	for _, c := range body.Candidates {
		frpei.Explain(c)
	}

	writeJSON(w, http.StatusOK, map[string]any{"ranked": body.Candidates})
}

type explainRequestBody struct {
	Candidate *model.Candidate `json:"candidate"`
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	var body explainRequestBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if body.Candidate == nil {
		writeError(w, http.StatusBadRequest, errRequired("candidate"))
		return
	}

	if body.Candidate.CandidateID != "" {
		if explanation, err := s.router.Explain(r.Context(), body.Candidate.CandidateID); err == nil && explanation != nil {
			writeJSON(w, http.StatusOK, map[string]any{"candidateId": body.Candidate.CandidateID, "explanation": explanation})
			return
		}
	}

	frpei.Explain(body.Candidate)
	writeJSON(w, http.StatusOK, map[string]any{"candidateId": body.Candidate.CandidateID, "explanation": body.Candidate.Explanation})
}

type feedbackRequestBody struct {
	CandidateID string         `json:"candidateId"`
	RequestID   string         `json:"requestId"`
	Provider    string         `json:"provider"`
	Feedback    string         `json:"feedback"`
	Action      string         `json:"action"`
	Rating      int            `json:"rating"`
	Notes       string         `json:"notes"`
	Metadata    map[string]any `json:"metadata"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var body feedbackRequestBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	action := body.Feedback
	if action == "" {
		action = body.Action
	}

	saved, err := s.router.Feedback(r.Context(), frpei.FeedbackInput{
		RequestID: body.RequestID, CandidateID: body.CandidateID, Provider: body.Provider,
		Feedback: action, Rating: body.Rating, Notes: body.Notes, Metadata: body.Metadata,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"id": saved.ID, "createdAt": saved.CreatedAt})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.router.Snapshot())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"breakers": s.router.Snapshot().Providers,
	})
}

func errRequired(field string) error {
	return &missingFieldError{field: field}
}

type missingFieldError struct{ field string }

func (e *missingFieldError) Error() string { return e.field + " is required" }
