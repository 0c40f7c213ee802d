// Package httpapi exposes the FRPEI and Query Engine HTTP contracts
// described in §6: POST /retrieve, /enrich, /rank, /explain, /feedback,
// GET /metrics, /status, GET /search, /facets.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/beacon-search/beacon/internal/frpei"
	"github.com/beacon-search/beacon/internal/ops"
	"github.com/beacon-search/beacon/internal/query"
	"github.com/beacon-search/beacon/internal/storage"
)

// Server bundles the dependencies the HTTP handlers read from.
type Server struct {
	store    *storage.Storage
	router   *frpei.Router
	embedder query.Embedder
	logger   *ops.Logger
}

// NewServer wires a Server over the already-constructed core components.
func NewServer(store *storage.Storage, router *frpei.Router, embedder query.Embedder, logger *ops.Logger) *Server {
	return &Server{store: store, router: router, embedder: embedder, logger: logger.WithComponent("httpapi")}
}

// NewRouter builds the chi mux exposing both HTTP contracts.
func NewRouter(s *Server) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.logger))

	r.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}).Handler)

	r.Post("/retrieve", s.handleRetrieve)
	r.Post("/enrich", s.handleEnrich)
	r.Post("/rank", s.handleRank)
	r.Post("/explain", s.handleExplain)
	r.Post("/feedback", s.handleFeedback)
	r.Get("/metrics", s.handleMetrics)
	r.Get("/status", s.handleStatus)

	r.Get("/search", s.handleSearch)
	r.Get("/facets", s.handleFacets)

	return r
}

func requestLogger(logger *ops.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
			next.ServeHTTP(ww, req)
			logger.Debug("http request", "method", req.Method, "path", req.URL.Path, "status", ww.Status())
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
