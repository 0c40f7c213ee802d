package frpei

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/beacon-search/beacon/internal/model"
	"github.com/beacon-search/beacon/internal/ops"
	"github.com/beacon-search/beacon/internal/storage"
)

// Request is a single Retrieve call, per §6's POST /retrieve contract.
type Request struct {
	RequestID   string
	Query       string
	Limit       int
	Mode        string
	Providers   []string
	Types       []string
	Expand      bool
	TimeoutMs   int
	EnableCache bool
	Dedupe      bool
}

// Response is the Retrieve result: ranked candidates plus any provider
// failures, both always reported.
type Response struct {
	RequestID string
	Query     string
	Providers []string
	Errors    []model.ProviderError
	Cached    bool
	Candidates []*model.Candidate
}

// Router orchestrates Retrieve/Enrich/Rank/Explain/Feedback across the
// registered providers against the shared document store.
type Router struct {
	store    *storage.Storage
	registry *Registry
	cache    Cache
	cacheTTL time.Duration
	decayDays int
	defaultTimeout time.Duration
	logger   *ops.Logger
}

// NewRouter wires the federated router.
func NewRouter(store *storage.Storage, registry *Registry, cache Cache, cacheTTL, defaultTimeout time.Duration, feedbackDecayDays int, logger *ops.Logger) *Router {
	return &Router{
		store: store, registry: registry, cache: cache,
		cacheTTL: cacheTTL, defaultTimeout: defaultTimeout,
		decayDays: feedbackDecayDays, logger: logger,
	}
}

// Retrieve implements §4.F steps 1-10: resolve providers, check cache,
// fan out, collect, fall back to local-only on a total miss, dedupe,
// canonicalize, enrich, rank and explain.
func (r *Router) Retrieve(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	if req.Mode == "" {
		req.Mode = "hybrid"
	}
	if req.Limit <= 0 {
		req.Limit = 20
	}

	providers := req.Providers
	if len(providers) == 0 {
		providers = r.registry.Names()
	}

	cacheKey := CacheKey(req.Query, req.Limit, req.Mode, providers, req.Types, req.Expand)
	if req.EnableCache {
		if cached, ok := r.cache.Get(ctx, cacheKey); ok {
			return &Response{RequestID: req.RequestID, Query: req.Query, Providers: providers, Candidates: cached, Cached: true}, nil
		}
	}

	if err := r.store.SaveRequest(ctx, req.RequestID, req.Query, providers); err != nil {
		r.logger.Error("failed to persist frpei request", "error", err)
	}

	candidates, providerErrs := r.fanOut(ctx, providers, req)

	if len(candidates) == 0 && !containsStr(providers, "local") {
		localCandidates, localErrs := r.fanOut(ctx, []string{"local"}, req)
		candidates = localCandidates
		providerErrs = append(providerErrs, localErrs...)
	}

	if req.Dedupe {
		candidates = dedupe(candidates)
	}

	for _, c := range candidates {
		if err := Canonicalize(ctx, r.store, c); err != nil {
			r.logger.Warn("canonicalize failed", "candidateId", c.CandidateID, "error", err)
			continue
		}
		if err := Enrich(ctx, r.store, c); err != nil {
			r.logger.Warn("enrich failed", "candidateId", c.CandidateID, "error", err)
		}
	}

	if err := Rank(ctx, r.store, candidates, r.decayDays); err != nil {
		return nil, fmt.Errorf("failed to rank candidates: %w", err)
	}
	for _, c := range candidates {
		Explain(c)
	}

	if len(candidates) > req.Limit {
		candidates = candidates[:req.Limit]
	}

	if err := r.store.SaveCandidates(ctx, req.RequestID, candidates); err != nil {
		r.logger.Error("failed to persist frpei candidates", "error", err)
	}

	if req.EnableCache {
		r.cache.Set(ctx, cacheKey, candidates, r.cacheTTL)
	}
	r.logger.LogRetrieve(req.RequestID, req.Query, providers, len(candidates), time.Since(start))

	return &Response{
		RequestID: req.RequestID, Query: req.Query, Providers: providers,
		Errors: providerErrs, Candidates: candidates,
	}, nil
}

func (r *Router) fanOut(ctx context.Context, providers []string, req Request) ([]*model.Candidate, []model.ProviderError) {
	var (
		mu         sync.Mutex
		candidates []*model.Candidate
		errs       []model.ProviderError
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range providers {
		name := name
		provider, ok := r.registry.providers[name]
		if !ok {
			continue
		}
		breaker := r.registry.breakers[name]

		g.Go(func() error {
			if err := breaker.Allow(); err != nil {
				mu.Lock()
				errs = append(errs, model.ProviderError{Provider: name, Error: err.Error()})
				mu.Unlock()
				return nil
			}

			timeout := r.registry.timeouts[name]
			if req.TimeoutMs > 0 && time.Duration(req.TimeoutMs)*time.Millisecond < timeout {
				timeout = time.Duration(req.TimeoutMs) * time.Millisecond
			}
			callCtx, cancel := context.WithTimeout(gctx, timeout)
			defer cancel()

			start := time.Now()
			results, err := provider.Search(callCtx, req.Query, req.Limit)
			latency := time.Since(start)

			if err != nil {
				timedOut := callCtx.Err() == context.DeadlineExceeded
				breaker.RecordFailure(err, timedOut)
				mu.Lock()
				errs = append(errs, model.ProviderError{Provider: name, Error: err.Error(), DurationMs: latency.Milliseconds(), Timeout: timedOut})
				mu.Unlock()
				return nil
			}
			breaker.RecordSuccess(latency)

			mu.Lock()
			candidates = append(candidates, results...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return candidates, errs
}

func containsStr(list []string, target string) bool {
	for _, s := range list {
		if s == target {
			return true
		}
	}
	return false
}

// dedupe collapses candidates sharing a normalized_url/url/lowercase
// title key, keeping the highest-signal item per §4.F step 6.
func dedupe(candidates []*model.Candidate) []*model.Candidate {
	best := map[string]*model.Candidate{}
	order := make([]string, 0, len(candidates))

	for _, c := range candidates {
		key := dedupeKey(c)
		existing, ok := best[key]
		if !ok {
			best[key] = c
			order = append(order, key)
			continue
		}
		if c.Signals.Score > existing.Signals.Score {
			best[key] = c
		}
	}

	out := make([]*model.Candidate, 0, len(order))
	for _, key := range order {
		out = append(out, best[key])
	}
	return out
}

func dedupeKey(c *model.Candidate) string {
	if c.NormalizedURL != "" {
		return c.NormalizedURL
	}
	if c.URL != "" {
		return strings.ToLower(c.URL)
	}
	return strings.ToLower(c.Title)
}
