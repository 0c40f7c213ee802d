// Package frpei implements the Federated Router (§4.F): Retrieve,
// Enrich, Rank, Explain and Ingest/Feedback across local and remote
// search providers.
package frpei

import (
	"context"
	"time"

	"github.com/beacon-search/beacon/internal/model"
)

// Provider is a single federated search source.
type Provider interface {
	Name() string
	TrustTier() model.TrustTier
	Search(ctx context.Context, query string, limit int) ([]*model.Candidate, error)
}

// providerWeight is the ranking prior per §4.F step 9.
func providerWeight(provider string) float64 {
	switch provider {
	case "local":
		return 0.95
	case "media":
		return 0.85
	case "web":
		return 0.6
	default:
		return 0.5
	}
}

// Registry holds configured providers and their per-provider circuit
// breakers and timeouts.
type Registry struct {
	providers map[string]Provider
	breakers  map[string]*CircuitBreaker
	timeouts  map[string]time.Duration
}

// NewRegistry builds an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: map[string]Provider{},
		breakers:  map[string]*CircuitBreaker{},
		timeouts:  map[string]time.Duration{},
	}
}

// Register adds a provider with its own circuit breaker and timeout.
func (r *Registry) Register(p Provider, failureThreshold, successThreshold int, resetTimeout, timeout time.Duration) {
	r.providers[p.Name()] = p
	r.breakers[p.Name()] = NewCircuitBreaker(failureThreshold, successThreshold, resetTimeout)
	r.timeouts[p.Name()] = timeout
}

// Names returns the default provider set [local, web, media] filtered
// to those actually registered.
func (r *Registry) Names() []string {
	var names []string
	for _, candidate := range []string{"local", "web", "media"} {
		if _, ok := r.providers[candidate]; ok {
			names = append(names, candidate)
		}
	}
	return names
}
