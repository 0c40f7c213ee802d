package frpei

import (
	"context"
	"fmt"

	"github.com/beacon-search/beacon/internal/model"
	"github.com/beacon-search/beacon/internal/query"
	"github.com/beacon-search/beacon/internal/storage"
)

// LocalProvider serves federated queries against the same document
// store the Query Engine reads, per §2's "F serves federated queries
// referencing the same document store as the local provider".
type LocalProvider struct {
	store    *storage.Storage
	embedder query.Embedder
}

// NewLocalProvider wraps the store as an in-process FRPEI provider.
func NewLocalProvider(store *storage.Storage, embedder query.Embedder) *LocalProvider {
	return &LocalProvider{store: store, embedder: embedder}
}

func (p *LocalProvider) Name() string               { return "local" }
func (p *LocalProvider) TrustTier() model.TrustTier  { return model.TrustHigh }

func (p *LocalProvider) Search(ctx context.Context, q string, limit int) ([]*model.Candidate, error) {
	rewritten, err := query.Rewrite(ctx, p.store, q, query.DefaultOptions)
	if err != nil {
		return nil, fmt.Errorf("local provider failed to rewrite query: %w", err)
	}

	results, err := query.Retrieve(ctx, p.store, p.embedder, rewritten, query.ModeHybrid, query.Filters{}, query.Page{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("local provider failed to retrieve: %w", err)
	}

	candidates := make([]*model.Candidate, 0, len(results))
	for i, r := range results {
		doc, err := p.store.GetDocument(ctx, r.DocumentID)
		if err != nil || doc == nil {
			continue
		}
		candidates = append(candidates, &model.Candidate{
			Source:      model.CandidateSource{Provider: p.Name(), TrustTier: p.TrustTier()},
			Title:       doc.Title,
			URL:         doc.URL,
			Snippet:     snippet(doc.Content, 240),
			ContentType: doc.ContentType,
			Signals: model.CandidateSignals{
				Score:         r.Score,
				Rank:          i + 1,
				FreshnessDays: int(daysSince(doc.CreatedAt)),
				HasFreshness:  true,
			},
		})
	}
	return candidates, nil
}

func snippet(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
