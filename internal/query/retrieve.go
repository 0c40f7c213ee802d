package query

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/beacon-search/beacon/internal/storage"
)

// Mode selects the retrieval strategy.
type Mode string

const (
	ModeVector Mode = "vector"
	ModeText   Mode = "text"
	ModeHybrid Mode = "hybrid"
)

// Filters narrows the candidate document set before scoring.
type Filters struct {
	ContentType  string
	DocumentType string
	Author       string
}

// Page is an offset+limit pagination window with a stable tiebreak by
// updated_at then id, applied after scoring.
type Page struct {
	Offset int
	Limit  int
}

// Result is one scored, ready-to-return document.
type Result struct {
	DocumentID string
	Score      float64
}

// Embedder resolves text to an embedding vector; the core treats it as
// an external collaborator per the Non-goals (embedding weights are out
// of scope), never implementing it itself.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Retrieve scores documents according to mode and returns a paginated,
// filtered result set.
func Retrieve(ctx context.Context, store *storage.Storage, embedder Embedder, rewritten *Rewritten, mode Mode, filters Filters, page Page) ([]Result, error) {
	var scored map[string]float64
	var err error

	switch mode {
	case ModeVector:
		scored, err = vectorScores(ctx, store, embedder, rewritten.VectorQuery)
	case ModeText:
		scored, err = textScores(ctx, store, rewritten.Explanation.Tokens)
	default:
		scored, err = hybridScores(ctx, store, embedder, rewritten)
	}
	if err != nil {
		return nil, err
	}

	if filters != (Filters{}) {
		allowed, err := store.FilterDocumentIDs(ctx, storage.DocumentFilter{
			ContentType: filters.ContentType, DocumentType: filters.DocumentType, Author: filters.Author,
		})
		if err != nil {
			return nil, err
		}
		for id := range scored {
			if _, ok := allowed[id]; !ok {
				delete(scored, id)
			}
		}
	}

	results := make([]Result, 0, len(scored))
	updatedAt := make(map[string]time.Time, len(scored))
	for id, score := range scored {
		results = append(results, Result{DocumentID: id, Score: score})
		if doc, err := store.GetDocument(ctx, id); err == nil && doc != nil {
			updatedAt[id] = doc.UpdatedAt
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		ti, tj := updatedAt[results[i].DocumentID], updatedAt[results[j].DocumentID]
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return results[i].DocumentID < results[j].DocumentID
	})

	return paginate(results, page), nil
}

func vectorScores(ctx context.Context, store *storage.Storage, embedder Embedder, vectorQuery string) (map[string]float64, error) {
	if embedder == nil || vectorQuery == "" {
		return map[string]float64{}, nil
	}
	vec, err := embedder.Embed(ctx, vectorQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	docs, err := store.SearchVector(ctx, vec, 200)
	if err != nil {
		return nil, fmt.Errorf("failed vector search: %w", err)
	}
	out := make(map[string]float64, len(docs))
	for _, d := range docs {
		out[d.Document.ID] = d.Score
	}
	return out, nil
}

func textScores(ctx context.Context, store *storage.Storage, terms []string) (map[string]float64, error) {
	docs, err := store.SearchText(ctx, terms, 200)
	if err != nil {
		return nil, fmt.Errorf("failed text search: %w", err)
	}
	out := make(map[string]float64, len(docs))
	for _, d := range docs {
		out[d.Document.ID] = d.Score
	}
	return out, nil
}

// hybridScores blends per-document 0.7*(1-cos_dist) + 0.3*lex_rank —
// here expressed directly as 0.7*vectorScore + 0.3*textScore since
// vectorScores already returns 1-cos_dist.
func hybridScores(ctx context.Context, store *storage.Storage, embedder Embedder, rewritten *Rewritten) (map[string]float64, error) {
	vec, err := vectorScores(ctx, store, embedder, rewritten.VectorQuery)
	if err != nil {
		return nil, err
	}
	text, err := textScores(ctx, store, rewritten.Explanation.Tokens)
	if err != nil {
		return nil, err
	}

	combined := make(map[string]float64, len(vec)+len(text))
	for id, v := range vec {
		combined[id] = 0.7 * v
	}
	for id, t := range text {
		combined[id] += 0.3 * t
	}
	return combined, nil
}

func paginate(results []Result, page Page) []Result {
	if page.Offset >= len(results) {
		return nil
	}
	end := page.Offset + page.Limit
	if page.Limit <= 0 || end > len(results) {
		end = len(results)
	}
	return results[page.Offset:end]
}
