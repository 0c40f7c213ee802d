package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/beacon-search/beacon/internal/model"
)

// ScoredDocument pairs a Document with the retrieval score the Query
// Engine's hybrid formula assigned to it.
type ScoredDocument struct {
	Document *model.Document
	Score    float64
}

// SearchVector scans every document with an embedding and scores it by
// cosine distance to queryVec, returning the top limit. SQLite here has
// no vector index, so this is a brute-force scan; the Data Model's
// Non-goal on embedding weights also excludes ANN indexing strategy.
func (s *Storage) SearchVector(ctx context.Context, queryVec []float32, limit int) ([]ScoredDocument, error) {
	var rows []documentRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM documents WHERE embedding IS NOT NULL`); err != nil {
		return nil, fmt.Errorf("failed to scan documents for vector search: %w", err)
	}

	out := make([]ScoredDocument, 0, len(rows))
	for _, row := range rows {
		doc, err := row.toModel()
		if err != nil {
			return nil, err
		}
		dist := CosineDistance(queryVec, doc.Embedding)
		out = append(out, ScoredDocument{Document: doc, Score: 1 - dist})
	}
	topKByScore(out, limit)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SearchText runs lexical ranking over title/content: it scans every
// document and scores it by the fraction of terms found as
// case-insensitive substrings, since the schema does not assume an FTS5
// virtual table is available at deploy time.
func (s *Storage) SearchText(ctx context.Context, terms []string, limit int) ([]ScoredDocument, error) {
	if len(terms) == 0 {
		return nil, nil
	}

	var rows []documentRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM documents`); err != nil {
		return nil, fmt.Errorf("failed to scan documents for text search: %w", err)
	}

	out := make([]ScoredDocument, 0, len(rows))
	for _, row := range rows {
		doc, err := row.toModel()
		if err != nil {
			return nil, err
		}
		rank := lexicalRank(doc.Title+" "+doc.Content, terms)
		if rank <= 0 {
			continue
		}
		out = append(out, ScoredDocument{Document: doc, Score: rank})
	}
	topKByScore(out, limit)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func lexicalRank(text string, terms []string) float64 {
	var hits int
	for _, t := range terms {
		if containsFold(text, t) {
			hits++
		}
	}
	if len(terms) == 0 {
		return 0
	}
	return float64(hits) / float64(len(terms))
}

func containsFold(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	h := []rune(haystack)
	n := []rune(needle)
	for i := 0; i+len(n) <= len(h); i++ {
		match := true
		for j := range n {
			hc, nc := h[i+j], n[j]
			if hc >= 'A' && hc <= 'Z' {
				hc += 'a' - 'A'
			}
			if nc >= 'A' && nc <= 'Z' {
				nc += 'a' - 'A'
			}
			if hc != nc {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func topKByScore(docs []ScoredDocument, k int) {
	if k <= 0 || k >= len(docs) {
		k = len(docs)
	}
	for i := 0; i < k; i++ {
		maxIdx := i
		for j := i + 1; j < len(docs); j++ {
			if docs[j].Score > docs[maxIdx].Score {
				maxIdx = j
			}
		}
		docs[i], docs[maxIdx] = docs[maxIdx], docs[i]
	}
}

// DocumentFilter narrows a document scan by equality on content_type,
// document_type and author (read from document_metadata), matching the
// Query Engine's Filters.
type DocumentFilter struct {
	ContentType  string
	DocumentType string
	Author       string
}

// FilterDocumentIDs returns the set of document ids matching f, used to
// intersect against vector/text scores before pagination.
func (s *Storage) FilterDocumentIDs(ctx context.Context, f DocumentFilter) (map[string]struct{}, error) {
	query := `SELECT DISTINCT d.id FROM documents d LEFT JOIN document_metadata m ON m.document_id = d.id WHERE 1=1`
	var args []any
	if f.ContentType != "" {
		query += ` AND d.content_type = ?`
		args = append(args, f.ContentType)
	}
	if f.DocumentType != "" {
		query += ` AND d.document_type = ?`
		args = append(args, f.DocumentType)
	}
	if f.Author != "" {
		query += ` AND m.key IN ('author', 'detected_author') AND m.value = ?`
		args = append(args, f.Author)
	}

	var ids []string
	if err := s.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("failed to filter documents: %w", err)
	}
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

// ContentTypeFacets buckets a result set by content_type.
func (s *Storage) ContentTypeFacets(ctx context.Context, documentIDs []string) ([]FacetCount, error) {
	if len(documentIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT content_type AS value, COUNT(*) AS count FROM documents WHERE id IN (?) GROUP BY content_type ORDER BY count DESC`, documentIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build content_type facet query: %w", err)
	}
	var out []FacetCount
	if err := s.db.SelectContext(ctx, &out, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to compute content_type facets: %w", err)
	}
	return out, nil
}

// DocumentTypeFacets buckets a result set by document_type.
func (s *Storage) DocumentTypeFacets(ctx context.Context, documentIDs []string) ([]FacetCount, error) {
	if len(documentIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT document_type AS value, COUNT(*) AS count FROM documents WHERE id IN (?) GROUP BY document_type ORDER BY count DESC`, documentIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build document_type facet query: %w", err)
	}
	var out []FacetCount
	if err := s.db.SelectContext(ctx, &out, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to compute document_type facets: %w", err)
	}
	return out, nil
}

// AuthorFacets buckets a result set by author, unioning
// attributes.author|pubkey (read from the document's own JSON
// attributes is not indexable in SQL, so only document_metadata's
// author|detected_author keys are aggregated server-side).
func (s *Storage) AuthorFacets(ctx context.Context, documentIDs []string) ([]FacetCount, error) {
	if len(documentIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(
		`SELECT value, COUNT(*) AS count FROM document_metadata WHERE key IN ('author', 'detected_author') AND document_id IN (?) GROUP BY value ORDER BY count DESC`,
		documentIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build author facet query: %w", err)
	}
	var out []FacetCount
	if err := s.db.SelectContext(ctx, &out, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to compute author facets: %w", err)
	}
	return out, nil
}

// MetadataKeyFacets buckets a result set by a single document_metadata
// key, used for sentiment (populated by extraction when a sentiment
// signal is available; the core does not run its own classifier).
func (s *Storage) MetadataKeyFacets(ctx context.Context, documentIDs []string, key string) ([]FacetCount, error) {
	if len(documentIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(
		`SELECT value, COUNT(*) AS count FROM document_metadata WHERE key = ? AND document_id IN (?) GROUP BY value ORDER BY count DESC`,
		key, documentIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build metadata facet query: %w", err)
	}
	var out []FacetCount
	if err := s.db.SelectContext(ctx, &out, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to compute %s facets: %w", key, err)
	}
	return out, nil
}

// FacetCount is one bucket of a facet (e.g. a tag and its document count).
type FacetCount struct {
	Value string `db:"value"`
	Count int    `db:"count"`
}

// TagFacets returns the document_tags facet for a given set of document
// ids, powering the Query Engine's facet computation stage.
func (s *Storage) TagFacets(ctx context.Context, documentIDs []string) ([]FacetCount, error) {
	if len(documentIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT tag AS value, COUNT(*) AS count FROM document_tags WHERE document_id IN (?) GROUP BY tag ORDER BY count DESC`, documentIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build tag facet query: %w", err)
	}
	var out []FacetCount
	if err := s.db.SelectContext(ctx, &out, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to compute tag facets: %w", err)
	}
	return out, nil
}

// EntityFacets returns the document_entities facet restricted to a
// given entity type (PERSON|ORGANIZATION|LOCATION).
func (s *Storage) EntityFacets(ctx context.Context, documentIDs []string, entityType string) ([]FacetCount, error) {
	if len(documentIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(
		`SELECT value, COUNT(*) AS count FROM document_entities WHERE entity_type = ? AND document_id IN (?) GROUP BY value ORDER BY count DESC`,
		entityType, documentIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build entity facet query: %w", err)
	}
	var out []FacetCount
	if err := s.db.SelectContext(ctx, &out, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to compute entity facets: %w", err)
	}
	return out, nil
}
