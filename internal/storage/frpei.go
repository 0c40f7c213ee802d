package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/beacon-search/beacon/internal/model"
)

// SaveRequest records a federated retrieve request for audit and for
// feedback to later join back against.
func (s *Storage) SaveRequest(ctx context.Context, requestID, query string, providers []string) error {
	provJSON, err := json.Marshal(providers)
	if err != nil {
		return fmt.Errorf("failed to encode providers: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO frpei_requests (id, query, providers, created_at) VALUES (?, ?, ?, ?)`,
		requestID, query, string(provJSON), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save frpei request: %w", err)
	}
	return nil
}

// SaveCandidates persists the ranked candidate set for a request in one
// transaction, since Explain must be able to reload exactly what Rank
// produced.
func (s *Storage) SaveCandidates(ctx context.Context, requestID string, candidates []*model.Candidate) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, c := range candidates {
		if c.CandidateID == "" {
			c.CandidateID = newID()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO frpei_candidates (candidate_id, request_id, provider, trust_tier, title, url,
				normalized_url, snippet, content_type, rank_score, rank, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(candidate_id) DO UPDATE SET rank_score = excluded.rank_score, rank = excluded.rank`,
			c.CandidateID, requestID, c.Source.Provider, string(c.Source.TrustTier), c.Title,
			nullable(c.URL), nullable(c.NormalizedURL), nullable(c.Snippet), string(c.ContentType),
			c.RankScore, c.Rank, now)
		if err != nil {
			return fmt.Errorf("failed to save candidate %s: %w", c.CandidateID, err)
		}

		if c.Enrichment != nil {
			if err := saveEnrichmentTx(ctx, tx, c.CandidateID, c.Enrichment); err != nil {
				return err
			}
		}

		e := c.Explanation
		_, err = tx.ExecContext(ctx, `
			INSERT INTO frpei_rank_log (candidate_id, base_score, provider_weight, canonical_boost,
				freshness_boost, feedback_boost, total_score, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			c.CandidateID, e.BaseScore, e.ProviderWeight, e.CanonicalBoost, e.FreshnessBoost,
			e.FeedbackBoost, e.TotalScore, now)
		if err != nil {
			return fmt.Errorf("failed to log rank for candidate %s: %w", c.CandidateID, err)
		}
	}

	return tx.Commit()
}

func saveEnrichmentTx(ctx context.Context, tx txLike, candidateID string, e *model.Enrichment) error {
	synJSON, err := json.Marshal(e.Synonyms)
	if err != nil {
		return fmt.Errorf("failed to encode enrichment synonyms: %w", err)
	}
	relJSON, err := json.Marshal(e.Related)
	if err != nil {
		return fmt.Errorf("failed to encode enrichment related: %w", err)
	}
	taxJSON, err := json.Marshal(e.Taxonomies)
	if err != nil {
		return fmt.Errorf("failed to encode enrichment taxonomies: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO frpei_enrichment (candidate_id, synonyms, related, taxonomies, confidence, enriched_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(candidate_id) DO UPDATE SET synonyms = excluded.synonyms, related = excluded.related,
			taxonomies = excluded.taxonomies, confidence = excluded.confidence, enriched_at = excluded.enriched_at`,
		candidateID, string(synJSON), string(relJSON), string(taxJSON), e.Confidence, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save enrichment: %w", err)
	}
	return nil
}

type rankLogRow struct {
	CandidateID    string    `db:"candidate_id"`
	BaseScore      float64   `db:"base_score"`
	ProviderWeight float64   `db:"provider_weight"`
	CanonicalBoost float64   `db:"canonical_boost"`
	FreshnessBoost float64   `db:"freshness_boost"`
	FeedbackBoost  float64   `db:"feedback_boost"`
	TotalScore     float64   `db:"total_score"`
	CreatedAt      time.Time `db:"created_at"`
}

// GetExplanation reloads the most recent rank breakdown for a
// candidate, backing the Explain operation.
func (s *Storage) GetExplanation(ctx context.Context, candidateID string) (*model.Explanation, error) {
	var row rankLogRow
	err := s.db.GetContext(ctx, &row, `
		SELECT * FROM frpei_rank_log WHERE candidate_id = ? ORDER BY created_at DESC LIMIT 1`, candidateID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load explanation: %w", err)
	}
	return &model.Explanation{
		BaseScore:      row.BaseScore,
		ProviderWeight: row.ProviderWeight,
		CanonicalBoost: row.CanonicalBoost,
		FreshnessBoost: row.FreshnessBoost,
		FeedbackBoost:  row.FeedbackBoost,
		TotalScore:     row.TotalScore,
	}, nil
}

// SaveFeedback appends a feedback record; feedback is never updated or
// deleted in place, only accumulated.
func (s *Storage) SaveFeedback(ctx context.Context, f *model.Feedback) error {
	if f.ID == "" {
		f.ID = newID()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	metaJSON, err := json.Marshal(f.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode feedback metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO frpei_feedback (id, candidate_id, request_id, provider, sentiment, rating, notes, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.CandidateID, nullable(f.RequestID), nullable(f.Provider), string(f.Sentiment),
		nullableInt(f.Rating), nullable(f.Notes), string(metaJSON), f.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save feedback: %w", err)
	}
	return nil
}

type feedbackRow struct {
	Sentiment string    `db:"sentiment"`
	CreatedAt time.Time `db:"created_at"`
}

// FeedbackBoost computes the linearly-decayed feedback contribution for
// a candidate: positive feedback nudges the score up, negative pulls it
// down, and every entry's weight fades to zero over decayDays.
func (s *Storage) FeedbackBoost(ctx context.Context, candidateID string, decayDays int, weight float64) (float64, error) {
	var rows []feedbackRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT sentiment, created_at FROM frpei_feedback WHERE candidate_id = ?`, candidateID); err != nil {
		return 0, fmt.Errorf("failed to load feedback for boost: %w", err)
	}

	now := time.Now().UTC()
	decay := float64(time.Duration(decayDays) * 24 * time.Hour)
	var boost float64
	for _, r := range rows {
		age := float64(now.Sub(r.CreatedAt))
		remaining := 1 - age/decay
		if remaining <= 0 {
			continue
		}
		switch model.FeedbackSentiment(r.Sentiment) {
		case model.FeedbackPositive:
			boost += weight * remaining
		case model.FeedbackNegative:
			boost -= weight * remaining
		}
	}
	return boost, nil
}

func nullableInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}
