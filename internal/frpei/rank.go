package frpei

import (
	"context"
	"fmt"
	"sort"

	"github.com/beacon-search/beacon/internal/model"
	"github.com/beacon-search/beacon/internal/storage"
)

// DefaultFeedbackDecayDays resolves the spec's Open Question on
// feedback-boost decay: linear decay to zero over this many days.
const DefaultFeedbackDecayDays = 14

const feedbackWeight = 0.05

// Rank scores and orders candidates per §4.F step 9:
//
//	totalScore = baseScore*providerWeight + canonicalBoost + freshnessBoost + feedbackBoost
func Rank(ctx context.Context, store *storage.Storage, candidates []*model.Candidate, feedbackDecayDays int) error {
	for _, c := range candidates {
		weight := providerWeight(c.Source.Provider)

		canonicalBoost := 0.0
		if c.Canonical != nil {
			canonicalBoost = 0.10 * c.Canonical.Confidence
		}

		freshnessBoost := 0.0
		if c.Signals.HasFreshness && c.Signals.FreshnessDays < 30 {
			freshnessBoost = 0.08 * (1 - float64(c.Signals.FreshnessDays)/30)
		}

		feedbackBoost := 0.0
		if c.CandidateID != "" {
			boost, err := store.FeedbackBoost(ctx, c.CandidateID, feedbackDecayDays, feedbackWeight)
			if err != nil {
				return fmt.Errorf("failed to compute feedback boost for %s: %w", c.CandidateID, err)
			}
			feedbackBoost = boost
		}

		c.RankScore = c.Signals.Score*weight + canonicalBoost + freshnessBoost + feedbackBoost
		c.Explanation = model.Explanation{
			BaseScore:      c.Signals.Score,
			ProviderWeight: weight,
			CanonicalBoost: canonicalBoost,
			FreshnessBoost: freshnessBoost,
			FeedbackBoost:  feedbackBoost,
			TotalScore:     c.RankScore,
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].RankScore > candidates[j].RankScore
	})
	for i, c := range candidates {
		c.Rank = i + 1
	}
	return nil
}
