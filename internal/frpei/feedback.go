package frpei

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/beacon-search/beacon/internal/model"
)

// FeedbackInput is the decoded POST /feedback body.
type FeedbackInput struct {
	RequestID   string
	CandidateID string
	Provider    string
	Feedback    string
	Rating      int
	Notes       string
	Metadata    map[string]any
}

var positiveActions = map[string]bool{
	"click": true, "save": true, "like": true, "upvote": true, "positive": true,
}

var negativeActions = map[string]bool{
	"hide": true, "downvote": true, "dismiss": true, "negative": true,
}

// NormalizeSentiment maps the feedback action synonyms to a canonical
// sentiment, per §4.F's Feedback operation.
func NormalizeSentiment(action string) model.FeedbackSentiment {
	a := strings.ToLower(strings.TrimSpace(action))
	switch {
	case positiveActions[a]:
		return model.FeedbackPositive
	case negativeActions[a]:
		return model.FeedbackNegative
	default:
		return model.FeedbackNeutral
	}
}

// Feedback persists an append-only feedback record for a candidate and
// returns the persisted record so callers can echo its server-assigned id.
func (r *Router) Feedback(ctx context.Context, in FeedbackInput) (*model.Feedback, error) {
	if in.CandidateID == "" {
		return nil, fmt.Errorf("candidateId is required")
	}

	f := &model.Feedback{
		ID:          uuid.NewString(),
		CandidateID: in.CandidateID,
		RequestID:   in.RequestID,
		Provider:    in.Provider,
		Sentiment:   NormalizeSentiment(in.Feedback),
		Rating:      in.Rating,
		Notes:       in.Notes,
		Metadata:    in.Metadata,
		CreatedAt:   time.Now().UTC(),
	}

	if err := r.store.SaveFeedback(ctx, f); err != nil {
		return nil, fmt.Errorf("failed to save feedback: %w", err)
	}
	return f, nil
}

// Explain reloads the persisted score breakdown for a candidate.
func (r *Router) Explain(ctx context.Context, candidateID string) (*model.Explanation, error) {
	explanation, err := r.store.GetExplanation(ctx, candidateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load explanation for %s: %w", candidateID, err)
	}
	return explanation, nil
}
