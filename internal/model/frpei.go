package model

import "time"

// TrustTier is a coarse provider-quality label used as a ranking prior.
type TrustTier string

const (
	TrustHigh   TrustTier = "high"
	TrustMedium TrustTier = "medium"
	TrustLow    TrustTier = "low"
)

// CandidateSource describes where a FRPEI candidate came from.
type CandidateSource struct {
	Provider  string    `json:"provider"`
	TrustTier TrustTier `json:"trustTier"`
}

// CandidateSignals carries the raw, provider-reported ranking inputs.
type CandidateSignals struct {
	Score         float64 `json:"score"`
	Rank          int     `json:"rank,omitempty"`
	Domain        string  `json:"domain,omitempty"`
	FreshnessDays int     `json:"freshnessDays,omitempty"`
	HasFreshness  bool    `json:"hasFreshness,omitempty"`
}

// CanonicalMatch is the best ontology concept match for a candidate.
type CanonicalMatch struct {
	ConceptID     string  `json:"conceptId"`
	PreferredTerm string  `json:"preferredTerm"`
	Confidence    float64 `json:"confidence"`
	MatchedBy     string  `json:"matchedBy"` // term|synonym|alias
}

// Enrichment is attached to a candidate once it has a canonical match.
type Enrichment struct {
	Synonyms   []string   `json:"synonyms,omitempty"`
	Related    []string   `json:"related,omitempty"`
	Taxonomies []string   `json:"taxonomies,omitempty"`
	Provenance Provenance `json:"provenance"`
	Confidence float64    `json:"confidence"`
}

// Provenance records which sources contributed to an enrichment.
type Provenance struct {
	Sources    []string  `json:"sources"`
	EnrichedAt time.Time `json:"enrichedAt"`
}

// Explanation is the always-produced, human-readable score breakdown.
type Explanation struct {
	BaseScore      float64  `json:"baseScore"`
	ProviderWeight float64  `json:"providerWeight"`
	CanonicalBoost float64  `json:"canonicalBoost"`
	FreshnessBoost float64  `json:"freshnessBoost"`
	FeedbackBoost  float64  `json:"feedbackBoost"`
	TotalScore     float64  `json:"totalScore"`
	Notes          []string `json:"notes,omitempty"`
}

// Candidate is a single federated search result moving through
// Retrieve -> Canonicalize -> Enrich -> Rank -> Explain.
type Candidate struct {
	CandidateID   string          `json:"candidateId"`
	Source        CandidateSource `json:"source"`
	Title         string          `json:"title"`
	URL           string          `json:"url,omitempty"`
	NormalizedURL string          `json:"normalizedUrl,omitempty"`
	Snippet       string          `json:"snippet,omitempty"`
	ContentType   ContentType     `json:"contentType,omitempty"`
	Signals       CandidateSignals `json:"signals"`
	Canonical     *CanonicalMatch `json:"canonical,omitempty"`
	Enrichment    *Enrichment     `json:"enrichment,omitempty"`
	RankScore     float64         `json:"rankScore"`
	Rank          int             `json:"rank,omitempty"`
	Explanation   Explanation     `json:"explanation"`
}

// FeedbackSentiment is the normalized feedback polarity.
type FeedbackSentiment string

const (
	FeedbackPositive FeedbackSentiment = "positive"
	FeedbackNegative FeedbackSentiment = "negative"
	FeedbackNeutral  FeedbackSentiment = "neutral"
)

// Feedback is an append-only record consumed by future ranking passes.
type Feedback struct {
	ID          string         `json:"id"`
	CandidateID string         `json:"candidateId"`
	RequestID   string         `json:"requestId,omitempty"`
	Provider    string         `json:"provider,omitempty"`
	Sentiment   FeedbackSentiment `json:"sentiment"`
	Rating      int            `json:"rating,omitempty"`
	Notes       string         `json:"notes,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// ProviderError captures one failed provider call for a Retrieve response.
type ProviderError struct {
	Provider   string `json:"provider"`
	Error      string `json:"error"`
	DurationMs int64  `json:"durationMs,omitempty"`
	Timeout    bool   `json:"timeout,omitempty"`
}
