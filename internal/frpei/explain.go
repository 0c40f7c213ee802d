package frpei

import (
	"fmt"

	"github.com/beacon-search/beacon/internal/model"
)

// Explain annotates a ranked candidate's Explanation with human-readable
// notes. Explanations are always produced, per §4.F step 10.
func Explain(c *model.Candidate) {
	notes := make([]string, 0, 4)

	notes = append(notes, fmt.Sprintf("Provider %s weighted %.2f", c.Source.Provider, c.Explanation.ProviderWeight))

	if c.Canonical != nil {
		notes = append(notes, fmt.Sprintf("Matched ontology concept %q via %s (confidence %.2f)",
			c.Canonical.PreferredTerm, c.Canonical.MatchedBy, c.Canonical.Confidence))
	}
	if c.Explanation.FreshnessBoost > 0 {
		notes = append(notes, fmt.Sprintf("Freshness boost applied (+%.3f, %d days old)", c.Explanation.FreshnessBoost, c.Signals.FreshnessDays))
	}
	if c.Explanation.FeedbackBoost != 0 {
		notes = append(notes, fmt.Sprintf("Feedback history adjusted score by %+.3f", c.Explanation.FeedbackBoost))
	}
	if c.Enrichment != nil && len(c.Enrichment.Related) > 0 {
		notes = append(notes, fmt.Sprintf("Enriched with %d related concept(s)", len(c.Enrichment.Related)))
	}

	c.Explanation.Notes = notes
}
