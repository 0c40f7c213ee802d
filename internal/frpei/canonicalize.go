package frpei

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/beacon-search/beacon/internal/model"
	"github.com/beacon-search/beacon/internal/query"
	"github.com/beacon-search/beacon/internal/storage"
)

// Canonicalize tokenizes a candidate's title+snippet and finds the best
// ontology match, per §4.F step 7.
func Canonicalize(ctx context.Context, store *storage.Storage, c *model.Candidate) error {
	tokens := query.Tokenize(query.Normalize(c.Title + " " + c.Snippet))

	var best *model.CanonicalMatch
	for _, tok := range tokens {
		concept, err := store.FindConceptByTerm(ctx, tok)
		if err != nil {
			return fmt.Errorf("failed to canonicalize candidate %s: %w", c.CandidateID, err)
		}
		if concept == nil {
			continue
		}

		matchedBy, baseWeight, aliasWeight := matchWeight(concept, tok)
		score := baseWeight * aliasWeight
		if strings.Contains(strings.ToLower(c.Title), strings.ToLower(concept.PreferredTerm)) {
			score += 0.05
		}
		if score > 1.0 {
			score = 1.0
		}

		if best == nil || score > best.Confidence {
			best = &model.CanonicalMatch{
				ConceptID: concept.ID, PreferredTerm: concept.PreferredTerm,
				Confidence: score, MatchedBy: matchedBy,
			}
		}
	}
	c.Canonical = best
	return nil
}

func matchWeight(concept *model.Concept, tok string) (matchedBy string, baseWeight, aliasWeight float64) {
	if strings.EqualFold(concept.PreferredTerm, tok) {
		return "term", 0.9, 1.0
	}
	for _, syn := range concept.Synonyms {
		if strings.EqualFold(syn, tok) {
			return "synonym", 0.75, 1.0
		}
	}
	for _, a := range concept.Aliases {
		if strings.EqualFold(a.Alias, tok) {
			return "alias", 0.65, a.Weight
		}
	}
	return "synonym", 0.75, 1.0
}

// Enrich joins a canonicalized candidate against ontology relations and
// dictionary synonyms, per §4.F step 8.
func Enrich(ctx context.Context, store *storage.Storage, c *model.Candidate) error {
	if c.Canonical == nil {
		return nil
	}

	concept, err := store.GetConcept(ctx, c.Canonical.ConceptID)
	if err != nil {
		return fmt.Errorf("failed to load concept for enrichment: %w", err)
	}
	if concept == nil {
		return nil
	}

	enrichment := &model.Enrichment{
		Taxonomies: concept.Taxonomies,
		Confidence: c.Canonical.Confidence,
		Provenance: model.Provenance{Sources: []string{"ontology"}, EnrichedAt: time.Now().UTC()},
	}
	for _, a := range concept.Aliases {
		enrichment.Synonyms = append(enrichment.Synonyms, a.Alias)
	}
	for _, r := range concept.Relations {
		related, err := store.GetConcept(ctx, r.TargetID)
		if err != nil {
			return fmt.Errorf("failed to resolve related concept %q for enrichment: %w", r.TargetID, err)
		}
		if related == nil {
			continue
		}
		enrichment.Related = append(enrichment.Related, related.PreferredTerm)
	}

	if entry, err := store.FindDictionaryEntry(ctx, concept.PreferredTerm); err == nil && entry != nil {
		enrichment.Synonyms = append(enrichment.Synonyms, entry.Synonyms...)
		enrichment.Provenance.Sources = append(enrichment.Provenance.Sources, "dictionary")
	}

	c.Enrichment = enrichment
	return nil
}
