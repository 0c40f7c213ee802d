package query

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/beacon-search/beacon/internal/model"
	"github.com/beacon-search/beacon/internal/storage"
)

// Options controls which expansion stages run and how aggressively.
type Options struct {
	Expand                bool
	EnableFuzzy           bool
	EnableAbbrev          bool
	MaxExpansionsPerTerm  int
	MaxTotalExpansions    int
	MaxFuzzyMatches       int
	FuzzyMaxDistance      int
	VectorTermLimit       int
}

// DefaultOptions mirrors sensible production defaults.
var DefaultOptions = Options{
	Expand:               true,
	EnableFuzzy:          true,
	EnableAbbrev:         true,
	MaxExpansionsPerTerm: 5,
	MaxTotalExpansions:   25,
	MaxFuzzyMatches:      3,
	FuzzyMaxDistance:     2,
	VectorTermLimit:      12,
}

// ConceptMatch records a resolved ontology concept for an original term.
type ConceptMatch struct {
	ConceptID     string
	MatchedBy     string // term|synonym|alias
	PreferredTerm string
	Aliases       []string
	Taxonomies    []string
}

// FuzzyMatch records a Levenshtein-distance expansion.
type FuzzyMatch struct {
	Term     string
	Matched  string
	Distance int
}

// RewriteExplanation is the always-produced, never-hidden breakdown of
// a query rewrite.
type RewriteExplanation struct {
	Original      string
	Normalized    string
	Phrases       []string
	Tokens        []string
	ConceptMatches []ConceptMatch
	FuzzyMatches  []FuzzyMatch
	Expansions    map[string]float64
}

// Rewritten is the final output of the rewrite pipeline.
type Rewritten struct {
	VectorQuery string
	LexicalQuery string
	Explanation RewriteExplanation
}

// Store is the subset of storage.Storage the rewrite pipeline reads.
type Store interface {
	FindConceptByTerm(ctx context.Context, term string) (*model.Concept, error)
	GetConcept(ctx context.Context, id string) (*model.Concept, error)
	FindDictionaryEntry(ctx context.Context, term string) (*model.DictionaryEntry, error)
	ListDictionaryTerms(ctx context.Context) ([]*model.DictionaryEntry, error)
	ListConcepts(ctx context.Context) ([]*model.Concept, error)
}

var _ Store = (*storage.Storage)(nil)

// Rewrite runs the full normalize -> tokenize -> expand pipeline of
// §4.E "Query rewriting".
func Rewrite(ctx context.Context, store Store, raw string, opts Options) (*Rewritten, error) {
	normalized := Normalize(raw)
	phrases, remainder := ExtractPhrases(normalized)
	tokens := Tokenize(remainder)

	exp := RewriteExplanation{
		Original:   raw,
		Normalized: normalized,
		Phrases:    phrases,
		Tokens:     tokens,
		Expansions: map[string]float64{},
	}

	for _, tok := range tokens {
		exp.Expansions[tok] = 1.0
	}

	matchedTokens := make(map[string]struct{})
	if opts.Expand {
		for _, tok := range tokens {
			concept, err := store.FindConceptByTerm(ctx, tok)
			if err != nil {
				return nil, fmt.Errorf("failed to match concept for %q: %w", tok, err)
			}
			if concept == nil {
				continue
			}
			matchedTokens[tok] = struct{}{}
			matchedBy := "term"
			if !strings.EqualFold(concept.PreferredTerm, tok) {
				matchedBy = "synonym"
				// The raw token is itself just a synonym/alias of the
				// matched concept; it must not outrank the concept's own
				// preferred term, so pull it down from its seeded 1.0 to
				// the same tier as other synonym expansions below.
				exp.Expansions[tok] = 0.70
			}
			var aliases []string
			for _, a := range concept.Aliases {
				aliases = append(aliases, a.Alias)
			}
			exp.ConceptMatches = append(exp.ConceptMatches, ConceptMatch{
				ConceptID: concept.ID, MatchedBy: matchedBy, PreferredTerm: concept.PreferredTerm,
				Aliases: aliases, Taxonomies: concept.Taxonomies,
			})

			addExpansion(exp.Expansions, concept.PreferredTerm, 0.90, opts.MaxExpansionsPerTerm)
			for _, a := range concept.Aliases {
				addExpansion(exp.Expansions, a.Alias, 0.70, opts.MaxExpansionsPerTerm)
				if opts.EnableAbbrev && a.Type == model.AliasAbbrev {
					addExpansion(exp.Expansions, a.Alias, 0.60, opts.MaxExpansionsPerTerm)
				}
			}
			for _, rel := range concept.Relations {
				related, err := store.GetConcept(ctx, rel.TargetID)
				if err != nil {
					return nil, fmt.Errorf("failed to resolve related concept %q: %w", rel.TargetID, err)
				}
				if related == nil {
					continue
				}
				weight := relationWeight(rel.Type)
				addExpansion(exp.Expansions, related.PreferredTerm, weight, opts.MaxExpansionsPerTerm)
			}

			entry, err := store.FindDictionaryEntry(ctx, tok)
			if err != nil {
				return nil, fmt.Errorf("failed to look up dictionary entry for %q: %w", tok, err)
			}
			if entry != nil {
				for _, syn := range entry.Synonyms {
					addExpansion(exp.Expansions, syn, entry.BoostWeight*0.70, opts.MaxExpansionsPerTerm)
				}
				if opts.EnableAbbrev && entry.AcronymFor != "" {
					addExpansion(exp.Expansions, entry.AcronymFor, 0.60, opts.MaxExpansionsPerTerm)
				}
			}
		}
	}

	if opts.EnableFuzzy {
		lexicon, err := buildLexicon(ctx, store)
		if err != nil {
			return nil, fmt.Errorf("failed to build fuzzy lexicon: %w", err)
		}
		for _, tok := range tokens {
			if _, matched := matchedTokens[tok]; matched {
				continue
			}
			best, dist, ok := bestFuzzyMatch(tok, lexicon, opts.FuzzyMaxDistance)
			if !ok {
				continue
			}
			exp.FuzzyMatches = append(exp.FuzzyMatches, FuzzyMatch{Term: tok, Matched: best, Distance: dist})
			addExpansion(exp.Expansions, best, 0.35, opts.MaxExpansionsPerTerm)
			if len(exp.FuzzyMatches) >= opts.MaxFuzzyMatches {
				break
			}
		}
	}

	terms := capExpansions(exp.Expansions, opts.MaxTotalExpansions)
	vectorTerms := terms
	if len(vectorTerms) > opts.VectorTermLimit {
		vectorTerms = vectorTerms[:opts.VectorTermLimit]
	}

	lexicalParts := make([]string, 0, len(terms)+len(phrases))
	for _, p := range phrases {
		lexicalParts = append(lexicalParts, fmt.Sprintf("%q", p))
	}
	for _, t := range terms {
		lexicalParts = append(lexicalParts, t)
	}

	return &Rewritten{
		VectorQuery:  strings.Join(vectorTerms, " "),
		LexicalQuery: strings.Join(lexicalParts, " OR "),
		Explanation:  exp,
	}, nil
}

func relationWeight(t model.RelationType) float64 {
	switch t {
	case model.RelationRelated:
		return 0.45
	case model.RelationBroader, model.RelationNarrower:
		return 0.40
	default:
		return 0.30
	}
}

func addExpansion(m map[string]float64, term string, weight float64, maxPerTerm int) {
	if term == "" || maxPerTerm <= 0 {
		return
	}
	if existing, ok := m[term]; !ok || weight > existing {
		m[term] = weight
	}
}

func capExpansions(m map[string]float64, max int) []string {
	type pair struct {
		term   string
		weight float64
	}
	pairs := make([]pair, 0, len(m))
	for k, v := range m {
		pairs = append(pairs, pair{k, v})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].weight > pairs[j].weight })
	if max > 0 && len(pairs) > max {
		pairs = pairs[:max]
	}
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = p.term
	}
	return out
}

func buildLexicon(ctx context.Context, store Store) ([]string, error) {
	var lexicon []string
	concepts, err := store.ListConcepts(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range concepts {
		lexicon = append(lexicon, c.PreferredTerm)
		lexicon = append(lexicon, c.Synonyms...)
		for _, a := range c.Aliases {
			lexicon = append(lexicon, a.Alias)
		}
	}
	entries, err := store.ListDictionaryTerms(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		lexicon = append(lexicon, e.Term)
		lexicon = append(lexicon, e.Synonyms...)
	}
	return lexicon, nil
}

// bestFuzzyMatch finds the closest lexicon entry to tok within
// maxDistance, restricted by first-character match and a length delta
// of at most 2 for efficiency, per §4.E stage 8.
func bestFuzzyMatch(tok string, lexicon []string, maxDistance int) (string, int, bool) {
	bestTerm := ""
	bestDist := maxDistance + 1
	for _, candidate := range lexicon {
		if candidate == "" || candidate[0] != tok[0] {
			continue
		}
		if abs(len(candidate)-len(tok)) > 2 {
			continue
		}
		dist := levenshtein.ComputeDistance(tok, candidate)
		if dist <= maxDistance && dist < bestDist {
			bestDist = dist
			bestTerm = candidate
		}
	}
	return bestTerm, bestDist, bestTerm != ""
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
