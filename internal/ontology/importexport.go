// Package ontology implements the admin bulk import/export boundary
// that is the only sanctioned way to mutate the ontology graph and
// dictionary (the data model's "mutated only via import/export admin
// operations" rule), mirroring the teacher's config.Load YAML-struct
// pattern rather than a per-concept admin API.
package ontology

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/beacon-search/beacon/internal/model"
	"github.com/beacon-search/beacon/internal/storage"
)

// Bundle is the YAML document shape for a full ontology export/import.
type Bundle struct {
	Concepts   []ConceptDoc    `yaml:"concepts"`
	Dictionary []DictionaryDoc `yaml:"dictionary"`
}

// ConceptDoc is the YAML-facing shape of model.Concept.
type ConceptDoc struct {
	ID            string       `yaml:"id,omitempty"`
	PreferredTerm string       `yaml:"preferredTerm"`
	Synonyms      []string     `yaml:"synonyms,omitempty"`
	ParentID      string       `yaml:"parentId,omitempty"`
	Aliases       []AliasDoc   `yaml:"aliases,omitempty"`
	Relations     []RelDoc     `yaml:"relations,omitempty"`
	Taxonomies    []string     `yaml:"taxonomies,omitempty"`
}

// AliasDoc is the YAML-facing shape of model.ConceptAlias.
type AliasDoc struct {
	Alias  string  `yaml:"alias"`
	Type   string  `yaml:"type"`
	Weight float64 `yaml:"weight"`
}

// RelDoc is the YAML-facing shape of model.ConceptRelation.
type RelDoc struct {
	TargetID string  `yaml:"targetId"`
	Type     string  `yaml:"type"`
	Weight   float64 `yaml:"weight"`
}

// DictionaryDoc is the YAML-facing shape of model.DictionaryEntry.
type DictionaryDoc struct {
	Term        string   `yaml:"term"`
	Synonyms    []string `yaml:"synonyms,omitempty"`
	AcronymFor  string   `yaml:"acronymFor,omitempty"`
	BoostWeight float64  `yaml:"boostWeight,omitempty"`
}

func (c ConceptDoc) toModel() *model.Concept {
	out := &model.Concept{
		ID: c.ID, PreferredTerm: c.PreferredTerm, Synonyms: c.Synonyms,
		ParentID: c.ParentID, Taxonomies: c.Taxonomies,
	}
	for _, a := range c.Aliases {
		out.Aliases = append(out.Aliases, model.ConceptAlias{
			Alias: a.Alias, Type: model.AliasType(a.Type), Weight: a.Weight,
		})
	}
	for _, r := range c.Relations {
		out.Relations = append(out.Relations, model.ConceptRelation{
			TargetID: r.TargetID, Type: model.RelationType(r.Type), Weight: r.Weight,
		})
	}
	return out
}

func fromModel(c *model.Concept) ConceptDoc {
	doc := ConceptDoc{
		ID: c.ID, PreferredTerm: c.PreferredTerm, Synonyms: c.Synonyms,
		ParentID: c.ParentID, Taxonomies: c.Taxonomies,
	}
	for _, a := range c.Aliases {
		doc.Aliases = append(doc.Aliases, AliasDoc{Alias: a.Alias, Type: string(a.Type), Weight: a.Weight})
	}
	for _, r := range c.Relations {
		doc.Relations = append(doc.Relations, RelDoc{TargetID: r.TargetID, Type: string(r.Type), Weight: r.Weight})
	}
	return doc
}

func (d DictionaryDoc) toModel() *model.DictionaryEntry {
	return &model.DictionaryEntry{
		Term: d.Term, Synonyms: d.Synonyms, AcronymFor: d.AcronymFor, BoostWeight: d.BoostWeight,
	}
}

func dictFromModel(e *model.DictionaryEntry) DictionaryDoc {
	return DictionaryDoc{Term: e.Term, Synonyms: e.Synonyms, AcronymFor: e.AcronymFor, BoostWeight: e.BoostWeight}
}

// Import replaces the entire ontology graph with the contents of r. The
// concept table is cleared first so a re-import is idempotent rather
// than additive, matching SaveConcept's own replace-all write shape for
// a single concept. The dictionary is not cleared: bundle entries are
// upserted by term, and existing entries absent from the bundle remain.
func Import(ctx context.Context, store *storage.Storage, r io.Reader) (conceptCount, dictCount int, err error) {
	var bundle Bundle
	if err := yaml.NewDecoder(r).Decode(&bundle); err != nil {
		return 0, 0, fmt.Errorf("failed to decode ontology bundle: %w", err)
	}

	if err := store.DeleteAllConcepts(ctx); err != nil {
		return 0, 0, fmt.Errorf("failed to clear existing ontology: %w", err)
	}
	for _, c := range bundle.Concepts {
		if err := store.SaveConcept(ctx, c.toModel()); err != nil {
			return 0, 0, fmt.Errorf("failed to import concept %q: %w", c.PreferredTerm, err)
		}
	}
	for _, d := range bundle.Dictionary {
		if err := store.SaveDictionaryEntry(ctx, d.toModel()); err != nil {
			return 0, 0, fmt.Errorf("failed to import dictionary entry %q: %w", d.Term, err)
		}
	}
	return len(bundle.Concepts), len(bundle.Dictionary), nil
}

// Export writes the full ontology graph and dictionary to w as YAML.
func Export(ctx context.Context, store *storage.Storage, w io.Writer) error {
	concepts, err := store.ListConcepts(ctx)
	if err != nil {
		return fmt.Errorf("failed to list concepts: %w", err)
	}
	entries, err := store.ListDictionaryTerms(ctx)
	if err != nil {
		return fmt.Errorf("failed to list dictionary entries: %w", err)
	}

	bundle := Bundle{}
	for _, c := range concepts {
		bundle.Concepts = append(bundle.Concepts, fromModel(c))
	}
	for _, e := range entries {
		bundle.Dictionary = append(bundle.Dictionary, dictFromModel(e))
	}

	enc := yaml.NewEncoder(w)
	defer enc.Close()
	if err := enc.Encode(bundle); err != nil {
		return fmt.Errorf("failed to encode ontology bundle: %w", err)
	}
	return nil
}
