package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/beacon-search/beacon/internal/model"
)

type ontologyRow struct {
	ID            string         `db:"id"`
	PreferredTerm string         `db:"preferred_term"`
	Synonyms      string         `db:"synonyms"`
	ParentID      sql.NullString `db:"parent_id"`
}

type aliasRow struct {
	ConceptID string  `db:"concept_id"`
	Alias     string  `db:"alias"`
	Type      string  `db:"type"`
	Weight    float64 `db:"weight"`
}

type relationRow struct {
	ConceptID string  `db:"concept_id"`
	TargetID  string  `db:"target_id"`
	Type      string  `db:"type"`
	Weight    float64 `db:"weight"`
}

// SaveConcept upserts a concept and fully replaces its aliases,
// relations and taxonomy memberships; the ontology is mutated only
// through bulk import/export admin operations, never incrementally,
// so a replace-all write is the right shape.
func (s *Storage) SaveConcept(ctx context.Context, c *model.Concept) error {
	if c.ID == "" {
		c.ID = newID()
	}
	synJSON, err := json.Marshal(c.Synonyms)
	if err != nil {
		return fmt.Errorf("failed to encode synonyms: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ontology (id, preferred_term, synonyms, parent_id) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET preferred_term = excluded.preferred_term,
			synonyms = excluded.synonyms, parent_id = excluded.parent_id`,
		c.ID, c.PreferredTerm, string(synJSON), nullable(c.ParentID))
	if err != nil {
		return fmt.Errorf("failed to upsert concept: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM ontology_aliases WHERE concept_id = ?`, c.ID); err != nil {
		return err
	}
	for _, a := range c.Aliases {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ontology_aliases (concept_id, alias, type, weight) VALUES (?, ?, ?, ?)`,
			c.ID, a.Alias, string(a.Type), a.Weight); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM ontology_relations WHERE concept_id = ?`, c.ID); err != nil {
		return err
	}
	for _, r := range c.Relations {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ontology_relations (concept_id, target_id, type, weight) VALUES (?, ?, ?, ?)`,
			c.ID, r.TargetID, string(r.Type), r.Weight); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM ontology_concept_taxonomies WHERE concept_id = ?`, c.ID); err != nil {
		return err
	}
	for _, tax := range c.Taxonomies {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO ontology_taxonomies (name) VALUES (?)`, tax); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ontology_concept_taxonomies (concept_id, taxonomy) VALUES (?, ?)`, c.ID, tax); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetConcept loads a concept with its aliases, relations and taxonomies.
func (s *Storage) GetConcept(ctx context.Context, id string) (*model.Concept, error) {
	var row ontologyRow
	if err := s.db.GetContext(ctx, &row, `SELECT * FROM ontology WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get concept: %w", err)
	}
	return s.hydrateConcept(ctx, row)
}

// FindConceptByTerm resolves a concept id by preferred term or any
// alias/synonym, used by the Query Engine's concept-match stage.
func (s *Storage) FindConceptByTerm(ctx context.Context, term string) (*model.Concept, error) {
	var row ontologyRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM ontology WHERE LOWER(preferred_term) = LOWER(?)`, term)
	if err == nil {
		return s.hydrateConcept(ctx, row)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to find concept by term: %w", err)
	}

	var conceptID string
	err = s.db.GetContext(ctx, &conceptID,
		`SELECT concept_id FROM ontology_aliases WHERE LOWER(alias) = LOWER(?) LIMIT 1`, term)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find concept by alias: %w", err)
	}
	return s.GetConcept(ctx, conceptID)
}

func (s *Storage) hydrateConcept(ctx context.Context, row ontologyRow) (*model.Concept, error) {
	c := &model.Concept{ID: row.ID, PreferredTerm: row.PreferredTerm, ParentID: row.ParentID.String}
	if row.Synonyms != "" {
		if err := json.Unmarshal([]byte(row.Synonyms), &c.Synonyms); err != nil {
			return nil, fmt.Errorf("failed to decode synonyms: %w", err)
		}
	}

	var aliases []aliasRow
	if err := s.db.SelectContext(ctx, &aliases, `SELECT * FROM ontology_aliases WHERE concept_id = ?`, row.ID); err != nil {
		return nil, fmt.Errorf("failed to load aliases: %w", err)
	}
	for _, a := range aliases {
		c.Aliases = append(c.Aliases, model.ConceptAlias{Alias: a.Alias, Type: model.AliasType(a.Type), Weight: a.Weight})
	}

	var relations []relationRow
	if err := s.db.SelectContext(ctx, &relations, `SELECT * FROM ontology_relations WHERE concept_id = ?`, row.ID); err != nil {
		return nil, fmt.Errorf("failed to load relations: %w", err)
	}
	for _, r := range relations {
		c.Relations = append(c.Relations, model.ConceptRelation{TargetID: r.TargetID, Type: model.RelationType(r.Type), Weight: r.Weight})
	}

	var taxonomies []string
	if err := s.db.SelectContext(ctx, &taxonomies,
		`SELECT taxonomy FROM ontology_concept_taxonomies WHERE concept_id = ?`, row.ID); err != nil {
		return nil, fmt.Errorf("failed to load taxonomies: %w", err)
	}
	c.Taxonomies = taxonomies

	return c, nil
}

// ListConcepts returns every concept, used by admin export.
func (s *Storage) ListConcepts(ctx context.Context) ([]*model.Concept, error) {
	var rows []ontologyRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM ontology`); err != nil {
		return nil, fmt.Errorf("failed to list concepts: %w", err)
	}
	out := make([]*model.Concept, 0, len(rows))
	for _, row := range rows {
		c, err := s.hydrateConcept(ctx, row)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// DeleteAllConcepts clears the ontology graph, used before a full
// re-import so the admin import/export boundary is the only mutator.
func (s *Storage) DeleteAllConcepts(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM ontology`); err != nil {
		return fmt.Errorf("failed to clear ontology: %w", err)
	}
	return nil
}

// SaveDictionaryEntry upserts a plain synonym/acronym dictionary entry.
func (s *Storage) SaveDictionaryEntry(ctx context.Context, e *model.DictionaryEntry) error {
	synJSON, err := json.Marshal(e.Synonyms)
	if err != nil {
		return fmt.Errorf("failed to encode synonyms: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO dictionary (term, synonyms, acronym_for, boost_weight) VALUES (?, ?, ?, ?)
		ON CONFLICT(term) DO UPDATE SET synonyms = excluded.synonyms,
			acronym_for = excluded.acronym_for, boost_weight = excluded.boost_weight`,
		e.Term, string(synJSON), nullable(e.AcronymFor), e.BoostWeight)
	if err != nil {
		return fmt.Errorf("failed to upsert dictionary entry: %w", err)
	}
	return nil
}

type dictionaryRow struct {
	Term        string         `db:"term"`
	Synonyms    string         `db:"synonyms"`
	AcronymFor  sql.NullString `db:"acronym_for"`
	BoostWeight float64        `db:"boost_weight"`
}

func (r dictionaryRow) toModel() (*model.DictionaryEntry, error) {
	e := &model.DictionaryEntry{Term: r.Term, AcronymFor: r.AcronymFor.String, BoostWeight: r.BoostWeight}
	if r.Synonyms != "" {
		if err := json.Unmarshal([]byte(r.Synonyms), &e.Synonyms); err != nil {
			return nil, fmt.Errorf("failed to decode dictionary synonyms: %w", err)
		}
	}
	return e, nil
}

// FindDictionaryEntry looks up a term for the Query Engine's
// dictionary-expansion stage.
func (s *Storage) FindDictionaryEntry(ctx context.Context, term string) (*model.DictionaryEntry, error) {
	var row dictionaryRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM dictionary WHERE LOWER(term) = LOWER(?)`, term)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find dictionary entry: %w", err)
	}
	return row.toModel()
}

// ListDictionaryTerms loads every entry, used for fuzzy-expansion
// candidate generation and admin export.
func (s *Storage) ListDictionaryTerms(ctx context.Context) ([]*model.DictionaryEntry, error) {
	var rows []dictionaryRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM dictionary`); err != nil {
		return nil, fmt.Errorf("failed to list dictionary entries: %w", err)
	}
	out := make([]*model.DictionaryEntry, 0, len(rows))
	for _, row := range rows {
		e, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
