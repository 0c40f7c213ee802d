// Package storage provides the relational store backing the Document,
// Nostr Event, Ontology and FRPEI tables described in the data model.
// The Ingestion Pipeline is the exclusive writer of Document/Event rows
// originating from relays; FRPEI is the exclusive writer of candidate
// and feedback rows; the Query Engine is read-only over both.
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/beacon-search/beacon/internal/config"
)

// withForeignKeys appends the mattn/go-sqlite3 connection parameter that
// enables FK enforcement on every pooled connection; a bare PRAGMA
// statement only applies to the connection that runs it, which breaks
// cascading deletes once the pool hands out a second connection.
func withForeignKeys(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=1"
}

// Storage wraps the relational connection shared by every writer.
type Storage struct {
	db  *sqlx.DB
	dim int
}

// New opens the store and runs migrations.
func New(ctx context.Context, cfg *config.Database) (*Storage, error) {
	db, err := sqlx.Open("sqlite3", withForeignKeys(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Storage{db: db, dim: cfg.EmbeddingDim}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

// DB exposes the underlying sqlx handle for callers needing raw access.
func (s *Storage) DB() *sqlx.DB {
	return s.db
}

// Close closes the database connection.
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id            TEXT PRIMARY KEY,
	external_id   TEXT,
	source_id     TEXT,
	title         TEXT NOT NULL DEFAULT '',
	content       TEXT NOT NULL DEFAULT '',
	url           TEXT,
	document_type TEXT NOT NULL DEFAULT '',
	content_type  TEXT NOT NULL,
	attributes    TEXT NOT NULL DEFAULT '{}',
	embedding     BLOB,
	created_at    TIMESTAMP NOT NULL,
	updated_at    TIMESTAMP NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS documents_source_external_uidx
	ON documents(source_id, external_id)
	WHERE source_id IS NOT NULL AND external_id IS NOT NULL;

CREATE TABLE IF NOT EXISTS nostr_events (
	event_id         TEXT PRIMARY KEY,
	pubkey           TEXT NOT NULL,
	kind             INTEGER NOT NULL,
	event_created_at INTEGER NOT NULL,
	tags             TEXT NOT NULL DEFAULT '[]',
	document_id      TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	quality_score    REAL NOT NULL DEFAULT 0,
	indexed_at       TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS nostr_events_document_idx ON nostr_events(document_id);
CREATE INDEX IF NOT EXISTS nostr_events_pubkey_idx ON nostr_events(pubkey);

CREATE TABLE IF NOT EXISTS document_tags (
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	tag         TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS document_tags_tag_idx ON document_tags(tag);

CREATE TABLE IF NOT EXISTS document_entities (
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	entity_type TEXT NOT NULL,
	value       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS document_entities_type_idx ON document_entities(entity_type);

CREATE TABLE IF NOT EXISTS document_metadata (
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	key         TEXT NOT NULL,
	value       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS document_metadata_key_idx ON document_metadata(key);

CREATE TABLE IF NOT EXISTS ontology (
	id             TEXT PRIMARY KEY,
	preferred_term TEXT NOT NULL,
	synonyms       TEXT NOT NULL DEFAULT '[]',
	parent_id      TEXT
);
CREATE INDEX IF NOT EXISTS ontology_preferred_term_idx ON ontology(preferred_term);

CREATE TABLE IF NOT EXISTS ontology_aliases (
	concept_id TEXT NOT NULL REFERENCES ontology(id) ON DELETE CASCADE,
	alias      TEXT NOT NULL,
	type       TEXT NOT NULL,
	weight     REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS ontology_aliases_alias_idx ON ontology_aliases(alias);

CREATE TABLE IF NOT EXISTS ontology_relations (
	concept_id TEXT NOT NULL REFERENCES ontology(id) ON DELETE CASCADE,
	target_id  TEXT NOT NULL,
	type       TEXT NOT NULL,
	weight     REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS ontology_relations_concept_idx ON ontology_relations(concept_id);

CREATE TABLE IF NOT EXISTS ontology_taxonomies (
	name TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS ontology_concept_taxonomies (
	concept_id TEXT NOT NULL REFERENCES ontology(id) ON DELETE CASCADE,
	taxonomy   TEXT NOT NULL REFERENCES ontology_taxonomies(name)
);

CREATE TABLE IF NOT EXISTS dictionary (
	term         TEXT PRIMARY KEY,
	synonyms     TEXT NOT NULL DEFAULT '[]',
	acronym_for  TEXT,
	boost_weight REAL NOT NULL DEFAULT 1.0
);

CREATE TABLE IF NOT EXISTS frpei_requests (
	id         TEXT PRIMARY KEY,
	query      TEXT NOT NULL,
	providers  TEXT NOT NULL DEFAULT '[]',
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS frpei_candidates (
	candidate_id TEXT PRIMARY KEY,
	request_id   TEXT REFERENCES frpei_requests(id) ON DELETE CASCADE,
	provider     TEXT NOT NULL,
	trust_tier   TEXT NOT NULL,
	title        TEXT NOT NULL,
	url          TEXT,
	normalized_url TEXT,
	snippet      TEXT,
	content_type TEXT,
	rank_score   REAL NOT NULL DEFAULT 0,
	rank         INTEGER NOT NULL DEFAULT 0,
	created_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS frpei_candidates_request_idx ON frpei_candidates(request_id);

CREATE TABLE IF NOT EXISTS frpei_enrichment (
	candidate_id TEXT PRIMARY KEY REFERENCES frpei_candidates(candidate_id) ON DELETE CASCADE,
	synonyms     TEXT NOT NULL DEFAULT '[]',
	related      TEXT NOT NULL DEFAULT '[]',
	taxonomies   TEXT NOT NULL DEFAULT '[]',
	confidence   REAL NOT NULL DEFAULT 0,
	enriched_at  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS frpei_rank_log (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	candidate_id   TEXT NOT NULL,
	base_score     REAL NOT NULL,
	provider_weight REAL NOT NULL,
	canonical_boost REAL NOT NULL,
	freshness_boost REAL NOT NULL,
	feedback_boost  REAL NOT NULL,
	total_score     REAL NOT NULL,
	created_at      TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS frpei_feedback (
	id           TEXT PRIMARY KEY,
	candidate_id TEXT NOT NULL,
	request_id   TEXT,
	provider     TEXT,
	sentiment    TEXT NOT NULL,
	rating       INTEGER,
	notes        TEXT,
	metadata     TEXT NOT NULL DEFAULT '{}',
	created_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS frpei_feedback_candidate_idx ON frpei_feedback(candidate_id);
`

func (s *Storage) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
