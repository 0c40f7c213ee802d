package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/beacon-search/beacon/internal/model"
)

// ErrEmbeddingDimMismatch is a Fatal-class error per the error taxonomy:
// a schema invariant violation that must propagate, never be retried.
var ErrEmbeddingDimMismatch = errors.New("embedding dimension mismatch")

// IsFatal reports whether err belongs to the Fatal class of §7's error
// taxonomy: a database connection loss or a schema invariant violation.
// Callers that absorb per-event errors (ingestion, the crawler) must
// check this and abort their current task rather than log-and-continue.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrEmbeddingDimMismatch) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, sql.ErrTxDone) ||
		errors.Is(err, driver.ErrBadConn)
}

func encodeEmbedding(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		bits := math.Float32bits(f)
		buf[4*i] = byte(bits)
		buf[4*i+1] = byte(bits >> 8)
		buf[4*i+2] = byte(bits >> 16)
		buf[4*i+3] = byte(bits >> 24)
	}
	return buf
}

func decodeEmbedding(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		bits := uint32(b[4*i]) | uint32(b[4*i+1])<<8 | uint32(b[4*i+2])<<16 | uint32(b[4*i+3])<<24
		out[i] = math.Float32frombits(bits)
	}
	return out
}

// CosineDistance computes 1 - cosine_similarity for two equal-length
// vectors, standing in for a vector extension's native operator.
func CosineDistance(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 1
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 1
	}
	sim := dot / (math.Sqrt(magA) * math.Sqrt(magB))
	return 1 - sim
}

type documentRow struct {
	ID           string    `db:"id"`
	ExternalID   sql.NullString `db:"external_id"`
	SourceID     sql.NullString `db:"source_id"`
	Title        string    `db:"title"`
	Content      string    `db:"content"`
	URL          sql.NullString `db:"url"`
	DocumentType string    `db:"document_type"`
	ContentType  string    `db:"content_type"`
	Attributes   string    `db:"attributes"`
	Embedding    []byte    `db:"embedding"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r documentRow) toModel() (*model.Document, error) {
	d := &model.Document{
		ID:           r.ID,
		ExternalID:   r.ExternalID.String,
		SourceID:     r.SourceID.String,
		Title:        r.Title,
		Content:      r.Content,
		URL:          r.URL.String,
		DocumentType: r.DocumentType,
		ContentType:  model.ContentType(r.ContentType),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		Embedding:    decodeEmbedding(r.Embedding),
	}
	if r.Attributes != "" {
		if err := json.Unmarshal([]byte(r.Attributes), &d.Attributes); err != nil {
			return nil, fmt.Errorf("failed to decode attributes: %w", err)
		}
	}
	return d, nil
}

// UpsertDocumentAndEvent performs the §4.D step-4 upsert: Document keyed
// by (source_id, external_id) when both present, else a fresh insert;
// Nostr Event keyed by event_id. Both writes commit in one transaction.
// On conflict, quality_score and indexed_at update; event_created_at
// never changes once written.
func (s *Storage) UpsertDocumentAndEvent(ctx context.Context, doc *model.Document, ev *model.NostrEventRecord) (string, error) {
	if len(doc.Embedding) > 0 && len(doc.Embedding) != s.dim {
		return "", fmt.Errorf("%w: got %d want %d", ErrEmbeddingDimMismatch, len(doc.Embedding), s.dim)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	docID, err := upsertDocumentTx(ctx, tx, doc)
	if err != nil {
		return "", fmt.Errorf("failed to upsert document: %w", err)
	}
	ev.DocumentID = docID

	if err := upsertEventTx(ctx, tx, ev); err != nil {
		return "", fmt.Errorf("failed to upsert nostr event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit upsert: %w", err)
	}
	return docID, nil
}

func upsertDocumentTx(ctx context.Context, tx txLike, doc *model.Document) (string, error) {
	attrsJSON, err := json.Marshal(doc.Attributes)
	if err != nil {
		return "", fmt.Errorf("failed to encode attributes: %w", err)
	}

	now := time.Now().UTC()
	if doc.SourceID != "" && doc.ExternalID != "" {
		var existingID string
		err := tx.GetContext(ctx, &existingID,
			`SELECT id FROM documents WHERE source_id = ? AND external_id = ?`,
			doc.SourceID, doc.ExternalID)
		if err == nil {
			_, err = tx.ExecContext(ctx, `
				UPDATE documents SET title = ?, content = ?, url = ?, document_type = ?,
					content_type = ?, attributes = ?, embedding = COALESCE(?, embedding), updated_at = ?
				WHERE id = ?`,
				doc.Title, doc.Content, nullable(doc.URL), doc.DocumentType,
				string(doc.ContentType), string(attrsJSON), encodeEmbedding(doc.Embedding), now, existingID)
			if err != nil {
				return "", err
			}
			return existingID, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return "", err
		}
	}

	if doc.ID == "" {
		doc.ID = newID()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (id, external_id, source_id, title, content, url, document_type,
			content_type, attributes, embedding, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, nullable(doc.ExternalID), nullable(doc.SourceID), doc.Title, doc.Content,
		nullable(doc.URL), doc.DocumentType, string(doc.ContentType), string(attrsJSON),
		encodeEmbedding(doc.Embedding), doc.CreatedAt, now)
	if err != nil {
		return "", err
	}
	return doc.ID, nil
}

func upsertEventTx(ctx context.Context, tx txLike, ev *model.NostrEventRecord) error {
	tagsJSON, err := json.Marshal(ev.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		UPDATE nostr_events SET quality_score = ?, indexed_at = ?
		WHERE event_id = ?`, ev.QualityScore, now, ev.EventID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO nostr_events (event_id, pubkey, kind, event_created_at, tags, document_id,
			quality_score, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.EventID, ev.PubKey, ev.Kind, ev.EventCreatedAt, string(tagsJSON), ev.DocumentID,
		ev.QualityScore, now)
	return err
}

// EventExists reports whether a Nostr event has already been indexed,
// supporting the idempotent-reingest invariant without a full upsert.
func (s *Storage) EventExists(ctx context.Context, eventID string) (bool, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(1) FROM nostr_events WHERE event_id = ?`, eventID); err != nil {
		return false, fmt.Errorf("failed to check event existence: %w", err)
	}
	return n > 0, nil
}

// GetDocument fetches a single document by id.
func (s *Storage) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	var row documentRow
	if err := s.db.GetContext(ctx, &row, `SELECT * FROM documents WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return row.toModel()
}

// DeleteDocument removes a document and cascades to its Nostr event
// record. Together with PurgeDocuments it is the only path documents
// are removed, per the explicit-admin-command lifecycle rule.
func (s *Storage) DeleteDocument(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// PurgeCriteria selects which documents an admin-invoked purge removes.
// At least one field must be set; zero values are "don't filter on this".
type PurgeCriteria struct {
	OlderThan    time.Time
	DocumentType string
	SourceID     string
}

// PurgeDocuments deletes all documents matching criteria and reports how
// many rows were removed. This is the only bulk-delete path in the
// storage layer: documents are otherwise removed one at a time via
// DeleteDocument, and nothing calls PurgeDocuments except an explicit
// admin operation.
func (s *Storage) PurgeDocuments(ctx context.Context, criteria PurgeCriteria) (int64, error) {
	query := `DELETE FROM documents WHERE 1=1`
	var args []any
	if !criteria.OlderThan.IsZero() {
		query += ` AND created_at < ?`
		args = append(args, criteria.OlderThan.UTC())
	}
	if criteria.DocumentType != "" {
		query += ` AND document_type = ?`
		args = append(args, criteria.DocumentType)
	}
	if criteria.SourceID != "" {
		query += ` AND source_id = ?`
		args = append(args, criteria.SourceID)
	}
	if len(args) == 0 {
		return 0, fmt.Errorf("purge criteria must constrain at least one field")
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to purge documents: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged documents: %w", err)
	}
	return n, nil
}

// ReplaceFacetRows swaps the tag/entity/metadata rows for a document as
// part of extraction, keeping facet tables in sync with the latest
// indexed version.
func (s *Storage) ReplaceFacetRows(ctx context.Context, documentID string, tags []string, entities []model.DocumentEntity, metadata map[string]string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_tags WHERE document_id = ?`, documentID); err != nil {
		return err
	}
	for _, tag := range tags {
		if _, err := tx.ExecContext(ctx, `INSERT INTO document_tags (document_id, tag) VALUES (?, ?)`, documentID, tag); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_entities WHERE document_id = ?`, documentID); err != nil {
		return err
	}
	for _, e := range entities {
		if _, err := tx.ExecContext(ctx, `INSERT INTO document_entities (document_id, entity_type, value) VALUES (?, ?, ?)`, documentID, e.EntityType, e.Value); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_metadata WHERE document_id = ?`, documentID); err != nil {
		return err
	}
	for k, v := range metadata {
		if _, err := tx.ExecContext(ctx, `INSERT INTO document_metadata (document_id, key, value) VALUES (?, ?, ?)`, documentID, k, v); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
