// Package model defines the canonical record types shared by every
// component of the ingestion and retrieval core.
package model

import "time"

// ContentType is the enum of canonical content kinds a Document can hold.
type ContentType string

const (
	ContentTypeText  ContentType = "text"
	ContentTypeAudio ContentType = "audio"
	ContentTypeVideo ContentType = "video"
	ContentTypeImage ContentType = "image"
)

// Document is the canonical record produced by the Ingestion Pipeline
// and by FRPEI's feedback loop.
type Document struct {
	ID           string         `db:"id" json:"id"`
	ExternalID   string         `db:"external_id" json:"externalId,omitempty"`
	SourceID     string         `db:"source_id" json:"sourceId,omitempty"`
	Title        string         `db:"title" json:"title"`
	Content      string         `db:"content" json:"content"`
	URL          string         `db:"url" json:"url,omitempty"`
	DocumentType string         `db:"document_type" json:"documentType"`
	ContentType  ContentType    `db:"content_type" json:"contentType"`
	CreatedAt    time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updatedAt"`
	Attributes   map[string]any `db:"-" json:"attributes,omitempty"`
	Embedding    []float32      `db:"-" json:"embedding,omitempty"`
}

// NostrEventRecord mirrors a crawled Nostr event joined to its Document.
type NostrEventRecord struct {
	EventID        string     `db:"event_id" json:"eventId"`
	PubKey         string     `db:"pubkey" json:"pubkey"`
	Kind           int        `db:"kind" json:"kind"`
	EventCreatedAt int64      `db:"event_created_at" json:"eventCreatedAt"`
	Tags           [][]string `db:"-" json:"tags,omitempty"`
	DocumentID     string     `db:"document_id" json:"documentId"`
	QualityScore   float64    `db:"quality_score" json:"qualityScore"`
	IndexedAt      time.Time  `db:"indexed_at" json:"indexedAt"`
}

// DocumentTag is a row of the document_tags facet table.
type DocumentTag struct {
	DocumentID string `db:"document_id"`
	Tag        string `db:"tag"`
}

// DocumentEntity is a row of the document_entities facet table.
type DocumentEntity struct {
	DocumentID string `db:"document_id"`
	EntityType string `db:"entity_type"` // facets read PERSON|ORGANIZATION|LOCATION; ingestion writes NOSTR_ENTITY
	Value      string `db:"value"`
}

// DocumentMetadata is a row of the document_metadata key/value table,
// used for free-form provenance such as author/detected_author.
type DocumentMetadata struct {
	DocumentID string `db:"document_id"`
	Key        string `db:"key"`
	Value      string `db:"value"`
}
