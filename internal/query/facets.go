package query

import (
	"context"
	"fmt"
	"time"

	"github.com/beacon-search/beacon/internal/storage"
)

// Facets is the computed facet breakdown for a result set, matching
// §4.E's facet list.
type Facets struct {
	Tags         []storage.FacetCount
	Authors      []storage.FacetCount
	ContentTypes []storage.FacetCount
	DocumentTypes []storage.FacetCount
	Sentiment    []storage.FacetCount
	Entities     map[string][]storage.FacetCount
	DateBuckets  map[string]int
}

const (
	tagFacetCap    = 30
	authorFacetCap = 30
	entityFacetCap = 20
)

var entityTypes = []string{"PERSON", "ORGANIZATION", "LOCATION"}

// ComputeFacets aggregates facet counts over the given result set's
// document ids.
func ComputeFacets(ctx context.Context, store *storage.Storage, documentIDs []string) (*Facets, error) {
	tags, err := store.TagFacets(ctx, documentIDs)
	if err != nil {
		return nil, err
	}
	if len(tags) > tagFacetCap {
		tags = tags[:tagFacetCap]
	}

	entities := make(map[string][]storage.FacetCount, len(entityTypes))
	for _, t := range entityTypes {
		counts, err := store.EntityFacets(ctx, documentIDs, t)
		if err != nil {
			return nil, fmt.Errorf("failed to compute %s facets: %w", t, err)
		}
		if len(counts) > entityFacetCap {
			counts = counts[:entityFacetCap]
		}
		entities[t] = counts
	}

	authors, err := store.AuthorFacets(ctx, documentIDs)
	if err != nil {
		return nil, err
	}
	if len(authors) > authorFacetCap {
		authors = authors[:authorFacetCap]
	}

	contentTypes, err := store.ContentTypeFacets(ctx, documentIDs)
	if err != nil {
		return nil, err
	}
	documentTypes, err := store.DocumentTypeFacets(ctx, documentIDs)
	if err != nil {
		return nil, err
	}

	sentiment, err := store.MetadataKeyFacets(ctx, documentIDs, "sentiment")
	if err != nil {
		return nil, err
	}

	dateBuckets, err := computeDateBuckets(ctx, store, documentIDs)
	if err != nil {
		return nil, err
	}

	return &Facets{
		Tags:          tags,
		Authors:       authors,
		ContentTypes:  contentTypes,
		DocumentTypes: documentTypes,
		Sentiment:     sentiment,
		Entities:      entities,
		DateBuckets:   dateBuckets,
	}, nil
}

var dateBucketWindows = map[string]time.Duration{
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
	"90d": 90 * 24 * time.Hour,
}

func computeDateBuckets(ctx context.Context, store *storage.Storage, documentIDs []string) (map[string]int, error) {
	buckets := map[string]int{"24h": 0, "7d": 0, "30d": 0, "90d": 0, "all": len(documentIDs)}
	for _, id := range documentIDs {
		doc, err := store.GetDocument(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load document %s for date bucketing: %w", id, err)
		}
		if doc == nil {
			continue
		}
		age := time.Since(doc.CreatedAt)
		for name, window := range dateBucketWindows {
			if age <= window {
				buckets[name]++
			}
		}
	}
	return buckets, nil
}
