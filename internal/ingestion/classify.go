package ingestion

// Extractor names the content-extraction routine a classified kind
// declares; ExtractionStage dispatches on these.
type Extractor string

const (
	ExtractorText         Extractor = "text"
	ExtractorMarkdown     Extractor = "markdown"
	ExtractorHashtags     Extractor = "hashtags"
	ExtractorLinks        Extractor = "links"
	ExtractorLongform     Extractor = "longform"
	ExtractorProfile      Extractor = "profile"
	ExtractorContacts     Extractor = "contacts"
	ExtractorStructured   Extractor = "structured"
	ExtractorVideo        Extractor = "video"
	ExtractorFileMetadata Extractor = "file-metadata"
)

// Classification is the result of kind classification: a category
// label, an indexing priority in [1,10], and the extractors to run.
type Classification struct {
	Category   string
	Priority   int
	Extractors []Extractor
}

// kindRules maps a Nostr kind to its Classification. Kinds absent here
// fall back to classifyFallback.
var kindRules = map[int]Classification{
	0:     {Category: "profile", Priority: 6, Extractors: []Extractor{ExtractorProfile}},
	1:     {Category: "note", Priority: 8, Extractors: []Extractor{ExtractorText, ExtractorHashtags, ExtractorLinks}},
	3:     {Category: "contacts", Priority: 4, Extractors: []Extractor{ExtractorContacts}},
	6:     {Category: "repost", Priority: 3, Extractors: []Extractor{ExtractorText, ExtractorLinks}},
	7:     {Category: "reaction", Priority: 3, Extractors: []Extractor{ExtractorText}},
	1063:  {Category: "file", Priority: 5, Extractors: []Extractor{ExtractorFileMetadata}},
	10002: {Category: "relay-list", Priority: 9, Extractors: []Extractor{ExtractorStructured}},
	30023: {Category: "longform", Priority: 9, Extractors: []Extractor{ExtractorMarkdown, ExtractorLongform, ExtractorHashtags, ExtractorLinks}},
	30024: {Category: "longform-draft", Priority: 7, Extractors: []Extractor{ExtractorMarkdown, ExtractorLongform}},
	30040: {Category: "publication-index", Priority: 6, Extractors: []Extractor{ExtractorStructured}},
	30311: {Category: "livestream", Priority: 6, Extractors: []Extractor{ExtractorVideo, ExtractorStructured}},
	30402: {Category: "classified-listing", Priority: 7, Extractors: []Extractor{ExtractorStructured, ExtractorText}},
}

// Classify returns the Classification for kind. Events with priority
// below 3 are dropped silently by the caller; ephemeral kinds
// [20000,30000) default to priority 1 and are dropped for the same
// reason.
func Classify(kind int) Classification {
	if c, ok := kindRules[kind]; ok {
		return c
	}
	if kind >= 20000 && kind < 30000 {
		return Classification{Category: "ephemeral", Priority: 1}
	}
	return Classification{Category: "unclassified", Priority: 2}
}
