package ingestion

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/nbd-wtf/go-nostr"

	"github.com/beacon-search/beacon/internal/model"
)

// Extracted is the output of running a kind's declared extractors over
// one event, ready to be folded into a Document.
type Extracted struct {
	Title        string
	Body         string
	Tags         []string
	Entities     []model.DocumentEntity
	Metadata     map[string]string
	QualityScore float64
}

var (
	hashtagPattern = regexp.MustCompile(`#(\w+)`)
	linkPattern    = regexp.MustCompile(`https?://[^\s"'<>]+`)
	nip19Pattern   = regexp.MustCompile(`nostr:(npub1[a-z0-9]+|nprofile1[a-z0-9]+|note1[a-z0-9]+|nevent1[a-z0-9]+|naddr1[a-z0-9]+)`)
)

// Extract runs every extractor declared for ev's classification and
// merges their outputs, mirroring the teacher's NIP-19 entity-scan
// pattern in internal/entities/resolver.go.
func Extract(ev *nostr.Event, c Classification) Extracted {
	out := Extracted{
		Body:     ev.Content,
		Metadata: map[string]string{},
	}

	for _, ext := range c.Extractors {
		switch ext {
		case ExtractorText, ExtractorMarkdown:
			out.Body = ev.Content
		case ExtractorHashtags:
			out.Tags = append(out.Tags, extractHashtags(ev)...)
		case ExtractorLinks:
			out.Metadata["links"] = strings.Join(linkPattern.FindAllString(ev.Content, -1), ",")
		case ExtractorLongform:
			out.Title = tagValue(ev, "title")
			if summary := tagValue(ev, "summary"); summary != "" {
				out.Metadata["summary"] = summary
			}
		case ExtractorProfile:
			extractProfile(ev, &out)
		case ExtractorContacts:
			out.Metadata["contact_count"] = strconv.Itoa(len(ev.Tags))
		case ExtractorStructured:
			extractStructuredTags(ev, &out)
		case ExtractorVideo:
			out.Metadata["stream_status"] = tagValue(ev, "status")
		case ExtractorFileMetadata:
			out.Metadata["mime_type"] = tagValue(ev, "m")
			out.Metadata["file_hash"] = tagValue(ev, "x")
		}
	}

	if ev.Kind == 6 || ev.Kind == 7 {
		// For a repost/reaction event, ev.PubKey is the acting user's own
		// pubkey, not a guess: it is the author of this event, which is
		// exactly who performed the repost/like.
		out.Metadata["actor_pubkey"] = ev.PubKey
	}

	out.Entities = extractEntities(ev)
	out.QualityScore = qualityScore(ev, out)
	return out
}

func extractHashtags(ev *nostr.Event) []string {
	var tags []string
	seen := map[string]struct{}{}
	for _, t := range ev.Tags {
		if len(t) >= 2 && t[0] == "t" {
			if _, ok := seen[t[1]]; !ok {
				seen[t[1]] = struct{}{}
				tags = append(tags, t[1])
			}
		}
	}
	for _, m := range hashtagPattern.FindAllStringSubmatch(ev.Content, -1) {
		if _, ok := seen[m[1]]; !ok {
			seen[m[1]] = struct{}{}
			tags = append(tags, m[1])
		}
	}
	return tags
}

func extractProfile(ev *nostr.Event, out *Extracted) {
	var meta struct {
		Name        string `json:"name"`
		DisplayName string `json:"display_name"`
		About       string `json:"about"`
		NIP05       string `json:"nip05"`
	}
	if err := json.Unmarshal([]byte(ev.Content), &meta); err != nil {
		return
	}
	out.Title = firstNonEmpty(meta.DisplayName, meta.Name)
	out.Body = meta.About
	if meta.NIP05 != "" {
		out.Metadata["nip05"] = meta.NIP05
	}
}

func extractStructuredTags(ev *nostr.Event, out *Extracted) {
	if d := tagValue(ev, "d"); d != "" {
		out.Metadata["d"] = d
	}
	if title := tagValue(ev, "title"); title != "" && out.Title == "" {
		out.Title = title
	}
}

func extractEntities(ev *nostr.Event) []model.DocumentEntity {
	var entities []model.DocumentEntity
	for _, m := range nip19Pattern.FindAllStringSubmatch(ev.Content, -1) {
		entities = append(entities, model.DocumentEntity{EntityType: "NOSTR_ENTITY", Value: m[1]})
	}
	return entities
}

// qualityScore is a simple heuristic in [0,1]: longer, tagged content
// with at least one hashtag or link scores higher than bare-minimum
// posts. It feeds the Nostr event record's stored quality_score, refreshed on
// every re-ingest of the same event per the upsert invariant.
func qualityScore(ev *nostr.Event, out Extracted) float64 {
	var score float64
	switch {
	case len(out.Body) > 280:
		score += 0.4
	case len(out.Body) > 80:
		score += 0.2
	}
	if len(out.Tags) > 0 {
		score += 0.2
	}
	if out.Title != "" {
		score += 0.2
	}
	if len(out.Metadata) > 0 {
		score += 0.2
	}
	if score > 1 {
		score = 1
	}
	return score
}

func tagValue(ev *nostr.Event, name string) string {
	for _, t := range ev.Tags {
		if len(t) >= 2 && t[0] == name {
			return t[1]
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
