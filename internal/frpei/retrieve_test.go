package frpei

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/beacon-search/beacon/internal/model"
)

func TestDedupe_KeepsHighestSignalPerURL(t *testing.T) {
	low := &model.Candidate{URL: "https://example.com/a", Signals: model.CandidateSignals{Score: 0.2}}
	high := &model.Candidate{URL: "https://EXAMPLE.com/a", Signals: model.CandidateSignals{Score: 0.9}}
	other := &model.Candidate{URL: "https://example.com/b", Signals: model.CandidateSignals{Score: 0.5}}

	out := dedupe([]*model.Candidate{low, high, other})

	assert.Len(t, out, 2)
	assert.Contains(t, out, high)
	assert.Contains(t, out, other)
	assert.NotContains(t, out, low)
}

func TestDedupe_PrefersNormalizedURLThenTitle(t *testing.T) {
	byNormalized := &model.Candidate{NormalizedURL: "example.com/a", URL: "https://example.com/a?x=1", Signals: model.CandidateSignals{Score: 0.1}}
	byTitle := &model.Candidate{Title: "Same Title", Signals: model.CandidateSignals{Score: 0.3}}
	byTitleDup := &model.Candidate{Title: "same title", Signals: model.CandidateSignals{Score: 0.7}}

	out := dedupe([]*model.Candidate{byNormalized, byTitle, byTitleDup})

	assert.Len(t, out, 2)
	assert.Contains(t, out, byNormalized)
	assert.Contains(t, out, byTitleDup)
}

func TestCacheKey_IsOrderIndependentOverProvidersAndTypes(t *testing.T) {
	a := CacheKey("nostr relays", 10, "hybrid", []string{"web", "local"}, []string{"text", "video"}, true)
	b := CacheKey("nostr relays", 10, "hybrid", []string{"local", "web"}, []string{"video", "text"}, true)
	assert.Equal(t, a, b)

	c := CacheKey("nostr relays", 10, "hybrid", []string{"local"}, []string{"text"}, true)
	assert.NotEqual(t, a, c)
}

func TestContainsStr(t *testing.T) {
	assert.True(t, containsStr([]string{"local", "web"}, "local"))
	assert.False(t, containsStr([]string{"local", "web"}, "media"))
}
