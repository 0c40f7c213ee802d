package ingestion

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSpam_TooShort(t *testing.T) {
	spam, reason := IsSpam("hi", DefaultSpamThresholds, 0)
	assert.True(t, spam)
	assert.Equal(t, "content too short", reason)
}

func TestIsSpam_ExcessiveRepetition(t *testing.T) {
	body := "buy buy buy buy buy buy buy now now"
	spam, reason := IsSpam(body, DefaultSpamThresholds, 0)
	assert.True(t, spam)
	assert.Equal(t, "excessive token repetition", reason)
}

func TestIsSpam_ExcessiveURLRatio(t *testing.T) {
	body := "check out this https://spam.example.com/" + strings.Repeat("a", 200) + " great stuff"
	spam, reason := IsSpam(body, DefaultSpamThresholds, 0)
	assert.True(t, spam)
	assert.Equal(t, "excessive URL-to-text ratio", reason)
}

func TestIsSpam_PostRateExceeded(t *testing.T) {
	body := "A perfectly normal, legitimate post about nostr relays and ontologies."
	spam, reason := IsSpam(body, DefaultSpamThresholds, 100)
	assert.True(t, spam)
	assert.Equal(t, "post rate exceeds per-minute limit", reason)
}

func TestIsSpam_PassesCleanContent(t *testing.T) {
	body := "A perfectly normal, legitimate post about nostr relays and ontologies."
	spam, reason := IsSpam(body, DefaultSpamThresholds, 1)
	assert.False(t, spam)
	assert.Empty(t, reason)
}

func TestPostRateTracker_CountsWithinWindow(t *testing.T) {
	tracker := NewPostRateTracker()
	assert.Equal(t, 1, tracker.Record("pubkey1"))
	assert.Equal(t, 2, tracker.Record("pubkey1"))
	assert.Equal(t, 1, tracker.Record("pubkey2"))
}
