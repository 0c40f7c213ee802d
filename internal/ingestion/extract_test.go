package ingestion_test

import (
	"testing"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/assert"

	"github.com/beacon-search/beacon/internal/ingestion"
)

func TestExtract_RepostAndReactionCarryActingPubkey(t *testing.T) {
	repost := &nostr.Event{ID: "evt-repost", PubKey: "pk-reposter", Kind: 6, Content: ""}
	out := ingestion.Extract(repost, ingestion.Classify(6))
	assert.Equal(t, "pk-reposter", out.Metadata["actor_pubkey"])

	reaction := &nostr.Event{ID: "evt-reaction", PubKey: "pk-liker", Kind: 7, Content: "+"}
	out = ingestion.Extract(reaction, ingestion.Classify(7))
	assert.Equal(t, "pk-liker", out.Metadata["actor_pubkey"])
}

func TestExtract_NoteDoesNotCarryActorPubkey(t *testing.T) {
	note := &nostr.Event{ID: "evt-note", PubKey: "pk-author", Kind: 1, Content: "hello"}
	out := ingestion.Extract(note, ingestion.Classify(1))
	_, ok := out.Metadata["actor_pubkey"]
	assert.False(t, ok)
}
