package discovery

import (
	"testing"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"strips trailing slash", "wss://Relay.Example.com/", "wss://relay.example.com", true},
		{"strips www", "wss://www.relay.example.com", "wss://relay.example.com", true},
		{"keeps path", "wss://relay.example.com/nostr", "wss://relay.example.com/nostr", true},
		{"rejects localhost", "wss://localhost:4848", "", false},
		{"rejects private ip", "wss://192.168.1.5", "", false},
		{"rejects non-ws scheme", "https://relay.example.com", "", false},
		{"rejects garbage", "not a url", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Normalize(tc.in)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestExtractRelayURLs_DedupesAndIgnoresProcessedEvents(t *testing.T) {
	d, err := New(100)
	require.NoError(t, err)

	ev := &nostr.Event{
		ID: "event1",
		Tags: nostr.Tags{
			{"r", "wss://relay.one.com"},
			{"r", "wss://relay.one.com"},
		},
		Content: "check out wss://relay.two.com for more",
	}

	urls := d.ExtractRelayURLs(ev)
	assert.ElementsMatch(t, []string{"wss://relay.one.com", "wss://relay.two.com"}, urls)

	// same event id again: already processed, no output
	again := d.ExtractRelayURLs(ev)
	assert.Empty(t, again)
}

func TestExtractRelayURLs_SkipsAlreadyDiscovered(t *testing.T) {
	d, err := New(100)
	require.NoError(t, err)

	first := &nostr.Event{ID: "e1", Tags: nostr.Tags{{"r", "wss://relay.one.com"}}}
	second := &nostr.Event{ID: "e2", Tags: nostr.Tags{{"r", "wss://relay.one.com"}}}

	assert.Equal(t, []string{"wss://relay.one.com"}, d.ExtractRelayURLs(first))
	assert.Empty(t, d.ExtractRelayURLs(second))
}
