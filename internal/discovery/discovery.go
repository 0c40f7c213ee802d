// Package discovery implements Relay Discovery (§4.B): extracting
// candidate relay URLs out of crawled events and normalizing them.
package discovery

import (
	"net"
	"net/url"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/nbd-wtf/go-nostr"
)

// Discovery tracks the already-discovered URL set and already-processed
// event id set required to make extraction idempotent, grounded on the
// teacher's dedup-cache pattern in internal/nostr/relay_hints.go.
type Discovery struct {
	discovered *lru.Cache[string, struct{}]
	processed  *lru.Cache[string, struct{}]
}

// New builds a Discovery with bounded LRU caches for the discovered-URL
// and processed-event-id sets.
func New(capacity int) (*Discovery, error) {
	discovered, err := lru.New[string, struct{}](capacity)
	if err != nil {
		return nil, err
	}
	processed, err := lru.New[string, struct{}](capacity)
	if err != nil {
		return nil, err
	}
	return &Discovery{discovered: discovered, processed: processed}, nil
}

var wsURLPattern = regexp.MustCompile(`wss?://[^\s"'<>]+`)

// ExtractRelayURLs pulls candidate relay URLs from a single event: NIP-65
// r tags (kind 10002), any r tag on any event, and any wss?:// substring
// in content. Returns only newly discovered, normalized URLs; a repeat
// call for an already-processed event returns nothing.
func (d *Discovery) ExtractRelayURLs(ev *nostr.Event) []string {
	if _, seen := d.processed.Get(ev.ID); seen {
		return nil
	}
	d.processed.Add(ev.ID, struct{}{})

	var candidates []string
	for _, tag := range ev.Tags {
		if len(tag) >= 2 && tag[0] == "r" {
			candidates = append(candidates, tag[1])
		}
	}
	candidates = append(candidates, wsURLPattern.FindAllString(ev.Content, -1)...)

	var fresh []string
	for _, raw := range candidates {
		normalized, ok := Normalize(raw)
		if !ok {
			continue
		}
		if _, exists := d.discovered.Get(normalized); exists {
			continue
		}
		d.discovered.Add(normalized, struct{}{})
		fresh = append(fresh, normalized)
	}
	return fresh
}

// Normalize lowercases the host, strips a leading www., drops the path
// when it is exactly "/" (a trailing slash after a longer path is kept),
// and rejects localhost/RFC1918 targets. Returns
// ok=false for anything that isn't a usable public relay URL.
func Normalize(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		return "", false
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	if isPrivateOrLocal(host) {
		return "", false
	}

	port := u.Port()
	u.Host = host
	if port != "" {
		u.Host = host + ":" + port
	}
	path := u.Path
	if path == "/" {
		path = ""
	}
	u.Path = path
	u.RawQuery = ""
	u.Fragment = ""

	return u.Scheme + "://" + u.Host + u.Path, true
}

func isPrivateOrLocal(host string) bool {
	if host == "localhost" || strings.HasSuffix(host, ".local") {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast()
}
