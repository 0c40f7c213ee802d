package ingestion

import (
	"strings"
	"sync"
	"time"
	"unicode"
)

// SpamThresholds configures the composite, all-or-nothing spam filter
// of §4.D step 3. Values are set through Pipeline.WithThresholds; no
// environment variable feeds them, and the server uses
// DefaultSpamThresholds.
type SpamThresholds struct {
	MinLength          int
	MaxRepetitionRatio float64
	MaxNonASCIIRatio   float64
	MaxURLToTextRatio  float64
	MaxPostsPerMinute  int
}

// DefaultSpamThresholds are the thresholds a Pipeline starts with.
var DefaultSpamThresholds = SpamThresholds{
	MinLength:          8,
	MaxRepetitionRatio: 0.5,
	MaxNonASCIIRatio:   0.6,
	MaxURLToTextRatio:  0.7,
	MaxPostsPerMinute:  30,
}

// PostRateTracker counts posts per pubkey in a rolling one-minute
// window, backing the per-minute post rate spam signal.
type PostRateTracker struct {
	mu    sync.Mutex
	posts map[string][]time.Time
}

// NewPostRateTracker builds an empty tracker.
func NewPostRateTracker() *PostRateTracker {
	return &PostRateTracker{posts: make(map[string][]time.Time)}
}

// Record notes a post by pubkey at the current time and returns the
// count within the trailing minute, including this one.
func (t *PostRateTracker) Record(pubkey string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-time.Minute)
	window := t.posts[pubkey]
	i := 0
	for i < len(window) && window[i].Before(cutoff) {
		i++
	}
	window = append(window[i:], now)
	t.posts[pubkey] = window
	return len(window)
}

// IsSpam runs the composite spam filter over extracted content. It
// fails (returns true, reason) on the first threshold breach.
func IsSpam(body string, thresholds SpamThresholds, postsInLastMinute int) (bool, string) {
	stripped := stripPunctuation(body)
	if len(stripped) < thresholds.MinLength {
		return true, "content too short"
	}

	if ratio := repetitionRatio(stripped); ratio > thresholds.MaxRepetitionRatio {
		return true, "excessive token repetition"
	}

	if ratio := nonASCIIRatio(body); ratio > thresholds.MaxNonASCIIRatio {
		return true, "excessive non-ASCII/emoji content"
	}

	if ratio := urlToTextRatio(body); ratio > thresholds.MaxURLToTextRatio {
		return true, "excessive URL-to-text ratio"
	}

	if postsInLastMinute > thresholds.MaxPostsPerMinute {
		return true, "post rate exceeds per-minute limit"
	}

	return false, ""
}

func stripPunctuation(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsPunct(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func repetitionRatio(s string) float64 {
	tokens := strings.Fields(s)
	if len(tokens) == 0 {
		return 0
	}
	counts := make(map[string]int, len(tokens))
	maxCount := 0
	for _, tok := range tokens {
		counts[tok]++
		if counts[tok] > maxCount {
			maxCount = counts[tok]
		}
	}
	return float64(maxCount) / float64(len(tokens))
}

func nonASCIIRatio(s string) float64 {
	if len(s) == 0 {
		return 0
	}
	var nonASCII, total int
	for _, r := range s {
		total++
		if r > unicode.MaxASCII {
			nonASCII++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(nonASCII) / float64(total)
}

func urlToTextRatio(s string) float64 {
	urls := linkPattern.FindAllString(s, -1)
	if len(s) == 0 {
		return 0
	}
	var urlLen int
	for _, u := range urls {
		urlLen += len(u)
	}
	return float64(urlLen) / float64(len(s))
}
