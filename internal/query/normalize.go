// Package query implements the Query Engine (§4.E): query rewriting
// (normalize, tokenize, concept/relation/dictionary/abbreviation/fuzzy
// expansion) and hybrid retrieval over the document store.
package query

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	smartQuotes  = strings.NewReplacer(`“`, `"`, `”`, `"`, `‘`, "'", `’`, "'")
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Normalize applies NFKC normalization, smart-quote unification,
// lowercasing, underscore-to-space conversion and whitespace collapse —
// stage 1 of query rewriting.
func Normalize(raw string) string {
	s := norm.NFKC.String(raw)
	s = smartQuotes.Replace(s)
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "_", " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

var phrasePattern = regexp.MustCompile(`"([^"]+)"|'([^']+)'`)

// ExtractPhrases pulls quoted spans out verbatim (stage 2), returning
// the phrases and the remainder of the string with them removed.
func ExtractPhrases(s string) (phrases []string, remainder string) {
	remainder = phrasePattern.ReplaceAllStringFunc(s, func(m string) string {
		sub := phrasePattern.FindStringSubmatch(m)
		phrase := sub[1]
		if phrase == "" {
			phrase = sub[2]
		}
		phrases = append(phrases, phrase)
		return " "
	})
	return phrases, whitespaceRe.ReplaceAllString(remainder, " ")
}

// stopwords is the default English stopword set dropped during
// tokenization (stage 3), alongside tokens shorter than two runes.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "for": {}, "if": {}, "in": {}, "into": {}, "is": {},
	"it": {}, "no": {}, "not": {}, "of": {}, "on": {}, "or": {}, "such": {},
	"that": {}, "the": {}, "their": {}, "then": {}, "there": {}, "these": {},
	"they": {}, "this": {}, "to": {}, "was": {}, "will": {}, "with": {},
}

// Tokenize splits on whitespace and drops stopwords and tokens shorter
// than two runes.
func Tokenize(s string) []string {
	var tokens []string
	for _, tok := range strings.Fields(s) {
		if len([]rune(tok)) < 2 {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}
