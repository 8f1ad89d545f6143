// Package rag implements the lexical retrieval engine that grounds assistant
// replies: document flattening, query scoring, ranking, and context-block
// rendering. Everything here is pure and synchronous.
package rag

import (
	"html"
	"regexp"
	"strings"
)

var (
	blockTagRe  = regexp.MustCompile(`(?i)</(p|div|li|h[1-6]|blockquote|tr)>|<br\s*/?>`)
	anyTagRe    = regexp.MustCompile(`<[^>]*>`)
	multiSpace  = regexp.MustCompile(`[ \t]+`)
	multiBreaks = regexp.MustCompile(`\n{3,}`)
)

// StripHTML converts an HTML fragment to plain text: block-level closers
// become line breaks, remaining tags are dropped, entities are decoded, and
// whitespace is collapsed.
func StripHTML(s string) string {
	if s == "" {
		return ""
	}
	s = blockTagRe.ReplaceAllString(s, "\n")
	s = anyTagRe.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	s = multiSpace.ReplaceAllString(s, " ")
	s = multiBreaks.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// Truncate shortens s to at most max runes, appending an ellipsis when text
// was cut. Non-positive max returns s unchanged.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max])) + "…"
}
