// Package assistant orchestrates one assistant turn end to end: retrieval,
// prompt augmentation, streaming transport, think/reply splitting, and
// citation resolution against the retrieved context.
package assistant

import (
	"regexp"
	"strconv"

	"github.com/vheim/othala/internal/rag"
)

var citationRe = regexp.MustCompile(`\[(\d+)\]`)

// ResolvedCitation maps a bracket citation in model output to its source
// document. CitationIndex is dense (1..k, order of first appearance);
// OriginalCitationIndex is the number as the model wrote it.
type ResolvedCitation struct {
	CitationIndex         int          `json:"citationIndex"`
	OriginalCitationIndex int          `json:"originalCitationIndex"`
	Source                rag.Document `json:"source"`
}

// ExtractCitedSourceIndexes scans content for [n] citations and returns the
// positive indexes deduplicated in first-appearance order.
func ExtractCitedSourceIndexes(content string) []int {
	matches := citationRe.FindAllStringSubmatch(content, -1)
	seen := make(map[int]struct{}, len(matches))
	var out []int
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// ResolveCitedSources maps each cited index to its 1-based entry in sources.
// Out-of-range indexes are dropped silently: citation hallucination is
// expected and must not crash rendering. A source cited under two different
// original indexes counts once, keeping the first occurrence. Dense indexes
// are assigned 1..k in this filtered order.
func ResolveCitedSources(content string, sources []rag.Document) []ResolvedCitation {
	var out []ResolvedCitation
	seen := make(map[string]struct{})
	for _, idx := range ExtractCitedSourceIndexes(content) {
		if idx > len(sources) {
			continue
		}
		src := sources[idx-1]
		if _, dup := seen[src.ID]; dup {
			continue
		}
		seen[src.ID] = struct{}{}
		out = append(out, ResolvedCitation{
			CitationIndex:         len(out) + 1,
			OriginalCitationIndex: idx,
			Source:                src,
		})
	}
	return out
}

// RemapCitationIndexes rewrites every [n] whose original index resolved to a
// dense index. Unresolvable indexes are left unchanged so the surrounding
// prose still reads naturally even when the citation is wrong.
func RemapCitationIndexes(content string, citedSources []ResolvedCitation) string {
	remap := make(map[int]int, len(citedSources))
	for _, c := range citedSources {
		remap[c.OriginalCitationIndex] = c.CitationIndex
	}
	return citationRe.ReplaceAllStringFunc(content, func(token string) string {
		n, err := strconv.Atoi(token[1 : len(token)-1])
		if err != nil {
			return token
		}
		dense, ok := remap[n]
		if !ok {
			return token
		}
		return "[" + strconv.Itoa(dense) + "]"
	})
}
