package rag

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"
)

// Document is a normalized, searchable representation of a workspace entity
// or conversation, built fresh per assistant turn and never persisted.
type Document struct {
	ID         string `json:"id"`
	SourceType string `json:"sourceType"`
	Title      string `json:"title"`
	UpdatedAt  string `json:"updatedAt,omitempty"` // RFC 3339, may be empty
	Content    string `json:"content"`
}

// Options bounds a retrieval pass.
type Options struct {
	MaxDocuments int       // selection slots, default 12
	MaxChars     int       // overall character budget, default 7000
	Now          time.Time // recency reference, defaults to time.Now
}

const (
	defaultMaxDocuments = 12
	defaultMaxChars     = 7000
)

// stopwords are common English function words carrying no query signal.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "for": {}, "from": {}, "has": {}, "have": {},
	"how": {}, "in": {}, "is": {}, "it": {}, "its": {}, "me": {}, "my": {},
	"of": {}, "on": {}, "or": {}, "our": {}, "so": {}, "that": {},
	"the": {}, "their": {}, "them": {}, "they": {}, "this": {}, "to": {},
	"was": {}, "we": {}, "what": {}, "will": {}, "with": {}, "you": {},
}

// Tokenize lowercases s, splits on non-alphanumeric runs, and drops tokens of
// length 1 and stop-words.
func Tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var out []string
	for _, f := range fields {
		if len(f) <= 1 {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}

// recencyBonus is a mild freshness tie-break, not a hard filter: documents
// updated within roughly the last 90 days earn up to 0.75.
func recencyBonus(updatedAt string, now time.Time) float64 {
	if updatedAt == "" {
		return 0
	}
	t, err := time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return 0
	}
	ageDays := now.Sub(t).Hours() / 24
	bonus := 0.75 - ageDays/120
	if bonus < 0 {
		return 0
	}
	return bonus
}

// RetrieveRelevantDocuments ranks docs against a free-text query and returns
// the best candidates in score order, bounded by slot count and character
// budget. A query with no non-stopword tokens returns nothing: without query
// signal there is no relevance to claim.
func RetrieveRelevantDocuments(query string, docs []Document, opts Options) []Document {
	maxDocs := opts.MaxDocuments
	if maxDocs <= 0 {
		maxDocs = defaultMaxDocuments
	}
	maxChars := opts.MaxChars
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	queryTokens := Tokenize(query)
	if len(queryTokens) == 0 {
		return nil
	}
	uniqueQuery := dedupe(queryTokens)
	normQuery := strings.ToLower(strings.TrimSpace(query))

	type scored struct {
		doc   Document
		score float64
	}
	var ranked []scored

	for _, doc := range docs {
		score := scoreDocument(doc, queryTokens, uniqueQuery, normQuery, now)
		if score <= 0 {
			continue
		}
		ranked = append(ranked, scored{doc: doc, score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if len(ranked) > 2*maxDocs {
		ranked = ranked[:2*maxDocs]
	}

	// Greedy packing under the character budget, in rank order. Stop at the
	// first document that would exceed the budget.
	var out []Document
	used := 0
	for _, c := range ranked {
		if len(out) >= maxDocs {
			break
		}
		cost := len(c.doc.Title) + len(c.doc.Content)
		if used+cost > maxChars {
			break
		}
		used += cost
		out = append(out, c.doc)
	}
	return out
}

func scoreDocument(doc Document, queryTokens, uniqueQuery []string, normQuery string, now time.Time) float64 {
	titleCounts := tokenCounts(Tokenize(doc.Title))
	bodyCounts := tokenCounts(Tokenize(doc.Content))

	var score float64
	matched := 0

	for _, q := range uniqueQuery {
		titleOcc := titleCounts[q]
		bodyOcc := bodyCounts[q]
		if titleOcc > 0 || bodyOcc > 0 {
			score += float64(min(titleOcc, 4))*4 + float64(min(bodyOcc, 6))*1.4
			matched++
			continue
		}
		// Soft prefix match recovers plural/stemmed near-misses without a
		// real stemmer. Each query token contributes through exactly one
		// path, never both.
		if len(q) >= 4 && hasPrefixMatch(q, titleCounts, bodyCounts) {
			score += 0.8
			matched++
		}
	}

	score += float64(matched) / float64(len(uniqueQuery)) * 3.5

	haystack := strings.ToLower(doc.Title + " " + doc.Content)
	if len(normQuery) >= 8 && strings.Contains(haystack, normQuery) {
		score += 6
	}
	for i := 0; i+1 < len(queryTokens); i++ {
		if strings.Contains(haystack, queryTokens[i]+" "+queryTokens[i+1]) {
			score += 1.25
		}
	}

	score += recencyBonus(doc.UpdatedAt, now)
	return score
}

func hasPrefixMatch(q string, counts ...map[string]int) bool {
	p := q[:4]
	for _, m := range counts {
		for tok := range m {
			if len(tok) < 4 {
				continue
			}
			if strings.HasPrefix(tok, p) && (strings.HasPrefix(tok, q) || strings.HasPrefix(q, tok)) {
				return true
			}
		}
	}
	return false
}

func tokenCounts(tokens []string) map[string]int {
	out := make(map[string]int, len(tokens))
	for _, t := range tokens {
		out[t]++
	}
	return out
}

func dedupe(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	var out []string
	for _, t := range tokens {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// BuildRagContextBlock renders selected documents as the numbered list the
// model is instructed to cite, 1-indexed in selection order.
func BuildRagContextBlock(docs []Document) string {
	var b strings.Builder
	for i, doc := range docs {
		header := fmt.Sprintf("[%d] %s: %s", i+1, doc.SourceType, doc.Title)
		if t, err := time.Parse(time.RFC3339, doc.UpdatedAt); err == nil {
			header += fmt.Sprintf(" (updated %s)", t.Format("2006-01-02"))
		}
		b.WriteString(header)
		b.WriteString("\n")
		b.WriteString(doc.Content)
		if i < len(docs)-1 {
			b.WriteString("\n\n")
		}
	}
	return b.String()
}
