// Package engine implements the Keyword, Vector, and Hybrid search
// engines (spec §4.D/E/F): each satisfies the same search(query, k)
// contract so the Retrieval Pipeline can dispatch to any of them
// polymorphically, the way the teacher treats its parser strategies as
// interchangeable values rather than a class hierarchy.
package engine

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ai-agent-go/internal/logger"
	"ai-agent-go/internal/tracing"
	"ai-agent-go/internal/types"
)

// KeywordStore is the narrow slice of the Document Store Adapter the
// Keyword Engine depends on, letting tests supply a fake in place of a
// live MySQL-backed store.KeywordStore.
type KeywordStore interface {
	KeywordQuery(ctx context.Context, tokens []string, limit int) ([]types.ResumeDocument, error)
}

var keywordTracer = otel.Tracer("ai-agent-go/engine/keyword")

// fieldWeights gives each searchable field's contribution to a document's
// raw keyword score. Weights and their rationale are fixed by the
// retrieval algorithm. Every entry of types.SearchFields has a weight
// except "company", which the store query matches on but which adds
// nothing to the score.
var fieldWeights = map[string]float64{
	"text":   1.0,
	"name":   2.0,
	"email":  1.5,
	"skills": 3.0,
	"role":   2.5,
}

const (
	keywordScoreCeiling = 30.0
	snippetMaxRunes     = 200
)

// Keyword is the field-weighted regex search engine (component D).
type Keyword struct {
	store KeywordStore
}

// NewKeyword builds a Keyword engine over a keyword store.
func NewKeyword(s KeywordStore) *Keyword {
	return &Keyword{store: s}
}

// Search tokenizes query by whitespace, issues one alternation-regex
// keyword query against the store, scores and snippets each returned
// document, and returns the top k ordered by score descending.
func (k *Keyword) Search(ctx context.Context, query string, limit int) ([]types.SearchResultItem, error) {
	ctx, span := keywordTracer.Start(ctx, "Keyword.Search", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	span.SetAttributes(attribute.String("engine.query", tracing.SafeAttributeValue("engine.query", query, tracing.DefaultMaxLength)), attribute.Int("engine.k", limit))
	log := logger.Component("engine.keyword")

	if k.store == nil {
		return nil, fmt.Errorf("keyword engine: store not available")
	}

	tokens := tokenize(query)
	if len(tokens) == 0 || limit <= 0 {
		return nil, nil
	}

	fetchLimit := limit * 2
	docs, err := k.store.KeywordQuery(ctx, tokens, fetchLimit)
	if err != nil {
		return nil, fmt.Errorf("keyword engine: store query failed: %w", err)
	}

	matcher, err := compileAlternation(tokens)
	if err != nil {
		return nil, fmt.Errorf("keyword engine: invalid token pattern: %w", err)
	}

	items := make([]types.SearchResultItem, 0, len(docs))
	for _, doc := range docs {
		raw := weightedCount(matcher, doc)
		score := raw / keywordScoreCeiling
		if score > 1.0 {
			score = 1.0
		}
		items = append(items, types.SearchResultItem{
			ID:        doc.ID,
			Name:      doc.Name,
			Email:     doc.Email,
			Phone:     doc.Phone,
			Content:   snippet(matcher, doc.Text),
			Score:     score,
			MatchType: types.MatchKeyword,
		})
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].Score > items[j].Score })
	if len(items) > limit {
		items = items[:limit]
	}
	if len(items) > 0 {
		span.SetAttributes(attribute.String("engine.top_match.content", tracing.SafeDocumentContent(items[0].Content)))
	}

	log.Debug().Int("matched", len(items)).Msg("keyword search complete")
	return items, nil
}

// tokenize splits a query into the whitespace-separated tokens the
// alternation regex is built from.
func tokenize(query string) []string {
	fields := strings.Fields(query)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// compileAlternation builds a single case-insensitive alternation regex
// from tokens, escaping any regex metacharacters a query token happens to
// contain.
func compileAlternation(tokens []string) (*regexp.Regexp, error) {
	escaped := make([]string, len(tokens))
	for i, t := range tokens {
		escaped[i] = regexp.QuoteMeta(t)
	}
	return regexp.Compile("(?i)" + strings.Join(escaped, "|"))
}

// weightedCount sums per-field token hit counts against fieldWeights.
func weightedCount(matcher *regexp.Regexp, doc types.ResumeDocument) float64 {
	raw := 0.0
	raw += float64(len(matcher.FindAllStringIndex(doc.Text, -1))) * fieldWeights["text"]
	raw += float64(len(matcher.FindAllStringIndex(doc.Name, -1))) * fieldWeights["name"]
	raw += float64(len(matcher.FindAllStringIndex(doc.Email, -1))) * fieldWeights["email"]
	raw += float64(len(matcher.FindAllStringIndex(doc.Role, -1))) * fieldWeights["role"]
	skillsJoined := strings.Join(doc.Skills, " ")
	raw += float64(len(matcher.FindAllStringIndex(skillsJoined, -1))) * fieldWeights["skills"]
	return raw
}

// snippet extracts a window around the first match in text (<=200 runes,
// ellipsis on truncated sides), or the leading 200 runes with a trailing
// ellipsis when there is no match.
func snippet(matcher *regexp.Regexp, text string) string {
	runes := []rune(text)
	if len(runes) == 0 {
		return ""
	}

	loc := matcher.FindStringIndex(text)
	if loc == nil {
		if len(runes) <= snippetMaxRunes {
			return text
		}
		return string(runes[:snippetMaxRunes]) + "..."
	}

	matchStartRune := len([]rune(text[:loc[0]]))
	half := snippetMaxRunes / 2
	start := matchStartRune - half
	if start < 0 {
		start = 0
	}
	end := start + snippetMaxRunes
	if end > len(runes) {
		end = len(runes)
		start = end - snippetMaxRunes
		if start < 0 {
			start = 0
		}
	}

	window := string(runes[start:end])
	if start > 0 {
		window = "..." + window
	}
	if end < len(runes) {
		window = window + "..."
	}
	return window
}
