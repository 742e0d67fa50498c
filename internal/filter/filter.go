// Package filter implements the Conversational Filter (spec §4.J): it
// narrows a conversation's previously cached results against a new
// natural-language criterion, keeping their original order, without
// touching the document store.
package filter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ai-agent-go/internal/chatmodel"
	"ai-agent-go/internal/llmjson"
	"ai-agent-go/internal/logger"
	"ai-agent-go/internal/tracing"
	"ai-agent-go/internal/types"
)

var filterTracer = otel.Tracer("ai-agent-go/filter")

// intentTokens is the fixed, case-insensitive substring list that marks a
// chat message as a follow-up narrowing request rather than a fresh
// query. Language-brittle by construction (spec §9); treat as
// configuration if this ever needs to support another language.
var intentTokens = []string{
	"only", "filter", "show me", "display",
	"from those", "from the above", "from previous", "from these",
	"among them", "out of these", "narrow down", "refine",
}

// HasIntent reports whether message contains any filter-intent token.
func HasIntent(message string) bool {
	lower := strings.ToLower(message)
	for _, tok := range intentTokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}

const systemPrompt = `You narrow down an already-retrieved list of candidates by a new natural-language criterion. You never modify any candidate's data and you never invent a match that the evidence does not support.

Consider these filter categories when they're relevant to the criterion: whether the candidate's current company is service-based or product-based, location text appearing in their profile, a minimum years-of-experience threshold, and presence of a named skill.

Respond with exactly one JSON object of this shape and nothing else:
{"filteredResults": [{"name": "<candidate name>", "matches": <bool>, "reasoning": "<short reasoning>"}], "summary": "<one sentence overview>"}

Include every candidate from the user's message in filteredResults, each with its own matches verdict. Do not add candidates that were not in the input list.`

type verdict struct {
	Name     string `json:"name"`
	Matches  bool   `json:"matches"`
	Reasoning string `json:"reasoning"`
}

type llmResponse struct {
	FilteredResults []verdict `json:"filteredResults"`
	Summary         string    `json:"summary"`
}

// Filter wraps a chat model client behind the filter contract.
type Filter struct {
	chat chatmodel.Client
}

// New builds a Filter over a chat model client.
func New(chat chatmodel.Client) *Filter {
	return &Filter{chat: chat}
}

// Filter narrows cachedResults by criteria, preserving their original
// relative order. On LLM transport or parse failure it fails open: ALL
// cached results are returned with an explanatory summary, never a
// partial or empty set manufactured from a failure.
func (f *Filter) Filter(ctx context.Context, criteria string, cachedResults []types.SearchResultItem) ([]types.SearchResultItem, string, error) {
	ctx, span := filterTracer.Start(ctx, "Filter.Filter", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	log := logger.Component("filter")
	span.SetAttributes(attribute.Int("filter.cached_count", len(cachedResults)))

	if len(cachedResults) == 0 {
		return nil, "no cached results to filter", nil
	}

	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(buildUserMessage(criteria, cachedResults)),
	}

	resp, err := f.chat.Generate(ctx, messages)
	if err != nil {
		log.Warn().Err(err).Msg("filter LLM call failed, returning all cached results")
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		return cachedResults, fmt.Sprintf("filter unavailable (LLM error): %v", err), nil
	}

	jsonStr := llmjson.Extract(resp.Content)
	if jsonStr == "" {
		log.Warn().Str("response", tracing.TruncateString(resp.Content, tracing.DefaultMaxLength)).Msg("filter LLM response had no JSON object")
		return cachedResults, "filter unavailable (could not parse LLM response)", nil
	}

	var parsed llmResponse
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		sanitized := llmjson.Sanitize(jsonStr)
		if err2 := json.Unmarshal([]byte(sanitized), &parsed); err2 != nil {
			log.Warn().Err(err).Msg("filter LLM response failed to parse even after sanitization")
			return cachedResults, "filter unavailable (malformed LLM JSON)", nil
		}
	}

	matchSet := make(map[string]bool, len(parsed.FilteredResults))
	for _, v := range parsed.FilteredResults {
		matchSet[v.Name] = v.Matches
	}

	filtered := make([]types.SearchResultItem, 0, len(cachedResults))
	for _, r := range cachedResults {
		if matchSet[r.Name] {
			filtered = append(filtered, r)
		}
	}

	return filtered, parsed.Summary, nil
}

func buildUserMessage(criteria string, cachedResults []types.SearchResultItem) string {
	msg := fmt.Sprintf("Criterion: %s\n\nCandidates:\n", criteria)
	for i, r := range cachedResults {
		msg += fmt.Sprintf("\n%d. Name: %s", i+1, r.Name)
		if r.ExtractedInfo != nil {
			info := r.ExtractedInfo
			msg += fmt.Sprintf("\n   Current company: %s\n   Location: %s\n   Skills: %s\n   Experience: %s\n   Highlights: %s",
				info.CurrentCompany, info.Location, strings.Join(info.Skills, ", "), info.Experience, strings.Join(info.KeyHighlights, ", "))
		}
	}
	return msg
}
