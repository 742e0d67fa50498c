// Package rerank implements the LLM Re-ranker (spec §4.G): a single chat
// completion that scores, filters, and re-orders an already-retrieved
// candidate set against the caller's query.
package rerank

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

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

var rerankTracer = otel.Tracer("ai-agent-go/rerank")

const maxCandidateChars = 3000

const systemPrompt = `You are a senior technical recruiter assistant. You evaluate a list of candidate resumes against a user's query and return a strict JSON verdict.

You operate in one of two modes, chosen per query:

STRICT MODE applies when the query names concrete criteria: a city or region, a company name, specific skills, a minimum years-of-experience threshold, or similar. In strict mode:
- A candidate only matches a named city if that city appears verbatim in their resume text. Never infer location from a phone number's area code or from a former employer's headquarters.
- A candidate only matches a named skill if it appears in their resume text or skill list.
- Score relevance from 0.0 (no match) to 1.0 (ideal match) based on how many named criteria are satisfied and how strongly.
- Set matchesCriteria=false for any candidate that fails a named hard requirement.

LENIENT MODE applies when the query is generic (e.g. "top candidates", "best resumes", no named criteria). In lenient mode:
- Mark every candidate matchesCriteria=true.
- Rank by overall resume quality and seniority signals.

Respond with exactly one JSON object of this shape and nothing else:
{"matches": [{"name": "<candidate name>", "relevanceScore": <0..1>, "matchesCriteria": <bool>, "reasoning": "<short reasoning>", "extractedInfo": {"currentCompany": "<string>", "location": "<string>", "skills": ["..."], "experience": "<string>", "keyHighlights": ["..."]}}], "summary": "<one sentence overview>"}

extractedInfo is optional. skills and keyHighlights may be a JSON array of strings or a single comma-separated string. Every "name" in "matches" must exactly match a candidate name from the user's message. Do not invent candidates.`

type verdict struct {
	Name            string          `json:"name"`
	RelevanceScore  float64         `json:"relevanceScore"`
	MatchesCriteria bool            `json:"matchesCriteria"`
	Reasoning       string          `json:"reasoning"`
	ExtractedInfo   *extractedInfo  `json:"extractedInfo,omitempty"`
}

type extractedInfo struct {
	CurrentCompany string      `json:"currentCompany"`
	Location       string      `json:"location"`
	Skills         interface{} `json:"skills"`
	Experience     string      `json:"experience"`
	KeyHighlights  interface{} `json:"keyHighlights"`
}

type llmResponse struct {
	Matches []verdict `json:"matches"`
	Summary string    `json:"summary"`
}

// CandidateAnalysis is the per-candidate verdict record carried in
// Analysis, which the Retrieval Pipeline returns next to its results. It
// duplicates the reasoning/extractedInfo this package already set directly
// on the returned Search Result Item (spec §9 documents this redundancy; it
// is preserved rather than collapsed). It is not attached to individual
// result items.
type CandidateAnalysis struct {
	Name            string
	RelevanceScore  float64
	MatchesCriteria bool
	Reasoning       string
	ExtractedInfo   *types.ExtractedInfo
}

// Analysis is the human summary plus per-candidate verdicts from one
// rerank_and_filter call.
type Analysis struct {
	Summary    string
	Candidates []CandidateAnalysis
}

// Reranker wraps a chat model client behind the rerank_and_filter
// contract.
type Reranker struct {
	chat chatmodel.Client
}

// New builds a Reranker over a chat model client.
func New(chat chatmodel.Client) *Reranker {
	return &Reranker{chat: chat}
}

// RerankAndFilter scores candidates against query, drops any the LLM
// marks as non-matching, and returns the survivors sorted by relevance
// descending. On any parse or transport failure it fails open: candidates
// are returned unchanged and Analysis.Summary explains the fallback —
// nobody is silently dropped on an LLM failure (spec §7).
func (r *Reranker) RerankAndFilter(ctx context.Context, query string, candidates []types.SearchResultItem) ([]types.SearchResultItem, Analysis, error) {
	ctx, span := rerankTracer.Start(ctx, "Reranker.RerankAndFilter", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	log := logger.Component("rerank")

	if len(candidates) == 0 {
		return nil, Analysis{}, nil
	}
	span.SetAttributes(attribute.Int("rerank.candidate_count", len(candidates)))

	userMsg := buildUserMessage(query, candidates)
	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(userMsg),
	}

	resp, err := r.chat.Generate(ctx, messages)
	if err != nil {
		log.Warn().Err(err).Msg("rerank LLM call failed, returning original candidates")
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		return candidates, Analysis{Summary: fmt.Sprintf("re-rank unavailable (LLM error): %v", err)}, nil
	}

	jsonStr := llmjson.Extract(resp.Content)
	if jsonStr == "" {
		log.Warn().Str("response", tracing.TruncateString(resp.Content, tracing.DefaultMaxLength)).Msg("rerank LLM response had no JSON object")
		return candidates, Analysis{Summary: "re-rank unavailable (could not parse LLM response)"}, nil
	}

	var parsed llmResponse
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		sanitized := llmjson.Sanitize(jsonStr)
		if err2 := json.Unmarshal([]byte(sanitized), &parsed); err2 != nil {
			log.Warn().Err(err).Msg("rerank LLM response failed to parse even after sanitization")
			return candidates, Analysis{Summary: "re-rank unavailable (malformed LLM JSON)"}, nil
		}
	}

	byName := make(map[string]types.SearchResultItem, len(candidates))
	for _, c := range candidates {
		byName[c.Name] = c
	}

	results := make([]types.SearchResultItem, 0, len(parsed.Matches))
	analysis := Analysis{Summary: parsed.Summary, Candidates: make([]CandidateAnalysis, 0, len(parsed.Matches))}

	for _, v := range parsed.Matches {
		original, ok := byName[v.Name]
		if !ok {
			log.Warn().Str("name", v.Name).Msg("rerank verdict named a candidate not in the input set, ignoring")
			continue
		}
		info := toExtractedInfo(v.ExtractedInfo)
		analysis.Candidates = append(analysis.Candidates, CandidateAnalysis{
			Name:            v.Name,
			RelevanceScore:  v.RelevanceScore,
			MatchesCriteria: v.MatchesCriteria,
			Reasoning:       v.Reasoning,
			ExtractedInfo:   info,
		})
		if !v.MatchesCriteria {
			continue
		}
		original.Score = v.RelevanceScore
		original.MatchType = types.MatchLLMReranked
		original.LLMReasoning = v.Reasoning
		original.ExtractedInfo = info
		results = append(results, original)
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results, analysis, nil
}

func toExtractedInfo(raw *extractedInfo) *types.ExtractedInfo {
	if raw == nil {
		return nil
	}
	return &types.ExtractedInfo{
		CurrentCompany: raw.CurrentCompany,
		Location:       raw.Location,
		Skills:         llmjson.StringOrList(raw.Skills),
		Experience:     raw.Experience,
		KeyHighlights:  llmjson.StringOrList(raw.KeyHighlights),
	}
}

func buildUserMessage(query string, candidates []types.SearchResultItem) string {
	msg := fmt.Sprintf("Query: %s\n\nCandidates:\n", query)
	for i, c := range candidates {
		content := c.Content
		truncated := false
		if len(content) > maxCandidateChars {
			content = content[:maxCandidateChars]
			truncated = true
		}
		msg += fmt.Sprintf("\n%d. Name: %s\nEmail: %s\nPhone: %s\nContent: %s", i+1, c.Name, c.Email, c.Phone, content)
		if truncated {
			msg += " [TRUNCATED]"
		}
	}
	return msg
}
