// Package types holds the data model shared by every retrieval component:
// the resume document as read from the store, the result items the
// pipeline returns, and the conversational memory records.
package types

import "time"

// MatchType records which stage of the pipeline produced a Search Result
// Item's score.
type MatchType string

const (
	MatchKeyword      MatchType = "keyword"
	MatchVector       MatchType = "vector"
	MatchHybrid       MatchType = "hybrid"
	MatchLLMReranked  MatchType = "llm-reranked"
)

// SearchFields is the fixed set of text fields the keyword engine queries.
// Order is insignificant; it exists to keep callers from inventing ad hoc
// field names.
var SearchFields = []string{"text", "name", "email", "skills", "role", "company"}

// ResumeDocument is the read-only record the core retrieves from the
// document store. Ingestion (parsing, contact extraction, embedding
// generation, writes) is out of scope; the core only ever reads these.
type ResumeDocument struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	Role      string
	Skills    []string
	Company   string
	Text      string
	Embedding []float32
}

// ExtractedInfo is the optional structured record attached by the LLM
// re-ranker. Fields are evidence-based strings, not structured guarantees.
type ExtractedInfo struct {
	CurrentCompany string   `json:"currentCompany,omitempty"`
	Location       string   `json:"location,omitempty"`
	Skills         []string `json:"skills,omitempty"`
	Experience     string   `json:"experience,omitempty"`
	KeyHighlights  []string `json:"keyHighlights,omitempty"`
}

// SearchResultItem is one entry in a ranked result list.
type SearchResultItem struct {
	ID            string
	Name          string
	Email         string
	Phone         string
	Content       string // snippet, <= 200 runes
	Score         float64
	MatchType     MatchType
	ExtractedInfo *ExtractedInfo
	LLMReasoning  string
}

// MessageRole distinguishes user and assistant turns in conversation memory.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ConversationMessage is one turn of a conversation's bounded history.
type ConversationMessage struct {
	Role      MessageRole
	Content   string
	Timestamp time.Time
}

// HybridConfig holds the Hybrid Engine's fusion weights. w_v + w_k should be
// approximately 1.0; violations are logged, never rejected.
type HybridConfig struct {
	VectorWeight  float64
	KeywordWeight float64
}

// RerankConfig controls whether the Retrieval Pipeline invokes the LLM
// re-ranker and how many candidates it fetches to give the re-ranker room
// to filter.
type RerankConfig struct {
	Enabled      bool
	RetrievalTopK int
}

// SearchType selects which engine the Retrieval Pipeline dispatches to.
type SearchType string

const (
	SearchKeyword SearchType = "keyword"
	SearchVector  SearchType = "vector"
	SearchHybrid  SearchType = "hybrid"
)
