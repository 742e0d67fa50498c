// Package conversation implements the Conversation Store and its
// per-conversation Memory Manager (spec §4.I): bounded message history
// plus a cache of the most recent non-filter retrieval's results, kept
// entirely in process memory with no durable persistence.
package conversation

import (
	"sync"
	"time"

	"ai-agent-go/internal/types"
)

// Manager is one conversation's memory: a bounded FIFO message history
// and the cached results of its most recent non-filter search. Every
// operation takes the manager's own lock, so concurrent requests on the
// same conversation id serialize here rather than racing — the lock spec
// §5 calls out as required and whose absence in the source is a known bug
// this implementation does not repeat.
type Manager struct {
	mu sync.Mutex

	messages   []types.ConversationMessage
	maxHistory int

	lastResults []types.SearchResultItem
	hasResults  bool
}

// NewManager creates a Manager bounded to maxHistory messages.
func NewManager(maxHistory int) *Manager {
	if maxHistory <= 0 {
		maxHistory = 10
	}
	return &Manager{maxHistory: maxHistory}
}

// AddExchange appends a user message then an assistant message, evicting
// the oldest messages (FIFO) until the total is within maxHistory.
func (m *Manager) AddExchange(userText, assistantText string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.messages = append(m.messages,
		types.ConversationMessage{Role: types.RoleUser, Content: userText, Timestamp: now},
		types.ConversationMessage{Role: types.RoleAssistant, Content: assistantText, Timestamp: now},
	)
	if overflow := len(m.messages) - m.maxHistory; overflow > 0 {
		m.messages = m.messages[overflow:]
	}
}

// Messages returns the ordered history, oldest first. The returned slice
// is a copy; callers may not mutate the manager's state through it.
func (m *Manager) Messages() []types.ConversationMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]types.ConversationMessage, len(m.messages))
	copy(out, m.messages)
	return out
}

// Clear empties both history and cached results.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.messages = nil
	m.lastResults = nil
	m.hasResults = false
}

// SetLastResults caches the given results as this conversation's most
// recent non-filter retrieval.
func (m *Manager) SetLastResults(results []types.SearchResultItem) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastResults = make([]types.SearchResultItem, len(results))
	copy(m.lastResults, results)
	m.hasResults = true
}

// GetLastResults returns a copy of the cached results, or nil if none are
// cached.
func (m *Manager) GetLastResults() []types.SearchResultItem {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.hasResults {
		return nil
	}
	out := make([]types.SearchResultItem, len(m.lastResults))
	copy(out, m.lastResults)
	return out
}

// HasResults reports whether a non-filter retrieval has been cached.
func (m *Manager) HasResults() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hasResults
}

// ClearResults drops the cached results without touching message history.
func (m *Manager) ClearResults() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastResults = nil
	m.hasResults = false
}
