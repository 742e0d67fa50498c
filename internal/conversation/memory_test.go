package conversation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-agent-go/internal/conversation"
	"ai-agent-go/internal/types"
)

func TestManager_AddExchange_EvictsOldestOnOverflow(t *testing.T) {
	m := conversation.NewManager(4)
	m.AddExchange("u1", "a1")
	m.AddExchange("u2", "a2")
	require.Len(t, m.Messages(), 4)

	m.AddExchange("u3", "a3")
	msgs := m.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, "u2", msgs[0].Content)
	assert.Equal(t, "a2", msgs[1].Content)
	assert.Equal(t, "u3", msgs[2].Content)
	assert.Equal(t, "a3", msgs[3].Content)
}

func TestManager_Clear_EmptiesHistoryAndResults(t *testing.T) {
	m := conversation.NewManager(10)
	m.AddExchange("u", "a")
	m.SetLastResults([]types.SearchResultItem{{Name: "A"}})

	m.Clear()
	assert.Empty(t, m.Messages())
	assert.False(t, m.HasResults())
	assert.Nil(t, m.GetLastResults())
}

func TestManager_ClearResults_PreservesHistory(t *testing.T) {
	m := conversation.NewManager(10)
	m.AddExchange("u", "a")
	m.SetLastResults([]types.SearchResultItem{{Name: "A"}})

	m.ClearResults()
	assert.Len(t, m.Messages(), 2)
	assert.False(t, m.HasResults())
}

func TestStore_Get_CreatesLazilyAndReusesSameManager(t *testing.T) {
	s := conversation.NewStore(10)
	assert.False(t, s.Exists("c1"))

	m1 := s.Get("c1")
	m1.AddExchange("hi", "hello")

	m2 := s.Get("c1")
	assert.Len(t, m2.Messages(), 2)
	assert.True(t, s.Exists("c1"))
}

func TestStore_Delete(t *testing.T) {
	s := conversation.NewStore(10)
	s.Get("c1")
	assert.True(t, s.Delete("c1"))
	assert.False(t, s.Exists("c1"))
	assert.False(t, s.Delete("c1"))
}
