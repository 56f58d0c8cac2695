// Package memory provides the agent's short-term conversation memory and
// the stores that persist it between runs.
package memory

import (
	"context"
	"slices"
	"sync"
)

// DefaultRecent is how many entries Recent returns when asked for n <= 0.
const DefaultRecent = 5

// Entry is one remembered message.
type Entry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Memory is an append-only conversation log. Entries are never reordered
// or edited in place.
type Memory struct {
	ConversationHistory []Entry `json:"conversation_history"`
}

// Add appends one entry.
func (m *Memory) Add(role, content string) {
	m.ConversationHistory = append(m.ConversationHistory, Entry{Role: role, Content: content})
}

// Recent returns a copy of the last n entries in insertion order.
func (m *Memory) Recent(n int) []Entry {
	if n <= 0 {
		n = DefaultRecent
	}
	h := m.ConversationHistory
	if len(h) > n {
		h = h[len(h)-n:]
	}
	return slices.Clone(h)
}

// Len is the number of entries.
func (m *Memory) Len() int { return len(m.ConversationHistory) }

// Store persists a Memory. Every mutation is a Load, Add, Save round
// trip, so concurrent writers must be serialized by the caller.
type Store interface {
	// Load returns the stored memory. A store that has never been saved
	// returns an empty memory, not an error.
	Load(ctx context.Context) (*Memory, error)

	// Save replaces the stored memory with m.
	Save(ctx context.Context, m *Memory) error

	// Clear removes everything stored.
	Clear(ctx context.Context) error
}

// InMemoryStore keeps memory in process. It is used by tests and by the
// "memory" backend.
type InMemoryStore struct {
	mu    sync.Mutex
	saved []Entry
}

// NewInMemoryStore returns an empty store.
func NewInMemoryStore() *InMemoryStore { return &InMemoryStore{} }

func (s *InMemoryStore) Load(context.Context) (*Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &Memory{ConversationHistory: slices.Clone(s.saved)}, nil
}

func (s *InMemoryStore) Save(_ context.Context, m *Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = slices.Clone(m.ConversationHistory)
	return nil
}

func (s *InMemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = nil
	return nil
}
