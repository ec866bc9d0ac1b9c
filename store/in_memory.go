package store

import (
	"context"
	"sort"
	"sync"

	"github.com/hupe1980/agentcrew/core"
)

// InMemoryStore is a volatile ConversationStore keeping conversations in a
// process-local map. It is safe for concurrent access. Each stored and
// returned conversation is cloned to prevent external mutation of internal
// state.
type InMemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*core.Conversation
}

// NewInMemoryStore constructs an empty in-memory conversation store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{conversations: make(map[string]*core.Conversation)}
}

// Store inserts or wholesale-replaces the conversation with the given ID.
func (s *InMemoryStore) Store(ctx context.Context, conv *core.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[conv.ID] = conv.Clone()
	return nil
}

// Get returns a clone of the conversation with the given ID.
func (s *InMemoryStore) Get(ctx context.Context, id string) (*core.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil, core.ErrConversationNotFound
	}
	return conv.Clone(), nil
}

// Update replaces an existing conversation; the ID must already be present.
func (s *InMemoryStore) Update(ctx context.Context, conv *core.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[conv.ID]; !ok {
		return core.ErrConversationNotFound
	}
	s.conversations[conv.ID] = conv.Clone()
	return nil
}

// Delete removes the conversation with the given ID.
func (s *InMemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[id]; !ok {
		return core.ErrConversationNotFound
	}
	delete(s.conversations, id)
	return nil
}

// Query returns clones of all conversations matching the filter, ordered
// most-recently-updated-first.
func (s *InMemoryStore) Query(ctx context.Context, filter core.Filter) ([]*core.Conversation, error) {
	s.mu.RLock()
	matches := make([]*core.Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		if matchesFilter(conv, filter) {
			matches = append(matches, conv)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Updated.After(matches[j].Updated)
	})

	matches = paginate(matches, filter.Offset, filter.Limit)

	out := make([]*core.Conversation, len(matches))
	for i, conv := range matches {
		out[i] = conv.Clone()
	}
	return out, nil
}

// Stats summarizes the store's contents.
func (s *InMemoryStore) Stats(ctx context.Context) (*core.StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &core.StoreStats{Count: len(s.conversations)}
	for _, conv := range s.conversations {
		stats.TotalTurns += len(conv.Turns)
		created := conv.Created
		updated := conv.Updated
		if stats.Oldest == nil || created.Before(*stats.Oldest) {
			stats.Oldest = &created
		}
		if stats.Newest == nil || updated.After(*stats.Newest) {
			stats.Newest = &updated
		}
	}
	return stats, nil
}

// Close implements core.ConversationStore; a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }

// matchesFilter reports whether conv satisfies every set field of filter.
func matchesFilter(conv *core.Conversation, filter core.Filter) bool {
	if filter.AgentKind != "" && conv.AgentKind != filter.AgentKind {
		return false
	}
	if filter.AgentName != "" && conv.AgentName != filter.AgentName {
		return false
	}
	if filter.Since != nil && conv.Updated.Before(*filter.Since) {
		return false
	}
	if filter.Until != nil && conv.Updated.After(*filter.Until) {
		return false
	}
	return true
}

// paginate applies offset and limit to an already sorted result set.
func paginate(convs []*core.Conversation, offset, limit int) []*core.Conversation {
	if offset > 0 {
		if offset >= len(convs) {
			return nil
		}
		convs = convs[offset:]
	}
	if limit > 0 && limit < len(convs) {
		convs = convs[:limit]
	}
	return convs
}
