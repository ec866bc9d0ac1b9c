package testutil

import (
	"context"
	"sync"

	"github.com/hupe1980/agentcrew/core"
)

// RecordingStore is a core.ConversationStore that records every stored
// conversation for later inspection. An injected failure makes every write
// fail, which tests use to verify that persistence errors are swallowed.
type RecordingStore struct {
	mu      sync.Mutex
	stored  []*core.Conversation
	failure error
	closed  bool
}

// NewRecordingStore creates an empty RecordingStore.
func NewRecordingStore() *RecordingStore {
	return &RecordingStore{}
}

// FailWith makes every subsequent Store/Update call return err.
func (s *RecordingStore) FailWith(err error) *RecordingStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = err
	return s
}

// Store implements core.ConversationStore.
func (s *RecordingStore) Store(ctx context.Context, conv *core.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return s.failure
	}
	s.stored = append(s.stored, conv.Clone())
	return nil
}

// Get implements core.ConversationStore.
func (s *RecordingStore) Get(ctx context.Context, id string) (*core.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conv := range s.stored {
		if conv.ID == id {
			return conv.Clone(), nil
		}
	}
	return nil, core.ErrConversationNotFound
}

// Update implements core.ConversationStore; identical to Store for the
// recording use case.
func (s *RecordingStore) Update(ctx context.Context, conv *core.Conversation) error {
	return s.Store(ctx, conv)
}

// Delete implements core.ConversationStore.
func (s *RecordingStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, conv := range s.stored {
		if conv.ID == id {
			s.stored = append(s.stored[:i], s.stored[i+1:]...)
			return nil
		}
	}
	return core.ErrConversationNotFound
}

// Query implements core.ConversationStore; filters are ignored, everything
// stored is returned.
func (s *RecordingStore) Query(ctx context.Context, filter core.Filter) ([]*core.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*core.Conversation, len(s.stored))
	for i, conv := range s.stored {
		out[i] = conv.Clone()
	}
	return out, nil
}

// Stats implements core.ConversationStore.
func (s *RecordingStore) Stats(ctx context.Context) (*core.StoreStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := &core.StoreStats{Count: len(s.stored)}
	for _, conv := range s.stored {
		stats.TotalTurns += len(conv.Turns)
	}
	return stats, nil
}

// Close implements core.ConversationStore.
func (s *RecordingStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *RecordingStore) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Stored returns the conversations written so far.
func (s *RecordingStore) Stored() []*core.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*core.Conversation, len(s.stored))
	copy(out, s.stored)
	return out
}

// Last returns the most recently stored conversation, or nil.
func (s *RecordingStore) Last() *core.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.stored) == 0 {
		return nil
	}
	return s.stored[len(s.stored)-1]
}
