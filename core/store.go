package core

import (
	"context"
	"time"
)

// Filter narrows a conversation query. Zero-valued fields match everything;
// Limit <= 0 means no limit.
type Filter struct {
	AgentKind AgentKind  `json:"agent_kind,omitempty"`
	AgentName string     `json:"agent_name,omitempty"`
	Since     *time.Time `json:"since,omitempty"`
	Until     *time.Time `json:"until,omitempty"`
	Limit     int        `json:"limit,omitempty"`
	Offset    int        `json:"offset,omitempty"`
}

// StoreStats summarizes the contents of a conversation store.
type StoreStats struct {
	Count      int        `json:"count"`
	TotalTurns int        `json:"total_turns"`
	Oldest     *time.Time `json:"oldest,omitempty"`
	Newest     *time.Time `json:"newest,omitempty"`
}

// ConversationStore persists finished conversations keyed by ID. Configuring
// a store is optional: agents run without one and simply skip persistence.
//
// Contract:
//   - Store inserts or wholesale-replaces the conversation with that ID;
//     writes are never partially applied.
//   - Query returns matches ordered most-recently-updated-first.
//   - Implementations must not retain or mutate the caller's conversation
//     after Store/Update returns.
type ConversationStore interface {
	Store(ctx context.Context, conv *Conversation) error
	Get(ctx context.Context, id string) (*Conversation, error)
	Update(ctx context.Context, conv *Conversation) error
	Delete(ctx context.Context, id string) error
	Query(ctx context.Context, filter Filter) ([]*Conversation, error)
	Stats(ctx context.Context) (*StoreStats, error)
	Close() error
}
