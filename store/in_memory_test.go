package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/internal/testutil"
)

func TestInMemoryStore_StoreAndGet(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	conv := testutil.SampleConversation(core.KindWorker, "researcher", 2)
	require.NoError(t, s.Store(ctx, conv))

	got, err := s.Get(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)
	assert.Len(t, got.Turns, 5)

	// Returned conversations are clones.
	got.Turns[0].Content = "mutated"
	again, _ := s.Get(ctx, conv.ID)
	assert.NotEqual(t, "mutated", again.Turns[0].Content)
}

func TestInMemoryStore_GetUnknown(t *testing.T) {
	s := NewInMemoryStore()
	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, core.ErrConversationNotFound)
}

func TestInMemoryStore_StoreReplacesWholesale(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	conv := testutil.SampleConversation(core.KindWorker, "researcher", 1)
	require.NoError(t, s.Store(ctx, conv))

	conv.Append(core.NewUserTurn("follow-up"))
	require.NoError(t, s.Store(ctx, conv))

	got, err := s.Get(ctx, conv.ID)
	require.NoError(t, err)
	assert.Len(t, got.Turns, 4)
}

func TestInMemoryStore_UpdateRequiresExisting(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	conv := testutil.SampleConversation(core.KindManager, "manager", 1)
	assert.ErrorIs(t, s.Update(ctx, conv), core.ErrConversationNotFound)

	require.NoError(t, s.Store(ctx, conv))
	conv.Append(core.NewUserTurn("more"))
	require.NoError(t, s.Update(ctx, conv))

	got, _ := s.Get(ctx, conv.ID)
	assert.Len(t, got.Turns, 4)
}

func TestInMemoryStore_Delete(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	conv := testutil.SampleConversation(core.KindWorker, "researcher", 1)
	require.NoError(t, s.Store(ctx, conv))
	require.NoError(t, s.Delete(ctx, conv.ID))

	_, err := s.Get(ctx, conv.ID)
	assert.ErrorIs(t, err, core.ErrConversationNotFound)
	assert.ErrorIs(t, s.Delete(ctx, conv.ID), core.ErrConversationNotFound)
}

func TestInMemoryStore_QueryFiltersAndOrder(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	old := testutil.SampleConversationAt(core.KindWorker, "researcher", base)
	mid := testutil.SampleConversationAt(core.KindWorker, "calc", base.Add(time.Hour))
	recent := testutil.SampleConversationAt(core.KindManager, "manager", base.Add(2*time.Hour))

	for _, conv := range []*core.Conversation{old, mid, recent} {
		require.NoError(t, s.Store(ctx, conv))
	}

	all, err := s.Query(ctx, core.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "manager", all[0].AgentName, "most recently updated first")
	assert.Equal(t, "researcher", all[2].AgentName)

	workers, err := s.Query(ctx, core.Filter{AgentKind: core.KindWorker})
	require.NoError(t, err)
	assert.Len(t, workers, 2)

	named, err := s.Query(ctx, core.Filter{AgentName: "calc"})
	require.NoError(t, err)
	require.Len(t, named, 1)
	assert.Equal(t, "calc", named[0].AgentName)

	since := base.Add(30 * time.Minute)
	recentOnly, err := s.Query(ctx, core.Filter{Since: &since})
	require.NoError(t, err)
	assert.Len(t, recentOnly, 2)

	until := base.Add(30 * time.Minute)
	oldOnly, err := s.Query(ctx, core.Filter{Until: &until})
	require.NoError(t, err)
	require.Len(t, oldOnly, 1)
	assert.Equal(t, "researcher", oldOnly[0].AgentName)
}

func TestInMemoryStore_QueryPagination(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		conv := testutil.SampleConversationAt(core.KindWorker, "researcher", base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, s.Store(ctx, conv))
	}

	page, err := s.Query(ctx, core.Filter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	// Newest first, so offset 1 skips the newest.
	assert.Equal(t, base.Add(3*time.Hour), page[0].Updated)

	beyond, err := s.Query(ctx, core.Filter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, beyond)
}

func TestInMemoryStore_Stats(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	empty, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Count)
	assert.Nil(t, empty.Oldest)

	require.NoError(t, s.Store(ctx, testutil.SampleConversationAt(core.KindWorker, "a", base)))
	require.NoError(t, s.Store(ctx, testutil.SampleConversationAt(core.KindWorker, "b", base.Add(time.Hour))))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, 6, stats.TotalTurns)
	require.NotNil(t, stats.Oldest)
	require.NotNil(t, stats.Newest)
	assert.Equal(t, base, *stats.Oldest)
	assert.Equal(t, base.Add(time.Hour), *stats.Newest)
}
