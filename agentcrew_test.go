package agentcrew

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentcrew/agent"
	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/internal/testutil"
	"github.com/hupe1980/agentcrew/provider"
)

func TestOrchestrator_ExecuteTask(t *testing.T) {
	workerMock := provider.NewMockProvider("worker-model")
	workerMock.QueueText("research notes")

	managerMock := provider.NewMockProvider("manager-model")
	managerMock.QueueToolCall("research", map[string]any{"task": "dig", "metadata": map[string]any{}})
	managerMock.QueueText("final answer")

	store := testutil.NewRecordingStore()
	o := New(agent.NewManager(managerMock), func(opt *Options) {
		opt.Store = store
		opt.SessionID = "sess-42"
	})
	o.RegisterWorker(agent.NewWorker("research", workerMock))

	result := o.ExecuteTask(context.Background(), core.Task{Title: "report", Description: "write it"})

	require.True(t, result.Success)
	assert.Equal(t, "final answer", result.Content)

	// Both the worker's and the manager's conversations were persisted to
	// the shared store, keyed by the orchestrator's session.
	stored := store.Stored()
	require.Len(t, stored, 2)
	assert.Equal(t, core.KindWorker, stored[0].AgentKind)
	assert.Equal(t, core.KindManager, stored[1].AgentKind)
	for _, conv := range stored {
		assert.Equal(t, "sess-42", conv.Metadata[core.MetaSessionID])
		assert.Equal(t, core.RoleSystem, conv.Turns[0].Role)
	}
}

func TestOrchestrator_CallWorkerDirectly(t *testing.T) {
	workerMock := provider.NewMockProvider("worker-model")
	workerMock.QueueText("42")

	o := New(agent.NewManager(provider.NewMockProvider("manager-model")))
	o.RegisterWorker(agent.NewWorker("calc", workerMock))

	result := o.CallWorker(context.Background(), "calc", map[string]any{"task": "6*7"})

	require.True(t, result.Success)
	assert.Equal(t, "42", result.Content)
}

func TestOrchestrator_CallUnknownWorkerFailsImmediately(t *testing.T) {
	o := New(agent.NewManager(provider.NewMockProvider("manager-model")))

	result := o.CallWorker(context.Background(), "ghost", map[string]any{"task": "haunt"})

	require.False(t, result.Success)
	assert.Contains(t, result.Error, "ghost")
	assert.Zero(t, result.Usage.TotalTokens)
}

func TestOrchestrator_GeneratesSessionID(t *testing.T) {
	o := New(agent.NewManager(provider.NewMockProvider("manager-model")))
	assert.NotEmpty(t, o.SessionID())
}

func TestOrchestrator_WorkerNames(t *testing.T) {
	o := New(agent.NewManager(provider.NewMockProvider("manager-model")))
	o.RegisterWorker(agent.NewWorker("research", provider.NewMockProvider("w")))
	o.RegisterWorker(agent.NewWorker("calc", provider.NewMockProvider("w")))

	assert.Equal(t, []string{"research", "calc"}, o.WorkerNames())
}

func TestOrchestrator_WithoutStoreSkipsPersistence(t *testing.T) {
	managerMock := provider.NewMockProvider("manager-model")
	managerMock.QueueText("done")

	o := New(agent.NewManager(managerMock))
	result := o.ExecuteTask(context.Background(), core.Task{Title: "t", Description: "d"})

	require.True(t, result.Success, "a nil store skips persistence without error")
	assert.NoError(t, o.Close())
}

func TestOrchestrator_CloseReleasesStore(t *testing.T) {
	store := testutil.NewRecordingStore()
	o := New(agent.NewManager(provider.NewMockProvider("manager-model")), func(opt *Options) {
		opt.Store = store
	})

	require.NoError(t, o.Close())
	assert.True(t, store.Closed())
}
