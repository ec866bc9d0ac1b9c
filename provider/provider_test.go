package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/agentcrew/core"
)

func TestMockProvider_ScriptOrder(t *testing.T) {
	m := NewMockProvider("test-model")
	m.QueueToolCall("calc", map[string]any{"expr": "1+1"})
	m.QueueText("done")

	r1, err := m.Chat(context.Background(), []core.Turn{core.NewSystemTurn("s")}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r1.ToolCalls) != 1 || r1.ToolCalls[0].Name != "calc" {
		t.Fatalf("expected scripted tool call first, got %+v", r1)
	}

	r2, _ := m.Chat(context.Background(), nil, nil)
	if r2.Content != "done" || len(r2.ToolCalls) != 0 {
		t.Fatalf("expected final text second, got %+v", r2)
	}

	// Script exhausted: the last response repeats.
	r3, _ := m.Chat(context.Background(), nil, nil)
	if r3.Content != "done" {
		t.Errorf("expected last response to repeat, got %+v", r3)
	}
}

func TestMockProvider_RecordsCalls(t *testing.T) {
	m := NewMockProvider("test-model")
	m.QueueText("hi")

	turns := []core.Turn{core.NewSystemTurn("s"), core.NewUserTurn("u")}
	tools := []ToolDefinition{{Name: "calc"}}
	if _, err := m.Chat(context.Background(), turns, tools); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calls := m.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 recorded call, got %d", len(calls))
	}
	if len(calls[0].Turns) != 2 || calls[0].Tools[0].Name != "calc" {
		t.Errorf("recorded call does not match input: %+v", calls[0])
	}
	if m.CallCount() != 1 {
		t.Errorf("expected call count 1, got %d", m.CallCount())
	}
}

func TestMockProvider_FailWith(t *testing.T) {
	m := NewMockProvider("test-model")
	boom := errors.New("backend down")
	m.FailWith(boom)

	if _, err := m.Chat(context.Background(), nil, nil); !errors.Is(err, boom) {
		t.Fatalf("expected scripted failure, got %v", err)
	}
}

func TestMockProvider_DefaultResponse(t *testing.T) {
	m := NewMockProvider("test-model")
	r, err := m.Chat(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Content == "" || r.FinishReason != FinishReasonStop {
		t.Errorf("expected default text response, got %+v", r)
	}
}
