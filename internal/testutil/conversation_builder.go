package testutil

import (
	"fmt"
	"time"

	"github.com/hupe1980/agentcrew/core"
)

// SampleConversation builds a persistable conversation with a system turn
// followed by alternating user/assistant turns, rounds pairs in total.
func SampleConversation(kind core.AgentKind, name string, rounds int) *core.Conversation {
	conv := core.NewConversation(kind, name)
	conv.Append(core.NewSystemTurn("You are " + name + "."))
	for i := 0; i < rounds; i++ {
		conv.Append(core.NewUserTurn(fmt.Sprintf("question %d", i+1)))
		conv.Append(core.NewAssistantTurn(fmt.Sprintf("answer %d", i+1), nil))
	}
	return conv
}

// SampleConversationAt builds a sample conversation with fixed timestamps,
// for tests that assert on date-range filtering or ordering.
func SampleConversationAt(kind core.AgentKind, name string, at time.Time) *core.Conversation {
	conv := SampleConversation(kind, name, 1)
	conv.Created = at
	conv.Updated = at
	return conv
}
