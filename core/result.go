package core

// TokenUsage captures token counters for one or more provider calls. Counters
// are summed across every provider call made during one task execution,
// including calls made transitively by delegated workers, and are
// monotonically non-decreasing across iterations.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add folds another usage sample into the running total.
func (u *TokenUsage) Add(other TokenUsage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// ExecutionResult is the outcome of one bounded execution (a task submission
// or a direct worker invocation).
//
// Success is false only for the two fatal conditions: a provider failure or a
// requested tool with no registered implementation. Everything else —
// including hitting the iteration ceiling — reports true. Error carries the
// fatal failure's message when Success is false.
type ExecutionResult struct {
	Success    bool       `json:"success"`
	Content    string     `json:"content"`
	Usage      TokenUsage `json:"usage"`
	Iterations int        `json:"iterations"`
	Error      string     `json:"error,omitempty"`
}
