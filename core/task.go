package core

// Priority expresses how urgent a task or delegation is. It travels from the
// submitted Task into the delegation payload handed to workers.
type Priority string

// Supported priority levels. PriorityHigh is the default applied when a
// delegation payload omits the field.
const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is one of the supported priority levels.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Task is the unit of work submitted to a manager. It is immutable once
// submitted: the manager renders it into the opening user turn and never
// writes it back.
type Task struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Priority    Priority       `json:"priority,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}
