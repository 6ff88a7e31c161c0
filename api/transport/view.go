package transport

import (
	"github.com/fastygo/taskwarlock/domain"
	"github.com/fastygo/taskwarlock/internal/urgency"
)

// TaskView is the wire form of a task.
type TaskView struct {
	domain.Task
	Status    domain.Status `json:"status"`
	Temporary bool          `json:"temporary,omitempty"`
	Blocked   bool          `json:"blocked"`
	BlockedBy []string      `json:"blocked_by,omitempty"`
	Blocks    []string      `json:"blocks,omitempty"`
}

func NewTaskView(t domain.Task, blocked bool) TaskView {
	return TaskView{
		Task:      t,
		Status:    t.Status(),
		Temporary: t.IsTemporary(),
		Blocked:   blocked,
	}
}

// MutationView answers a mutation request: the record plus the predicted
// (async) or confirmed task.
type MutationView struct {
	Mutation domain.MutationRecord `json:"mutation"`
	Task     *TaskView             `json:"task,omitempty"`
}

type PreviewView struct {
	Task      TaskView          `json:"task"`
	Breakdown urgency.Breakdown `json:"breakdown"`
}

type ListMeta struct {
	Matched int `json:"matched"`
	Limit   int `json:"limit"`
	Offset  int `json:"offset"`
	Stats   any `json:"stats"`
}

// UUIDs lists the identities of tasks.
func UUIDs(tasks []domain.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.UUID
	}
	return out
}
