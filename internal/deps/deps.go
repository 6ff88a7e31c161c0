// Package deps resolves blocked and blocking status over UUID dependency edges.
//
// Dependencies that do not resolve to a task in the given set are ignored: the
// referenced task may exist in Taskwarrior but be outside the loaded view.
package deps

import "github.com/fastygo/taskwarlock/domain"

// IsBlocked reports whether any resolved dependency of t is still pending.
func IsBlocked(t domain.Task, all []domain.Task) bool {
	if len(t.Depends) == 0 {
		return false
	}
	return len(BlockingTasks(t, all)) > 0
}

// BlockingTasks returns the resolved, still-pending dependencies of t in the order of t.Depends.
func BlockingTasks(t domain.Task, all []domain.Task) []domain.Task {
	if len(t.Depends) == 0 {
		return nil
	}
	return NewIndex(all).BlockingTasks(t)
}

// Index answers dependency questions for many tasks of one set without rescanning it.
type Index struct {
	byUUID map[string]int
	tasks  []domain.Task
	// dependents maps a uuid to the positions of tasks that list it in Depends.
	dependents map[string][]int
}

// NewIndex builds an index over all. The slice is referenced, not copied.
func NewIndex(all []domain.Task) *Index {
	idx := &Index{
		byUUID:     make(map[string]int, len(all)),
		tasks:      all,
		dependents: make(map[string][]int),
	}
	for i := range all {
		if _, seen := idx.byUUID[all[i].UUID]; !seen {
			idx.byUUID[all[i].UUID] = i
		}
		for _, dep := range all[i].Depends {
			idx.dependents[dep] = append(idx.dependents[dep], i)
		}
	}
	return idx
}

// Lookup returns the task with the given uuid.
func (idx *Index) Lookup(uuid string) (domain.Task, bool) {
	i, ok := idx.byUUID[uuid]
	if !ok {
		return domain.Task{}, false
	}
	return idx.tasks[i], true
}

// IsBlocked reports whether t has at least one pending resolved dependency.
func (idx *Index) IsBlocked(t domain.Task) bool {
	for _, dep := range t.Depends {
		if d, ok := idx.Lookup(dep); ok && !d.IsCompleted() {
			return true
		}
	}
	return false
}

// BlockingTasks lists the pending resolved dependencies of t in dependency order.
func (idx *Index) BlockingTasks(t domain.Task) []domain.Task {
	var out []domain.Task
	for _, dep := range t.Depends {
		if d, ok := idx.Lookup(dep); ok && !d.IsCompleted() {
			out = append(out, d)
		}
	}
	return out
}

// Blocks lists the pending tasks of the set that t is currently holding up.
// A completed t blocks nothing.
func (idx *Index) Blocks(t domain.Task) []domain.Task {
	if t.IsCompleted() {
		return nil
	}
	var out []domain.Task
	for _, i := range idx.dependents[t.UUID] {
		if dependent := idx.tasks[i]; !dependent.IsCompleted() {
			out = append(out, dependent)
		}
	}
	return out
}
