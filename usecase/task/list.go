package task

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/fastygo/taskwarlock/domain"
	"github.com/fastygo/taskwarlock/internal/deps"
)

// Filter narrows ListTasks. Zero values match everything.
type Filter struct {
	Status  domain.Status
	Project string
	Tag     string
	Blocked *bool
	Search  string
	Limit   int
	Offset  int
}

// View is a task enriched with its dependency relations.
type View struct {
	Task      domain.Task
	Blocked   bool
	BlockedBy []domain.Task
	Blocks    []domain.Task
}

// Stats summarises the whole cached collection.
type Stats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
	Blocked   int `json:"blocked"`
	Overdue   int `json:"overdue"`
}

// Page is one page of filtered tasks.
type Page struct {
	Tasks   []View
	Matched int
	Limit   int
	Offset  int
	Stats   Stats
}

// ListTasks filters the cached tasks, most urgent first, and paginates them.
// A zero limit uses the page size from the settings.
func (c *Coordinator) ListTasks(ctx context.Context, f Filter) (Page, error) {
	all, err := c.Tasks(ctx)
	if err != nil {
		return Page{}, err
	}
	idx := deps.NewIndex(all)
	now := c.clock.Now()

	if f.Limit <= 0 {
		f.Limit = c.settings.Current().DefaultPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	page := Page{Limit: f.Limit, Offset: f.Offset, Stats: stats(all, idx, now)}
	matched := make([]View, 0, len(all))
	for _, t := range all {
		blocked := idx.IsBlocked(t)
		if !f.matches(t, blocked) {
			continue
		}
		matched = append(matched, View{Task: t, Blocked: blocked})
	}
	slices.SortStableFunc(matched, func(a, b View) int {
		return cmp.Compare(b.Task.Urgency, a.Task.Urgency)
	})

	page.Matched = len(matched)
	start := min(f.Offset, len(matched))
	end := min(start+f.Limit, len(matched))
	page.Tasks = matched[start:end]
	return page, nil
}

// GetTask returns one cached task with the tasks blocking it and the tasks it blocks.
func (c *Coordinator) GetTask(ctx context.Context, uuid string) (View, error) {
	all, err := c.Tasks(ctx)
	if err != nil {
		return View{}, err
	}
	idx := deps.NewIndex(all)
	t, ok := idx.Lookup(uuid)
	if !ok {
		return View{}, domain.ErrTaskNotFound
	}
	blocking := idx.BlockingTasks(t)
	return View{
		Task:      t,
		Blocked:   len(blocking) > 0,
		BlockedBy: blocking,
		Blocks:    idx.Blocks(t),
	}, nil
}

func (f Filter) matches(t domain.Task, blocked bool) bool {
	if f.Status != "" && t.Status() != f.Status {
		return false
	}
	if f.Project != "" && t.Project != f.Project && !strings.HasPrefix(t.Project, f.Project+".") {
		return false
	}
	if f.Tag != "" && !t.HasTag(f.Tag) {
		return false
	}
	if f.Blocked != nil && *f.Blocked != blocked {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(t.Description), strings.ToLower(f.Search)) {
		return false
	}
	return true
}

func stats(all []domain.Task, idx *deps.Index, now time.Time) Stats {
	var s Stats
	for _, t := range all {
		s.Total++
		if t.IsCompleted() {
			s.Completed++
			continue
		}
		s.Pending++
		if idx.IsBlocked(t) {
			s.Blocked++
		}
		if t.IsOverdue(now) {
			s.Overdue++
		}
	}
	return s
}
