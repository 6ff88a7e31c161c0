// Package taskwarrior adapts the Taskwarrior CLI to the repository ports.
package taskwarrior

import (
	"bufio"
	"bytes"
	"cmp"
	"context"
	"regexp"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/fastygo/taskwarlock/domain"
	"github.com/fastygo/taskwarlock/repository"
)

var (
	createdTaskPattern    = regexp.MustCompile(`Created task (\d+)`)
	currentContextPattern = regexp.MustCompile(`Context '(.+)' is currently applied`)
	numericPattern        = regexp.MustCompile(`^\d+$`)
)

// Repository implements the task and context ports on top of a Runner.
type Repository struct {
	runner Runner
	logger *zap.Logger
}

var (
	_ repository.TaskRepository    = (*Repository)(nil)
	_ repository.ContextRepository = (*Repository)(nil)
)

// New creates a repository.
func New(runner Runner, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{runner: runner, logger: logger}
}

// All exports every non-deleted task, most urgent first.
func (r *Repository) All(ctx context.Context) ([]domain.Task, error) {
	out, err := r.runner.Run(ctx, "export")
	if err != nil {
		return nil, err
	}
	tasks, err := parseExport(out)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(tasks, func(a, b domain.Task) int {
		return cmp.Compare(b.Urgency, a.Urgency)
	})
	return tasks, nil
}

// Get exports a single task by uuid or working-set id.
func (r *Repository) Get(ctx context.Context, ref string) (*domain.Task, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, domain.ErrTaskNotFound
	}
	out, err := r.runner.Run(ctx, ref, "export")
	if err != nil {
		return nil, err
	}
	tasks, err := parseExport(out)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, domain.ErrTaskNotFound
	}
	task := tasks[0]
	return &task, nil
}

// Tags lists distinct tags, sorted.
func (r *Repository) Tags(ctx context.Context) ([]string, error) {
	out, err := r.runner.Run(ctx, "_unique", "tags")
	if err != nil {
		return nil, err
	}
	return parseTags(out), nil
}

// Projects lists project names, sorted.
func (r *Repository) Projects(ctx context.Context) ([]string, error) {
	out, err := r.runner.Run(ctx, "_projects")
	if err != nil {
		return nil, err
	}
	projects := nonEmptyLines(out)
	slices.Sort(projects)
	return projects, nil
}

// Add creates a task and re-exports it by the id Taskwarrior reports. It
// returns a nil task when the add succeeded but the new id was not printed.
func (r *Repository) Add(ctx context.Context, task domain.TaskAdd) (*domain.Task, error) {
	if err := task.Validate(); err != nil {
		return nil, err
	}
	out, err := r.runner.Run(ctx, addArgs(task)...)
	if err != nil {
		return nil, err
	}

	match := createdTaskPattern.FindSubmatch(out)
	if match == nil {
		r.logger.Warn("task added without a reported id", zap.ByteString("output", bytes.TrimSpace(out)))
		return nil, nil
	}
	created, err := r.Get(ctx, string(match[1]))
	if err != nil {
		r.logger.Warn("failed to export created task", zap.ByteString("id", match[1]), zap.Error(err))
		return nil, nil
	}
	return created, nil
}

// Edit sends only the fields present in updates and returns the re-exported record.
func (r *Repository) Edit(ctx context.Context, original domain.Task, updates domain.TaskUpdate) (*domain.Task, error) {
	if original.UUID == "" {
		return nil, domain.ErrMissingOriginal
	}
	if err := updates.Validate(); err != nil {
		return nil, err
	}
	args := editArgs(original, updates)
	if len(args) > 2 {
		if _, err := r.runner.Run(ctx, args...); err != nil {
			return nil, err
		}
	}
	return r.Get(ctx, original.UUID)
}

func (r *Repository) Complete(ctx context.Context, uuid string) error {
	_, err := r.runner.Run(ctx, uuid, "done")
	return err
}

func (r *Repository) Restore(ctx context.Context, uuid string) error {
	_, err := r.runner.Run(ctx, uuid, "modify", "status:pending")
	return err
}

// Sync runs a full sync with the configured sync server.
func (r *Repository) Sync(ctx context.Context) error {
	_, err := r.runner.Run(ctx, "sync")
	return err
}

// Version reports the installed Taskwarrior version.
func (r *Repository) Version(ctx context.Context) (string, error) {
	out, err := r.runner.Run(ctx, "_version")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// Contexts lists defined context names, sorted.
func (r *Repository) Contexts(ctx context.Context) ([]string, error) {
	out, err := r.runner.Run(ctx, "context", "list")
	if err != nil {
		return nil, err
	}
	return parseContexts(out), nil
}

// CurrentContext returns the applied context, or "" when none is.
func (r *Repository) CurrentContext(ctx context.Context) (string, error) {
	out, err := r.runner.Run(ctx, "context", "show")
	if err != nil {
		return "", err
	}
	if match := currentContextPattern.FindSubmatch(out); match != nil {
		return string(match[1]), nil
	}
	return "", nil
}

// SetContext applies name. An empty name clears the context.
func (r *Repository) SetContext(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "none"
	}
	_, err := r.runner.Run(ctx, "context", name)
	return err
}

func addArgs(task domain.TaskAdd) []string {
	args := []string{"add"}
	if task.Project != "" {
		args = append(args, "project:"+task.Project)
	}
	if task.Priority != domain.PriorityNone {
		args = append(args, "priority:"+string(task.Priority))
	}
	if task.Due != nil {
		args = append(args, "due:"+formatDue(*task.Due))
	}
	for _, tag := range task.Tags {
		args = append(args, "+"+tag)
	}
	if len(task.Depends) > 0 {
		args = append(args, "depends:"+strings.Join(task.Depends, ","))
	}
	// Everything after -- is description text, even if it looks like an attribute.
	return append(args, "--", task.Description)
}

func editArgs(original domain.Task, u domain.TaskUpdate) []string {
	args := []string{original.UUID, "modify"}
	if u.Description != nil {
		args = append(args, "description:"+*u.Description)
	}
	if u.Project != nil {
		args = append(args, "project:"+*u.Project)
	}
	if u.Priority != nil {
		args = append(args, "priority:"+string(*u.Priority))
	}
	switch {
	case u.ClearDue:
		args = append(args, "due:")
	case u.Due != nil:
		args = append(args, "due:"+formatDue(*u.Due))
	}
	if u.Tags != nil {
		for _, tag := range u.Tags {
			if !slices.Contains(original.Tags, tag) {
				args = append(args, "+"+tag)
			}
		}
		for _, tag := range original.Tags {
			if !slices.Contains(u.Tags, tag) {
				args = append(args, "-"+tag)
			}
		}
	}
	return args
}

func parseTags(out []byte) []string {
	seen := make(map[string]struct{})
	var tags []string
	for _, line := range nonEmptyLines(out) {
		for _, tag := range strings.Split(line, ",") {
			tag = strings.TrimSpace(tag)
			if tag == "" {
				continue
			}
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			tags = append(tags, tag)
		}
	}
	slices.Sort(tags)
	if tags == nil {
		return []string{}
	}
	return tags
}

// parseContexts reads the table printed by `task context list`, skipping
// headers, separators and the read/write filter rows of Taskwarrior 2.6+.
func parseContexts(out []byte) []string {
	seen := make(map[string]struct{})
	contexts := []string{}
	for _, line := range nonEmptyLines(out) {
		if strings.Contains(line, "Context") || strings.Contains(line, "---") || strings.Contains(line, "Definition") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		name := fields[0]
		if numericPattern.MatchString(name) || name == "read" || name == "write" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		contexts = append(contexts, name)
	}
	slices.Sort(contexts)
	return contexts
}

func nonEmptyLines(out []byte) []string {
	lines := []string{}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
