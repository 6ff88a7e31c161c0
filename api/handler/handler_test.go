package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/taskwarlock/api/handler"
	"github.com/fastygo/taskwarlock/domain"
	"github.com/fastygo/taskwarlock/internal/infrastructure/monitor"
	"github.com/fastygo/taskwarlock/internal/router"
	"github.com/fastygo/taskwarlock/internal/settings"
	"github.com/fastygo/taskwarlock/pkg/httpcontext"
	contextsUC "github.com/fastygo/taskwarlock/usecase/contexts"
	settingsUC "github.com/fastygo/taskwarlock/usecase/settings"
	taskUC "github.com/fastygo/taskwarlock/usecase/task"
)

var entry = time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

// memRepo is an in-memory Taskwarrior.
type memRepo struct {
	mu       sync.Mutex
	tasks    []domain.Task
	contexts []string
	current  string
	nextID   int
	fail     error
}

func (r *memRepo) All(context.Context) ([]domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return domain.CloneTasks(append([]domain.Task{}, r.tasks...)), nil
}

func (r *memRepo) Get(_ context.Context, ref string) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tasks {
		if t.UUID == ref {
			out := t.Clone()
			return &out, nil
		}
	}
	return nil, domain.ErrTaskNotFound
}

func (r *memRepo) Tags(context.Context) ([]string, error) { return []string{"home", "next"}, nil }

func (r *memRepo) Projects(context.Context) ([]string, error) { return []string{"work"}, nil }

func (r *memRepo) Add(_ context.Context, in domain.TaskAdd) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return nil, r.fail
	}
	r.nextID++
	e := entry
	t := domain.Task{ID: r.nextID, UUID: fmt.Sprintf("uuid-%d", r.nextID), Description: in.Description, Tags: in.Tags, Entry: &e, Urgency: 1.5}
	r.tasks = append(r.tasks, t)
	return &t, nil
}

func (r *memRepo) Edit(_ context.Context, original domain.Task, updates domain.TaskUpdate) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return nil, r.fail
	}
	for i := range r.tasks {
		if r.tasks[i].UUID == original.UUID {
			r.tasks[i] = updates.ApplyTo(r.tasks[i])
			out := r.tasks[i].Clone()
			return &out, nil
		}
	}
	return nil, domain.ErrTaskNotFound
}

func (r *memRepo) Complete(_ context.Context, uuid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	for i := range r.tasks {
		if r.tasks[i].UUID == uuid {
			end := entry
			r.tasks[i].End = &end
			return nil
		}
	}
	return domain.ErrTaskNotFound
}

func (r *memRepo) Restore(context.Context, string) error { return nil }

func (r *memRepo) Sync(context.Context) error { return nil }

func (r *memRepo) Contexts(context.Context) ([]string, error) { return r.contexts, nil }

func (r *memRepo) CurrentContext(context.Context) (string, error) { return r.current, nil }

func (r *memRepo) SetContext(_ context.Context, name string) error {
	r.current = name
	return nil
}

type fixedStatus monitor.Status

func (f fixedStatus) GetStatus() monitor.Status { return monitor.Status(f) }

type harness struct {
	repo    *memRepo
	coord   *taskUC.Coordinator
	handler fasthttp.RequestHandler
}

func newHarness(t *testing.T, online bool) *harness {
	t.Helper()
	repo := &memRepo{
		tasks: []domain.Task{
			{ID: 1, UUID: "a", Description: "write report", Project: "work", Urgency: 2, Entry: &entry},
			{ID: 2, UUID: "b", Description: "review report", Depends: []string{"a"}, Urgency: 9, Entry: &entry},
		},
		contexts: []string{"home", "work"},
		nextID:   10,
	}
	store := settings.NewProvider(filepath.Join(t.TempDir(), "settings.json"))
	coord := taskUC.New(repo, store, nil, nil, taskUC.Options{DispatchTimeout: time.Second})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = coord.Shutdown(ctx)
	})

	adapter := httpcontext.NewAdapter(2 * time.Second)
	r := router.New(router.Handlers{
		Task:     apiHandler.NewTaskHandler(coord, adapter, nil),
		Context:  apiHandler.NewContextHandler(contextsUC.New(repo, coord, nil), adapter, nil),
		Settings: apiHandler.NewSettingsHandler(settingsUC.New(store, nil), adapter, nil),
		Health:   apiHandler.NewHealthHandler(fixedStatus{Taskwarrior: online, Version: "3.1.0"}, coord, adapter, nil),
	}, nil)
	return &harness{repo: repo, coord: coord, handler: r.Handler}
}

type envelope struct {
	Status string          `json:"status"`
	Code   string          `json:"code"`
	Data   json.RawMessage `json:"data"`
	Meta   json.RawMessage `json:"meta"`
}

func (h *harness) do(t *testing.T, method, uri, body string) (int, envelope) {
	t.Helper()
	var rc fasthttp.RequestCtx
	rc.Request.Header.SetMethod(method)
	rc.Request.SetRequestURI(uri)
	if body != "" {
		rc.Request.SetBodyString(body)
	}
	h.handler(&rc)

	var env envelope
	require.NoError(t, json.Unmarshal(rc.Response.Body(), &env), string(rc.Response.Body()))
	return rc.Response.StatusCode(), env
}

type taskView struct {
	UUID        string   `json:"uuid"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	Temporary   bool     `json:"temporary"`
	Blocked     bool     `json:"blocked"`
	BlockedBy   []string `json:"blocked_by"`
	Blocks      []string `json:"blocks"`
}

type mutationView struct {
	Mutation domain.MutationRecord `json:"mutation"`
	Task     *taskView             `json:"task"`
}

func TestTasks_ListSortedWithStats(t *testing.T) {
	h := newHarness(t, true)

	status, env := h.do(t, "GET", "/api/v1/tasks", "")
	require.Equal(t, http.StatusOK, status)

	var tasks []taskView
	require.NoError(t, json.Unmarshal(env.Data, &tasks))
	require.Len(t, tasks, 2)
	assert.Equal(t, "b", tasks[0].UUID)
	assert.True(t, tasks[0].Blocked)
	assert.Equal(t, "pending", tasks[0].Status)

	var meta struct {
		Matched int            `json:"matched"`
		Limit   int            `json:"limit"`
		Stats   map[string]int `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(env.Meta, &meta))
	assert.Equal(t, 2, meta.Matched)
	assert.Equal(t, 20, meta.Limit)
	assert.Equal(t, 1, meta.Stats["blocked"])

	status, env = h.do(t, "GET", "/api/v1/tasks?project=work", "")
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &tasks))
	assert.Len(t, tasks, 1)

	status, env = h.do(t, "GET", "/api/v1/tasks?blocked=maybe", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID", env.Code)
}

func TestTasks_GetWithRelations(t *testing.T) {
	h := newHarness(t, true)

	status, env := h.do(t, "GET", "/api/v1/tasks/a", "")
	require.Equal(t, http.StatusOK, status)
	var view taskView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, []string{"b"}, view.Blocks)

	status, env = h.do(t, "GET", "/api/v1/tasks/missing", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", env.Code)
}

func TestTasks_CreateWaitsForConfirmation(t *testing.T) {
	h := newHarness(t, true)

	status, env := h.do(t, "POST", "/api/v1/tasks", `{"description":"  buy milk ","tags":["home"]}`)
	require.Equal(t, http.StatusCreated, status)

	var out mutationView
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, domain.MutationConfirmed, out.Mutation.State)
	require.NotNil(t, out.Task)
	assert.Equal(t, "uuid-11", out.Task.UUID)
	assert.Equal(t, "buy milk", out.Task.Description)
	assert.False(t, out.Task.Temporary)

	status, env = h.do(t, "POST", "/api/v1/tasks", `{"description":"   "}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID", env.Code)

	status, _ = h.do(t, "POST", "/api/v1/tasks", `{not json`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestTasks_CreateAsyncReturnsPrediction(t *testing.T) {
	h := newHarness(t, true)

	status, env := h.do(t, "POST", "/api/v1/tasks?async=true", `{"description":"call mom"}`)
	require.Equal(t, http.StatusAccepted, status)

	var out mutationView
	require.NoError(t, json.Unmarshal(env.Data, &out))
	require.NotNil(t, out.Task)
	assert.True(t, out.Task.Temporary)
	assert.NotEqual(t, domain.MutationRolledBack, out.Mutation.State)

	require.Eventually(t, func() bool {
		rec, err := h.coord.Mutation(context.Background(), out.Mutation.ID)
		return err != nil || rec.State == domain.MutationConfirmed
	}, time.Second, 5*time.Millisecond)
}

func TestTasks_EditFailureRollsBack(t *testing.T) {
	h := newHarness(t, true)
	h.do(t, "GET", "/api/v1/tasks", "")
	h.repo.mu.Lock()
	h.repo.fail = domain.WrapError(domain.ErrCodeExternal, "taskwarrior command failed", errors.New("exit status 1"))
	h.repo.mu.Unlock()

	status, env := h.do(t, "PATCH", "/api/v1/tasks/a", `{"description":"renamed"}`)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "EXTERNAL", env.Code)

	_, env = h.do(t, "GET", "/api/v1/tasks/a", "")
	var view taskView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, "write report", view.Description)
}

func TestTasks_CompleteUnconfirmedIsConflict(t *testing.T) {
	h := newHarness(t, true)

	status, env := h.do(t, "POST", "/api/v1/tasks/temp-1700000000000-abcdefgh/done", "")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "MISSING_ORIGINAL", env.Code)

	status, env = h.do(t, "POST", "/api/v1/tasks/a/done", "")
	require.Equal(t, http.StatusOK, status)
	var out mutationView
	require.NoError(t, json.Unmarshal(env.Data, &out))
	require.NotNil(t, out.Task)
	assert.Equal(t, "completed", out.Task.Status)
}

func TestTasks_TagsProjectsAndMutations(t *testing.T) {
	h := newHarness(t, true)

	status, env := h.do(t, "GET", "/api/v1/tags", "")
	require.Equal(t, http.StatusOK, status)
	var tags []string
	require.NoError(t, json.Unmarshal(env.Data, &tags))
	assert.Equal(t, []string{"home", "next"}, tags)

	status, _ = h.do(t, "GET", "/api/v1/projects", "")
	assert.Equal(t, http.StatusOK, status)

	status, env = h.do(t, "POST", "/api/v1/sync", "")
	require.Equal(t, http.StatusOK, status)
	var out mutationView
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, domain.MutationSync, out.Mutation.Kind)

	status, env = h.do(t, "GET", "/api/v1/mutations/unknown", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", env.Code)
}

func TestUrgencyPreview(t *testing.T) {
	h := newHarness(t, true)

	status, env := h.do(t, "POST", "/api/v1/urgency/preview", `{"description":"draft","priority":"H","tags":["next"]}`)
	require.Equal(t, http.StatusOK, status)

	var out struct {
		Breakdown map[string]float64 `json:"breakdown"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.InDelta(t, 6.0, out.Breakdown["priority"], 1e-9)
	assert.InDelta(t, 15.0, out.Breakdown["next"], 1e-9)
}

func TestSettings_GetAndUpdate(t *testing.T) {
	h := newHarness(t, true)

	status, env := h.do(t, "GET", "/api/v1/settings", "")
	require.Equal(t, http.StatusOK, status)
	var view settingsUC.View
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, domain.DefaultSettings(), view.Settings)

	status, env = h.do(t, "PUT", "/api/v1/settings", `{"urgencyCoefficients":{"due":20}}`)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.InDelta(t, 20.0, view.Settings.UrgencyCoefficients.Due, 1e-9)
	assert.InDelta(t, 6.0, view.Settings.UrgencyCoefficients.PriorityH, 1e-9)

	status, env = h.do(t, "PUT", "/api/v1/settings", `{"urgencyAgeMax":0}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID", env.Code)
}

func TestContexts_ListAndSwitch(t *testing.T) {
	h := newHarness(t, true)

	status, env := h.do(t, "PUT", "/api/v1/contexts/current", `{"name":"work"}`)
	require.Equal(t, http.StatusOK, status)
	var overview contextsUC.Overview
	require.NoError(t, json.Unmarshal(env.Data, &overview))
	assert.Equal(t, "work", overview.Current)
	assert.True(t, slices.Equal([]string{"home", "work"}, overview.Available))

	status, env = h.do(t, "PUT", "/api/v1/contexts/current", `{"name":"garden"}`)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", env.Code)

	status, env = h.do(t, "GET", "/api/v1/contexts", "")
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &overview))
	assert.Equal(t, "work", overview.Current)
}

func TestHealth(t *testing.T) {
	status, env := newHarness(t, true).do(t, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "success", env.Status)

	status, env = newHarness(t, false).do(t, "GET", "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "DEGRADED", env.Code)
}
