package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskwarlock/api/transport"
	"github.com/fastygo/taskwarlock/domain"
	"github.com/fastygo/taskwarlock/pkg/httpcontext"
	taskUC "github.com/fastygo/taskwarlock/usecase/task"
)

type TaskHandler struct {
	baseHandler
	coord *taskUC.Coordinator
}

func NewTaskHandler(coord *taskUC.Coordinator, adapter *httpcontext.Adapter, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		baseHandler: newBaseHandler(adapter, logger),
		coord:       coord,
	}
}

// @Summary List tasks
// @Tags tasks
// @Router /api/v1/tasks [get]
func (h *TaskHandler) List(ctx *fasthttp.RequestCtx) {
	args := ctx.QueryArgs()
	filter := taskUC.Filter{
		Status:  domain.Status(args.Peek("status")),
		Project: string(args.Peek("project")),
		Tag:     string(args.Peek("tag")),
		Search:  string(args.Peek("q")),
		Limit:   parseInt(string(args.Peek("limit")), 0),
		Offset:  parseInt(string(args.Peek("offset")), 0),
	}
	if filter.Status != "" && filter.Status != domain.StatusPending && filter.Status != domain.StatusCompleted {
		h.respondInvalid(ctx, "status must be pending or completed")
		return
	}
	if raw := string(args.Peek("blocked")); raw != "" {
		blocked, err := strconv.ParseBool(raw)
		if err != nil {
			h.respondInvalid(ctx, "blocked must be a boolean")
			return
		}
		filter.Blocked = &blocked
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	page, err := h.coord.ListTasks(stdCtx, filter)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	views := make([]transport.TaskView, len(page.Tasks))
	for i, v := range page.Tasks {
		views[i] = transport.NewTaskView(v.Task, v.Blocked)
	}
	h.respondJSON(ctx, http.StatusOK, transport.NewSuccess(views, transport.ListMeta{
		Matched: page.Matched,
		Limit:   page.Limit,
		Offset:  page.Offset,
		Stats:   page.Stats,
	}))
}

// @Summary Get task with its dependency relations
// @Tags tasks
// @Router /api/v1/tasks/{uuid} [get]
func (h *TaskHandler) Get(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	view, err := h.coord.GetTask(stdCtx, pathValue(ctx, "uuid"))
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, viewOf(view))
}

// @Summary Create task
// @Tags tasks
// @Router /api/v1/tasks [post]
func (h *TaskHandler) Create(ctx *fasthttp.RequestCtx) {
	var req transport.CreateTaskRequest
	if !h.decode(ctx, &req) {
		return
	}
	in, err := req.ToDomain()
	if err != nil {
		h.respondError(ctx, context.Background(), err)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	m, err := h.coord.Add(stdCtx, in)
	h.settle(ctx, stdCtx, m, err, http.StatusCreated)
}

// @Summary Edit task
// @Tags tasks
// @Router /api/v1/tasks/{uuid} [patch]
func (h *TaskHandler) Update(ctx *fasthttp.RequestCtx) {
	var req transport.UpdateTaskRequest
	if !h.decode(ctx, &req) {
		return
	}
	updates, err := req.ToDomain()
	if err != nil {
		h.respondError(ctx, context.Background(), err)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	m, err := h.coord.Edit(stdCtx, pathValue(ctx, "uuid"), updates)
	h.settle(ctx, stdCtx, m, err, http.StatusOK)
}

// @Summary Complete task
// @Tags tasks
// @Router /api/v1/tasks/{uuid}/done [post]
func (h *TaskHandler) Complete(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	m, err := h.coord.Complete(stdCtx, pathValue(ctx, "uuid"))
	h.settle(ctx, stdCtx, m, err, http.StatusOK)
}

// @Summary Restore completed task
// @Tags tasks
// @Router /api/v1/tasks/{uuid}/restore [post]
func (h *TaskHandler) Restore(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	m, err := h.coord.Restore(stdCtx, pathValue(ctx, "uuid"))
	h.settle(ctx, stdCtx, m, err, http.StatusOK)
}

// @Summary Sync with the Taskwarrior server
// @Tags tasks
// @Router /api/v1/sync [post]
func (h *TaskHandler) Sync(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	m, err := h.coord.Sync(stdCtx)
	h.settle(ctx, stdCtx, m, err, http.StatusOK)
}

// @Summary List tags
// @Tags tasks
// @Router /api/v1/tags [get]
func (h *TaskHandler) Tags(ctx *fasthttp.RequestCtx) {
	h.strings(ctx, h.coord.Tags)
}

// @Summary List projects
// @Tags tasks
// @Router /api/v1/projects [get]
func (h *TaskHandler) Projects(ctx *fasthttp.RequestCtx) {
	h.strings(ctx, h.coord.Projects)
}

func (h *TaskHandler) strings(ctx *fasthttp.RequestCtx, get func(context.Context) ([]string, error)) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	values, err := get(stdCtx)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, values)
}

// @Summary Preview the urgency of a draft task
// @Tags urgency
// @Router /api/v1/urgency/preview [post]
func (h *TaskHandler) Preview(ctx *fasthttp.RequestCtx) {
	var req transport.PreviewRequest
	if !h.decode(ctx, &req) {
		return
	}
	draft, err := req.ToDomain()
	if err != nil {
		h.respondError(ctx, context.Background(), err)
		return
	}
	scored, breakdown := h.coord.Preview(draft)
	h.respondSuccess(ctx, http.StatusOK, transport.PreviewView{
		Task:      transport.NewTaskView(scored, false),
		Breakdown: breakdown,
	})
}

// @Summary List recent mutations
// @Tags mutations
// @Router /api/v1/mutations [get]
func (h *TaskHandler) Mutations(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	records, err := h.coord.Mutations(stdCtx, parseInt(string(ctx.QueryArgs().Peek("limit")), 50))
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, records)
}

// @Summary Get one mutation
// @Tags mutations
// @Router /api/v1/mutations/{id} [get]
func (h *TaskHandler) Mutation(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	record, err := h.coord.Mutation(stdCtx, pathValue(ctx, "id"))
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, record)
}

// settle answers a mutation request. With ?async=true, or when the request
// deadline passes first, it answers 202 with the prediction; otherwise it
// waits for Taskwarrior and answers with the confirmed record or the failure
// that rolled the prediction back.
func (h *TaskHandler) settle(ctx *fasthttp.RequestCtx, stdCtx context.Context, m *taskUC.Mutation, err error, status int) {
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}

	if ctx.QueryArgs().GetBool("async") {
		h.respondSuccess(ctx, http.StatusAccepted, h.mutationView(stdCtx, m, m.Predicted))
		return
	}

	result, err := m.Wait(stdCtx)
	if err != nil {
		if stdCtx.Err() != nil {
			h.respondSuccess(ctx, http.StatusAccepted, h.mutationView(context.Background(), m, m.Predicted))
			return
		}
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, status, h.mutationView(stdCtx, m, result))
}

func (h *TaskHandler) mutationView(ctx context.Context, m *taskUC.Mutation, t *domain.Task) transport.MutationView {
	out := transport.MutationView{Mutation: m.Record()}
	if t == nil {
		return out
	}
	view := transport.NewTaskView(*t, false)
	if v, err := h.coord.GetTask(ctx, t.UUID); err == nil {
		view = viewOf(v)
	}
	out.Task = &view
	return out
}

func viewOf(v taskUC.View) transport.TaskView {
	out := transport.NewTaskView(v.Task, v.Blocked)
	out.BlockedBy = transport.UUIDs(v.BlockedBy)
	out.Blocks = transport.UUIDs(v.Blocks)
	return out
}
