package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/taskwarlock/api/handler"
)

type Handlers struct {
	Task     *apiHandler.TaskHandler
	Context  *apiHandler.ContextHandler
	Settings *apiHandler.SettingsHandler
	Health   *apiHandler.HealthHandler
}

func New(handlers Handlers, middleware func(fasthttp.RequestHandler) fasthttp.RequestHandler) *router.Router {
	if middleware == nil {
		middleware = func(next fasthttp.RequestHandler) fasthttp.RequestHandler { return next }
	}
	r := router.New()

	r.GET("/health", middleware(handlers.Health.Check))

	v1 := r.Group("/api/v1")

	v1.GET("/tasks", middleware(handlers.Task.List))
	v1.POST("/tasks", middleware(handlers.Task.Create))
	v1.GET("/tasks/{uuid}", middleware(handlers.Task.Get))
	v1.PATCH("/tasks/{uuid}", middleware(handlers.Task.Update))
	v1.POST("/tasks/{uuid}/done", middleware(handlers.Task.Complete))
	v1.POST("/tasks/{uuid}/restore", middleware(handlers.Task.Restore))
	v1.POST("/sync", middleware(handlers.Task.Sync))

	v1.GET("/tags", middleware(handlers.Task.Tags))
	v1.GET("/projects", middleware(handlers.Task.Projects))
	v1.POST("/urgency/preview", middleware(handlers.Task.Preview))

	v1.GET("/mutations", middleware(handlers.Task.Mutations))
	v1.GET("/mutations/{id}", middleware(handlers.Task.Mutation))

	v1.GET("/contexts", middleware(handlers.Context.List))
	v1.PUT("/contexts/current", middleware(handlers.Context.Switch))

	v1.GET("/settings", middleware(handlers.Settings.Get))
	v1.PUT("/settings", middleware(handlers.Settings.Update))

	return r
}
