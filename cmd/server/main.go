package main

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/taskwarlock/api/handler"
	"github.com/fastygo/taskwarlock/internal/config"
	"github.com/fastygo/taskwarlock/internal/infrastructure/journal"
	"github.com/fastygo/taskwarlock/internal/infrastructure/monitor"
	"github.com/fastygo/taskwarlock/internal/middleware"
	"github.com/fastygo/taskwarlock/internal/router"
	"github.com/fastygo/taskwarlock/internal/services"
	"github.com/fastygo/taskwarlock/internal/services/lifecycle"
	"github.com/fastygo/taskwarlock/internal/settings"
	"github.com/fastygo/taskwarlock/pkg/httpcontext"
	"github.com/fastygo/taskwarlock/pkg/logger"
	"github.com/fastygo/taskwarlock/repository/taskwarrior"
	contextsUC "github.com/fastygo/taskwarlock/usecase/contexts"
	settingsUC "github.com/fastygo/taskwarlock/usecase/settings"
	taskUC "github.com/fastygo/taskwarlock/usecase/task"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	appCtx, stop := manager.SignalContext(context.Background())
	defer stop()

	runner := taskwarrior.NewBreakerRunner(
		taskwarrior.NewExecRunner(taskwarrior.ExecConfig{
			Binary:    cfg.Taskwarrior.Binary,
			Timeout:   cfg.Taskwarrior.Timeout,
			Overrides: cfg.Taskwarrior.Overrides,
			TaskRC:    cfg.Taskwarrior.TaskRC,
			TaskData:  cfg.Taskwarrior.TaskData,
		}, zapLogger),
		taskwarrior.BreakerConfig{
			FailureThreshold: uint32(cfg.Breaker.FailureThreshold),
			OpenTimeout:      cfg.Breaker.OpenTimeout,
			HalfOpenRequests: uint32(max(cfg.Breaker.HalfOpenRequests, 1)),
		},
		zapLogger,
	)
	repo := taskwarrior.New(runner, zapLogger)

	settingsPath := cfg.Settings.Path
	if settingsPath == "" {
		settingsPath = settings.DefaultPath()
	}
	settingsStore := settings.NewProvider(settingsPath,
		settings.WithTTL(cfg.Settings.TTL),
		settings.WithLogger(zapLogger))
	zapLogger.Info("settings loaded", zap.String("path", settingsStore.Path()))

	if err := os.MkdirAll(filepath.Dir(cfg.Journal.Path), 0o755); err != nil {
		zapLogger.Fatal("failed to create journal directory", zap.Error(err))
	}
	journalStore, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		zapLogger.Fatal("failed to open mutation journal", zap.Error(err))
	}
	manager.Register("journal", func(ctx context.Context) error {
		return journalStore.Close()
	})

	mon := monitor.New(repo.Version, journalStore, runner, cfg.Refresh.MonitorInterval, zapLogger)
	mon.Start()
	manager.RegisterStop("monitor", mon.Stop)

	coordinator := taskUC.New(
		repo,
		settingsStore,
		services.NewJournalBridge(journalStore, zapLogger),
		zapLogger,
		taskUC.Options{
			CacheTTL:        cfg.Cache.TTL,
			DispatchTimeout: cfg.Taskwarrior.DispatchTimeout,
		},
	)
	manager.Register("coordinator", coordinator.Shutdown)

	refresher, err := services.NewRefresher(
		coordinator,
		mon,
		journalStore,
		zapLogger,
		services.RefresherConfig{
			Interval:  cfg.Refresh.Interval,
			Retention: cfg.Journal.Retention,
		},
	)
	if err != nil {
		zapLogger.Fatal("failed to schedule refresher", zap.Error(err))
	}
	refresher.Start()
	manager.Register("refresher", func(ctx context.Context) error {
		refresher.Stop(ctx)
		return nil
	})

	if cfg.Settings.Watch {
		go func() {
			err := settingsStore.Watch(appCtx, func() {
				zapLogger.Info("settings file reloaded", zap.String("path", settingsStore.Path()))
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				zapLogger.Warn("settings watch stopped", zap.Error(err))
			}
		}()
	}

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Task:     apiHandler.NewTaskHandler(coordinator, ctxAdapter, zapLogger),
		Context:  apiHandler.NewContextHandler(contextsUC.New(repo, coordinator, zapLogger), ctxAdapter, zapLogger),
		Settings: apiHandler.NewSettingsHandler(settingsUC.New(settingsStore, zapLogger), ctxAdapter, zapLogger),
		Health:   apiHandler.NewHealthHandler(mon, coordinator, ctxAdapter, zapLogger),
	}

	r := router.New(handlers, middleware.AccessLog(zapLogger))

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Concurrency:  cfg.HTTP.MaxConn,
		Name:         cfg.AppName,
	}

	go func() {
		// Warm the caches so the first page load does not wait for an export.
		if err := coordinator.Refresh(appCtx); err != nil {
			zapLogger.Warn("initial task load failed", zap.Error(err))
		}
	}()

	go func() {
		zapLogger.Info("server started", zap.String("address", cfg.Address()))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
