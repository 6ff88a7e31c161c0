package main

import (
	"context"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fastygo/taskwarlock/domain"
	"github.com/fastygo/taskwarlock/internal/settings"
	"github.com/fastygo/taskwarlock/repository/taskwarrior"
)

type taskSource interface {
	All(ctx context.Context) ([]domain.Task, error)
}

type flags struct {
	taskBin  string
	taskData string
	taskRC   string
	settings string
	timeout  time.Duration
	verbose  bool
}

type app struct {
	out      io.Writer
	flags    flags
	source   func(f flags, logger *zap.Logger) taskSource
	settings func(f flags, logger *zap.Logger) domain.Settings
	now      func() time.Time
}

func defaultApp(out io.Writer) *app {
	return &app{
		out: out,
		source: func(f flags, logger *zap.Logger) taskSource {
			runner := taskwarrior.NewExecRunner(taskwarrior.ExecConfig{
				Binary:   f.taskBin,
				Timeout:  f.timeout,
				TaskRC:   f.taskRC,
				TaskData: f.taskData,
			}, logger)
			return taskwarrior.New(runner, logger)
		},
		settings: func(f flags, logger *zap.Logger) domain.Settings {
			path := f.settings
			if path == "" {
				path = settings.DefaultPath()
			}
			return settings.NewProvider(path, settings.WithLogger(logger)).Current()
		},
		now: time.Now,
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "urgency",
		Short: "Inspect predicted Taskwarrior urgency",
		Long: `urgency scores the tasks of a local Taskwarrior with the coefficients from
the settings file, the same way the server predicts urgency for pending edits.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetOut(a.out)

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.taskBin, "task-bin", "task", "path to the task binary")
	pf.StringVar(&a.flags.taskData, "taskdata", "", "override TASKDATA")
	pf.StringVar(&a.flags.taskRC, "taskrc", "", "override TASKRC")
	pf.StringVar(&a.flags.settings, "settings", "", "settings file (default: resolved like the server)")
	pf.DurationVar(&a.flags.timeout, "timeout", 10*time.Second, "timeout of each task invocation")
	pf.BoolVarP(&a.flags.verbose, "verbose", "v", false, "log task invocations to stderr")

	root.AddCommand(newListCmd(a), newDriftCmd(a))
	return root
}

func (a *app) logger() *zap.Logger {
	if !a.flags.verbose {
		return zap.NewNop()
	}
	l, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// load fetches the tasks and the coefficients used to score them.
func (a *app) load(ctx context.Context) ([]domain.Task, domain.Settings, error) {
	logger := a.logger()
	defer logger.Sync() //nolint:errcheck

	s := a.settings(a.flags, logger)
	tasks, err := a.source(a.flags, logger).All(ctx)
	if err != nil {
		return nil, s, err
	}
	return tasks, s, nil
}
