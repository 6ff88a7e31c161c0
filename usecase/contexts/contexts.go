package contexts

import (
	"context"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/fastygo/taskwarlock/domain"
	"github.com/fastygo/taskwarlock/repository"
	"github.com/fastygo/taskwarlock/usecase"
)

// Overview lists the defined contexts and the applied one ("" for none).
type Overview struct {
	Available []string `json:"available"`
	Current   string   `json:"current"`
}

// UseCase switches Taskwarrior contexts. A context filters every export, so
// switching it reloads the cached tasks.
type UseCase struct {
	contexts repository.ContextRepository
	tasks    usecase.TaskReloader
	logger   *zap.Logger
}

func New(contexts repository.ContextRepository, tasks usecase.TaskReloader, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		contexts: contexts,
		tasks:    tasks,
		logger:   logger,
	}
}

func (uc *UseCase) Overview(ctx context.Context) (Overview, error) {
	available, err := uc.contexts.Contexts(ctx)
	if err != nil {
		return Overview{}, err
	}
	current, err := uc.contexts.CurrentContext(ctx)
	if err != nil {
		return Overview{}, err
	}
	return Overview{Available: available, Current: current}, nil
}

// Switch applies name, or clears the context when name is empty.
func (uc *UseCase) Switch(ctx context.Context, name string) (Overview, error) {
	name = strings.TrimSpace(name)
	if name == "none" {
		name = ""
	}
	if name != "" {
		available, err := uc.contexts.Contexts(ctx)
		if err != nil {
			return Overview{}, err
		}
		if !slices.Contains(available, name) {
			return Overview{}, domain.NewError(domain.ErrCodeNotFound, "context not defined: "+name)
		}
	}

	if err := uc.contexts.SetContext(ctx, name); err != nil {
		return Overview{}, err
	}
	uc.logger.Info("context switched", zap.String("context", name))

	if uc.tasks != nil {
		if err := uc.tasks.Reload(ctx); err != nil {
			uc.logger.Warn("failed to reload tasks after context switch", zap.Error(err))
		}
	}
	return uc.Overview(ctx)
}
