package settings

import (
	"go.uber.org/zap"

	"github.com/fastygo/taskwarlock/domain"
	"github.com/fastygo/taskwarlock/usecase"
)

// View is the settings document together with where it lives on disk.
type View struct {
	Settings domain.Settings `json:"settings"`
	Path     string          `json:"path"`
}

type UseCase struct {
	store  usecase.SettingsStore
	logger *zap.Logger
}

func New(store usecase.SettingsStore, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{store: store, logger: logger}
}

func (uc *UseCase) Get() View {
	return View{Settings: uc.store.Current(), Path: uc.store.Path()}
}

// Update validates and persists patch. Coefficient changes affect predictions
// of subsequent mutations only; cached urgencies stay authoritative.
func (uc *UseCase) Update(patch domain.SettingsPatch) (View, error) {
	before := uc.store.Current()
	after, err := uc.store.Update(patch)
	if err != nil {
		return View{}, err
	}
	if before.UrgencyCoefficients != after.UrgencyCoefficients || before.UrgencyAgeMax != after.UrgencyAgeMax {
		uc.logger.Info("urgency settings changed",
			zap.Any("coefficients", after.UrgencyCoefficients),
			zap.Int("age_max", after.UrgencyAgeMax))
	}
	return View{Settings: after, Path: uc.store.Path()}, nil
}
