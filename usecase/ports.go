package usecase

import (
	"context"

	"github.com/fastygo/taskwarlock/domain"
)

// MutationJournal records the lifecycle of optimistic mutations so use cases
// stay storage-agnostic. Implementations must be safe for concurrent use.
type MutationJournal interface {
	Record(ctx context.Context, rec domain.MutationRecord) error
	Get(ctx context.Context, id string) (domain.MutationRecord, error)
	List(ctx context.Context, limit int) ([]domain.MutationRecord, error)
}

// SettingsProvider supplies the current user settings. It is consulted on
// every mutation because coefficients may change between mutations.
type SettingsProvider interface {
	Current() domain.Settings
}

// SettingsStore is a SettingsProvider that can also persist changes.
type SettingsStore interface {
	SettingsProvider
	Update(patch domain.SettingsPatch) (domain.Settings, error)
	Path() string
}

// TaskReloader drops cached task data and fetches it again.
type TaskReloader interface {
	Reload(ctx context.Context) error
}
