package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/fastygo/taskwarlock/domain"
	"github.com/fastygo/taskwarlock/internal/infrastructure/journal"
	"github.com/fastygo/taskwarlock/usecase"
)

// JournalBridge exposes the bbolt journal through the use case port.
type JournalBridge struct {
	store  *journal.Store
	logger *zap.Logger
}

func NewJournalBridge(store *journal.Store, logger *zap.Logger) *JournalBridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JournalBridge{store: store, logger: logger}
}

func (b *JournalBridge) Record(ctx context.Context, rec domain.MutationRecord) error {
	if b.store == nil {
		return domain.ErrInvalidPayload
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.store.Put(rec); err != nil {
		return domain.WrapError(domain.ErrCodeInternal, "failed to journal mutation", err)
	}
	b.logger.Debug("mutation journaled",
		zap.String("mutation_id", rec.ID),
		zap.String("state", string(rec.State)))
	return nil
}

func (b *JournalBridge) Get(ctx context.Context, id string) (domain.MutationRecord, error) {
	if b.store == nil {
		return domain.MutationRecord{}, domain.ErrMutationNotFound
	}
	return b.store.Get(id)
}

func (b *JournalBridge) List(ctx context.Context, limit int) ([]domain.MutationRecord, error) {
	if b.store == nil {
		return []domain.MutationRecord{}, nil
	}
	return b.store.List(limit)
}

var _ usecase.MutationJournal = (*JournalBridge)(nil)
