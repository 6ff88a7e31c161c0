package taskwarrior

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/fastygo/taskwarlock/domain"
)

// BreakerConfig controls when repeated subprocess failures short-circuit further calls.
type BreakerConfig struct {
	FailureThreshold uint32
	OpenTimeout      time.Duration
	HalfOpenRequests uint32
}

// BreakerRunner fails fast while Taskwarrior keeps failing, instead of queueing
// more subprocesses behind a broken binary or a locked data directory.
type BreakerRunner struct {
	next    Runner
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// NewBreakerRunner wraps next with a circuit breaker.
func NewBreakerRunner(next Runner, cfg BreakerConfig, logger *zap.Logger) *BreakerRunner {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	settings := gobreaker.Settings{
		Name:        "taskwarrior",
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			// A caller giving up says nothing about the health of the binary.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &BreakerRunner{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[[]byte](settings),
	}
}

func (b *BreakerRunner) Run(ctx context.Context, args ...string) ([]byte, error) {
	out, err := b.breaker.Execute(func() ([]byte, error) {
		return b.next.Run(ctx, args...)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, domain.WrapError(domain.ErrCodeExternal, "taskwarrior unavailable", err)
	}
	return out, err
}

// State exposes the breaker state for health reporting.
func (b *BreakerRunner) State() string {
	return b.breaker.State().String()
}
