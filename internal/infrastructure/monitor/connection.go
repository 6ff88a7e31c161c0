package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// VersionFunc asks Taskwarrior for its version.
type VersionFunc func(ctx context.Context) (string, error)

// Sizer reports the number of records in the mutation journal.
type Sizer interface {
	Size() (int, error)
}

// BreakerState reports the circuit breaker state of the Taskwarrior runner.
type BreakerState interface {
	State() string
}

type Monitor struct {
	version VersionFunc
	journal Sizer
	breaker BreakerState

	status   Status
	mu       sync.RWMutex
	interval time.Duration
	timeout  time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

func New(version VersionFunc, journal Sizer, breaker BreakerState, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		version:  version,
		journal:  journal,
		breaker:  breaker,
		interval: interval,
		timeout:  3 * time.Second,
		stopCh:   make(chan struct{}),
		logger:   logger,
	}
}

func (m *Monitor) Start() {
	go m.loop()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// IsOnline reports whether the last check reached Taskwarrior.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.Taskwarrior
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Check(context.Background())
	for {
		select {
		case <-ticker.C:
			m.Check(context.Background())
		case <-m.stopCh:
			return
		}
	}
}

// Check probes every dependency once and stores the result.
func (m *Monitor) Check(ctx context.Context) Status {
	online, version := m.checkTaskwarrior(ctx)
	journalOK, journalSize := m.checkJournal()
	status := Status{
		Taskwarrior: online,
		Version:     version,
		Journal:     journalOK,
		JournalSize: journalSize,
		LastCheck:   time.Now(),
	}
	if m.breaker != nil {
		status.Breaker = m.breaker.State()
	}

	m.mu.Lock()
	prev := m.status
	m.status = status
	m.mu.Unlock()

	if !prev.LastCheck.IsZero() && prev.Taskwarrior != status.Taskwarrior {
		m.logger.Info("taskwarrior availability changed", zap.Bool("online", status.Taskwarrior))
	}
	return status
}

func (m *Monitor) checkTaskwarrior(ctx context.Context) (bool, string) {
	if m.version == nil {
		return false, ""
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	v, err := m.version(ctx)
	if err != nil {
		m.logger.Debug("taskwarrior check failed", zap.Error(err))
		return false, ""
	}
	return true, v
}

func (m *Monitor) checkJournal() (bool, int) {
	if m.journal == nil {
		return false, 0
	}
	size, err := m.journal.Size()
	if err != nil {
		m.logger.Warn("journal size check failed", zap.Error(err))
		return false, size
	}
	return true, size
}
