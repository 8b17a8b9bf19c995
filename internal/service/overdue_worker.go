package service

import (
	"context"
	"sync"
	"time"

	"github.com/dafibh/loanledger/loanledger-backend/internal/domain"
	"github.com/dafibh/loanledger/loanledger-backend/internal/metrics"
	"github.com/rs/zerolog"
)

// OverdueWorker is a background worker that periodically marks unpaid
// installments past their due date as missed
type OverdueWorker struct {
	scheduleRepo domain.RepaymentScheduleRepository
	metrics      metrics.Recorder
	logger       zerolog.Logger
	interval     time.Duration
	now          func() time.Time
	stopCh       chan struct{}
	doneCh       chan struct{}
	mu           sync.Mutex
	running      bool
}

// OverdueWorkerConfig holds configuration for the overdue worker
type OverdueWorkerConfig struct {
	Interval time.Duration // How often to sweep
}

// DefaultOverdueWorkerConfig returns sensible defaults
func DefaultOverdueWorkerConfig() OverdueWorkerConfig {
	return OverdueWorkerConfig{
		Interval: 1 * time.Hour,
	}
}

// NewOverdueWorker creates a new overdue worker
func NewOverdueWorker(
	scheduleRepo domain.RepaymentScheduleRepository,
	recorder metrics.Recorder,
	logger zerolog.Logger,
	config OverdueWorkerConfig,
) *OverdueWorker {
	if config.Interval <= 0 {
		config.Interval = 1 * time.Hour
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}

	return &OverdueWorker{
		scheduleRepo: scheduleRepo,
		metrics:      recorder,
		logger:       logger.With().Str("component", "overdue_worker").Logger(),
		interval:     config.Interval,
		now:          time.Now,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// Start begins the background sweep
func (w *OverdueWorker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info().
		Dur("interval", w.interval).
		Msg("Starting overdue worker")

	go w.run(ctx)
}

// Stop gracefully stops the worker
func (w *OverdueWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	w.logger.Info().Msg("Stopping overdue worker")
	close(w.stopCh)
	<-w.doneCh
	w.logger.Info().Msg("Overdue worker stopped")
}

func (w *OverdueWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	// Sweep immediately on startup
	w.Sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.setStopped()
			return
		case <-w.stopCh:
			w.setStopped()
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

func (w *OverdueWorker) setStopped() {
	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
}

// Sweep marks every pending unsettled entry due before today as missed and
// returns how many were marked
func (w *OverdueWorker) Sweep(ctx context.Context) int64 {
	start := time.Now()
	y, m, d := w.now().UTC().Date()
	cutoff := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	marked, err := w.scheduleRepo.MarkMissed(ctx, cutoff)
	if err != nil {
		w.logger.Error().Err(err).Msg("Failed to mark missed installments")
		return 0
	}

	w.metrics.EntriesMissed(marked)
	w.logger.Info().
		Int64("marked", marked).
		Time("cutoff", cutoff).
		Dur("elapsed", time.Since(start)).
		Msg("Completed overdue sweep")
	return marked
}

// IsRunning returns whether the worker is currently running
func (w *OverdueWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
