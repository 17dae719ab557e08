package autorelease

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gigswap/gigswap-backend/internal/domain"
	"github.com/gigswap/gigswap-backend/internal/metrics"
)

// Confirmer auto-confirms a stale task. Implemented by the lifecycle service.
type Confirmer interface {
	AutoConfirm(ctx context.Context, taskID uuid.UUID, hoursThreshold int) (*domain.Task, error)
}

// Releaser releases a contract's payout. Implemented by the escrow service.
type Releaser interface {
	ReleasePayout(ctx context.Context, contractID uuid.UUID) (*domain.Payment, error)
}

// Worker periodically finds contracts whose release deadline has passed and
// triggers payout release. Per-contract failures are isolated; a storage
// failure aborts the run and is retried on the next tick.
type Worker struct {
	Contracts domain.ContractRepository
	Lifecycle Confirmer
	Escrow    Releaser

	Interval     time.Duration
	ConfirmAfter time.Duration // threshold before a task is auto-confirmed
	RunTimeout   time.Duration
	RunAtStart   bool

	log *zap.Logger
}

// NewWorker creates a new auto-release Worker instance
func NewWorker(
	contracts domain.ContractRepository,
	lifecycle Confirmer,
	escrow Releaser,
	interval, confirmAfter time.Duration,
	runAtStart bool,
	logger *zap.Logger,
) *Worker {
	return &Worker{
		Contracts:    contracts,
		Lifecycle:    lifecycle,
		Escrow:       escrow,
		Interval:     interval,
		ConfirmAfter: confirmAfter,
		RunTimeout:   5 * time.Minute,
		RunAtStart:   runAtStart,
		log:          logger,
	}
}

// Run blocks, releasing due payouts on every tick until the context is
// cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("auto-release worker started", zap.Duration("interval", w.Interval))
	defer w.log.Info("auto-release worker stopped")

	if w.RunAtStart {
		w.runOnce(ctx)
	}

	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// runOnce processes one batch of due contracts.
func (w *Worker) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, w.RunTimeout)
	defer cancel()

	metrics.SchedulerRuns.Inc()

	due, err := w.Contracts.ListDueForRelease(runCtx, time.Now())
	if err != nil {
		// Storage is unreachable; abort and retry on the next tick
		w.log.Error("list due contracts", zap.Error(err))
		return
	}
	if len(due) == 0 {
		return
	}

	w.log.Info("releasing due payouts", zap.Int("count", len(due)))

	released := 0
	for _, contract := range due {
		if err := w.process(runCtx, contract); err != nil {
			metrics.SchedulerFailures.Inc()
			w.log.Error("auto-release contract",
				zap.String("contract_id", contract.ID.String()),
				zap.String("task_id", contract.TaskID.String()),
				zap.Error(err))
			continue
		}
		released++
		metrics.SchedulerReleases.Inc()
	}

	w.log.Info("auto-release run finished", zap.Int("released", released), zap.Int("failed", len(due)-released))
}

// process confirms the contract's task and releases the payout. AutoConfirm
// already triggers the release internally, so a subsequent direct release
// that finds the payout gone is treated as success.
func (w *Worker) process(ctx context.Context, contract *domain.Contract) error {
	hours := int(w.ConfirmAfter / time.Hour)
	if _, err := w.Lifecycle.AutoConfirm(ctx, contract.TaskID, hours); err != nil {
		w.log.Warn("auto-confirm before release",
			zap.String("task_id", contract.TaskID.String()), zap.Error(err))
	}

	if _, err := w.Escrow.ReleasePayout(ctx, contract.ID); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// Released by the confirm step or by a concurrent manual call
			return nil
		}
		return err
	}
	return nil
}
