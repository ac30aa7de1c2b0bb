package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dmwangi/taskhub/internal/domain/job"
	"github.com/dmwangi/taskhub/internal/notifications"
	"github.com/dmwangi/taskhub/internal/observability"
)

type JobsRepository interface {
	ClaimNext(ctx context.Context, workerID string) (job.Job, error)
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error
	RequeueStaleProcessing(ctx context.Context, lockTTL time.Duration) (int64, error)
}

type Config struct {
	WorkerID      string
	PollInterval  time.Duration
	LockTTL       time.Duration
	ShutdownGrace time.Duration
}

type Worker struct {
	cfg      Config
	repo     JobsRepository
	notifier notifications.Notifier
	prom     *observability.Prom

	readyMu sync.RWMutex
	ready   bool
}

func New(cfg Config, repo JobsRepository, notifier notifications.Notifier, prom *observability.Prom) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}

	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}

	return &Worker{
		cfg:      cfg,
		repo:     repo,
		notifier: notifier,
		prom:     prom,
	}
}

// Run polls for claimable jobs until the context is cancelled. A second, slower
// ticker frees jobs whose worker died mid-processing.
func (w *Worker) Run(ctx context.Context) error {
	w.setReady(true)
	defer w.setReady(false)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	stale := time.NewTicker(w.cfg.LockTTL)
	defer stale.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Default().Info("worker received shutdown signal", "worker_id", w.cfg.WorkerID)
			return nil

		case <-stale.C:
			n, err := w.repo.RequeueStaleProcessing(ctx, w.cfg.LockTTL)

			if err != nil {
				slog.Default().Warn("stale requeue failed", "err", err)
			} else if n > 0 {
				slog.Default().Info("requeued stale jobs", "count", n)
			}

		case <-ticker.C:
			// drain everything that is ready before sleeping again
			for {
				processed, err := w.ProcessOne(ctx)

				if err != nil {
					slog.Default().Error("job processing error", "err", err)
					break
				}

				if !processed {
					break
				}
			}
		}
	}
}

func (w *Worker) setReady(v bool) {
	w.readyMu.Lock()
	w.ready = v
	w.readyMu.Unlock()
}
