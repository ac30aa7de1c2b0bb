package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmwangi/taskhub/internal/domain/job"
	"github.com/dmwangi/taskhub/internal/jobs"
	"github.com/dmwangi/taskhub/internal/notifications"
)

// ProcessOne claims and executes a single job. The bool reports whether a job
// was available at all.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	claimCtx, cancel := context.WithTimeout(ctx, 2*time.Second)

	j, err := w.repo.ClaimNext(claimCtx, w.cfg.WorkerID)
	cancel()

	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			return false, nil
		}

		return false, err
	}

	if w.prom != nil {
		w.prom.JobsInFlight.Inc()
		defer w.prom.JobsInFlight.Dec()
	}

	start := time.Now()

	err = w.execute(ctx, j)

	if err != nil {
		w.observeResult(j.Type, w.handleFailure(ctx, j, err), start)
		return true, nil
	}

	err = w.repo.MarkDone(ctx, j.ID)

	if err != nil {
		_ = w.repo.MarkFailed(ctx, j.ID, "mark_done_failed: "+err.Error())
		w.observeResult(j.Type, "failed", start)
		return true, err
	}

	w.observeResult(j.Type, "done", start)
	return true, nil
}

func (w *Worker) execute(ctx context.Context, j job.Job) error {
	switch j.Type {
	case jobs.TypeUserWelcome:
		p, err := jobs.DecodeUserWelcome(j.Payload)

		if err != nil {
			return err
		}

		return w.notifier.SendWelcome(ctx, notifications.SendWelcomeInput{
			UserID:   p.UserID,
			Email:    p.Email,
			Username: p.Username,
		})

	default:
		return fmt.Errorf("%w: %s", jobs.ErrInvalidJobType, j.Type)
	}
}

// handleFailure decides retry vs terminal failure and returns the result label.
func (w *Worker) handleFailure(ctx context.Context, j job.Job, cause error) string {
	// malformed payloads never heal; retrying burns attempts for nothing
	terminal := errors.Is(cause, jobs.ErrInvalidJobPayload) || errors.Is(cause, jobs.ErrInvalidJobType)

	if terminal || j.Attempts+1 >= j.MaxAttempts {
		if err := w.repo.MarkFailed(ctx, j.ID, cause.Error()); err != nil {
			slog.Default().Error("mark failed error", "job_id", j.ID, "err", err)
		}

		slog.Default().Warn("job failed permanently",
			"job_id", j.ID, "job_type", j.Type, "attempts", j.Attempts+1, "err", cause,
		)
		return "failed"
	}

	runAt := time.Now().UTC().Add(ExponentialBackoff(j.Attempts))

	if err := w.repo.Reschedule(ctx, j.ID, runAt, cause.Error()); err != nil {
		slog.Default().Error("reschedule error", "job_id", j.ID, "err", err)
	}

	slog.Default().Info("job rescheduled",
		"job_id", j.ID, "job_type", j.Type, "attempt", j.Attempts+1, "run_at", runAt, "err", cause,
	)
	return "retry"
}

func (w *Worker) observeResult(jobType, result string, start time.Time) {
	if w.prom == nil {
		return
	}

	w.prom.JobResults.WithLabelValues(jobType, result).Inc()
	w.prom.JobDuration.WithLabelValues(jobType, result).Observe(time.Since(start).Seconds())
}
