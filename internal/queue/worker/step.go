package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/microtales/microtales/internal/domain/job"
	"github.com/microtales/microtales/internal/jobs"
	"github.com/microtales/microtales/internal/notifications"
)

// ProcessOne claims and runs a single pending job. It reports whether a
// job was processed so the caller can keep draining the queue.
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

	start := time.Now()
	if w.prom != nil {
		w.prom.JobsInFlight.Inc()
	}

	err = w.execute(ctx, j)

	result := "success"
	if err != nil {
		result = "failure"
	}
	if w.prom != nil {
		w.prom.JobsInFlight.Dec()
		w.prom.JobDuration.WithLabelValues(j.Type, result).Observe(time.Since(start).Seconds())
		w.prom.JobResults.WithLabelValues(j.Type, result).Inc()
	}

	if err != nil {
		w.handleFailure(ctx, j, err)
		return true, nil
	}

	if err := w.repo.MarkDone(ctx, j.ID); err != nil {
		_ = w.repo.MarkFailed(ctx, j.ID, "mark_done_failed: "+err.Error())
		return true, err
	}

	return true, nil
}

func (w *Worker) execute(ctx context.Context, j job.Job) error {
	t := jobs.JobType(j.Type)

	decoded, err := jobs.DecodePayload(t, j.Payload)
	if err != nil {
		return err
	}
	if err := jobs.ValidatePayload(t, decoded); err != nil {
		return err
	}

	switch p := decoded.(type) {
	case jobs.ClaimConfirmationPayload:
		u, err := w.users.GetByID(ctx, p.UserID)
		if err != nil {
			return fmt.Errorf("load claim user: %w", err)
		}
		return w.notifier.SendClaimConfirmation(ctx, notifications.SendClaimConfirmationInput{
			Email:      u.Email,
			Name:       u.Name,
			StoryID:    p.StoryID,
			StoryTitle: p.StoryTitle,
		})

	case jobs.StoryDeletedPayload:
		u, err := w.users.GetByID(ctx, p.AuthorID)
		if err != nil {
			return fmt.Errorf("load story author: %w", err)
		}
		return w.notifier.SendStoryDeleted(ctx, notifications.SendStoryDeletedInput{
			Email:      u.Email,
			Name:       u.Name,
			StoryID:    p.StoryID,
			StoryTitle: p.StoryTitle,
			DeletedBy:  p.DeletedBy,
		})

	default:
		return jobs.ErrInvalidJobType
	}
}

func (w *Worker) handleFailure(ctx context.Context, j job.Job, execErr error) {
	// attempts was already bumped by the claim
	if j.Attempts >= j.MaxAttempts {
		if err := w.repo.MarkFailed(ctx, j.ID, execErr.Error()); err != nil {
			log.Printf("mark failed error job=%s: %v", j.ID, err)
		}
		log.Printf("job=%s type=%s exhausted after %d attempts: %v", j.ID, j.Type, j.Attempts, execErr)
		return
	}

	runAt := time.Now().UTC().Add(ExponentialBackoff(j.Attempts))
	if err := w.repo.Reschedule(ctx, j.ID, runAt, execErr.Error()); err != nil {
		log.Printf("reschedule error job=%s: %v", j.ID, err)
		return
	}
	log.Printf("job=%s type=%s attempt=%d rescheduled for %s: %v", j.ID, j.Type, j.Attempts, runAt.Format(time.RFC3339), execErr)
}
