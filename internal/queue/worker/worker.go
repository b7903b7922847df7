package worker

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/microtales/microtales/internal/domain/job"
	"github.com/microtales/microtales/internal/domain/user"
	"github.com/microtales/microtales/internal/notifications"
	"github.com/microtales/microtales/internal/observability"
)

type JobsRepository interface {
	ClaimNext(ctx context.Context, workerID string) (job.Job, error)
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error
	RequeueStaleProcessing(ctx context.Context, lockTTL time.Duration) (int64, error)
}

type UsersRepository interface {
	GetByID(ctx context.Context, id string) (user.User, error)
}

type Config struct {
	PollInterval  time.Duration
	WorkerID      string
	Concurrency   int
	ShutdownGrace time.Duration

	// pending jobs locked longer than this are considered abandoned
	StaleLockTTL time.Duration
}

type Worker struct {
	cfg      Config
	repo     JobsRepository
	users    UsersRepository
	notifier notifications.Notifier
	prom     *observability.Prom

	readyMu sync.RWMutex
	ready   bool
}

func New(cfg Config, repo JobsRepository, users UsersRepository, notifier notifications.Notifier, prom *observability.Prom) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 10 * time.Second
	}
	if cfg.StaleLockTTL <= 0 {
		cfg.StaleLockTTL = 5 * time.Minute
	}

	return &Worker{
		cfg:      cfg,
		repo:     repo,
		users:    users,
		notifier: notifier,
		prom:     prom,
	}
}

func (w *Worker) setReady(v bool) {
	w.readyMu.Lock()
	w.ready = v
	w.readyMu.Unlock()
}

// Run polls for pending jobs until ctx is cancelled. Each goroutine
// owns its own claim loop; SKIP LOCKED on the jobs table keeps them
// from stepping on each other.
func (w *Worker) Run(ctx context.Context) error {
	w.setReady(true)
	defer w.setReady(false)

	// periodically reclaim jobs stuck in processing (crashed worker)
	go w.requeueLoop(ctx)

	var wg sync.WaitGroup

	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			w.loop(ctx, n)
		}(i)
	}

	<-ctx.Done()
	log.Println("worker received shutdown signal")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(w.cfg.ShutdownGrace):
		log.Println("worker shutdown grace expired, abandoning in-flight jobs")
	}

	return nil
}

func (w *Worker) loop(ctx context.Context, n int) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// drain the queue before sleeping again
			for {
				processed, err := w.ProcessOne(ctx)
				if err != nil {
					log.Printf("worker[%d] process error: %v", n, err)
					break
				}
				if !processed {
					break
				}
			}
		}
	}
}

func (w *Worker) requeueLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := w.repo.RequeueStaleProcessing(ctx, w.cfg.StaleLockTTL)
			if err != nil {
				log.Printf("requeue stale error: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("requeued %d stale jobs", n)
			}
		}
	}
}
