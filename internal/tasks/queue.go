package tasks

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/portage/internal/shared"
)

// Stage identifies which half of the pipeline a queued job runs.
type Stage int

const (
	StageMatch Stage = iota
	StageFinalize
)

func (s Stage) String() string {
	switch s {
	case StageMatch:
		return "match"
	case StageFinalize:
		return "finalize"
	default:
		return "unknown"
	}
}

// QueuedJob is one unit of background work: a job ID and the stage to run.
type QueuedJob struct {
	JobID string
	Stage Stage
}

// Queue runs job stages on a fixed pool of workers fed by a bounded
// channel. Submissions never block; when the channel is full the job is
// dropped and left in its current status for Recover to pick up later.
type Queue struct {
	jobs    chan QueuedJob
	wg      sync.WaitGroup
	workers int
	logger  *log.Logger
	handler func(ctx context.Context, job QueuedJob)
}

// NewQueue creates a queue with the given worker count and buffer size.
func NewQueue(workers, size int, handler func(ctx context.Context, job QueuedJob), logger *log.Logger) *Queue {
	if workers < 1 {
		workers = 1
	}
	if size < 1 {
		size = 1
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Queue{
		jobs:    make(chan QueuedJob, size),
		workers: workers,
		logger:  logger,
		handler: handler,
	}
}

// Start launches the worker goroutines. Workers exit when the queue is
// closed or the context is canceled.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for job := range q.jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				q.handler(ctx, job)
			}
		}()
	}
}

// Stop closes the queue and waits for in-flight work to finish.
func (q *Queue) Stop() {
	close(q.jobs)
	q.wg.Wait()
}

// Submit enqueues a job stage without blocking. Returns false when the
// queue is full.
func (q *Queue) Submit(job QueuedJob) bool {
	select {
	case q.jobs <- job:
		return true
	default:
		q.logger.Warn("job queue full, dropping submission", "job", job.JobID, "stage", job.Stage)
		return false
	}
}
