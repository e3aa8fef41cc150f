package queue

import (
	"context"
	"log"
	"sync"

	"stashpad/types"
)

// Queue is the fire-and-forget snapshot-job channel. The request handler
// enqueues and returns immediately; a separate worker consumes. Job
// failures are swallowed and logged so they never block unrelated article
// creation.
type Queue interface {
	Enqueue(ctx context.Context, job types.SnapshotJob) error
}

// JobHandler processes one dequeued snapshot job.
type JobHandler func(ctx context.Context, job *types.SnapshotJob) error

// MemoryQueue is the in-process fallback used when no Kafka brokers are
// configured: a buffered channel drained by one worker goroutine. Same
// contract, no durability.
type MemoryQueue struct {
	jobs    chan types.SnapshotJob
	handler JobHandler
	once    sync.Once
	done    chan struct{}
}

// NewMemoryQueue creates an in-process queue with the given backlog bound.
func NewMemoryQueue(buffer int, handler JobHandler) *MemoryQueue {
	return &MemoryQueue{
		jobs:    make(chan types.SnapshotJob, buffer),
		handler: handler,
		done:    make(chan struct{}),
	}
}

// Enqueue accepts a job unless the backlog is full, in which case the job
// is dropped with a log line. Automatic snapshots are best-effort.
func (q *MemoryQueue) Enqueue(ctx context.Context, job types.SnapshotJob) error {
	select {
	case q.jobs <- job:
		return nil
	default:
		log.Printf("snapshot queue full, dropping job for article %s", job.ArticleID)
		return nil
	}
}

// Start runs the worker until ctx is cancelled.
func (q *MemoryQueue) Start(ctx context.Context) {
	q.once.Do(func() {
		go func() {
			defer close(q.done)
			for {
				select {
				case job := <-q.jobs:
					if err := q.handler(ctx, &job); err != nil {
						log.Printf("snapshot job failed for article %s: %v", job.ArticleID, err)
					}
				case <-ctx.Done():
					return
				}
			}
		}()
	})
}

// Wait blocks until the worker has stopped.
func (q *MemoryQueue) Wait() { <-q.done }
