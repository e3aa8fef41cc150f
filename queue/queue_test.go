package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"stashpad/types"
)

func TestMemoryQueueProcessesJobs(t *testing.T) {
	var mu sync.Mutex
	var seen []string

	q := NewMemoryQueue(8, func(ctx context.Context, job *types.SnapshotJob) error {
		mu.Lock()
		seen = append(seen, job.ArticleID)
		mu.Unlock()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)

	for _, id := range []string{"a1", "a2", "a3"} {
		if err := q.Enqueue(ctx, types.SnapshotJob{ArticleID: id, UserID: "u1", Format: types.FormatText}); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(seen)
		mu.Unlock()
		if n == 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("worker processed %d of 3 jobs", n)
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	q.Wait()
}

func TestMemoryQueueDropsWhenFull(t *testing.T) {
	// Worker never started, so the buffer fills and the overflow job is
	// dropped rather than blocking the caller.
	q := NewMemoryQueue(1, func(ctx context.Context, job *types.SnapshotJob) error { return nil })

	ctx := context.Background()
	if err := q.Enqueue(ctx, types.SnapshotJob{ArticleID: "a1"}); err != nil {
		t.Fatalf("first enqueue failed: %v", err)
	}
	if err := q.Enqueue(ctx, types.SnapshotJob{ArticleID: "a2"}); err != nil {
		t.Fatalf("overflow enqueue must not error: %v", err)
	}
}
