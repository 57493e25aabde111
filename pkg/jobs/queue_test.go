package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRetriesFailedJobs(t *testing.T) {
	var attempts int32
	done := make(chan struct{})
	q := NewQueue("test", func(_ context.Context, job Job) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("store unavailable")
		}
		close(done)
		return nil
	}, QueueConfig{MaxRetries: 3, RetryDelay: 5 * time.Millisecond})

	q.Start(context.Background())
	defer q.Stop()
	require.NoError(t, q.Enqueue(Job{Type: "reconcile"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job never succeeded")
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestQueueEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("idle", func(context.Context, Job) error { return nil }, QueueConfig{})
	assert.Error(t, q.Enqueue(Job{Type: "reconcile"}))
}

func TestQueueEveryRunsImmediatelyAndOnTick(t *testing.T) {
	runs := make(chan string, 8)
	q := NewQueue("ticker", func(_ context.Context, job Job) error {
		runs <- job.Type
		return nil
	}, QueueConfig{})

	q.Start(context.Background())
	q.Every(10*time.Millisecond, "reconcile")

	for i := 0; i < 2; i++ {
		select {
		case jobType := <-runs:
			assert.Equal(t, "reconcile", jobType)
		case <-time.After(2 * time.Second):
			t.Fatal("scheduled job did not run")
		}
	}
	q.Stop()
}

func TestQueueEverySkipsTicksWhileRunActive(t *testing.T) {
	var runs int32
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	q := NewQueue("coalesce", func(ctx context.Context, _ Job) error {
		if atomic.AddInt32(&runs, 1) == 1 {
			started <- struct{}{}
			select {
			case <-release:
			case <-ctx.Done():
			}
		}
		return nil
	}, QueueConfig{Workers: 2})

	q.Start(context.Background())
	defer q.Stop()
	q.Every(2*time.Millisecond, "reconcile")

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled job did not run")
	}
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&runs), "ticks overlap a running job")

	close(release)
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) > 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestQueueStopsRetryingAfterMaxRetries(t *testing.T) {
	var attempts int32
	q := NewQueue("failing", func(context.Context, Job) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("store unavailable")
	}, QueueConfig{MaxRetries: 2, RetryDelay: time.Millisecond})

	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job{Type: "reconcile"}))
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&attempts) == 3 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	q.Stop()
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}
