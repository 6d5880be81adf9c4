package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueueDeliversTypedPayload(t *testing.T) {
	got := make(chan Job[string], 1)
	q := NewQueue[string]("greetings", func(ctx context.Context, job Job[string]) error {
		got <- job
		return nil
	}, QueueConfig{Workers: 1})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job[string]{Kind: "greeting", Payload: "hello"}))

	select {
	case job := <-got:
		require.Equal(t, "hello", job.Payload)
		require.Equal(t, "greeting", job.Kind)
		require.NotEmpty(t, job.ID)
		require.False(t, job.Enqueued.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("job not processed")
	}
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	var attempts atomic.Int32
	done := make(chan struct{})
	q := NewQueue[int]("flaky", func(ctx context.Context, job Job[int]) error {
		if attempts.Add(1) == 1 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}, QueueConfig{Workers: 1, MaxRetries: 3, RetryDelay: 10 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job[int]{Kind: "work", Payload: 42}))

	select {
	case <-done:
		require.EqualValues(t, 2, attempts.Load())
	case <-time.After(2 * time.Second):
		t.Fatal("job never retried")
	}
}

func TestQueueEnqueueBeforeStart(t *testing.T) {
	q := NewQueue[string]("idle", func(ctx context.Context, job Job[string]) error {
		return nil
	}, QueueConfig{})
	require.Error(t, q.Enqueue(Job[string]{Payload: "too early"}))
}
