package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRetriesUntilSuccess(t *testing.T) {
	var calls int32
	done := make(chan struct{})
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}, QueueConfig{RetryDelay: time.Millisecond, MaxRetries: 5})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-1"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried to success")
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestQueueInvokesExhaustHook(t *testing.T) {
	var (
		mu        sync.Mutex
		exhausted []string
	)
	done := make(chan struct{})
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		return errors.New("permanent")
	}, QueueConfig{
		RetryDelay: time.Millisecond,
		MaxRetries: 1,
		OnExhaust: func(job Job, err error) {
			mu.Lock()
			exhausted = append(exhausted, job.ID)
			mu.Unlock()
			close(done)
		},
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-2"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("exhaust hook not invoked")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"job-2"}, exhausted)
}

func TestQueueEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("idle", func(ctx context.Context, job Job) error { return nil }, QueueConfig{})
	assert.Error(t, q.Enqueue(Job{ID: "x"}))
}

func TestQueueStopDrainsBufferedJobs(t *testing.T) {
	var handled int32
	release := make(chan struct{})
	q := NewQueue("drain", func(ctx context.Context, job Job) error {
		<-release
		atomic.AddInt32(&handled, 1)
		return nil
	}, QueueConfig{BufferSize: 8, DrainTimeout: 2 * time.Second})
	q.Start(context.Background())

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(Job{ID: "job"}))
	}
	close(release)
	q.Stop()

	assert.Equal(t, int32(5), atomic.LoadInt32(&handled))
	assert.ErrorIs(t, q.Enqueue(Job{ID: "late"}), ErrStopped)
}

func TestQueueStopExhaustsPendingRetries(t *testing.T) {
	exhausted := make(chan error, 1)
	failed := make(chan struct{})
	q := NewQueue("retry", func(ctx context.Context, job Job) error {
		close(failed)
		return errors.New("transient")
	}, QueueConfig{
		RetryDelay: time.Hour,
		MaxRetries: 3,
		OnExhaust:  func(job Job, err error) { exhausted <- err },
	})
	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job{ID: "job-3"}))
	<-failed

	q.Stop()
	select {
	case err := <-exhausted:
		assert.ErrorIs(t, err, ErrStopped)
	case <-time.After(2 * time.Second):
		t.Fatal("pending retry not handed to exhaust hook")
	}
}

func TestQueueEnqueueWhenFull(t *testing.T) {
	block := make(chan struct{})
	q := NewQueue("full", func(ctx context.Context, job Job) error {
		<-block
		return nil
	}, QueueConfig{BufferSize: 1, DrainTimeout: time.Second})
	q.Start(context.Background())
	defer q.Stop()
	defer close(block)

	require.NoError(t, q.Enqueue(Job{ID: "a"}))
	// The worker may already hold "a"; fill the buffer until it rejects.
	var err error
	for i := 0; i < 3 && err == nil; i++ {
		err = q.Enqueue(Job{ID: "b"})
	}
	assert.ErrorIs(t, err, ErrFull)
}
