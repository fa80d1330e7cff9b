package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/bloodreport-ai/internal/domain/jobs"
)

var (
	_ jobs.Queue       = (*Memory)(nil)
	_ jobs.StatusStore = (*Memory)(nil)
	_ jobs.Queue       = (*Redis)(nil)
	_ jobs.StatusStore = (*Redis)(nil)
)

func TestMemoryEnqueueDequeue(t *testing.T) {
	q := NewMemory(2, time.Hour)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, &jobs.Job{TaskID: "a"}))
	require.NoError(t, q.Enqueue(ctx, &jobs.Job{TaskID: "b"}))
	assert.ErrorIs(t, q.Enqueue(ctx, &jobs.Job{TaskID: "c"}), ErrQueueFull)

	pending, _, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pending)

	job, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", job.TaskID)
	assert.False(t, job.EnqueuedAt.IsZero())
	assert.NoError(t, q.Ack(ctx, job))
}

func TestMemoryDequeueTimesOut(t *testing.T) {
	q := NewMemory(1, time.Hour)
	q.pollTimeout = 10 * time.Millisecond

	_, err := q.Dequeue(context.Background())
	assert.ErrorIs(t, err, jobs.ErrNoJob)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryStatus(t *testing.T) {
	q := NewMemory(1, time.Hour)
	ctx := context.Background()

	_, err := q.GetStatus(ctx, "missing")
	assert.ErrorIs(t, err, jobs.ErrTaskNotFound)

	st := &jobs.TaskStatus{TaskID: "t1", Status: jobs.StateSuccess, UserID: 7,
		Result: &jobs.TaskResult{Status: "completed", Result: "ok"}}
	require.NoError(t, q.SetStatus(ctx, st))

	// stored copy is independent of the caller's value
	st.Result.Result = "mutated"

	got, err := q.GetStatus(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, jobs.StateSuccess, got.Status)
	assert.Equal(t, int64(7), got.UserID)
	assert.Equal(t, "ok", got.Result.Result)
	assert.True(t, got.Status.Ready())
}

func TestMemoryStatusExpires(t *testing.T) {
	q := NewMemory(1, time.Millisecond)
	ctx := context.Background()
	require.NoError(t, q.SetStatus(ctx, &jobs.TaskStatus{TaskID: "old", Status: jobs.StatePending}))
	time.Sleep(5 * time.Millisecond)

	_, err := q.GetStatus(ctx, "old")
	assert.ErrorIs(t, err, jobs.ErrTaskNotFound)
}
