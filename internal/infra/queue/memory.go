package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bryanwahyu/bloodreport-ai/internal/domain/jobs"
)

var ErrQueueFull = errors.New("task queue is full")

// Memory is an in-process queue for single node and development runs.
// Jobs are lost on restart.
type Memory struct {
	jobs        chan *jobs.Job
	pollTimeout time.Duration
	statusTTL   time.Duration

	mu       sync.RWMutex
	statuses map[string]jobs.TaskStatus
}

func NewMemory(capacity int, statusTTL time.Duration) *Memory {
	if capacity <= 0 {
		capacity = 100
	}
	if statusTTL <= 0 {
		statusTTL = 24 * time.Hour
	}
	return &Memory{
		jobs:        make(chan *jobs.Job, capacity),
		pollTimeout: time.Second,
		statusTTL:   statusTTL,
		statuses:    make(map[string]jobs.TaskStatus),
	}
}

func (m *Memory) Enqueue(ctx context.Context, job *jobs.Job) error {
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	select {
	case m.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

func (m *Memory) Dequeue(ctx context.Context) (*jobs.Job, error) {
	t := time.NewTimer(m.pollTimeout)
	defer t.Stop()
	select {
	case job := <-m.jobs:
		return job, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.C:
		return nil, jobs.ErrNoJob
	}
}

func (m *Memory) Ack(context.Context, *jobs.Job) error { return nil }

func (m *Memory) Len(context.Context) (pending, processing int64, err error) {
	return int64(len(m.jobs)), 0, nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) SetStatus(_ context.Context, st *jobs.TaskStatus) error {
	st.UpdatedAt = time.Now().UTC()
	cp := *st
	if st.Result != nil {
		r := *st.Result
		cp.Result = &r
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[st.TaskID] = cp
	m.evictLocked(cp.UpdatedAt)
	return nil
}

func (m *Memory) GetStatus(_ context.Context, taskID string) (*jobs.TaskStatus, error) {
	m.mu.RLock()
	st, ok := m.statuses[taskID]
	m.mu.RUnlock()
	if !ok || time.Since(st.UpdatedAt) > m.statusTTL {
		return nil, jobs.ErrTaskNotFound
	}
	if st.Result != nil {
		r := *st.Result
		st.Result = &r
	}
	return &st, nil
}

func (m *Memory) evictLocked(now time.Time) {
	for id, st := range m.statuses {
		if now.Sub(st.UpdatedAt) > m.statusTTL {
			delete(m.statuses, id)
		}
	}
}
