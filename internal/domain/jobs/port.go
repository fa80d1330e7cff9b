package jobs

import "context"

// Queue port for analysis jobs. A dequeued job stays owned by the
// consumer until Ack.
type Queue interface {
	Enqueue(ctx context.Context, job *Job) error
	Dequeue(ctx context.Context) (*Job, error)
	Ack(ctx context.Context, job *Job) error
}

// StatusStore keeps the pollable state of each task.
type StatusStore interface {
	SetStatus(ctx context.Context, st *TaskStatus) error
	GetStatus(ctx context.Context, taskID string) (*TaskStatus, error)
}
