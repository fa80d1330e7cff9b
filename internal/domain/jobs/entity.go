package jobs

import (
	"errors"
	"time"
)

var (
	// ErrNoJob is returned by Dequeue when nothing arrived before its poll timeout.
	ErrNoJob         = errors.New("no job available")
	ErrTaskNotFound  = errors.New("task not found")
	ErrQueueDisabled = errors.New("task queue not available")
)

// TaskState mirrors the states a dashboard polls for.
type TaskState string

const (
	StatePending TaskState = "PENDING"
	StateStarted TaskState = "STARTED"
	StateSuccess TaskState = "SUCCESS"
	StateFailure TaskState = "FAILURE"
)

// Ready reports whether the task has finished either way.
func (s TaskState) Ready() bool { return s == StateSuccess || s == StateFailure }

// Job is one queued report analysis.
type Job struct {
	TaskID     string    `json:"task_id"`
	ReportID   int64     `json:"report_id"`
	UserID     int64     `json:"user_id"`
	QueryLogID int64     `json:"query_log_id"`
	Query      string    `json:"query"`
	EnqueuedAt time.Time `json:"enqueued_at"`

	// Receipt is the raw queue payload, used to ack.
	Receipt string `json:"-" msgpack:"-"`
}

// TaskResult is what a finished analysis task carries.
type TaskResult struct {
	Status          string  `json:"status"`
	Result          string  `json:"result"`
	ProcessingTime  float64 `json:"processing_time"`
	ReportID        int64   `json:"report_id"`
	Fallback        bool    `json:"fallback"`
	ConfidenceScore float64 `json:"confidence_score"`
}

// TaskStatus is the polled view of a task.
type TaskStatus struct {
	TaskID    string      `json:"task_id"`
	Status    TaskState   `json:"status"`
	ReportID  int64       `json:"report_id"`
	UserID    int64       `json:"-"`
	Result    *TaskResult `json:"result"`
	Error     string      `json:"error,omitempty"`
	UpdatedAt time.Time   `json:"updated_at"`
}
