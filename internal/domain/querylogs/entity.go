package querylogs

import "time"

// Status of one analysis request
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// QueryLog records one question asked about a report and how it was answered.
type QueryLog struct {
	ID             int64      `json:"id"`
	UserID         int64      `json:"user_id"`
	ReportID       int64      `json:"report_id"`
	TaskID         string     `json:"task_id,omitempty"`
	QueryText      string     `json:"query_text"`
	ResponseText   string     `json:"response_text,omitempty"`
	ProcessingTime float64    `json:"processing_time"` // seconds
	Status         Status     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}
