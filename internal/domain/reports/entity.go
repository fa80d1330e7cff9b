package reports

import (
	"errors"
	"time"
)

var (
	ErrNotFound   = errors.New("report not found")
	ErrInvalidPDF = errors.New("file is not a readable PDF")
	ErrTooLarge   = errors.New("file too large")
	ErrNotPDF     = errors.New("only PDF files are allowed")
)

// ID tipe untuk Report
type ReportID int64

// Status enum
type Status string

const (
	StatusUploaded   Status = "uploaded"
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// DefaultQuery is used when an analysis request carries no question.
const DefaultQuery = "Summarise my Blood Test Report"

// Aggregate Root: Report
type Report struct {
	ID               ReportID  `json:"id"`
	UserID           int64     `json:"user_id"`
	Filename         string    `json:"filename"`
	OriginalFilename string    `json:"original_filename,omitempty"`
	FilePath         string    `json:"file_path"`
	FileSize         int64     `json:"file_size"`
	PageCount        int       `json:"page_count"`
	UploadDate       time.Time `json:"upload_date"`
	Status           Status    `json:"status"`
	ExtractedText    string    `json:"extracted_text,omitempty"`
	AnalysisResult   string    `json:"analysis_result,omitempty"`
	ConfidenceScore  *float64  `json:"confidence_score"`
}

// StatusCounts value object for the dashboard
type StatusCounts struct {
	Uploaded   int `json:"uploaded"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Total      int `json:"total"`
}

// Add counts n reports of status s.
func (c *StatusCounts) Add(s Status, n int) {
	switch s {
	case StatusUploaded:
		c.Uploaded += n
	case StatusPending:
		c.Pending += n
	case StatusProcessing:
		c.Processing += n
	case StatusCompleted:
		c.Completed += n
	case StatusFailed:
		c.Failed += n
	}
	c.Total += n
}
