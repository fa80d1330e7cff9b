package reports

import (
	"context"
	"io"
	"time"
)

// Repository port (interface untuk persistence). Every read is owner-scoped.
type Repository interface {
	Save(ctx context.Context, r *Report) error
	Get(ctx context.Context, userID int64, id ReportID) (*Report, error)
	ListByUser(ctx context.Context, userID int64) ([]*Report, error)
	Paginate(ctx context.Context, userID int64, page, pageSize int) (PaginatedResult, error)
	UpdateStatus(ctx context.Context, id ReportID, status Status) error
	UpdateResult(ctx context.Context, id ReportID, status Status, result string, confidence *float64, extractedText string) error
	Delete(ctx context.Context, userID int64, id ReportID) error
	Summary(ctx context.Context, userID int64) (StatusCounts, error)
}

// FileStore port (interface untuk penyimpanan PDF)
type FileStore interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Download(ctx context.Context, key string) ([]byte, error)
	Remove(ctx context.Context, key string) error
}

// PDFInfo is what inspection learns about an upload.
type PDFInfo struct {
	PageCount int
}

// PDFReader validates uploads and pulls text out of stored reports.
type PDFReader interface {
	Inspect(data []byte) (PDFInfo, error)
	ExtractText(ctx context.Context, data []byte) (string, error)
}

// Cache port; any error from Get is treated as a miss.
type Cache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePattern(ctx context.Context, pattern string) error
}
