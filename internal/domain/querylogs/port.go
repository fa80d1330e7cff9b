package querylogs

import (
	"context"
	"time"
)

// Repository defines persistence for query logs
type Repository interface {
	Save(ctx context.Context, q *QueryLog) error
	Complete(ctx context.Context, id int64, status Status, response string, processingTime float64, completedAt time.Time) error
	ListByReport(ctx context.Context, userID, reportID int64, limit int) ([]*QueryLog, error)
}
