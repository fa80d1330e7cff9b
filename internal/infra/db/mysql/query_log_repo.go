package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	domain "github.com/bryanwahyu/bloodreport-ai/internal/domain/querylogs"
)

type QueryLogRepository struct {
	db *sql.DB
}

func NewQueryLogRepository(db *sql.DB) *QueryLogRepository {
	return &QueryLogRepository{db: db}
}

func (r *QueryLogRepository) Save(ctx context.Context, l *domain.QueryLog) error {
	const q = `
INSERT INTO query_logs (user_id, report_id, task_id, query_text, status, created_at)
VALUES (?,?,?,?,?,?);`
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	if l.Status == "" {
		l.Status = domain.StatusPending
	}
	res, err := r.db.ExecContext(ctx, q, l.UserID, l.ReportID, l.TaskID, l.QueryText, l.Status, l.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert query log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	l.ID = id
	return nil
}

func (r *QueryLogRepository) Complete(ctx context.Context, id int64, status domain.Status, response string, processingTime float64, completedAt time.Time) error {
	const q = `
UPDATE query_logs SET status=?, response_text=?, processing_time=?, completed_at=?
WHERE id=?;`
	if _, err := r.db.ExecContext(ctx, q, status, response, processingTime, completedAt, id); err != nil {
		return fmt.Errorf("complete query log: %w", err)
	}
	return nil
}

// ListByReport returns the newest entries first
func (r *QueryLogRepository) ListByReport(ctx context.Context, userID, reportID int64, limit int) ([]*domain.QueryLog, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, user_id, report_id, task_id, query_text, response_text, processing_time, status, created_at, completed_at
FROM query_logs WHERE user_id=? AND report_id=? ORDER BY created_at DESC, id DESC LIMIT ?;`
	rows, err := r.db.QueryContext(ctx, q, userID, reportID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying query logs: %w", err)
	}
	defer rows.Close()

	out := []*domain.QueryLog{}
	for rows.Next() {
		var (
			l         domain.QueryLog
			response  sql.NullString
			completed sql.NullTime
		)
		if err := rows.Scan(&l.ID, &l.UserID, &l.ReportID, &l.TaskID, &l.QueryText, &response,
			&l.ProcessingTime, &l.Status, &l.CreatedAt, &completed); err != nil {
			return nil, err
		}
		l.ResponseText = response.String
		if completed.Valid {
			t := completed.Time
			l.CompletedAt = &t
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}
