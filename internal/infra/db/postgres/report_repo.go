package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	domain "github.com/bryanwahyu/bloodreport-ai/internal/domain/reports"
)

const (
	reportListColumns = `id, user_id, filename, original_filename, file_path, file_size, page_count,
       upload_date, processing_status, analysis_result, confidence_score`
	reportColumns = reportListColumns + `, extracted_text`
)

type ReportRepository struct{ db *sql.DB }

func NewReportRepository(db *sql.DB) *ReportRepository { return &ReportRepository{db: db} }

func (r *ReportRepository) Save(ctx context.Context, rep *domain.Report) error {
	const q = `
INSERT INTO blood_reports
(user_id, filename, original_filename, file_path, file_size, page_count, upload_date, processing_status)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
RETURNING id;`
	if rep.UploadDate.IsZero() {
		rep.UploadDate = time.Now().UTC()
	}
	if rep.Status == "" {
		rep.Status = domain.StatusUploaded
	}
	err := r.db.QueryRowContext(ctx, q,
		rep.UserID, rep.Filename, rep.OriginalFilename, rep.FilePath, rep.FileSize, rep.PageCount, rep.UploadDate, rep.Status,
	).Scan(&rep.ID)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (r *ReportRepository) Get(ctx context.Context, userID int64, id domain.ReportID) (*domain.Report, error) {
	const q = `SELECT ` + reportColumns + ` FROM blood_reports WHERE user_id=$1 AND id=$2 LIMIT 1;`
	rep, err := scanReport(r.db.QueryRowContext(ctx, q, userID, id), true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return rep, err
}

func (r *ReportRepository) ListByUser(ctx context.Context, userID int64) ([]*domain.Report, error) {
	const q = `SELECT ` + reportListColumns + ` FROM blood_reports WHERE user_id=$1 ORDER BY upload_date DESC, id DESC;`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("querying reports: %w", err)
	}
	defer rows.Close()
	return collectReports(rows)
}

func (r *ReportRepository) Paginate(ctx context.Context, userID int64, page, pageSize int) (domain.PaginatedResult, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	const q = `SELECT ` + reportListColumns + ` FROM blood_reports WHERE user_id=$1
ORDER BY upload_date DESC, id DESC LIMIT $2 OFFSET $3;`
	rows, err := r.db.QueryContext(ctx, q, userID, pageSize, offset)
	if err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("querying reports: %w", err)
	}
	defer rows.Close()

	data, err := collectReports(rows)
	if err != nil {
		return domain.PaginatedResult{}, err
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM blood_reports WHERE user_id=$1;`, userID).Scan(&total); err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("getting total count: %w", err)
	}
	return domain.PaginatedResult{
		Data:       data,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages(total, pageSize),
	}, nil
}

func (r *ReportRepository) UpdateStatus(ctx context.Context, id domain.ReportID, status domain.Status) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE blood_reports SET processing_status=$1 WHERE id=$2;`, status, id); err != nil {
		return fmt.Errorf("update report status: %w", err)
	}
	return nil
}

func (r *ReportRepository) UpdateResult(ctx context.Context, id domain.ReportID, status domain.Status, result string, confidence *float64, extractedText string) error {
	const q = `
UPDATE blood_reports
SET processing_status=$1, analysis_result=$2, confidence_score=$3,
    extracted_text=COALESCE($4, extracted_text)
WHERE id=$5;`
	if _, err := r.db.ExecContext(ctx, q, status, result, nullFloat(confidence), nullIfEmpty(extractedText), id); err != nil {
		return fmt.Errorf("update report result: %w", err)
	}
	return nil
}

func (r *ReportRepository) Delete(ctx context.Context, userID int64, id domain.ReportID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM blood_reports WHERE user_id=$1 AND id=$2;`, userID, id)
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ReportRepository) Summary(ctx context.Context, userID int64) (domain.StatusCounts, error) {
	const q = `SELECT processing_status, COUNT(*) FROM blood_reports WHERE user_id=$1 GROUP BY processing_status;`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return domain.StatusCounts{}, fmt.Errorf("summary query: %w", err)
	}
	defer rows.Close()

	var out domain.StatusCounts
	for rows.Next() {
		var (
			s domain.Status
			n int
		)
		if err := rows.Scan(&s, &n); err != nil {
			return domain.StatusCounts{}, err
		}
		out.Add(s, n)
	}
	return out, rows.Err()
}

func collectReports(rows *sql.Rows) ([]*domain.Report, error) {
	out := []*domain.Report{}
	for rows.Next() {
		rep, err := scanReport(rows, false)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return out, nil
}

func scanReport(row rowScanner, withText bool) (*domain.Report, error) {
	var (
		rep        domain.Report
		result     sql.NullString
		confidence sql.NullFloat64
		text       sql.NullString
	)
	dest := []any{
		&rep.ID, &rep.UserID, &rep.Filename, &rep.OriginalFilename, &rep.FilePath, &rep.FileSize, &rep.PageCount,
		&rep.UploadDate, &rep.Status, &result, &confidence,
	}
	if withText {
		dest = append(dest, &text)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	rep.AnalysisResult = result.String
	rep.ConfidenceScore = floatPtr(confidence)
	rep.ExtractedText = text.String
	return &rep, nil
}
