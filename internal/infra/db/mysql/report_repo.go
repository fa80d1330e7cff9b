package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	domain "github.com/bryanwahyu/bloodreport-ai/internal/domain/reports"
)

// list queries leave out extracted_text, it can be large
const (
	reportListColumns = `id, user_id, filename, original_filename, file_path, file_size, page_count,
       upload_date, processing_status, analysis_result, confidence_score`
	reportColumns = reportListColumns + `, extracted_text`
)

type ReportRepository struct {
	db *sql.DB
}

func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Save insert report baru, ID diisi dari auto increment
func (r *ReportRepository) Save(ctx context.Context, rep *domain.Report) error {
	const q = `
INSERT INTO blood_reports
(user_id, filename, original_filename, file_path, file_size, page_count, upload_date, processing_status)
VALUES (?,?,?,?,?,?,?,?);`
	if rep.UploadDate.IsZero() {
		rep.UploadDate = time.Now().UTC()
	}
	if rep.Status == "" {
		rep.Status = domain.StatusUploaded
	}
	res, err := r.db.ExecContext(ctx, q,
		rep.UserID, rep.Filename, rep.OriginalFilename, rep.FilePath, rep.FileSize, rep.PageCount, rep.UploadDate, rep.Status)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rep.ID = domain.ReportID(id)
	return nil
}

// Get by ID + owner
func (r *ReportRepository) Get(ctx context.Context, userID int64, id domain.ReportID) (*domain.Report, error) {
	const q = `SELECT ` + reportColumns + ` FROM blood_reports WHERE user_id=? AND id=? LIMIT 1;`
	rep, err := scanReport(r.db.QueryRowContext(ctx, q, userID, id), true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return rep, err
}

func (r *ReportRepository) ListByUser(ctx context.Context, userID int64) ([]*domain.Report, error) {
	const q = `SELECT ` + reportListColumns + ` FROM blood_reports WHERE user_id=? ORDER BY upload_date DESC, id DESC;`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("querying reports: %w", err)
	}
	defer rows.Close()
	return collectReports(rows)
}

// Paginate with offset + limit (classic pagination)
func (r *ReportRepository) Paginate(ctx context.Context, userID int64, page, pageSize int) (domain.PaginatedResult, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	const q = `SELECT ` + reportListColumns + ` FROM blood_reports WHERE user_id=?
ORDER BY upload_date DESC, id DESC LIMIT ? OFFSET ?;`
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
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM blood_reports WHERE user_id=?;`, userID).Scan(&total); err != nil {
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
	_, err := r.db.ExecContext(ctx, `UPDATE blood_reports SET processing_status=? WHERE id=?;`, status, id)
	if err != nil {
		return fmt.Errorf("update report status: %w", err)
	}
	return nil
}

// UpdateResult stores the analysis outcome; an empty extractedText keeps the stored one.
func (r *ReportRepository) UpdateResult(ctx context.Context, id domain.ReportID, status domain.Status, result string, confidence *float64, extractedText string) error {
	const q = `
UPDATE blood_reports
SET processing_status=?, analysis_result=?, confidence_score=?,
    extracted_text=COALESCE(?, extracted_text)
WHERE id=?;`
	_, err := r.db.ExecContext(ctx, q, status, result, nullFloat(confidence), nullIfEmpty(extractedText), id)
	if err != nil {
		return fmt.Errorf("update report result: %w", err)
	}
	return nil
}

func (r *ReportRepository) Delete(ctx context.Context, userID int64, id domain.ReportID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM blood_reports WHERE user_id=? AND id=?;`, userID, id)
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

// Summary counts reports per status
func (r *ReportRepository) Summary(ctx context.Context, userID int64) (domain.StatusCounts, error) {
	const q = `SELECT processing_status, COUNT(*) FROM blood_reports WHERE user_id=? GROUP BY processing_status;`
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
