package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
  id BIGSERIAL PRIMARY KEY,
  username VARCHAR(50) NOT NULL UNIQUE,
  email VARCHAR(100) NOT NULL UNIQUE,
  mobile_number VARCHAR(20) UNIQUE,
  hashed_password VARCHAR(255) NOT NULL,
  full_name VARCHAR(100) NOT NULL,
  is_active BOOLEAN NOT NULL DEFAULT TRUE,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS blood_reports (
  id BIGSERIAL PRIMARY KEY,
  user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  filename VARCHAR(255) NOT NULL,
  original_filename VARCHAR(255) NOT NULL DEFAULT '',
  file_path VARCHAR(500) NOT NULL,
  file_size BIGINT NOT NULL DEFAULT 0,
  page_count INT NOT NULL DEFAULT 0,
  upload_date TIMESTAMPTZ NOT NULL,
  processing_status VARCHAR(20) NOT NULL DEFAULT 'uploaded',
  extracted_text TEXT,
  analysis_result TEXT,
  confidence_score DOUBLE PRECISION
)`,
	`CREATE INDEX IF NOT EXISTS idx_reports_user_date ON blood_reports (user_id, upload_date DESC)`,
	`CREATE TABLE IF NOT EXISTS query_logs (
  id BIGSERIAL PRIMARY KEY,
  user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  report_id BIGINT NOT NULL REFERENCES blood_reports(id) ON DELETE CASCADE,
  task_id VARCHAR(64) NOT NULL DEFAULT '',
  query_text TEXT NOT NULL,
  response_text TEXT,
  processing_time DOUBLE PRECISION NOT NULL DEFAULT 0,
  status VARCHAR(20) NOT NULL DEFAULT 'pending',
  created_at TIMESTAMPTZ NOT NULL,
  completed_at TIMESTAMPTZ
)`,
	`CREATE INDEX IF NOT EXISTS idx_query_logs_report ON query_logs (report_id, created_at DESC)`,
}

// Migrate creates missing tables and indexes.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}
