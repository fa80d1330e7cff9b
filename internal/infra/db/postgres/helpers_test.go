package postgres

import (
	"errors"
	"strings"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/bryanwahyu/bloodreport-ai/internal/domain/querylogs"
	"github.com/bryanwahyu/bloodreport-ai/internal/domain/reports"
	"github.com/bryanwahyu/bloodreport-ai/internal/domain/users"
)

var (
	_ users.Repository     = (*UserRepository)(nil)
	_ reports.Repository   = (*ReportRepository)(nil)
	_ querylogs.Repository = (*QueryLogRepository)(nil)
)

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pq.Error{Code: "23505"}))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
}

func TestSchemaStatements(t *testing.T) {
	for _, stmt := range schema {
		assert.True(t,
			strings.HasPrefix(stmt, "CREATE TABLE IF NOT EXISTS") || strings.HasPrefix(stmt, "CREATE INDEX IF NOT EXISTS"),
			stmt)
	}
	assert.Contains(t, schema[0], "BIGSERIAL")
}
