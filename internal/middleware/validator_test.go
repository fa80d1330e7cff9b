package middleware

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateUsername(t *testing.T) {
	assert.NoError(t, ValidateUsername("ana_lima"))
	assert.Error(t, ValidateUsername(""))
	assert.Error(t, ValidateUsername("ab"))
	assert.Error(t, ValidateUsername("ana lima"))
	assert.Error(t, ValidateUsername(strings.Repeat("a", 51)))
	assert.Error(t, ValidateUsername("628123456789"))
	assert.Error(t, ValidateUsername("ana@example.com"))
	assert.NoError(t, ValidateUsername("ana2024"))
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("ana@example.com"))
	assert.Error(t, ValidateEmail(""))
	assert.Error(t, ValidateEmail("not-an-email"))
	assert.Error(t, ValidateEmail("Ana <ana@example.com>"))
}

func TestValidatePasswordAndMobile(t *testing.T) {
	assert.Error(t, ValidatePassword("12345"))
	assert.NoError(t, ValidatePassword("123456"))
	assert.Error(t, ValidatePassword(strings.Repeat("x", 73)))

	assert.NoError(t, ValidateMobile(""))
	assert.NoError(t, ValidateMobile("+62 812-3456-789"))
	assert.Error(t, ValidateMobile("12ab"))
}

func TestValidationErrorType(t *testing.T) {
	err := ValidateFullName(" ")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "full_name", verr.Field)
}

func TestParseReportID(t *testing.T) {
	id, err := ParseReportID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"", "0", "-1", "abc", "1.5"} {
		_, err := ParseReportID(bad)
		assert.Error(t, err, bad)
	}
}

func TestValidateTaskID(t *testing.T) {
	assert.NoError(t, ValidateTaskID("0b6f1c1e-8a44-4c6a-9f3e-0d2f1f6b7a11"))
	assert.Error(t, ValidateTaskID(""))
	assert.Error(t, ValidateTaskID("not-a-uuid"))
}

func TestNormalizeQuery(t *testing.T) {
	q, err := NormalizeQuery("  \x00 ")
	require.NoError(t, err)
	assert.Equal(t, DefaultQuery, q)

	q, err = NormalizeQuery(" is my glucose high? ")
	require.NoError(t, err)
	assert.Equal(t, "is my glucose high?", q)

	_, err = NormalizeQuery(strings.Repeat("q", MaxQueryLength+1))
	assert.Error(t, err)
}

func TestValidatePagination(t *testing.T) {
	page, size, err := ValidatePagination("", "")
	require.NoError(t, err)
	assert.Equal(t, 0, page)
	assert.Equal(t, 20, size)

	page, size, err = ValidatePagination("2", "500")
	require.NoError(t, err)
	assert.Equal(t, 2, page)
	assert.Equal(t, 100, size)

	_, _, err = ValidatePagination("0", "")
	assert.Error(t, err)
	_, _, err = ValidatePagination("1", "x")
	assert.Error(t, err)
}
