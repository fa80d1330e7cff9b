package middleware

import (
	"fmt"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Input validation and sanitization utilities

const (
	MaxQueryLength = 1000
	DefaultQuery   = "Summarise my Blood Test Report"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,50}$`)
	mobilePattern   = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
)

// ValidationError is returned for bad client input and maps to HTTP 400.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ValidateUsername allows letters, digits, dot, dash and underscore (3-50 chars)
func ValidateUsername(username string) error {
	if username == "" {
		return invalid("username", "username is required")
	}
	if !usernamePattern.MatchString(username) {
		return invalid("username", "username must be 3-50 characters of letters, digits, '.', '-' or '_'")
	}
	// login resolves identifiers by shape, a username must not look like a phone number
	if mobilePattern.MatchString(username) {
		return invalid("username", "username cannot be a phone number")
	}
	return nil
}

func ValidateEmail(email string) error {
	if email == "" {
		return invalid("email", "email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || len(email) > 100 {
		return invalid("email", "invalid email address")
	}
	return nil
}

func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < 6 {
		return invalid("password", "password must be at least 6 characters")
	}
	if n > 72 {
		// bcrypt ignores anything past 72 bytes
		return invalid("password", "password must be at most 72 characters")
	}
	return nil
}

// ValidateMobile accepts an empty value; the field is optional.
func ValidateMobile(mobile string) error {
	if mobile == "" {
		return nil
	}
	cleaned := strings.NewReplacer(" ", "", "-", "").Replace(mobile)
	if !mobilePattern.MatchString(cleaned) {
		return invalid("mobile_number", "invalid mobile number")
	}
	return nil
}

func ValidateFullName(name string) error {
	if strings.TrimSpace(name) == "" {
		return invalid("full_name", "full name is required")
	}
	if utf8.RuneCountInString(name) > 100 {
		return invalid("full_name", "full name must be at most 100 characters")
	}
	return nil
}

// ParseReportID parses a positive integer report id
func ParseReportID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, invalid("report_id", "invalid report id")
	}
	return id, nil
}

// ValidateTaskID validates task ID format (UUID)
func ValidateTaskID(taskID string) error {
	if taskID == "" {
		return invalid("task_id", "task ID cannot be empty")
	}
	if _, err := uuid.Parse(taskID); err != nil {
		return invalid("task_id", "invalid task ID format")
	}
	return nil
}

// NormalizeQuery sanitizes the question and applies the default.
func NormalizeQuery(q string) (string, error) {
	q = SanitizeString(q)
	if q == "" {
		return DefaultQuery, nil
	}
	if utf8.RuneCountInString(q) > MaxQueryLength {
		return "", invalid("query", "query must be at most %d characters", MaxQueryLength)
	}
	return q, nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Remove control characters
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}

// ValidatePagination parses page and page_size; page 0 means unpaginated.
func ValidatePagination(rawPage, rawSize string) (page, size int, err error) {
	if rawPage != "" {
		page, err = strconv.Atoi(rawPage)
		if err != nil || page < 1 {
			return 0, 0, invalid("page", "page must be a positive integer")
		}
	}
	if rawSize != "" {
		size, err = strconv.Atoi(rawSize)
		if err != nil || size < 1 {
			return 0, 0, invalid("page_size", "page_size must be a positive integer")
		}
	}
	return page, ValidateLimit(size), nil
}

// ValidateLimit validates pagination limit
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 20 // default
	}
	if limit > 100 {
		return 100 // max limit
	}
	return limit
}
