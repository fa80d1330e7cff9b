package ai

import "errors"

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("ai quota exceeded")

// ErrEmptyResponse indicates the provider answered without any text.
var ErrEmptyResponse = errors.New("ai returned an empty response")

// ErrNotConfigured means no provider is wired and fallback answers are off.
var ErrNotConfigured = errors.New("ai provider not configured")
