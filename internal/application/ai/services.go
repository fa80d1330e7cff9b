package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/bryanwahyu/bloodreport-ai/internal/domain/ai"
	"github.com/bryanwahyu/bloodreport-ai/internal/infra/ai/prompt"
)

const (
	modelConfidence    = 0.95
	fallbackConfidence = 0.85
)

// Result is one finished analysis, from the model or the canned fallback.
type Result struct {
	Text       string
	Fallback   bool
	Confidence float64
	Provider   string
}

type Service struct {
	client   ai.Client // nil when no provider is configured
	provider string
	log      *zap.Logger
	maxChars int
	fallback bool
}

func NewService(client ai.Client, provider string, maxChars int, fallback bool, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{client: client, provider: provider, log: log, maxChars: maxChars, fallback: fallback}
}

// Enabled reports whether a model provider is wired.
func (s *Service) Enabled() bool { return s.client != nil }

func (s *Service) Provider() string {
	if s.client == nil {
		return "fallback"
	}
	return s.provider
}

// AnalyzeReport asks the model about a report. When the model is missing,
// out of quota or otherwise failing and fallback is on, a keyword based
// canned answer addressed to displayName is returned instead.
func (s *Service) AnalyzeReport(ctx context.Context, req ai.Request, displayName string) (Result, error) {
	if strings.TrimSpace(req.Query) == "" {
		req.Query = "Summarise my Blood Test Report"
	}
	req.ReportText = prompt.Truncate(req.ReportText, s.maxChars)

	if s.client == nil {
		if !s.fallback {
			return Result{}, ai.ErrNotConfigured
		}
		return s.fallbackResult(displayName, req.Query), nil
	}

	text, err := s.client.Analyze(ctx, req)
	if err == nil {
		return Result{Text: text, Confidence: modelConfidence, Provider: s.provider}, nil
	}

	// a cancelled or timed out request should not be papered over; SDKs do
	// not always wrap the context error, so ask ctx itself too
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{}, fmt.Errorf("%w: %v", ctxErr, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Result{}, err
	}
	if !s.fallback {
		return Result{}, err
	}
	if errors.Is(err, ai.ErrQuotaExceeded) {
		s.log.Warn("ai quota exceeded, using fallback analysis", zap.String("provider", s.provider))
	} else {
		s.log.Error("ai analysis failed, using fallback analysis", zap.String("provider", s.provider), zap.Error(err))
	}
	return s.fallbackResult(displayName, req.Query), nil
}

func (s *Service) fallbackResult(name, query string) Result {
	return Result{
		Text:       prompt.FallbackAnalysis(name, query),
		Fallback:   true,
		Confidence: fallbackConfidence,
		Provider:   "fallback",
	}
}
