package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	domain "github.com/bryanwahyu/bloodreport-ai/internal/domain/ai"
	"github.com/bryanwahyu/bloodreport-ai/internal/infra/ai/prompt"
)

const defaultModel = "gemini-1.5-flash"

// Client talks to the Gemini API with an API key.
type Client struct {
	model  *genai.GenerativeModel
	client *genai.Client
}

func NewClient(ctx context.Context, apiKey, model string, temperature float32, maxOutputTokens int) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: api key is required")
	}
	if model == "" {
		model = defaultModel
	}
	cli, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	m := cli.GenerativeModel(model)
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(prompt.GetSystemPrompt())}}
	m.SetTemperature(temperature)
	if maxOutputTokens > 0 {
		m.SetMaxOutputTokens(int32(maxOutputTokens))
	}
	return &Client{model: m, client: cli}, nil
}

func (c *Client) Analyze(ctx context.Context, req domain.Request) (string, error) {
	parts := []genai.Part{genai.Text(prompt.GetUserPrompt(req.Query, req.ReportText))}
	if strings.TrimSpace(req.ReportText) == "" && len(req.PDF) > 0 {
		parts = append(parts, genai.Blob{MIMEType: "application/pdf", Data: req.PDF})
	}

	resp, err := c.model.GenerateContent(ctx, parts...)
	if err != nil {
		if isQuotaError(err) {
			return "", fmt.Errorf("%w: %v", domain.ErrQuotaExceeded, err)
		}
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := responseText(resp)
	if text == "" {
		return "", domain.ErrEmptyResponse
	}
	return text, nil
}

func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, p := range cand.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		// first candidate only
		break
	}
	return strings.TrimSpace(b.String())
}

func isQuotaError(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusTooManyRequests {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "RESOURCE_EXHAUSTED") || strings.Contains(msg, "429") || strings.Contains(strings.ToLower(msg), "quota")
}
