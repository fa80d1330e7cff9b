package vertex

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	domain "github.com/bryanwahyu/bloodreport-ai/internal/domain/ai"
	"github.com/bryanwahyu/bloodreport-ai/internal/infra/ai/prompt"
)

// Client reaches Gemini through Vertex AI using application default credentials.
type Client struct {
	model      *genai.GenerativeModel
	baseClient *genai.Client
}

func NewClient(ctx context.Context, projectID, region, model string, temperature float32, maxOutputTokens int) (*Client, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("vertex: projectID and region cannot be empty")
	}
	if model == "" {
		model = "gemini-1.5-flash"
	}
	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	m := baseClient.GenerativeModel(model)
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(prompt.GetSystemPrompt())},
	}
	m.GenerationConfig = genai.GenerationConfig{
		Temperature: genai.Ptr(temperature),
	}
	if maxOutputTokens > 0 {
		m.GenerationConfig.MaxOutputTokens = genai.Ptr(int32(maxOutputTokens))
	}
	return &Client{model: m, baseClient: baseClient}, nil
}

func (c *Client) Analyze(ctx context.Context, req domain.Request) (string, error) {
	parts := []genai.Part{genai.Text(prompt.GetUserPrompt(req.Query, req.ReportText))}
	if strings.TrimSpace(req.ReportText) == "" && len(req.PDF) > 0 {
		parts = append(parts, genai.Blob{MIMEType: "application/pdf", Data: req.PDF})
	}

	resp, err := c.model.GenerateContent(ctx, parts...)
	if err != nil {
		if strings.Contains(err.Error(), "RESOURCE_EXHAUSTED") || strings.Contains(err.Error(), "429") {
			return "", fmt.Errorf("%w: %v", domain.ErrQuotaExceeded, err)
		}
		return "", fmt.Errorf("vertex generate: %w", err)
	}

	var b strings.Builder
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, p := range resp.Candidates[0].Content.Parts {
			if t, ok := p.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", domain.ErrEmptyResponse
	}
	return text, nil
}

func (c *Client) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}
