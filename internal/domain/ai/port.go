package ai

import "context"

// Request is one report analysis. PDF is only sent when ReportText is empty.
type Request struct {
	Query      string
	ReportText string
	PDF        []byte
}

type Client interface {
	Analyze(ctx context.Context, req Request) (string, error)
}
