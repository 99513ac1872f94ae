package analysis

import (
	"context"
	"errors"
	"time"

	"visadoc-backend/internal/llm"
	"visadoc-backend/internal/shared/telemetry"
	"visadoc-backend/internal/shared/util"
)

// DefaultTimeout bounds a single analysis request when none is configured.
const DefaultTimeout = 90 * time.Second

// Pipeline is the request/response boundary to the analysis service. It does
// not touch session state or checklist storage.
type Pipeline struct {
	LLM     llm.Client
	Timeout time.Duration
}

// NewPipeline constructs a Pipeline with the given client and timeout.
func NewPipeline(client llm.Client, timeout time.Duration) *Pipeline {
	return &Pipeline{LLM: client, Timeout: timeout}
}

// Analyze sends the document to the analysis service and parses the reply.
// Every failure, including timeouts and malformed payloads, is returned as a
// *FailureError carrying UserMessage.
func (p *Pipeline) Analyze(ctx context.Context, situation Situation, documentText string, locale Locale) (*Result, error) {
	if p == nil || p.LLM == nil {
		return nil, p.fail(ctx, situation, errors.New("missing llm client"))
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raw, err := p.LLM.AnalyzeDocument(ctx, llm.AnalyzeInput{
		Situation:    situation.Label(),
		DocumentText: documentText,
		Language:     locale.LanguageName(),
	})
	if err != nil {
		return nil, p.fail(ctx, situation, err)
	}

	result, err := Parse(raw)
	if err != nil {
		return nil, p.fail(ctx, situation, err)
	}
	return result, nil
}

func (p *Pipeline) fail(ctx context.Context, situation Situation, cause error) error {
	reason := "service"
	switch {
	case errors.Is(cause, context.DeadlineExceeded):
		reason = "timeout"
	case errors.Is(cause, context.Canceled):
		reason = "canceled"
	case errors.Is(cause, ErrInvalidResult):
		reason = "malformed"
	}
	telemetry.Error("analysis.failed", map[string]any{
		"situation": string(situation),
		"reason":    reason,
		"error":     util.SanitizeError(cause),
		"ctx_error": util.SanitizeError(ctx.Err()),
	})
	return &FailureError{Message: UserMessage, Err: cause}
}
