package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidJSON is returned when a provider answers a JSON prompt with text
// that does not decode.
var ErrInvalidJSON = errors.New("invalid JSON from llm")

type promptClient struct {
	completer Completer
}

// NewClient adapts a Completer into a Client by rendering the embedded prompts.
func NewClient(c Completer) Client {
	if c == nil {
		return PlaceholderClient{}
	}
	return promptClient{completer: c}
}

func (p promptClient) AnalyzeDocument(ctx context.Context, input AnalyzeInput) (json.RawMessage, error) {
	return p.completeJSON(ctx, BuildAnalyzePrompt(input))
}

func (p promptClient) TranslateResult(ctx context.Context, input TranslateInput) (json.RawMessage, error) {
	return p.completeJSON(ctx, BuildTranslatePrompt(input))
}

func (p promptClient) AnswerQuestion(ctx context.Context, input QuestionInput) (string, error) {
	out, err := p.completer.Complete(ctx, BuildQuestionPrompt(input))
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}

func (p promptClient) completeJSON(ctx context.Context, prompt Prompt) (json.RawMessage, error) {
	out, err := p.completer.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}
	raw := StripFences(out)
	if raw == "" {
		return nil, ErrEmptyResponse
	}
	if !json.Valid([]byte(raw)) {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidJSON, len(raw))
	}
	return json.RawMessage(raw), nil
}

// StripFences removes a surrounding markdown code fence, if any.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
