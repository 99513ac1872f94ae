package llm

import (
	"context"
	"encoding/json"
	"errors"
)

// Client is the external analysis service contract. Each method is a single
// request/response exchange.
type Client interface {
	AnalyzeDocument(ctx context.Context, input AnalyzeInput) (json.RawMessage, error)
	TranslateResult(ctx context.Context, input TranslateInput) (json.RawMessage, error)
	AnswerQuestion(ctx context.Context, input QuestionInput) (string, error)
}

// AnalyzeInput captures the inputs needed for document analysis.
type AnalyzeInput struct {
	Situation    string
	DocumentText string
	Language     string
}

// TranslateInput carries the current result (already JSON encoded, checklist
// items keyed by id) and the document it was derived from.
type TranslateInput struct {
	Language     string
	Result       json.RawMessage
	DocumentText string
}

// QuestionInput is a follow-up question. DocumentText and Result are empty in
// general mode.
type QuestionInput struct {
	Question     string
	Mode         string
	DocumentText string
	Result       json.RawMessage
}

// Prompt is a provider-neutral completion request.
type Prompt struct {
	System      string
	User        string
	JSON        bool
	Temperature *float32
}

// Completer sends one prompt to a provider and returns the raw text reply.
type Completer interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// ErrNotImplemented is returned by the placeholder client.
var ErrNotImplemented = errors.New("LLM not implemented")

// ErrEmptyResponse is returned when a provider answers with no content.
var ErrEmptyResponse = errors.New("llm response empty content")

// PlaceholderClient is used when no provider is configured.
type PlaceholderClient struct{}

func (PlaceholderClient) AnalyzeDocument(ctx context.Context, input AnalyzeInput) (json.RawMessage, error) {
	return nil, ErrNotImplemented
}

func (PlaceholderClient) TranslateResult(ctx context.Context, input TranslateInput) (json.RawMessage, error) {
	return nil, ErrNotImplemented
}

func (PlaceholderClient) AnswerQuestion(ctx context.Context, input QuestionInput) (string, error) {
	return "", ErrNotImplemented
}

var _ Client = PlaceholderClient{}
