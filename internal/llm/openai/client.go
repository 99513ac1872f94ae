package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"visadoc-backend/internal/llm"
	"visadoc-backend/internal/shared/telemetry"
)

var apiURL = "https://api.openai.com/v1/chat/completions"

// DefaultModel is used when LLM_MODEL is empty.
const DefaultModel = "gpt-4o-mini"

// Options tunes the client. NoTemperatureModels is a comma separated list of
// models that reject a temperature parameter.
type Options struct {
	Timeout             time.Duration
	NoTemperatureModels string
}

// Client implements llm.Completer using OpenAI Chat Completions.
type Client struct {
	apiKey     string
	model      string
	noTemp     bool
	httpClient *http.Client
}

// NewClient constructs a new OpenAI client.
func NewClient(apiKey, model string, opts Options) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	return &Client{
		apiKey:     apiKey,
		model:      model,
		noTemp:     isGPT5(model) || deniedTemperature(model, opts.NoTemperatureModels),
		httpClient: &http.Client{Timeout: opts.Timeout},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    *float32        `json:"temperature,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete sends one chat completion. A rejected temperature is retried once
// without it.
func (c *Client) Complete(ctx context.Context, prompt llm.Prompt) (string, error) {
	temp := prompt.Temperature
	if c.noTemp {
		temp = nil
	}
	out, err := c.completeOnce(ctx, prompt, temp)
	if err == nil || temp == nil || !isTemperatureUnsupported(err) {
		return out, err
	}
	telemetry.Warn("llm.openai.temperature_rejected", map[string]any{"model": c.model})
	return c.completeOnce(ctx, prompt, nil)
}

func (c *Client) completeOnce(ctx context.Context, prompt llm.Prompt, temp *float32) (string, error) {
	req := chatRequest{Model: c.model, Temperature: temp}
	if strings.TrimSpace(prompt.System) != "" {
		req.Messages = append(req.Messages, chatMessage{Role: "system", Content: prompt.System})
	}
	req.Messages = append(req.Messages, chatMessage{Role: "user", Content: prompt.User})
	if prompt.JSON {
		req.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	var parsed chatResponse
	header := http.Header{"Authorization": {"Bearer " + c.apiKey}}
	status, err := llm.PostJSON(ctx, c.httpClient, "openai", apiURL, header, req, &parsed)
	if err != nil {
		return "", err
	}
	if parsed.Error != nil {
		return "", &llm.StatusError{Provider: "openai", Status: status, Message: parsed.Error.Message, Type: parsed.Error.Type}
	}
	if status >= 400 {
		return "", &llm.StatusError{Provider: "openai", Status: status, Message: http.StatusText(status), Type: "http_error"}
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openai response missing choices")
	}
	if parsed.Usage != nil {
		telemetry.Info("llm.response", map[string]any{
			"provider":          "openai",
			"model":             c.model,
			"finish_reason":     parsed.Choices[0].FinishReason,
			"prompt_tokens":     parsed.Usage.PromptTokens,
			"completion_tokens": parsed.Usage.CompletionTokens,
			"total_tokens":      parsed.Usage.TotalTokens,
		})
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", llm.ErrEmptyResponse
	}
	return content, nil
}

func isGPT5(model string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "gpt-5")
}

func deniedTemperature(model, denylist string) bool {
	model = strings.ToLower(strings.TrimSpace(model))
	if model == "" {
		return false
	}
	for _, entry := range strings.Split(denylist, ",") {
		if strings.ToLower(strings.TrimSpace(entry)) == model {
			return true
		}
	}
	return false
}

func isTemperatureUnsupported(err error) bool {
	var statusErr *llm.StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	msg := strings.ToLower(statusErr.Message)
	return strings.Contains(msg, "temperature") && (strings.Contains(msg, "unsupported") || strings.Contains(msg, "does not support"))
}

var _ llm.Completer = (*Client)(nil)
