// Package gemini implements llm.Completer over the Gemini generateContent REST API.
package gemini

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"visadoc-backend/internal/llm"
	"visadoc-backend/internal/shared/telemetry"
)

var baseURL = "https://generativelanguage.googleapis.com/v1beta"

// DefaultModel is used when LLM_MODEL is empty.
const DefaultModel = "gemini-2.5-flash"

type Client struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient constructs a Gemini client. An empty model falls back to DefaultModel.
func NewClient(apiKey, model string, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		apiKey:     apiKey,
		model:      strings.TrimSpace(model),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature      *float32 `json:"temperature,omitempty"`
	ResponseMIMEType string   `json:"responseMimeType,omitempty"`
}

type generateRequest struct {
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata,omitempty"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

func (c *Client) Complete(ctx context.Context, prompt llm.Prompt) (string, error) {
	req := generateRequest{
		Contents:         []content{{Role: "user", Parts: []part{{Text: prompt.User}}}},
		GenerationConfig: generationConfig{Temperature: prompt.Temperature},
	}
	if strings.TrimSpace(prompt.System) != "" {
		req.SystemInstruction = &content{Parts: []part{{Text: prompt.System}}}
	}
	if prompt.JSON {
		req.GenerationConfig.ResponseMIMEType = "application/json"
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(baseURL, "/"), url.PathEscape(c.model))
	var parsed generateResponse
	status, err := llm.PostJSON(ctx, c.httpClient, "gemini", endpoint, http.Header{"x-goog-api-key": {c.apiKey}}, req, &parsed)
	if err != nil {
		return "", err
	}
	if parsed.Error != nil {
		return "", &llm.StatusError{Provider: "gemini", Status: status, Message: parsed.Error.Message, Type: parsed.Error.Status}
	}
	if status >= 400 {
		return "", &llm.StatusError{Provider: "gemini", Status: status, Message: http.StatusText(status), Type: "http_error"}
	}
	if parsed.PromptFeedback != nil && parsed.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("gemini prompt blocked: %s", parsed.PromptFeedback.BlockReason)
	}
	if len(parsed.Candidates) == 0 {
		return "", fmt.Errorf("gemini response missing candidates")
	}
	if u := parsed.UsageMetadata; u != nil {
		telemetry.Info("llm.response", map[string]any{
			"provider":          "gemini",
			"model":             c.model,
			"finish_reason":     parsed.Candidates[0].FinishReason,
			"prompt_tokens":     u.PromptTokenCount,
			"completion_tokens": u.CandidatesTokenCount,
			"total_tokens":      u.TotalTokenCount,
		})
	}

	var b strings.Builder
	for _, p := range parsed.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", llm.ErrEmptyResponse
	}
	return text, nil
}

var _ llm.Completer = (*Client)(nil)
