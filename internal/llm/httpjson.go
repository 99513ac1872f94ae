package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxResponseBytes caps how much of a provider reply is read.
const maxResponseBytes = 8 << 20

// StatusError is a failure reported by a provider, either as an HTTP status
// or as an error object in the reply body.
type StatusError struct {
	Provider string
	Status   int
	Message  string
	Type     string
}

func (e *StatusError) Error() string {
	if e.Status >= 400 {
		return fmt.Sprintf("%s http status %d: %s (%s)", e.Provider, e.Status, e.Message, e.Type)
	}
	return fmt.Sprintf("%s error: %s (%s)", e.Provider, e.Message, e.Type)
}

// Temporary reports whether the provider asked us to back off or failed on its side.
func (e *StatusError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// PostJSON posts payload to endpoint and decodes the reply into out. It
// returns the HTTP status; a body that does not decode on an error status is
// reported as a StatusError.
func PostJSON(ctx context.Context, hc *http.Client, provider, endpoint string, header http.Header, payload, out any) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return 0, fmt.Errorf("%s request timeout: %w", provider, err)
		}
		return 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		if resp.StatusCode >= 400 {
			return resp.StatusCode, &StatusError{Provider: provider, Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode), Type: "http_error"}
		}
		return resp.StatusCode, fmt.Errorf("%s response parse: %w", provider, err)
	}
	return resp.StatusCode, nil
}
