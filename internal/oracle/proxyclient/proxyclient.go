// Package proxyclient is an oracle backend that goes through the oracle
// proxy's HTTP endpoint instead of holding provider credentials itself.
package proxyclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"oraclecraft.ai/internal/oracle"
)

// Reply is the proxy's response body for both success and failure.
type Reply struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Details string `json:"details,omitempty"`
}

// StatusError is a non-2xx proxy reply.
type StatusError struct {
	Code    int
	Message string
	Details string
}

func (e *StatusError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("proxy %d: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("proxy %d: %s", e.Code, e.Message)
}

type Backend struct {
	url  string
	http *http.Client
}

var _ oracle.Backend = (*Backend)(nil)

// New targets url, e.g. http://127.0.0.1:8081/api/gemini. A nil client uses
// http.DefaultClient.
func New(url string, client *http.Client) *Backend {
	if client == nil {
		client = http.DefaultClient
	}
	return &Backend{url: url, http: client}
}

func (b *Backend) Generate(ctx context.Context, req oracle.Request) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", &oracle.PermanentError{Err: err}
	}
	hr, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(body))
	if err != nil {
		return "", &oracle.PermanentError{Err: err}
	}
	hr.Header.Set("Content-Type", "application/json")

	resp, err := b.http.Do(hr)
	if err != nil {
		return "", fmt.Errorf("proxy: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("proxy: read body: %w", err)
	}

	var rep Reply
	_ = json.Unmarshal(raw, &rep)
	if resp.StatusCode != http.StatusOK {
		se := &StatusError{Code: resp.StatusCode, Message: rep.Error, Details: rep.Details}
		if se.Message == "" {
			se.Message = strings.TrimSpace(string(raw))
		}
		// 4xx other than rate limiting will fail the same way again.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return "", &oracle.PermanentError{Err: se}
		}
		return "", se
	}
	if strings.TrimSpace(rep.Message) == "" {
		return "", oracle.ErrEmptyReply
	}
	return rep.Message, nil
}
