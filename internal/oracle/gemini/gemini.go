// Package gemini is an oracle backend that calls the Gemini API directly.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"oraclecraft.ai/internal/oracle"
)

const DefaultModel = "gemini-2.5-flash"

type Config struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint; tests point it at a local server.
	BaseURL string
}

// Backend implements oracle.Backend. One Generate call is one attempt;
// retries belong to oracle.Client.
type Backend struct {
	client *genai.Client
	model  string
	log    *slog.Logger
}

var _ oracle.Backend = (*Backend)(nil)

func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Backend, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini: api key is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Backend{client: client, model: model, log: logger}, nil
}

func (b *Backend) Model() string { return b.model }

// Generate sends the schema-embedded prompt and asks for JSON-only output.
func (b *Backend) Generate(ctx context.Context, req oracle.Request) (string, error) {
	prompt := oracle.BuildPrompt(req.SystemInstruction, req.UserQuery, req.Schema)
	b.log.DebugContext(ctx, "gemini generate", "model", b.model, "query", req.UserQuery)

	resp, err := b.client.Models.GenerateContent(ctx, b.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		if Permanent(err) {
			return "", &oracle.PermanentError{Err: fmt.Errorf("gemini: %w", err)}
		}
		return "", fmt.Errorf("gemini: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", oracle.ErrEmptyReply
	}
	return text, nil
}

// Permanent reports whether err is an API rejection that retrying will not
// fix (bad request, auth, unknown model). Rate limits and server errors are
// retryable.
func Permanent(err error) bool {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Code {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	}
	return false
}
