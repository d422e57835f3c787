// Package oracle is the boundary to the generative text service that judges
// craft and explore requests.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Oracle returns a schema-valid judgment or an error once its retry budget is
// spent. Callers treat any error as "no judgment".
type Oracle interface {
	RequestJudgment(ctx context.Context, systemInstruction, userQuery string, schema *Schema) (Judgment, error)
}

// Request is what a Backend receives.
type Request struct {
	SystemInstruction string          `json:"systemInstruction"`
	UserQuery         string          `json:"userQuery"`
	Schema            json.RawMessage `json:"schema"`
}

// Backend produces the raw JSON text for a request. One call is one attempt.
type Backend interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, req Request) (string, error)

func (f BackendFunc) Generate(ctx context.Context, req Request) (string, error) { return f(ctx, req) }

var (
	ErrEmptyReply   = errors.New("oracle: empty reply")
	ErrInvalidReply = errors.New("oracle: invalid reply")
)

// Client layers retries, parsing and schema validation over a Backend.
type Client struct {
	backend Backend
	policy  Policy
	log     *slog.Logger
}

var _ Oracle = (*Client)(nil)

func NewClient(b Backend, p Policy, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{backend: b, policy: p.normalized(), log: logger}
}

func (c *Client) RequestJudgment(ctx context.Context, systemInstruction, userQuery string, schema *Schema) (Judgment, error) {
	req := Request{SystemInstruction: systemInstruction, UserQuery: userQuery}
	if schema != nil {
		req.Schema = schema.Document
	}
	attempt := 0
	op := func() (Judgment, error) {
		attempt++
		text, err := c.backend.Generate(ctx, req)
		if err != nil {
			if isPermanent(err) {
				return Judgment{}, backoff.Permanent(err)
			}
			return Judgment{}, err
		}
		return Decode(text, schema)
	}
	notify := func(err error, wait time.Duration) {
		c.log.WarnContext(ctx, "oracle retry", "attempt", attempt, "wait", wait, "error", err)
		if fn := retryNotifierFrom(ctx); fn != nil {
			fn(attempt, err, wait)
		}
	}
	j, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(c.policy.backOff()),
		backoff.WithMaxTries(uint(c.policy.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(notify),
	)
	if err != nil {
		return Judgment{}, fmt.Errorf("request judgment (%d attempts): %w", attempt, err)
	}
	return j, nil
}

// Decode parses reply text, validates it against schema and returns the
// judgment. Code fences around the JSON are tolerated.
func Decode(text string, schema *Schema) (Judgment, error) {
	text = stripFences(text)
	if text == "" {
		return Judgment{}, ErrEmptyReply
	}
	var raw any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return Judgment{}, fmt.Errorf("%w: parse: %v", ErrInvalidReply, err)
	}
	if err := schema.Validate(raw); err != nil {
		return Judgment{}, fmt.Errorf("%w: schema: %v", ErrInvalidReply, err)
	}
	var j Judgment
	if err := json.Unmarshal([]byte(text), &j); err != nil {
		return Judgment{}, fmt.Errorf("%w: decode: %v", ErrInvalidReply, err)
	}
	return j, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// PermanentError marks a backend failure that retrying cannot fix.
type PermanentError struct{ Err error }

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func isPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// RetryNotifier is told about every failed attempt that will be retried.
type RetryNotifier func(attempt int, err error, wait time.Duration)

type retryNotifierKey struct{}

func WithRetryNotifier(ctx context.Context, fn RetryNotifier) context.Context {
	return context.WithValue(ctx, retryNotifierKey{}, fn)
}

func retryNotifierFrom(ctx context.Context) RetryNotifier {
	fn, _ := ctx.Value(retryNotifierKey{}).(RetryNotifier)
	return fn
}

// WithAttemptTimeout bounds each call to b by d. Zero returns b unchanged.
func WithAttemptTimeout(b Backend, d time.Duration) Backend {
	if d <= 0 {
		return b
	}
	return BackendFunc(func(ctx context.Context, req Request) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return b.Generate(ctx, req)
	})
}
