package anthropic

import (
	"context"
	"errors"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/company-profiler/internal/resilience"
)

const defaultMaxTokens = 2048

// ErrEmptyResponse is returned when the model replies with no text.
var ErrEmptyResponse = errors.New("anthropic: empty response")

// InvokerOption configures an Invoker.
type InvokerOption func(*Invoker)

// WithMaxRetries sets how many times a transient failure is retried.
func WithMaxRetries(n int) InvokerOption {
	return func(i *Invoker) {
		if n >= 0 {
			i.policy.MaxAttempts = n + 1
		}
	}
}

// WithMaxTokens caps output tokens per call.
func WithMaxTokens(n int64) InvokerOption {
	return func(i *Invoker) {
		if n > 0 {
			i.maxTokens = n
		}
	}
}

// WithRateLimit limits calls per second. Zero or negative disables limiting.
func WithRateLimit(perSecond float64) InvokerOption {
	return func(i *Invoker) {
		if perSecond > 0 {
			i.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		} else {
			i.limiter = nil
		}
	}
}

// WithBackoff overrides the initial and maximum retry delay.
func WithBackoff(initial, maxDelay time.Duration) InvokerOption {
	return func(i *Invoker) {
		i.policy.InitialBackoff = initial
		i.policy.MaxBackoff = maxDelay
	}
}

// Invoker sends single-prompt requests and absorbs transient API failures.
type Invoker struct {
	client    Client
	limiter   *rate.Limiter
	policy    resilience.Policy
	maxTokens int64
}

// NewInvoker wraps client with retry, backoff and rate limiting. The default
// policy allows five retries.
func NewInvoker(client Client, opts ...InvokerOption) *Invoker {
	inv := &Invoker{
		client:    client,
		policy:    resilience.DefaultPolicy(),
		maxTokens: defaultMaxTokens,
	}
	inv.policy.ShouldRetry = IsRetryable
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Invoke sends prompt as the final user turn after history and returns the
// reply text with token counts. When ErrEmptyResponse is returned the counts
// still describe the empty reply so the caller can charge for it.
func (i *Invoker) Invoke(ctx context.Context, model, prompt string, history []Message) (string, int64, int64, error) {
	msgs := make([]Message, 0, len(history)+1)
	msgs = append(msgs, history...)
	msgs = append(msgs, Message{Role: "user", Content: prompt})
	req := MessageRequest{Model: model, MaxTokens: i.maxTokens, Messages: msgs}

	p := i.policy
	p.OnRetry = resilience.LogRetry("anthropic request", zap.String("model", model))

	resp, err := resilience.Retry(ctx, p, func(ctx context.Context) (*MessageResponse, error) {
		if i.limiter != nil {
			if err := i.limiter.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "anthropic: rate limit wait")
			}
		}
		return i.client.CreateMessage(ctx, req)
	})
	if err != nil {
		return "", 0, 0, eris.Wrapf(err, "anthropic: invoke %s", model)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", resp.Usage.InputTokens, resp.Usage.OutputTokens,
			eris.Wrapf(ErrEmptyResponse, "anthropic: model %s", model)
	}
	return text, resp.Usage.InputTokens, resp.Usage.OutputTokens, nil
}

// IsRetryable reports whether err is a transient API failure. API errors are
// judged by status code; anything else falls back to network heuristics.
func IsRetryable(err error) bool {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return resilience.IsTransientStatus(apiErr.StatusCode)
	}
	return resilience.IsTransient(err)
}
