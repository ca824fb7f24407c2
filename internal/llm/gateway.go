// Package llm provides a retrying, timeout-bounded gateway over a single
// configured LLM provider. Callers get raw text back; interpreting the text
// is their concern, and a semantically invalid response is never retried here.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

var (
	// ErrUnavailable indicates the provider could not be reached after all
	// retry attempts were exhausted.
	ErrUnavailable = errors.New("llm provider unavailable")

	// ErrCircuitOpen indicates the circuit breaker is refusing calls.
	ErrCircuitOpen = gobreaker.ErrOpenState
)

// TokenUsage reports token consumption for a single completion.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Add accumulates usage from another completion.
func (u *TokenUsage) Add(other TokenUsage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// Request describes a single completion attempt.
type Request struct {
	Prompt      string
	Model       string
	Temperature float32
}

// Response is the raw provider output.
type Response struct {
	Text  string
	Usage TokenUsage
}

// Transport performs one completion attempt against a provider.
// Implementations must respect the context deadline.
type Transport interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// ProviderConfig holds the per-provider tunables. Timeout and backoff are
// deliberately configuration, not constants: a long-running "thinking" model
// is configured with a larger Timeout than a standard one.
type ProviderConfig struct {
	Model       string
	Temperature float32
	Timeout     time.Duration
	MaxRetries  int
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

// InvokeOptions override per-call settings; zero values fall back to the
// provider defaults.
type InvokeOptions struct {
	Model       string
	Temperature *float32
}

// Gateway wraps a Transport with timeout, retry with exponential backoff,
// and a circuit breaker.
type Gateway struct {
	transport Transport
	cfg       ProviderConfig
	logger    *slog.Logger
	breaker   *gobreaker.CircuitBreaker
}

// NewGateway creates a gateway over the given transport.
func NewGateway(transport Transport, cfg ProviderConfig, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "llm",
		Interval: time.Minute,
		Timeout:  time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 8
		},
	})

	return &Gateway{
		transport: transport,
		cfg:       cfg,
		logger:    logger.With("component", "llm_gateway"),
		breaker:   breaker,
	}
}

// Invoke sends the prompt to the provider and returns the raw text response.
// Transport errors and timeouts are retried up to MaxRetries times with
// exponential backoff; context cancellation aborts outstanding retries
// immediately. Exhausting retries returns an error wrapping ErrUnavailable.
func (g *Gateway) Invoke(ctx context.Context, prompt string, opts InvokeOptions) (*Response, error) {
	req := Request{
		Prompt:      prompt,
		Model:       g.cfg.Model,
		Temperature: g.cfg.Temperature,
	}
	if opts.Model != "" {
		req.Model = opts.Model
	}
	if opts.Temperature != nil {
		req.Temperature = *opts.Temperature
	}

	var lastErr error
	attempts := g.cfg.MaxRetries + 1

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := g.backoffFor(attempt)
			g.logger.WarnContext(ctx, "Retrying LLM call",
				"attempt", attempt+1, "max_attempts", attempts, "backoff", backoff, "error", lastErr)

			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, fmt.Errorf("llm call abandoned: %w", ctx.Err())
			case <-timer.C:
			}
		}

		resp, err := g.attempt(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, fmt.Errorf("llm call abandoned: %w", ctx.Err())
		}
		if errors.Is(err, gobreaker.ErrOpenState) {
			g.logger.WarnContext(ctx, "LLM circuit breaker open, not retrying")
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	g.logger.ErrorContext(ctx, "LLM call failed after all retries",
		"attempts", attempts, "error", lastErr)
	return nil, fmt.Errorf("%w after %d attempts: %v", ErrUnavailable, attempts, lastErr)
}

// attempt performs one timeout-bounded completion through the circuit breaker.
func (g *Gateway) attempt(ctx context.Context, req Request) (*Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	result, err := g.breaker.Execute(func() (interface{}, error) {
		return g.transport.Complete(attemptCtx, req)
	})
	if err != nil {
		return nil, err
	}

	resp, ok := result.(*Response)
	if !ok || resp == nil {
		return nil, fmt.Errorf("transport returned invalid response")
	}
	return resp, nil
}

func (g *Gateway) backoffFor(attempt int) time.Duration {
	backoff := g.cfg.BackoffBase << uint(attempt-1)
	if backoff > g.cfg.BackoffMax || backoff <= 0 {
		backoff = g.cfg.BackoffMax
	}
	return backoff
}
