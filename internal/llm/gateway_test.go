package llm_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/group-digest-bot/internal/llm"
)

// fakeTransport fails the first failCount attempts, then succeeds.
type fakeTransport struct {
	calls     atomic.Int32
	failCount int32
	err       error
	lastReq   llm.Request
}

func (f *fakeTransport) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	n := f.calls.Add(1)
	f.lastReq = req
	if n <= f.failCount {
		return nil, f.err
	}
	return &llm.Response{
		Text:  "ok",
		Usage: llm.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

func testConfig(maxRetries int) llm.ProviderConfig {
	return llm.ProviderConfig{
		Model:       "test-model",
		Temperature: 0.5,
		Timeout:     time.Second,
		MaxRetries:  maxRetries,
		BackoffBase: time.Millisecond,
		BackoffMax:  5 * time.Millisecond,
	}
}

func TestGatewayRetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{failCount: 3, err: errors.New("connection refused")}
	gw := llm.NewGateway(transport, testConfig(3), nil)

	resp, err := gw.Invoke(context.Background(), "hello", llm.InvokeOptions{})
	if err != nil {
		t.Fatalf("Invoke() error = %v, want success after retries", err)
	}
	if resp.Text != "ok" {
		t.Errorf("Invoke() text = %q, want %q", resp.Text, "ok")
	}
	if got := transport.calls.Load(); got != 4 {
		t.Errorf("transport calls = %d, want 4 (3 failures + 1 success)", got)
	}
}

func TestGatewayExhaustsRetries(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{failCount: 100, err: errors.New("connection refused")}
	gw := llm.NewGateway(transport, testConfig(2), nil)

	_, err := gw.Invoke(context.Background(), "hello", llm.InvokeOptions{})
	if !errors.Is(err, llm.ErrUnavailable) {
		t.Fatalf("Invoke() error = %v, want ErrUnavailable", err)
	}
	// maxRetries+1 total attempts.
	if got := transport.calls.Load(); got != 3 {
		t.Errorf("transport calls = %d, want 3", got)
	}
}

func TestGatewayZeroRetriesSingleAttempt(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{failCount: 100, err: errors.New("boom")}
	gw := llm.NewGateway(transport, testConfig(0), nil)

	_, err := gw.Invoke(context.Background(), "hello", llm.InvokeOptions{})
	if !errors.Is(err, llm.ErrUnavailable) {
		t.Fatalf("Invoke() error = %v, want ErrUnavailable", err)
	}
	if got := transport.calls.Load(); got != 1 {
		t.Errorf("transport calls = %d, want exactly 1", got)
	}
}

func TestGatewayContextCancellationAbortsRetries(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{failCount: 100, err: errors.New("boom")}
	cfg := testConfig(5)
	cfg.BackoffBase = time.Hour // force the retry wait to block
	gw := llm.NewGateway(transport, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := gw.Invoke(ctx, "hello", llm.InvokeOptions{})
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Invoke() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Invoke() did not return after context cancellation")
	}

	if got := transport.calls.Load(); got != 1 {
		t.Errorf("transport calls = %d, want 1 before cancellation", got)
	}
}

func TestGatewayInvokeOptionsOverrideDefaults(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{}
	gw := llm.NewGateway(transport, testConfig(0), nil)

	temp := float32(1.2)
	_, err := gw.Invoke(context.Background(), "hello", llm.InvokeOptions{
		Model:       "other-model",
		Temperature: &temp,
	})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if transport.lastReq.Model != "other-model" {
		t.Errorf("request model = %q, want %q", transport.lastReq.Model, "other-model")
	}
	if transport.lastReq.Temperature != 1.2 {
		t.Errorf("request temperature = %v, want 1.2", transport.lastReq.Temperature)
	}
}
