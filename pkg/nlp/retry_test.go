package nlp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/veridoc/keygraph/pkg/types"
)

func fastRetryConfig(maxRetries int) *RetryConfig {
	return &RetryConfig{
		MaxRetries:        maxRetries,
		InitialDelay:      time.Millisecond,
		MaxDelay:          5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestRetryClientSucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	client := &mockClient{chatFunc: func(context.Context, []types.Message) (*types.Response, error) {
		attempts++
		if attempts < 3 {
			return nil, NewRateLimitError()
		}
		return &types.Response{Content: "ok"}, nil
	}}

	retry := NewRetryClient(client, fastRetryConfig(3))
	resp, err := retry.Chat(context.Background(), []types.Message{NewUserMessage("hi")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("expected ok, got %q", resp.Content)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryClientStopsOnNonRetryableError(t *testing.T) {
	permanent := errors.New("invalid request")
	client := &mockClient{chatFunc: func(context.Context, []types.Message) (*types.Response, error) {
		return nil, permanent
	}}

	retry := NewRetryClient(client, fastRetryConfig(5))
	_, err := retry.Chat(context.Background(), []types.Message{NewUserMessage("hi")})
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if client.calls != 1 {
		t.Errorf("expected 1 attempt, got %d", client.calls)
	}
}

func TestRetryClientExhaustsRetries(t *testing.T) {
	client := &mockClient{chatFunc: func(context.Context, []types.Message) (*types.Response, error) {
		return nil, NewRateLimitError()
	}}

	retry := NewRetryClient(client, fastRetryConfig(2))
	_, err := retry.Chat(context.Background(), []types.Message{NewUserMessage("hi")})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !errors.Is(err, &RateLimitError{}) {
		t.Errorf("expected wrapped rate limit error, got %v", err)
	}
	if client.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", client.calls)
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit type", NewRateLimitError(), true},
		{"rate limit sentinel", ErrRateLimit, true},
		{"503 message", errors.New("503 service unavailable"), true},
		{"timeout message", errors.New("request timeout"), true},
		{"permanent", errors.New("model not found"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryableError(tt.err); got != tt.want {
				t.Errorf("isRetryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
