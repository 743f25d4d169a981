package llm

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"google.golang.org/genai"

	"tailorcv/internal/errcode"
)

func TestWithRetry_RetriesOn429(t *testing.T) {
	calls := 0
	text, err := withRetry(context.Background(), 3, time.Millisecond, slog.Default(), func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", &genai.APIError{Code: 429, Message: "rate limited"}
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("withRetry: %v", err)
	}
	if text != "ok" {
		t.Fatalf("text = %q", text)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestWithRetry_ClientErrorFailsImmediately(t *testing.T) {
	calls := 0
	_, err := withRetry(context.Background(), 3, time.Millisecond, slog.Default(), func(context.Context) (string, error) {
		calls++
		return "", &genai.APIError{Code: 401, Message: "bad key"}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (no retry on 401)", calls)
	}
}

func TestWithRetry_ExhaustsRetriesOn503(t *testing.T) {
	calls := 0
	_, err := withRetry(context.Background(), 2, time.Millisecond, slog.Default(), func(context.Context) (string, error) {
		calls++
		return "", &genai.APIError{Code: 503, Message: "overloaded"}
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3 (initial + 2 retries)", calls)
	}
}

func TestWithRetry_ContextCancelStopsWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := withRetry(ctx, 3, time.Hour, slog.Default(), func(context.Context) (string, error) {
		calls++
		return "", &genai.APIError{Code: 503}
	})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"429", &genai.APIError{Code: 429}, true},
		{"500", &genai.APIError{Code: 500}, true},
		{"503", &genai.APIError{Code: 503}, true},
		{"400", &genai.APIError{Code: 400}, false},
		{"401", &genai.APIError{Code: 401}, false},
		{"404", &genai.APIError{Code: 404}, false},
		{"wrapped 429", errors.Join(errors.New("call failed"), &genai.APIError{Code: 429}), false},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"context canceled", errors.New("context canceled"), false},
		{"plain error", errors.New("something else"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryable(tt.err); got != tt.want {
				t.Fatalf("isRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestMapProviderError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"429 maps to rate limited", &genai.APIError{Code: 429}, errcode.ErrRateLimited},
		{"401 maps to unauthorized", &genai.APIError{Code: 401}, errcode.ErrUnauthorized},
		{"403 maps to unauthorized", &genai.APIError{Code: 403}, errcode.ErrUnauthorized},
		{"500 maps to unavailable", &genai.APIError{Code: 500}, errcode.ErrServiceUnavailable},
		{"unknown maps to unavailable", errors.New("boom"), errcode.ErrServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapProviderError(tt.err)
			if !errors.Is(got, tt.want) {
				t.Fatalf("mapProviderError(%v) = %v, want %v in chain", tt.err, got, tt.want)
			}
		})
	}
}
