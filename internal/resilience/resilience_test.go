package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/edgard/taskbot/internal/errors"
	"github.com/edgard/taskbot/internal/resilience"
)

func fastRetry(attempts int) resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2,
	}
}

func TestWithRetry(t *testing.T) {
	t.Parallel()

	platformErr := apperrors.NewPlatformError("send failed", errors.New("502"))

	tests := []struct {
		name      string
		failures  int
		err       error
		attempts  int
		wantCalls int
		wantErr   bool
		wantCode  string
	}{
		{name: "first try", failures: 0, err: platformErr, attempts: 3, wantCalls: 1},
		{name: "recovers", failures: 2, err: platformErr, attempts: 3, wantCalls: 3},
		{name: "exhausted", failures: 5, err: platformErr, attempts: 3, wantCalls: 3, wantErr: true, wantCode: apperrors.CodePlatform},
		{name: "config missing not retried", failures: 5, err: apperrors.NewConfigMissingError("ping channel"), attempts: 3, wantCalls: 1, wantErr: true, wantCode: apperrors.CodeConfigMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			calls := 0
			err := resilience.WithRetry(context.Background(), func(context.Context) error {
				calls++
				if calls <= tt.failures {
					return tt.err
				}
				return nil
			}, fastRetry(tt.attempts))

			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("WithRetry() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && apperrors.Code(err) != tt.wantCode {
				t.Errorf("Code() = %q, want %q", apperrors.Code(err), tt.wantCode)
			}
		})
	}
}

func TestWithRetryExhaustedWrapsSentinel(t *testing.T) {
	t.Parallel()

	err := resilience.WithRetry(context.Background(), func(context.Context) error {
		return errors.New("down")
	}, fastRetry(2))
	if !errors.Is(err, resilience.ErrExhaustedRetries) {
		t.Errorf("WithRetry() error = %v", err)
	}
}

func TestWithRetryStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := resilience.WithRetry(ctx, func(context.Context) error {
		calls++
		cancel()
		return errors.New("down")
	}, resilience.RetryConfig{MaxAttempts: 5, InitialInterval: time.Hour, MaxInterval: time.Hour, Multiplier: 1})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("WithRetry() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d", calls)
	}
}

func TestCircuitBreakerOpens(t *testing.T) {
	t.Parallel()

	var transitions []resilience.CircuitState
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:         "discord",
		MaxFailures:  2,
		OpenInterval: time.Hour,
		OnStateChange: func(_ string, _, to resilience.CircuitState) {
			transitions = append(transitions, to)
		},
	})

	down := errors.New("down")
	for i := 0; i < 2; i++ {
		if err := cb.Execute(context.Background(), func(context.Context) error { return down }); !errors.Is(err, down) {
			t.Fatalf("Execute() error = %v", err)
		}
	}
	if cb.State() != resilience.StateOpen {
		t.Fatalf("State() = %v", cb.State())
	}

	called := false
	err := cb.Execute(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, resilience.ErrCircuitOpen) || called {
		t.Errorf("open breaker: err = %v, called = %v", err, called)
	}
	if resilience.Retryable(err) {
		t.Errorf("open breaker error should not be retryable")
	}
	if len(transitions) != 1 || transitions[0] != resilience.StateOpen {
		t.Errorf("transitions = %v", transitions)
	}
}

func TestCircuitBreakerIgnoresCallerErrors(t *testing.T) {
	t.Parallel()

	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: "discord", MaxFailures: 1})
	for i := 0; i < 3; i++ {
		_ = cb.Execute(context.Background(), func(context.Context) error {
			return apperrors.NewValidationError("bad input", nil)
		})
	}
	if cb.State() != resilience.StateClosed {
		t.Errorf("State() = %v, want closed", cb.State())
	}
}
