// Package resilience wraps chat platform calls and scheduled steps with a
// circuit breaker and exponential-backoff retries.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/sony/gobreaker"

	apperrors "github.com/edgard/taskbot/internal/errors"
)

var (
	// ErrCircuitOpen is returned while the breaker rejects calls.
	ErrCircuitOpen = gobreaker.ErrOpenState
	// ErrTooManyRequests is returned when a half-open breaker is saturated.
	ErrTooManyRequests = gobreaker.ErrTooManyRequests
	// ErrTimeout wraps operations that ran past their deadline.
	ErrTimeout = errors.New("operation timed out")
	// ErrExhaustedRetries wraps the last error once every attempt failed.
	ErrExhaustedRetries = errors.New("retry attempts exhausted")
)

type CircuitState int

const (
	StateClosed CircuitState = iota
	StateHalfOpen
	StateOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateHalfOpen:
		return "HALF-OPEN"
	case StateOpen:
		return "OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreaker trips after consecutive platform failures so that a dead
// gateway fails fast instead of stalling every handler.
type CircuitBreaker struct {
	name    string
	timeout time.Duration
	cb      *gobreaker.CircuitBreaker
}

type CircuitBreakerConfig struct {
	Name string
	// MaxFailures is the number of consecutive failures that opens the breaker.
	MaxFailures int
	// Timeout bounds a single call when the context has no deadline.
	Timeout time.Duration
	// HalfOpenLimit is the number of trial calls allowed while half-open.
	HalfOpenLimit int
	// OpenInterval is how long the breaker stays open before probing.
	OpenInterval  time.Duration
	Logger        *slog.Logger
	OnStateChange func(name string, from, to CircuitState)
}

func mapState(state gobreaker.State) CircuitState {
	switch state {
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	case gobreaker.StateOpen:
		return StateOpen
	default:
		return StateClosed
	}
}

func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.HalfOpenLimit <= 0 {
		cfg.HalfOpenLimit = 1
	}
	if cfg.OpenInterval <= 0 {
		cfg.OpenInterval = time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: uint32(cfg.HalfOpenLimit),
		Timeout:     cfg.OpenInterval,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.MaxFailures)
		},
		// Caller mistakes and cancellations say nothing about platform health.
		IsSuccessful: func(err error) bool {
			return err == nil || !Retryable(err) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromState, toState := mapState(from), mapState(to)
			logger.Warn("Circuit breaker state changed", "name", name, "from", fromState, "to", toState)
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(name, fromState, toState)
			}
		},
	}

	return &CircuitBreaker{
		name:    cfg.Name,
		timeout: cfg.Timeout,
		cb:      gobreaker.NewCircuitBreaker(settings),
	}
}

// State reports the breaker's current state.
func (cb *CircuitBreaker) State() CircuitState {
	return mapState(cb.cb.State())
}

// Execute runs operation through the breaker.
func (cb *CircuitBreaker) Execute(ctx context.Context, operation func(context.Context) error) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cb.timeout)
		defer cancel()
	}

	_, err := cb.cb.Execute(func() (any, error) {
		err := operation(ctx)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return nil, err
	})
	return err
}

// Retryable reports whether repeating the failed operation could succeed.
// Missing configuration and invalid input stay broken until a user acts.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch apperrors.Code(err) {
	case apperrors.CodeConfigMissing, apperrors.CodeValidation, apperrors.CodeMissingField, apperrors.CodeUnauthorized:
		return false
	}
	return !errors.Is(err, ErrCircuitOpen) && !errors.Is(err, ErrTooManyRequests)
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts" validate:"min=1"`
	InitialInterval time.Duration `mapstructure:"initial_interval" validate:"min=0"`
	MaxInterval     time.Duration `mapstructure:"max_interval" validate:"gtefield=InitialInterval"`
	Multiplier      float64       `mapstructure:"multiplier" validate:"gte=1"`
	RandomFactor    float64       `mapstructure:"random_factor" validate:"min=0,max=1"`
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     3,
		InitialInterval: 2 * time.Second,
		MaxInterval:     time.Minute,
		Multiplier:      2.0,
		RandomFactor:    0.1,
	}
}

// WithRetry runs operation until it succeeds, fails with a non-retryable
// error, or MaxAttempts is reached. The returned error wraps the last
// failure so its code survives.
func WithRetry(ctx context.Context, operation func(context.Context) error, cfg RetryConfig) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	interval := cfg.InitialInterval
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := operation(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return fmt.Errorf("retry abandoned: %w", ctx.Err())
		}
		if !Retryable(err) {
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		jitter := 1.0 + cfg.RandomFactor*(2*rnd.Float64()-1)
		wait := time.Duration(float64(interval) * jitter)
		if cfg.MaxInterval > 0 && wait > cfg.MaxInterval {
			wait = cfg.MaxInterval
		}

		slog.Debug("Operation failed, retrying",
			"attempt", attempt,
			"max_attempts", cfg.MaxAttempts,
			"next_interval", wait,
			"error", err,
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry abandoned: %w", ctx.Err())
		case <-timer.C:
		}
		interval = time.Duration(float64(interval) * cfg.Multiplier)
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrExhaustedRetries, cfg.MaxAttempts, lastErr)
}
