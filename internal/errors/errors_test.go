package errors_test

import (
	"errors"
	"fmt"
	"testing"

	apperrors "github.com/edgard/taskbot/internal/errors"
)

func TestCode(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: apperrors.CodeUnknown},
		{name: "plain", err: cause, want: apperrors.CodeUnknown},
		{name: "config missing", err: apperrors.NewConfigMissingError("ping channel"), want: apperrors.CodeConfigMissing},
		{name: "missing field", err: apperrors.NewMissingFieldError("details"), want: apperrors.CodeMissingField},
		{name: "wrapped persistence", err: fmt.Errorf("save: %w", apperrors.NewPersistenceError("write blob", cause)), want: apperrors.CodePersistence},
		{name: "platform", err: apperrors.NewPlatformError("send", cause), want: apperrors.CodePlatform},
		{name: "no interaction", err: apperrors.NewNoInteractionError("timed out", nil), want: apperrors.CodeNoInteraction},
		{name: "unauthorized", err: apperrors.NewUnauthorizedError("nope"), want: apperrors.CodeUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := apperrors.Code(tt.err); got != tt.want {
				t.Errorf("Code() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUnwrapKeepsCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("disk full")
	err := apperrors.NewPersistenceError("failed to save", cause)

	if !errors.Is(err, cause) {
		t.Fatalf("errors.Is(%v, cause) = false", err)
	}
	if got, want := err.Error(), "failed to save: disk full"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestFieldErrorsExposeField(t *testing.T) {
	t.Parallel()

	var mf *apperrors.MissingFieldError
	if !errors.As(apperrors.NewMissingFieldError("time"), &mf) || mf.Field != "time" {
		t.Fatalf("expected MissingFieldError for time, got %v", mf)
	}

	var cm *apperrors.ConfigMissingError
	err := fmt.Errorf("ping: %w", apperrors.NewConfigMissingError("ping role"))
	if !errors.As(err, &cm) || cm.Field != "ping role" {
		t.Fatalf("expected ConfigMissingError for ping role, got %v", cm)
	}
	if !apperrors.Is(err, apperrors.CodeConfigMissing) {
		t.Errorf("Is(CONFIG_MISSING) = false")
	}
}
