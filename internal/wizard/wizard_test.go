package wizard_test

import (
	"errors"
	"testing"
	"time"

	apperrors "github.com/edgard/taskbot/internal/errors"
	"github.com/edgard/taskbot/internal/task"
	"github.com/edgard/taskbot/internal/wizard"
)

var tokyo = time.FixedZone("JST", 9*60*60)

func validForm() wizard.Form {
	return wizard.Form{Subject: "Math", Details: "p.12-14", Date: "2024-03-02", Time: "09:00"}
}

func TestHappyPath(t *testing.T) {
	t.Parallel()

	w := wizard.New(tokyo, nil)
	if w.State() != wizard.AwaitingCategory {
		t.Fatalf("initial state = %v", w.State())
	}
	if err := w.ChooseCategory(task.Homework); err != nil {
		t.Fatalf("ChooseCategory() error = %v", err)
	}
	if err := w.SubmitForm(validForm()); err != nil {
		t.Fatalf("SubmitForm() error = %v", err)
	}
	if w.State() != wizard.Confirming {
		t.Fatalf("state = %v, want confirming", w.State())
	}

	got, err := w.Confirm()
	if err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	want := time.Date(2024, time.March, 2, 9, 0, 0, 0, tokyo)
	if got.Category != task.Homework || got.Details != "p.12-14" || !got.Datetime.Equal(want) {
		t.Errorf("Confirm() = %+v", got)
	}
	if name, ok := got.Subject.Value(); !ok || name != "Math" {
		t.Errorf("subject = %v", got.Subject)
	}
	if w.State() != wizard.Committed {
		t.Errorf("state = %v", w.State())
	}
}

func TestEmptySubjectIsUnset(t *testing.T) {
	t.Parallel()

	w := wizard.New(tokyo, nil)
	_ = w.ChooseCategory(task.Event)
	f := validForm()
	f.Subject = "  "
	if err := w.SubmitForm(f); err != nil {
		t.Fatalf("SubmitForm() error = %v", err)
	}
	got, err := w.Confirm()
	if err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	if got.Subject.IsSet() {
		t.Errorf("subject = %v, want unset", got.Subject)
	}
}

func TestInvalidFormStaysInForm(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*wizard.Form)
	}{
		{name: "blank details", mutate: func(f *wizard.Form) { f.Details = "" }},
		{name: "bad date", mutate: func(f *wizard.Form) { f.Date = "03/02/2024" }},
		{name: "impossible date", mutate: func(f *wizard.Form) { f.Date = "2024-02-30" }},
		{name: "bad time", mutate: func(f *wizard.Form) { f.Time = "25:00" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := wizard.New(tokyo, nil)
			_ = w.ChooseCategory(task.Exam)
			f := validForm()
			tt.mutate(&f)

			err := w.SubmitForm(f)
			if !apperrors.Is(err, apperrors.CodeValidation) {
				t.Fatalf("SubmitForm() error = %v", err)
			}
			if w.State() != wizard.AwaitingForm {
				t.Errorf("state = %v, want awaiting_form", w.State())
			}
			if err := w.SubmitForm(validForm()); err != nil {
				t.Errorf("retry SubmitForm() error = %v", err)
			}
		})
	}
}

func TestEditPrefills(t *testing.T) {
	t.Parallel()

	orig, err := task.New(task.Belongings, task.SubjectOf("Art"), "brushes", time.Date(2024, time.May, 1, 8, 30, 0, 0, tokyo))
	if err != nil {
		t.Fatal(err)
	}
	w := wizard.New(tokyo, &orig)
	want := wizard.Form{Subject: "Art", Details: "brushes", Date: "2024-05-01", Time: "08:30"}
	if got := w.FormDefaults(); got != want {
		t.Errorf("FormDefaults() = %+v, want %+v", got, want)
	}

	_ = w.ChooseCategory(task.Belongings)
	if err := w.SubmitForm(w.FormDefaults()); err != nil {
		t.Fatalf("SubmitForm() error = %v", err)
	}
	got, err := w.Confirm()
	if err != nil || !got.Equal(orig) {
		t.Errorf("Confirm() = %v, %v; want %v", got, err, orig)
	}
}

func TestTransitions(t *testing.T) {
	t.Parallel()

	w := wizard.New(tokyo, nil)
	if err := w.SubmitForm(validForm()); !errors.Is(err, wizard.ErrInvalidTransition) {
		t.Errorf("SubmitForm() before category error = %v", err)
	}
	if _, err := w.Confirm(); !errors.Is(err, wizard.ErrInvalidTransition) {
		t.Errorf("Confirm() before form error = %v", err)
	}

	_ = w.ChooseCategory(task.Other)
	_ = w.SubmitForm(validForm())
	if err := w.Revise(); err != nil || w.State() != wizard.AwaitingForm {
		t.Fatalf("Revise() = %v, state %v", err, w.State())
	}

	w.Timeout()
	if w.State() != wizard.TimedOut {
		t.Errorf("state = %v, want timed_out", w.State())
	}
	w.Cancel()
	if w.State() != wizard.TimedOut {
		t.Errorf("terminal state changed to %v", w.State())
	}
}

func TestChangeCategoryBeforeForm(t *testing.T) {
	t.Parallel()

	w := wizard.New(tokyo, nil)
	_ = w.ChooseCategory(task.Exam)
	if err := w.ChooseCategory(task.Homework); err != nil {
		t.Fatalf("ChooseCategory() again error = %v", err)
	}
	_ = w.SubmitForm(validForm())
	if err := w.ChooseCategory(task.Event); !errors.Is(err, wizard.ErrInvalidTransition) {
		t.Errorf("ChooseCategory() while confirming error = %v", err)
	}
	got, err := w.Confirm()
	if err != nil || got.Category != task.Homework {
		t.Errorf("Confirm() = %v, %v", got, err)
	}
}
