// Package wizard holds the state machine behind task creation and editing.
//
//	AwaitingCategory -> AwaitingForm -> Confirming -> Committed
//
// Any live state may move to Cancelled or TimedOut. Invalid form input keeps
// the wizard in AwaitingForm. Nothing is persisted by the wizard itself; the
// caller stores the task returned by Confirm.
package wizard

import (
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/edgard/taskbot/internal/errors"
	"github.com/edgard/taskbot/internal/task"
)

type State int

const (
	AwaitingCategory State = iota
	AwaitingForm
	Confirming
	Committed
	Cancelled
	TimedOut
)

func (s State) String() string {
	switch s {
	case AwaitingCategory:
		return "awaiting_category"
	case AwaitingForm:
		return "awaiting_form"
	case Confirming:
		return "confirming"
	case Committed:
		return "committed"
	case Cancelled:
		return "cancelled"
	case TimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Terminal reports whether the wizard has ended.
func (s State) Terminal() bool {
	return s == Committed || s == Cancelled || s == TimedOut
}

var ErrInvalidTransition = errors.New("invalid wizard transition")

// Form is the raw text of the task modal.
type Form struct {
	Subject string
	Details string
	Date    string
	Time    string
}

type Wizard struct {
	state State
	draft task.PartialTask
	loc   *time.Location
}

// New starts a wizard. A non-nil initial task prefills every field, as when
// editing.
func New(loc *time.Location, initial *task.Task) *Wizard {
	w := &Wizard{state: AwaitingCategory, loc: loc}
	if initial != nil {
		w.draft = initial.AsPartial(loc)
	}
	return w
}

func (w *Wizard) State() State {
	return w.state
}

func (w *Wizard) Draft() task.PartialTask {
	return w.draft
}

func (w *Wizard) transition(from State, to State) error {
	if w.state != from {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, w.state, to)
	}
	w.state = to
	return nil
}

// ChooseCategory records the category and asks for the form. The category
// may still be changed while the form is pending.
func (w *Wizard) ChooseCategory(c task.Category) error {
	if !c.Valid() {
		return apperrors.NewValidationError(fmt.Sprintf("unknown category %d", c), nil)
	}
	if w.state != AwaitingCategory && w.state != AwaitingForm {
		return fmt.Errorf("%w: choose category in %s", ErrInvalidTransition, w.state)
	}
	w.draft.Category = &c
	w.state = AwaitingForm
	return nil
}

// FormDefaults returns the modal prefill for the current draft.
func (w *Wizard) FormDefaults() Form {
	var f Form
	if w.draft.Subject != nil {
		if name, ok := w.draft.Subject.Value(); ok {
			f.Subject = name
		}
	}
	if w.draft.Details != nil {
		f.Details = *w.draft.Details
	}
	if w.draft.Date != nil {
		f.Date = w.draft.Date.String()
	}
	if w.draft.Time != nil {
		f.Time = w.draft.Time.String()
	}
	return f
}

// SubmitForm parses the modal. On invalid input the wizard stays in
// AwaitingForm and the returned validation error explains what to fix.
func (w *Wizard) SubmitForm(f Form) error {
	if w.state != AwaitingForm {
		return fmt.Errorf("%w: submit form in %s", ErrInvalidTransition, w.state)
	}

	subject := task.Unset
	if s := strings.TrimSpace(f.Subject); s != "" {
		subject = task.SubjectOf(s)
	}
	details := strings.TrimSpace(f.Details)
	if details == "" {
		return apperrors.NewValidationError("details must not be empty", nil)
	}
	date, err := task.ParseDate(strings.TrimSpace(f.Date))
	if err != nil {
		return apperrors.NewValidationError("date must look like 2024-01-31", err)
	}
	clock, err := task.ParseClock(strings.TrimSpace(f.Time))
	if err != nil {
		return apperrors.NewValidationError("time must look like 09:30", err)
	}

	draft := w.draft
	draft.Subject = &subject
	draft.Details = &details
	draft.Date = &date
	draft.Time = &clock
	if _, err := draft.Unpartial(w.loc); err != nil {
		return err
	}

	w.draft = draft
	w.state = Confirming
	return nil
}

// Preview returns the task that Confirm would commit.
func (w *Wizard) Preview() (task.Task, error) {
	if w.state != Confirming {
		return task.Task{}, fmt.Errorf("%w: preview in %s", ErrInvalidTransition, w.state)
	}
	return w.draft.Unpartial(w.loc)
}

// Revise goes back from confirmation to the form.
func (w *Wizard) Revise() error {
	return w.transition(Confirming, AwaitingForm)
}

// Confirm ends the wizard with the finished task. A draft that is still
// missing a field cancels the wizard.
func (w *Wizard) Confirm() (task.Task, error) {
	if w.state != Confirming {
		return task.Task{}, fmt.Errorf("%w: confirm in %s", ErrInvalidTransition, w.state)
	}
	t, err := w.draft.Unpartial(w.loc)
	if err != nil {
		if apperrors.Is(err, apperrors.CodeMissingField) {
			w.state = Cancelled
		}
		return task.Task{}, err
	}
	w.state = Committed
	return t, nil
}

func (w *Wizard) Cancel() {
	if !w.state.Terminal() {
		w.state = Cancelled
	}
}

func (w *Wizard) Timeout() {
	if !w.state.Terminal() {
		w.state = TimedOut
	}
}
