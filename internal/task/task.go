// Package task defines the task data model: the immutable Task stored by the
// bot, its total ordering, and the PartialTask staging form used while a
// task is being built interactively.
package task

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/edgard/taskbot/internal/errors"
)

var validate = validator.New()

// Category classifies a task. The declaration order is the sort order.
type Category int

const (
	Event Category = iota
	Exam
	Homework
	Belongings
	Other
)

// Categories lists every category in sort order.
var Categories = [...]Category{Event, Exam, Homework, Belongings, Other}

var categoryNames = [...]string{"Event", "Exam", "Homework", "Belongings", "Other"}

func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return categoryNames[c]
}

// Valid reports whether c is one of the declared categories.
func (c Category) Valid() bool {
	return c >= Event && c <= Other
}

// ParseCategory resolves a category by its name, case-insensitively.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if strings.EqualFold(categoryNames[c], strings.TrimSpace(s)) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown category %q", s)
}

func (c Category) MarshalJSON() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid category %d", int(c))
	}
	return json.Marshal(categoryNames[c])
}

func (c *Category) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("category must be a string: %w", err)
	}
	parsed, err := ParseCategory(name)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Subject is an optional free-text label. The zero value is unset.
// Unset serializes as an explicit JSON null and sorts after every set subject.
type Subject struct {
	name string
	set  bool
}

// Unset is the absent subject.
var Unset = Subject{}

// SubjectOf returns a set subject with the given name.
func SubjectOf(name string) Subject {
	return Subject{name: name, set: true}
}

// Value returns the subject name and whether it is set.
func (s Subject) Value() (string, bool) {
	return s.name, s.set
}

func (s Subject) IsSet() bool {
	return s.set
}

func (s Subject) String() string {
	return s.name
}

// Compare orders set subjects by name, all of them before Unset.
func (s Subject) Compare(o Subject) int {
	switch {
	case s.set && o.set:
		return strings.Compare(s.name, o.name)
	case s.set:
		return -1
	case o.set:
		return 1
	default:
		return 0
	}
}

func (s Subject) MarshalJSON() ([]byte, error) {
	if !s.set {
		return []byte("null"), nil
	}
	return json.Marshal(s.name)
}

func (s *Subject) UnmarshalJSON(data []byte) error {
	var name *string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("subject must be a string or null: %w", err)
	}
	if name == nil {
		*s = Unset
		return nil
	}
	*s = SubjectOf(*name)
	return nil
}

// Task is a registered reminder item. Tasks are values: two tasks that
// compare equal are the same task.
type Task struct {
	Category Category  `json:"category" validate:"min=0,max=4"`
	Subject  Subject   `json:"subject"`
	Details  string    `json:"details"  validate:"required"`
	Datetime time.Time `json:"datetime"`
}

// New builds a validated task.
func New(category Category, subject Subject, details string, datetime time.Time) (Task, error) {
	t := Task{
		Category: category,
		Subject:  subject,
		Details:  details,
		Datetime: datetime,
	}
	if err := t.Validate(); err != nil {
		return Task{}, err
	}
	return t, nil
}

// Validate checks the invariants every stored task satisfies.
func (t Task) Validate() error {
	if err := validate.Struct(t); err != nil {
		return apperrors.NewValidationError("invalid task", err)
	}
	if strings.TrimSpace(t.Details) == "" {
		return apperrors.NewValidationError("invalid task", fmt.Errorf("details are blank"))
	}
	if t.Datetime.IsZero() {
		return apperrors.NewValidationError("invalid task", fmt.Errorf("datetime is not set"))
	}
	return nil
}

// Compare orders tasks lexicographically by category, subject, details and datetime.
func (t Task) Compare(o Task) int {
	if t.Category != o.Category {
		if t.Category < o.Category {
			return -1
		}
		return 1
	}
	if c := t.Subject.Compare(o.Subject); c != 0 {
		return c
	}
	if c := strings.Compare(t.Details, o.Details); c != 0 {
		return c
	}
	return t.Datetime.Compare(o.Datetime)
}

func (t Task) Equal(o Task) bool {
	return t.Compare(o) == 0
}

// Heading renders the category, subject and details on one line.
func (t Task) Heading() string {
	var b strings.Builder
	b.WriteString("【")
	b.WriteString(t.Category.String())
	b.WriteString("】")
	if name, ok := t.Subject.Value(); ok {
		b.WriteString(name)
		b.WriteString(" ")
	}
	b.WriteString(t.Details)
	return b.String()
}

// AsPartial returns a partial task holding every field of t, with the
// date and time read in loc.
func (t Task) AsPartial(loc *time.Location) PartialTask {
	local := t.Datetime.In(loc)
	category := t.Category
	subject := t.Subject
	details := t.Details
	date := DateOf(local)
	clock := ClockOf(local)
	return PartialTask{
		Category: &category,
		Subject:  &subject,
		Details:  &details,
		Date:     &date,
		Time:     &clock,
	}
}
