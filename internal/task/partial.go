package task

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/edgard/taskbot/internal/errors"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"
)

// Date is a civil calendar date.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the civil date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Clock is a wall-clock time of day with minute precision.
type Clock struct {
	Hour   int
	Minute int
}

func ClockOf(t time.Time) Clock {
	return Clock{Hour: t.Hour(), Minute: t.Minute()}
}

// ParseClock parses an HH:MM time of day.
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse(clockLayout, strings.TrimSpace(s))
	if err != nil {
		return Clock{}, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	return ClockOf(t), nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// PartialTask is the mutable staging form of a task. Every field is optional.
type PartialTask struct {
	Category *Category
	Subject  *Subject
	Details  *string
	Date     *Date
	Time     *Clock
}

// Unpartial converts p into a task. It fails with a MissingField error naming
// the first absent field, or with a validation error when the date and time
// do not name a valid instant in loc.
func (p PartialTask) Unpartial(loc *time.Location) (Task, error) {
	switch {
	case p.Category == nil:
		return Task{}, apperrors.NewMissingFieldError("category")
	case p.Subject == nil:
		return Task{}, apperrors.NewMissingFieldError("subject")
	case p.Details == nil:
		return Task{}, apperrors.NewMissingFieldError("details")
	case p.Date == nil:
		return Task{}, apperrors.NewMissingFieldError("date")
	case p.Time == nil:
		return Task{}, apperrors.NewMissingFieldError("time")
	}

	d, c := *p.Date, *p.Time
	datetime := time.Date(d.Year, d.Month, d.Day, c.Hour, c.Minute, 0, 0, loc)
	// time.Date normalizes out-of-range and skipped wall-clock values.
	if DateOf(datetime) != d || ClockOf(datetime) != c {
		return Task{}, apperrors.NewValidationError("invalid date and time",
			fmt.Errorf("%s %s does not exist in %s", d, c, loc))
	}

	return New(*p.Category, *p.Subject, *p.Details, datetime)
}
