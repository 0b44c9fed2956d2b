package warning_test

import (
	"context"
	"testing"
	"time"

	"github.com/edgard/taskbot/internal/chat/chattest"
	apperrors "github.com/edgard/taskbot/internal/errors"
	"github.com/edgard/taskbot/internal/task"
	"github.com/edgard/taskbot/internal/warning"
)

var tokyo = time.FixedZone("JST", 9*60*60)

type source struct {
	tasks []task.Task
	users []string
}

func (s *source) Tasks() []task.Task  { return s.tasks }
func (s *source) WarnUsers() []string { return s.users }

func mustTask(t *testing.T, c task.Category, at time.Time) task.Task {
	t.Helper()
	tk, err := task.New(c, task.Unset, "report", at)
	if err != nil {
		t.Fatalf("task.New() error = %v", err)
	}
	return tk
}

func TestWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.January, 2, 9, 29, 45, 0, tokyo)
	from, to := warning.Window(now)
	if want := time.Date(2024, time.January, 2, 10, 29, 0, 0, tokyo); !from.Equal(want) {
		t.Errorf("from = %v, want %v", from, want)
	}
	if to.Sub(from) != time.Minute {
		t.Errorf("window length = %v", to.Sub(from))
	}
}

func TestApproaching(t *testing.T) {
	t.Parallel()

	due := time.Date(2024, time.January, 2, 10, 30, 0, 0, tokyo)
	homework := mustTask(t, task.Homework, due)
	exam := mustTask(t, task.Exam, due)

	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{name: "exactly one hour before", now: time.Date(2024, time.January, 2, 9, 30, 0, 0, tokyo), want: 1},
		{name: "late within the minute", now: time.Date(2024, time.January, 2, 9, 30, 59, 0, tokyo), want: 1},
		{name: "one minute early", now: time.Date(2024, time.January, 2, 9, 29, 0, 0, tokyo), want: 0},
		{name: "one minute late", now: time.Date(2024, time.January, 2, 9, 31, 0, 0, tokyo), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := warning.Approaching([]task.Task{homework, exam}, tt.now)
			if len(got) != tt.want {
				t.Fatalf("Approaching() = %v, want %d tasks", got, tt.want)
			}
			for _, tk := range got {
				if tk.Category != task.Homework {
					t.Errorf("non-homework task %v", tk)
				}
			}
		})
	}
}

func TestWarn(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	due := time.Date(2024, time.January, 2, 10, 30, 0, 0, tokyo)
	now := time.Date(2024, time.January, 2, 9, 30, 0, 0, tokyo)

	t.Run("sends to every subscriber", func(t *testing.T) {
		t.Parallel()
		gw := chattest.New()
		e := warning.New(&source{tasks: []task.Task{mustTask(t, task.Homework, due)}, users: []string{"u1", "u2"}}, gw, nil, nil)

		if err := e.Warn(ctx, now); err != nil {
			t.Fatalf("Warn() error = %v", err)
		}
		sent := gw.Sent()
		if len(sent) != 2 || sent[0].UserID != "u1" || sent[1].UserID != "u2" {
			t.Fatalf("sent = %+v", sent)
		}
		if sent[0].Message.Embeds[0].Title != warning.Title {
			t.Errorf("title = %q", sent[0].Message.Embeds[0].Title)
		}
	})

	t.Run("nothing due", func(t *testing.T) {
		t.Parallel()
		gw := chattest.New()
		e := warning.New(&source{tasks: []task.Task{mustTask(t, task.Exam, due)}, users: []string{"u1"}}, gw, nil, nil)

		if err := e.Warn(ctx, now); err != nil {
			t.Fatalf("Warn() error = %v", err)
		}
		if len(gw.Sent()) != 0 {
			t.Errorf("expected no messages")
		}
	})

	t.Run("one failing subscriber", func(t *testing.T) {
		t.Parallel()
		gw := chattest.New()
		gw.FailDM("u1")
		e := warning.New(&source{tasks: []task.Task{mustTask(t, task.Homework, due)}, users: []string{"u1", "u2"}}, gw, nil, nil)

		err := e.Warn(ctx, now)
		if !apperrors.Is(err, apperrors.CodePlatform) {
			t.Fatalf("Warn() error = %v", err)
		}
		sent := gw.Sent()
		if len(sent) != 1 || sent[0].UserID != "u2" {
			t.Errorf("sent = %+v", sent)
		}
	})
}
