package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	apperrors "github.com/edgard/taskbot/internal/errors"
	"github.com/edgard/taskbot/internal/session"
)

func TestSplit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		customID   string
		wantAction string
		wantOK     bool
	}{
		{name: "session id", customID: "0b6c1e9e-4f3a-4b8e-9a52-6a1f0f7e2d11:confirm", wantAction: "confirm", wantOK: true},
		{name: "empty action", customID: "0b6c1e9e-4f3a-4b8e-9a52-6a1f0f7e2d11:", wantAction: "", wantOK: true},
		{name: "static id", customID: "panel:tasks", wantOK: false},
		{name: "no separator", customID: "deploy", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, action, ok := session.Split(tt.customID)
			if ok != tt.wantOK || action != tt.wantAction {
				t.Errorf("Split(%q) = %q, %v", tt.customID, action, ok)
			}
		})
	}
}

func TestDispatchDeliversToSession(t *testing.T) {
	t.Parallel()

	m := session.NewManager(nil, nil)
	s := m.Open("u1", time.Minute)
	defer s.Close()

	go func() {
		m.Dispatch(context.Background(), session.Event{Kind: session.Modal, CustomID: s.CustomID("form"), UserID: "u1"})
	}()

	ev, err := s.Next(context.Background())
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if ev.Action != "form" || ev.Kind != session.Modal {
		t.Errorf("event = %+v", ev)
	}
}

func TestDispatchRejects(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := session.NewManager(nil, nil)
	s := m.Open("u1", time.Minute)

	if m.Dispatch(ctx, session.Event{CustomID: s.CustomID("x"), UserID: "u2"}) {
		t.Errorf("another user's interaction was accepted")
	}
	if m.Dispatch(ctx, session.Event{CustomID: "panel:tasks", UserID: "u1"}) {
		t.Errorf("static custom id was accepted")
	}

	s.Close()
	if m.Dispatch(ctx, session.Event{CustomID: s.CustomID("x"), UserID: "u1"}) {
		t.Errorf("closed session accepted an interaction")
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d after close", m.Len())
	}
}

func TestNextTimesOut(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	m := session.NewManager(clock, nil)
	s := m.Open("", session.InteractiveTimeout)

	errc := make(chan error, 1)
	go func() {
		_, err := s.Next(context.Background())
		errc <- err
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("BlockUntilContext() error = %v", err)
	}
	clock.Advance(session.InteractiveTimeout)

	if err := <-errc; !apperrors.Is(err, apperrors.CodeNoInteraction) {
		t.Fatalf("Next() error = %v", err)
	}
	if m.Len() != 0 {
		t.Errorf("timed out session still registered")
	}
}
