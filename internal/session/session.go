// Package session routes component and modal interactions to the short-lived
// conversation that created them.
//
// A session owns a UUID. Every component it renders carries a custom id of the
// form "<session id>:<action>", and Dispatch delivers matching interactions
// to the goroutine waiting in Next. Each wait has its own deadline; when it
// passes the session ends and later interactions are reported as expired.
package session

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	apperrors "github.com/edgard/taskbot/internal/errors"
)

// Timeouts used by the interactive surface.
const (
	InteractiveTimeout = 30 * time.Minute
	AnnounceTimeout    = 7 * 24 * time.Hour
)

// Kind tells which kind of interaction an Event carries.
type Kind int

const (
	Component Kind = iota
	Modal
)

func (k Kind) String() string {
	if k == Modal {
		return "modal"
	}
	return "component"
}

// Event is an interaction addressed to a session.
type Event struct {
	Kind     Kind
	CustomID string
	// Action is the part of the custom id after the session id.
	Action string
	UserID string
	// Values holds the selected options of a select menu.
	Values []string
	// Fields holds modal text inputs by custom id.
	Fields      map[string]string
	Interaction *discordgo.Interaction
}

// Split separates a custom id into session id and action. ok is false for
// ids that do not belong to a session.
func Split(customID string) (id, action string, ok bool) {
	id, action, found := strings.Cut(customID, ":")
	if !found {
		return "", "", false
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", "", false
	}
	return id, action, true
}

type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	clock    clockwork.Clock
	logger   *slog.Logger
}

func NewManager(clock clockwork.Clock, logger *slog.Logger) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{
		sessions: make(map[string]*Session),
		clock:    clock,
		logger:   logger.With("component", "session"),
	}
}

// Open starts a session. Only userID may drive it; an empty userID accepts
// anyone.
func (m *Manager) Open(userID string, timeout time.Duration) *Session {
	s := &Session{
		ID:      uuid.NewString(),
		userID:  userID,
		timeout: timeout,
		events:  make(chan Event),
		done:    make(chan struct{}),
		m:       m,
	}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	m.logger.Debug("Session opened", "session_id", s.ID, "user_id", userID, "timeout", timeout)
	return s
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Dispatch hands ev to its session and reports whether a live session took
// it. It blocks until the session receives the event, the session ends, or
// ctx is done.
func (m *Manager) Dispatch(ctx context.Context, ev Event) bool {
	id, action, ok := Split(ev.CustomID)
	if !ok {
		return false
	}
	ev.Action = action

	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return false
	}
	if s.userID != "" && ev.UserID != s.userID {
		m.logger.DebugContext(ctx, "Ignoring interaction from another user", "session_id", id, "user_id", ev.UserID)
		return false
	}

	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	case <-ctx.Done():
		return false
	}
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

type Session struct {
	ID      string
	userID  string
	timeout time.Duration
	events  chan Event
	done    chan struct{}
	once    sync.Once
	m       *Manager
}

// CustomID returns the component custom id for action.
func (s *Session) CustomID(action string) string {
	return s.ID + ":" + action
}

// Next waits for the next interaction. When the timeout passes first the
// session is closed and a NoInteraction error is returned.
func (s *Session) Next(ctx context.Context) (Event, error) {
	timer := s.m.clock.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case ev := <-s.events:
		return ev, nil
	case <-timer.Chan():
		s.Close()
		return Event{}, apperrors.NewNoInteractionError("session timed out", nil)
	case <-s.done:
		return Event{}, apperrors.NewNoInteractionError("session closed", nil)
	case <-ctx.Done():
		s.Close()
		return Event{}, apperrors.NewNoInteractionError("session cancelled", ctx.Err())
	}
}

// Close ends the session. It is safe to call more than once.
func (s *Session) Close() {
	s.once.Do(func() {
		close(s.done)
		s.m.remove(s.ID)
		s.m.logger.Debug("Session closed", "session_id", s.ID)
	})
}
