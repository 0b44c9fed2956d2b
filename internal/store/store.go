// Package store holds the bot's canonical state: the task set and the
// process-wide configuration fields. Every field has its own lock, and every
// mutation is persisted through a Persister before the mutating call returns.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	apperrors "github.com/edgard/taskbot/internal/errors"
	"github.com/edgard/taskbot/internal/task"
)

// ErrNotFound is returned by Persister.Load when nothing has been saved yet.
var ErrNotFound = errors.New("persisted state not found")

// Persister stores the whole state as one blob.
type Persister interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// PanelRef points at a deployed panel message.
type PanelRef struct {
	MessageID string
	ChannelID string
}

// Store is safe for concurrent use. Mutations of different fields never
// block each other; mutations of the same field serialize.
type Store struct {
	persister Persister
	logger    *slog.Logger

	// saveMu serializes saves. The snapshot is taken while holding it, so a
	// stale snapshot can never overwrite a newer one.
	saveMu sync.Mutex

	tasksMu sync.Mutex
	tasks   *task.Set

	pingChannelMu sync.Mutex
	pingChannel   string

	pingRoleMu sync.Mutex
	pingRole   string

	logChannelMu sync.Mutex
	logChannel   string

	stopPingMu    sync.Mutex
	stopPingUntil time.Time

	warnUsersMu sync.Mutex
	warnUsers   map[string]struct{}

	panelMu sync.Mutex
	panel   *PanelRef
}

func newEmpty(p Persister, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{
		persister:     p,
		logger:        logger.With("component", "store"),
		tasks:         task.NewSet(),
		stopPingUntil: farPast,
		warnUsers:     make(map[string]struct{}),
	}
}

// Open loads the persisted state. When nothing has been persisted yet the
// store starts empty and the empty state is saved immediately. Any other
// load or decode failure is returned as a persistence error.
func Open(ctx context.Context, p Persister, logger *slog.Logger) (*Store, error) {
	s := newEmpty(p, logger)

	data, err := p.Load(ctx)
	if errors.Is(err, ErrNotFound) {
		s.logger.InfoContext(ctx, "No persisted state found, starting empty")
		if err := s.persist(ctx); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err != nil {
		return nil, apperrors.NewPersistenceError("failed to load state", err)
	}

	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, apperrors.NewPersistenceError("failed to decode state", err)
	}
	if err := s.restore(st); err != nil {
		return nil, apperrors.NewPersistenceError("invalid persisted state", err)
	}

	s.logger.InfoContext(ctx, "State restored",
		"tasks", s.tasks.Len(),
		"warn_users", len(s.warnUsers),
		"ping_channel", s.pingChannel,
		"log_channel", s.logChannel,
		"panel_deployed", s.panel != nil)
	return s, nil
}

func (s *Store) restore(st state) error {
	for i, t := range st.Tasks {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("task %d: %w", i, err)
		}
		s.tasks.Insert(t)
	}
	s.pingChannel = st.PingChannel.value()
	s.pingRole = st.PingRole.value()
	s.logChannel = st.LogChannel.value()
	if !st.StopPingUntil.IsZero() {
		s.stopPingUntil = st.StopPingUntil
	}
	for _, u := range st.WarnUsers {
		s.warnUsers[string(u)] = struct{}{}
	}
	if st.PanelMessage != nil {
		s.panel = &PanelRef{
			MessageID: string(st.PanelMessage[0]),
			ChannelID: string(st.PanelMessage[1]),
		}
	}
	return nil
}

func (s *Store) snapshot() state {
	st := state{
		Tasks:         s.Tasks(),
		StopPingUntil: s.StopPingUntil(),
	}
	if st.Tasks == nil {
		st.Tasks = []task.Task{}
	}
	if id, ok := s.PingChannel(); ok {
		st.PingChannel = optional(id)
	}
	if id, ok := s.PingRole(); ok {
		st.PingRole = optional(id)
	}
	if id, ok := s.LogChannel(); ok {
		st.LogChannel = optional(id)
	}
	st.WarnUsers = []snowflake{}
	for _, u := range s.WarnUsers() {
		st.WarnUsers = append(st.WarnUsers, snowflake(u))
	}
	if ref, ok := s.PanelMessage(); ok {
		st.PanelMessage = &panelPair{snowflake(ref.MessageID), snowflake(ref.ChannelID)}
	}
	return st
}

// Export returns the persisted form of the current state.
func (s *Store) Export() ([]byte, error) {
	data, err := json.Marshal(s.snapshot())
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}
	return data, nil
}

func (s *Store) persist(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	data, err := s.Export()
	if err != nil {
		return apperrors.NewPersistenceError("failed to save state", err)
	}
	if err := s.persister.Save(ctx, data); err != nil {
		s.logger.ErrorContext(ctx, "Failed to save state", "error", err)
		return apperrors.NewPersistenceError("failed to save state", err)
	}
	s.logger.DebugContext(ctx, "State saved", "bytes", len(data))
	return nil
}

// Tasks returns a copy of every stored task in task order.
func (s *Store) Tasks() []task.Task {
	s.tasksMu.Lock()
	defer s.tasksMu.Unlock()
	return s.tasks.Items()
}

// Insert adds t and saves. It reports false, without saving, when an equal
// task is already stored.
func (s *Store) Insert(ctx context.Context, t task.Task) (bool, error) {
	if err := t.Validate(); err != nil {
		return false, err
	}
	s.tasksMu.Lock()
	inserted := s.tasks.Insert(t)
	s.tasksMu.Unlock()

	if !inserted {
		return false, nil
	}
	return true, s.persist(ctx)
}

// Remove deletes the task equal to t and saves. Removing an absent task is
// a no-op that reports false.
func (s *Store) Remove(ctx context.Context, t task.Task) (bool, error) {
	s.tasksMu.Lock()
	removed := s.tasks.Remove(t)
	s.tasksMu.Unlock()

	if !removed {
		return false, nil
	}
	return true, s.persist(ctx)
}

// Replace swaps old for updated under a single lock, then saves. When old
// is no longer present nothing changes and false is returned.
func (s *Store) Replace(ctx context.Context, old, updated task.Task) (bool, error) {
	if err := updated.Validate(); err != nil {
		return false, err
	}
	s.tasksMu.Lock()
	removed := s.tasks.Remove(old)
	if removed {
		s.tasks.Insert(updated)
	}
	s.tasksMu.Unlock()

	if !removed {
		return false, nil
	}
	return true, s.persist(ctx)
}

func (s *Store) PingChannel() (string, bool) {
	s.pingChannelMu.Lock()
	defer s.pingChannelMu.Unlock()
	return s.pingChannel, s.pingChannel != ""
}

func (s *Store) SetPingChannel(ctx context.Context, channelID string) error {
	s.pingChannelMu.Lock()
	s.pingChannel = channelID
	s.pingChannelMu.Unlock()
	return s.persist(ctx)
}

func (s *Store) PingRole() (string, bool) {
	s.pingRoleMu.Lock()
	defer s.pingRoleMu.Unlock()
	return s.pingRole, s.pingRole != ""
}

func (s *Store) SetPingRole(ctx context.Context, roleID string) error {
	s.pingRoleMu.Lock()
	s.pingRole = roleID
	s.pingRoleMu.Unlock()
	return s.persist(ctx)
}

func (s *Store) LogChannel() (string, bool) {
	s.logChannelMu.Lock()
	defer s.logChannelMu.Unlock()
	return s.logChannel, s.logChannel != ""
}

func (s *Store) SetLogChannel(ctx context.Context, channelID string) error {
	s.logChannelMu.Lock()
	s.logChannel = channelID
	s.logChannelMu.Unlock()
	return s.persist(ctx)
}

// StopPingUntil returns the instant before which daily reminders are muted.
func (s *Store) StopPingUntil() time.Time {
	s.stopPingMu.Lock()
	defer s.stopPingMu.Unlock()
	return s.stopPingUntil
}

func (s *Store) SetStopPingUntil(ctx context.Context, until time.Time) error {
	s.stopPingMu.Lock()
	s.stopPingUntil = until
	s.stopPingMu.Unlock()
	return s.persist(ctx)
}

// WarnUsers returns the subscribed user ids in sorted order.
func (s *Store) WarnUsers() []string {
	s.warnUsersMu.Lock()
	users := make([]string, 0, len(s.warnUsers))
	for u := range s.warnUsers {
		users = append(users, u)
	}
	s.warnUsersMu.Unlock()

	slices.Sort(users)
	return users
}

// AddWarnUser subscribes userID to deadline warnings. It reports false when
// the user was already subscribed.
func (s *Store) AddWarnUser(ctx context.Context, userID string) (bool, error) {
	s.warnUsersMu.Lock()
	_, exists := s.warnUsers[userID]
	s.warnUsers[userID] = struct{}{}
	s.warnUsersMu.Unlock()

	if exists {
		return false, nil
	}
	return true, s.persist(ctx)
}

// RemoveWarnUser unsubscribes userID. It reports false when the user was
// not subscribed.
func (s *Store) RemoveWarnUser(ctx context.Context, userID string) (bool, error) {
	s.warnUsersMu.Lock()
	_, exists := s.warnUsers[userID]
	delete(s.warnUsers, userID)
	s.warnUsersMu.Unlock()

	if !exists {
		return false, nil
	}
	return true, s.persist(ctx)
}

// PanelMessage returns the live panel, if one has been deployed.
func (s *Store) PanelMessage() (PanelRef, bool) {
	s.panelMu.Lock()
	defer s.panelMu.Unlock()
	if s.panel == nil {
		return PanelRef{}, false
	}
	return *s.panel, true
}

// SetPanelMessage records ref as the live panel, replacing any previous one.
func (s *Store) SetPanelMessage(ctx context.Context, ref PanelRef) error {
	s.panelMu.Lock()
	s.panel = &ref
	s.panelMu.Unlock()
	return s.persist(ctx)
}
