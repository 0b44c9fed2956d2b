// Package chattest provides an in-memory chat.Gateway for tests.
package chattest

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/edgard/taskbot/internal/chat"
)

const BotID = "bot"

var ErrSendFailed = errors.New("chattest: send failed")

// Sent is a message recorded by the fake, with its destination.
type Sent struct {
	ChannelID string
	UserID    string
	Message   chat.OutgoingMessage
}

// Gateway records everything sent through it and serves channel history from
// what was sent or seeded. Messages sent through it are stamped with Now.
type Gateway struct {
	mu       sync.Mutex
	nextID   int
	history  map[string][]chat.Message
	sent     []Sent
	failDM   map[string]bool
	failChan map[string]bool
	failSend bool

	// Now stamps sent messages. Defaults to time.Now.
	Now func() time.Time
}

func New() *Gateway {
	return &Gateway{
		history:  make(map[string][]chat.Message),
		failDM:   make(map[string]bool),
		failChan: make(map[string]bool),
	}
}

func (g *Gateway) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

func (g *Gateway) id() string {
	g.nextID++
	return strconv.Itoa(g.nextID)
}

// Seed appends a message to a channel's history as if it had been posted
// earlier. Empty ids are assigned.
func (g *Gateway) Seed(m chat.Message) chat.Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	if m.ID == "" {
		m.ID = g.id()
	}
	g.history[m.ChannelID] = append(g.history[m.ChannelID], m)
	return m
}

// FailDM makes direct messages to userID fail.
func (g *Gateway) FailDM(userID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failDM[userID] = true
}

// FailChannel makes sends to one channel fail.
func (g *Gateway) FailChannel(channelID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failChan[channelID] = true
}

// FailSend makes channel sends fail.
func (g *Gateway) FailSend(fail bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failSend = fail
}

// Sent returns every message sent so far, oldest first.
func (g *Gateway) Sent() []Sent {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.sent)
}

func (g *Gateway) Send(_ context.Context, channelID string, msg chat.OutgoingMessage) (*chat.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failSend || g.failChan[channelID] {
		return nil, ErrSendFailed
	}
	m := chat.Message{
		ID:        g.id(),
		ChannelID: channelID,
		AuthorID:  BotID,
		CreatedAt: g.now(),
		ReplyTo:   msg.ReplyTo,
		Content:   msg.Content,
		Embeds:    slices.Clone(msg.Embeds),
	}
	g.history[channelID] = append(g.history[channelID], m)
	g.sent = append(g.sent, Sent{ChannelID: channelID, Message: msg})
	return &m, nil
}

func (g *Gateway) RecentMessages(_ context.Context, channelID string, limit int) ([]chat.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	msgs := slices.Clone(g.history[channelID])
	slices.Reverse(msgs)
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

func (g *Gateway) DirectMessage(_ context.Context, userID string, msg chat.OutgoingMessage) (*chat.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failDM[userID] {
		return nil, ErrSendFailed
	}
	g.sent = append(g.sent, Sent{UserID: userID, Message: msg})
	return &chat.Message{ID: g.id(), AuthorID: BotID, CreatedAt: g.now(), Embeds: msg.Embeds}, nil
}

func (g *Gateway) BotUserID() string {
	return BotID
}
