// Package chat defines the chat gateway consumed by the reminder, warning and
// backup engines, together with the platform-neutral message and embed types
// they render.
package chat

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/edgard/taskbot/internal/task"
)

// Embed colors.
const (
	ColorRed       = 0xE74C3C
	ColorDarkGreen = 0x1F8B4C
	ColorDarkRed   = 0x992D22
	ColorDarkBlue  = 0x206694
	ColorBlue      = 0x3498DB
)

// Gateway is the subset of the chat platform the engines depend on.
type Gateway interface {
	// Send posts a message to a channel.
	Send(ctx context.Context, channelID string, msg OutgoingMessage) (*Message, error)
	// RecentMessages returns up to limit recent messages of a channel, newest first.
	RecentMessages(ctx context.Context, channelID string, limit int) ([]Message, error)
	// DirectMessage sends a private message to a user.
	DirectMessage(ctx context.Context, userID string, msg OutgoingMessage) (*Message, error)
	// BotUserID is the identity the bot posts as.
	BotUserID() string
}

// Message is a message read from the platform.
type Message struct {
	ID        string
	ChannelID string
	AuthorID  string
	CreatedAt time.Time
	// ReplyTo is the id of the message this one replies to, empty for
	// original posts.
	ReplyTo string
	Content string
	Embeds  []Embed
}

// IsReply reports whether the message is threaded as a reply.
func (m Message) IsReply() bool {
	return m.ReplyTo != ""
}

// OutgoingMessage is a message to be sent.
type OutgoingMessage struct {
	Content string
	Embeds  []Embed
	// ReplyTo threads the message as a reply to the given message id.
	ReplyTo string
	// SuppressMentions renders mentions without notifying anyone.
	SuppressMentions bool
	Files            []File
}

// File is an attachment.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Embed is rich message content. Two embeds with equal title, description,
// color and fields show the same content.
type Embed struct {
	Title       string
	Description string
	Color       int
	Fields      []Field
	Timestamp   time.Time
	Author      *Author
}

type Field struct {
	Name   string
	Value  string
	Inline bool
}

type Author struct {
	Name    string
	IconURL string
}

// Equal compares the content of two embeds.
func (e Embed) Equal(o Embed) bool {
	return e.Title == o.Title &&
		e.Description == o.Description &&
		e.Color == o.Color &&
		slices.Equal(e.Fields, o.Fields)
}

// TaskField renders a task as an embed field: the heading as name and the
// due time as absolute and relative platform timestamps.
func TaskField(t task.Task) Field {
	unix := t.Datetime.Unix()
	return Field{
		Name:  t.Heading(),
		Value: fmt.Sprintf("<t:%d:F>(<t:%d:R>)", unix, unix),
	}
}

// TaskFields renders every task with TaskField.
func TaskFields(tasks []task.Task) []Field {
	fields := make([]Field, 0, len(tasks))
	for _, t := range tasks {
		fields = append(fields, TaskField(t))
	}
	return fields
}

func RoleMention(roleID string) string {
	return "<@&" + roleID + ">"
}

func ChannelMention(channelID string) string {
	return "<#" + channelID + ">"
}

func UserMention(userID string) string {
	return "<@" + userID + ">"
}

// Timestamp renders t with a platform timestamp style such as "F", "D" or "R".
func Timestamp(t time.Time, style string) string {
	return fmt.Sprintf("<t:%d:%s>", t.Unix(), style)
}
