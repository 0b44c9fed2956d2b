// Package discord implements chat.Gateway on top of discordgo.
package discord

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/edgard/taskbot/internal/chat"
	"github.com/edgard/taskbot/internal/resilience"
)

// maxHistory is the platform's page size for channel history.
const maxHistory = 100

// Gateway sends and reads messages through a discordgo session. Every REST
// call goes through a circuit breaker.
type Gateway struct {
	s       *discordgo.Session
	breaker *resilience.CircuitBreaker
	logger  *slog.Logger
}

func New(s *discordgo.Session, breaker *resilience.CircuitBreaker, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: "discord", Logger: logger})
	}
	return &Gateway{s: s, breaker: breaker, logger: logger.With("component", "discord_gateway")}
}

func (g *Gateway) Send(ctx context.Context, channelID string, msg chat.OutgoingMessage) (*chat.Message, error) {
	var sent *discordgo.Message
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		sent, err = g.s.ChannelMessageSendComplex(channelID, toMessageSend(msg), discordgo.WithContext(ctx))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("send to channel %s: %w", channelID, err)
	}
	m := FromMessage(sent)
	return &m, nil
}

func (g *Gateway) RecentMessages(ctx context.Context, channelID string, limit int) ([]chat.Message, error) {
	if limit <= 0 || limit > maxHistory {
		limit = maxHistory
	}
	var history []*discordgo.Message
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		history, err = g.s.ChannelMessages(channelID, limit, "", "", "", discordgo.WithContext(ctx))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("read history of channel %s: %w", channelID, err)
	}

	msgs := make([]chat.Message, 0, len(history))
	for _, m := range history {
		msgs = append(msgs, FromMessage(m))
	}
	return msgs, nil
}

func (g *Gateway) DirectMessage(ctx context.Context, userID string, msg chat.OutgoingMessage) (*chat.Message, error) {
	var dm *discordgo.Channel
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		dm, err = g.s.UserChannelCreate(userID, discordgo.WithContext(ctx))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("open direct channel with %s: %w", userID, err)
	}
	return g.Send(ctx, dm.ID, msg)
}

func (g *Gateway) BotUserID() string {
	if g.s.State == nil || g.s.State.User == nil {
		return ""
	}
	return g.s.State.User.ID
}

func toMessageSend(msg chat.OutgoingMessage) *discordgo.MessageSend {
	send := &discordgo.MessageSend{
		Content: msg.Content,
		Embeds:  ToEmbeds(msg.Embeds),
	}
	if msg.ReplyTo != "" {
		send.Reference = &discordgo.MessageReference{MessageID: msg.ReplyTo}
	}
	if msg.SuppressMentions {
		send.AllowedMentions = &discordgo.MessageAllowedMentions{Parse: []discordgo.AllowedMentionType{}}
	}
	for _, f := range msg.Files {
		send.Files = append(send.Files, &discordgo.File{
			Name:        f.Name,
			ContentType: f.ContentType,
			Reader:      bytes.NewReader(f.Data),
		})
	}
	return send
}

// FromMessage converts a platform message.
func FromMessage(m *discordgo.Message) chat.Message {
	msg := chat.Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		CreatedAt: m.Timestamp,
		Content:   m.Content,
	}
	if m.Author != nil {
		msg.AuthorID = m.Author.ID
	}
	if m.MessageReference != nil && m.Type == discordgo.MessageTypeReply {
		msg.ReplyTo = m.MessageReference.MessageID
	}
	for _, e := range m.Embeds {
		msg.Embeds = append(msg.Embeds, FromEmbed(e))
	}
	return msg
}

// ToEmbed converts an embed for sending.
func ToEmbed(e chat.Embed) *discordgo.MessageEmbed {
	out := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: e.Description,
		Color:       e.Color,
	}
	for _, f := range e.Fields {
		out.Fields = append(out.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	if !e.Timestamp.IsZero() {
		out.Timestamp = e.Timestamp.Format(time.RFC3339)
	}
	if e.Author != nil {
		out.Author = &discordgo.MessageEmbedAuthor{Name: e.Author.Name, IconURL: e.Author.IconURL}
	}
	return out
}

func ToEmbeds(embeds []chat.Embed) []*discordgo.MessageEmbed {
	out := make([]*discordgo.MessageEmbed, 0, len(embeds))
	for _, e := range embeds {
		out = append(out, ToEmbed(e))
	}
	return out
}

// FromEmbed converts a received embed.
func FromEmbed(e *discordgo.MessageEmbed) chat.Embed {
	out := chat.Embed{
		Title:       e.Title,
		Description: e.Description,
		Color:       e.Color,
	}
	for _, f := range e.Fields {
		out.Fields = append(out.Fields, chat.Field{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	if ts, err := time.Parse(time.RFC3339, e.Timestamp); err == nil {
		out.Timestamp = ts
	}
	if e.Author != nil {
		out.Author = &chat.Author{Name: e.Author.Name, IconURL: e.Author.IconURL}
	}
	return out
}
