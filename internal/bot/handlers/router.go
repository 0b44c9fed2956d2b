package handlers

import (
	"context"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/edgard/taskbot/internal/session"
)

// Router dispatches interactions: slash commands by name, panel buttons by
// their static custom id, and everything else to the owning session.
type Router struct {
	deps     HandlerDeps
	commands map[string]HandlerFunc
	static   map[string]HandlerFunc
	logger   *slog.Logger
}

// NewRouter wraps each registered handler with its middleware, then with
// the shared middleware (outermost first).
func NewRouter(deps HandlerDeps, registered map[string]RegisteredHandler, shared ...Middleware) *Router {
	r := &Router{
		deps:     deps,
		commands: make(map[string]HandlerFunc, len(registered)),
		static:   make(map[string]HandlerFunc),
		logger:   deps.Logger.With("component", "router"),
	}
	for name, h := range registered {
		if h.Handler == nil {
			r.logger.Warn("Skipping nil handler", "command", name)
			continue
		}
		r.commands[name] = applyMiddleware(applyMiddleware(h.Handler, h.Middleware), shared)
		r.logger.Debug("Registered handler", "command", name, "middleware_count", len(h.Middleware))
	}
	panel := applyMiddleware(NewPanelButtonHandler(deps), shared)
	r.static[panelTasksID] = panel
	r.static[panelPastID] = panel
	return r
}

// Attach installs the router on a discordgo session. ctx bounds every
// handler and session started from it.
func (r *Router) Attach(ctx context.Context, s *discordgo.Session) func() {
	return s.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		r.Handle(ctx, s, i)
	})
}

// Handle routes one interaction.
func (r *Router) Handle(ctx context.Context, s Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		name := i.ApplicationCommandData().Name
		h, ok := r.commands[name]
		if !ok {
			r.logger.WarnContext(ctx, "Unknown command", "command", name)
			respondText(ctx, r.logger, s, i.Interaction, msgExpired)
			return
		}
		h(ctx, s, i)

	case discordgo.InteractionMessageComponent:
		data := i.MessageComponentData()
		if h, ok := r.static[data.CustomID]; ok {
			h(ctx, s, i)
			return
		}
		r.dispatch(ctx, s, i, session.Event{
			Kind:        session.Component,
			CustomID:    data.CustomID,
			Values:      data.Values,
			UserID:      userID(i.Interaction),
			Interaction: i.Interaction,
		})

	case discordgo.InteractionModalSubmit:
		data := i.ModalSubmitData()
		r.dispatch(ctx, s, i, session.Event{
			Kind:        session.Modal,
			CustomID:    data.CustomID,
			Fields:      modalFields(data.Components),
			UserID:      userID(i.Interaction),
			Interaction: i.Interaction,
		})
	}
}

func (r *Router) dispatch(ctx context.Context, s Session, i *discordgo.InteractionCreate, ev session.Event) {
	if !r.deps.Sessions.Dispatch(ctx, ev) {
		r.logger.DebugContext(ctx, "Interaction for unknown session", "custom_id", ev.CustomID, "user_id", ev.UserID)
		respondText(ctx, r.logger, s, i.Interaction, msgExpired)
	}
}

// modalFields collects text inputs by custom id.
func modalFields(rows []discordgo.MessageComponent) map[string]string {
	fields := make(map[string]string)
	for _, c := range rows {
		row, ok := c.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			if input, ok := inner.(*discordgo.TextInput); ok {
				fields[input.CustomID] = strings.TrimSpace(input.Value)
			}
		}
	}
	return fields
}
