package handlers

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/edgard/taskbot/internal/chat"
	"github.com/edgard/taskbot/internal/session"
	"github.com/edgard/taskbot/internal/store"
	"github.com/edgard/taskbot/internal/task"
)

const (
	panelTasksID = "panel:tasks"
	panelPastID  = "panel:past"
	panelPerPage = 7
)

// NewDeployPanelHandler returns a handler for /deploy_panel.
func NewDeployPanelHandler(deps HandlerDeps) HandlerFunc {
	return deployPanelHandler{deps}.Handle
}

type deployPanelHandler struct {
	deps HandlerDeps
}

func (h deployPanelHandler) Handle(ctx context.Context, s Session, i *discordgo.InteractionCreate) {
	log := h.deps.Logger.With("handler", "deploy_panel", "user_id", userID(i.Interaction))
	channelID := channelOrCurrent(i)

	msg, err := s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "Task panel",
			Description: "Browse upcoming and past tasks.",
			Color:       chat.ColorBlue,
		}},
		Components: []discordgo.MessageComponent{row(
			button("Tasks", discordgo.PrimaryButton, panelTasksID),
			button("Past tasks", discordgo.SecondaryButton, panelPastID),
		)},
	}, discordgo.WithContext(ctx))
	if err != nil {
		log.ErrorContext(ctx, "Failed to send panel", "error", err, "channel_id", channelID)
		respondText(ctx, log, s, i.Interaction, "Failed to post the panel. Check the bot's permissions in that channel.")
		return
	}

	if err := h.deps.Store.SetPanelMessage(ctx, store.PanelRef{MessageID: msg.ID, ChannelID: channelID}); err != nil {
		respondError(ctx, log, s, i.Interaction, err)
		return
	}
	log.InfoContext(ctx, "Panel deployed", "channel_id", channelID, "message_id", msg.ID)
	respondText(ctx, log, s, i.Interaction, "Panel posted in "+chat.ChannelMention(channelID)+".")
}

// panelTasks returns the tasks a panel view lists: tasks due today or later
// in ascending order, or tasks before now in descending order.
func panelTasks(tasks []task.Task, now time.Time, loc *time.Location, past bool) []task.Task {
	var out []task.Task
	if past {
		for _, t := range tasks {
			if t.Datetime.Before(now) {
				out = append(out, t)
			}
		}
		task.SortByDatetime(out)
		slices.Reverse(out)
		return out
	}

	y, m, d := now.In(loc).Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, loc)
	for _, t := range tasks {
		if !t.Datetime.Before(today) {
			out = append(out, t)
		}
	}
	task.SortByDatetime(out)
	return out
}

// page returns the items of page p (zero-based, clamped) and the page count.
// An empty list has one empty page.
func page(tasks []task.Task, p int) ([]task.Task, int, int) {
	pages := (len(tasks) + panelPerPage - 1) / panelPerPage
	if pages == 0 {
		pages = 1
	}
	p = max(0, min(p, pages-1))
	start := p * panelPerPage
	end := min(start+panelPerPage, len(tasks))
	if start > end {
		start = end
	}
	return tasks[start:end], p, pages
}

func panelView(sess *session.Session, title string, tasks []task.Task, p int) *discordgo.InteractionResponseData {
	items, p, pages := page(tasks, p)
	embed := chat.Embed{
		Title:       title,
		Description: fmt.Sprintf("Page %d/%d", p+1, pages),
		Color:       chat.ColorBlue,
		Fields:      chat.TaskFields(items),
	}
	if len(tasks) == 0 {
		embed.Description = "No tasks."
	}
	prev := button("Previous", discordgo.SecondaryButton, sess.CustomID(actionPrev))
	prev.Disabled = p == 0
	next := button("Next", discordgo.SecondaryButton, sess.CustomID(actionNext))
	next.Disabled = p >= pages-1
	return ephemeral("", []chat.Embed{embed}, []discordgo.MessageComponent{row(prev, next)})
}

// NewPanelButtonHandler returns the handler for the panel's buttons.
func NewPanelButtonHandler(deps HandlerDeps) HandlerFunc {
	return panelButtonHandler{deps}.Handle
}

type panelButtonHandler struct {
	deps HandlerDeps
}

func (h panelButtonHandler) Handle(ctx context.Context, s Session, i *discordgo.InteractionCreate) {
	log := h.deps.Logger.With("handler", "panel", "user_id", userID(i.Interaction))

	ref, ok := h.deps.Store.PanelMessage()
	if !ok || i.Message == nil || i.Message.ID != ref.MessageID {
		respondText(ctx, log, s, i.Interaction, "This panel is no longer active.")
		return
	}

	past := i.MessageComponentData().CustomID == panelPastID
	title := "Tasks"
	if past {
		title = "Past tasks"
	}
	tasks := panelTasks(h.deps.Store.Tasks(), h.deps.Clock.Now(), h.deps.Location, past)

	sess := h.deps.Sessions.Open(userID(i.Interaction), session.InteractiveTimeout)
	defer sess.Close()

	current := 0
	if err := reply(ctx, s, i.Interaction, panelView(sess, title, tasks, current)); err != nil {
		log.ErrorContext(ctx, "Failed to show panel view", "error", err)
		return
	}
	logEvent(ctx, h.deps, log, i.Interaction, chat.Embed{
		Title:       "Panel viewed",
		Description: title,
		Color:       chat.ColorDarkBlue,
	})

	for {
		ev, err := sess.Next(ctx)
		if err != nil {
			endSession(ctx, log, s, i.Interaction, msgTimedOut)
			return
		}
		switch ev.Action {
		case actionPrev:
			current--
		case actionNext:
			current++
		default:
			respondText(ctx, log, s, ev.Interaction, msgExpired)
			continue
		}
		_, current, _ = page(tasks, current)
		if err := update(ctx, s, ev.Interaction, panelView(sess, title, tasks, current)); err != nil {
			log.ErrorContext(ctx, "Failed to turn panel page", "error", err)
		}
	}
}
