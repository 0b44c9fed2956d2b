package handlers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/edgard/taskbot/internal/chat"
	apperrors "github.com/edgard/taskbot/internal/errors"
	"github.com/edgard/taskbot/internal/session"
	"github.com/edgard/taskbot/internal/task"
	"github.com/edgard/taskbot/internal/wizard"
)

// Session actions.
const (
	actionCategory = "category"
	actionOpenForm = "open_form"
	actionForm     = "form"
	actionConfirm  = "confirm"
	actionCancel   = "cancel"
	actionSelect   = "select"
	actionAnnounce = "announce"
	actionSilent   = "silent"
	actionPrev     = "prev"
	actionNext     = "next"
)

// Modal text input ids.
const (
	fieldSubject = "subject"
	fieldDetails = "details"
	fieldDate    = "date"
	fieldTime    = "time"
)

// responder shows a wizard step in answer to an interaction.
type responder func(ctx context.Context, s Session, i *discordgo.Interaction, data *discordgo.InteractionResponseData) error

func categoryMenu(customID string, selected *task.Category) discordgo.SelectMenu {
	options := make([]discordgo.SelectMenuOption, 0, len(task.Categories))
	for _, c := range task.Categories {
		options = append(options, discordgo.SelectMenuOption{
			Label:   c.String(),
			Value:   c.String(),
			Default: selected != nil && *selected == c,
		})
	}
	return discordgo.SelectMenu{
		MenuType:    discordgo.StringSelectMenu,
		CustomID:    customID,
		Placeholder: "Category",
		Options:     options,
	}
}

func taskModal(customID, title string, f wizard.Form) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: customID,
			Title:    title,
			Components: []discordgo.MessageComponent{
				row(discordgo.TextInput{CustomID: fieldSubject, Label: "Subject (optional)", Style: discordgo.TextInputShort, Value: f.Subject, MaxLength: 100}),
				row(discordgo.TextInput{CustomID: fieldDetails, Label: "Details", Style: discordgo.TextInputParagraph, Value: f.Details, Required: true, MaxLength: 200}),
				row(discordgo.TextInput{CustomID: fieldDate, Label: "Date (YYYY-MM-DD)", Style: discordgo.TextInputShort, Value: f.Date, Placeholder: "2024-01-31", Required: true, MinLength: 10, MaxLength: 10}),
				row(discordgo.TextInput{CustomID: fieldTime, Label: "Time (HH:MM)", Style: discordgo.TextInputShort, Value: f.Time, Placeholder: "09:30", Required: true, MinLength: 4, MaxLength: 5}),
			},
		},
	}
}

func formFrom(fields map[string]string) wizard.Form {
	return wizard.Form{
		Subject: fields[fieldSubject],
		Details: fields[fieldDetails],
		Date:    fields[fieldDate],
		Time:    fields[fieldTime],
	}
}

func categoryStep(sess *session.Session, title, note string, w *wizard.Wizard) *discordgo.InteractionResponseData {
	description := "Choose a category."
	if note != "" {
		description = note
	}
	components := []discordgo.MessageComponent{
		row(categoryMenu(sess.CustomID(actionCategory), w.Draft().Category)),
	}
	if w.State() == wizard.AwaitingForm {
		components = append(components, row(
			button("Open form", discordgo.PrimaryButton, sess.CustomID(actionOpenForm)),
			button("Cancel", discordgo.DangerButton, sess.CustomID(actionCancel)),
		))
	} else {
		components = append(components, row(button("Cancel", discordgo.DangerButton, sess.CustomID(actionCancel))))
	}
	return ephemeral("", []chat.Embed{{Title: title, Description: description, Color: chat.ColorBlue}}, components)
}

func confirmStep(sess *session.Session, title string, preview task.Task) *discordgo.InteractionResponseData {
	embed := chat.Embed{
		Title:       title,
		Description: "Save this task?",
		Color:       chat.ColorBlue,
		Fields:      []chat.Field{chat.TaskField(preview)},
	}
	return ephemeral("", []chat.Embed{embed}, []discordgo.MessageComponent{row(
		button("Save", discordgo.SuccessButton, sess.CustomID(actionConfirm)),
		button("Edit", discordgo.SecondaryButton, sess.CustomID(actionOpenForm)),
		button("Cancel", discordgo.DangerButton, sess.CustomID(actionCancel)),
	)})
}

// runTaskWizard drives a wizard session to completion. It returns the
// finished task and the interaction to answer, or ok=false when the user
// cancelled or the session timed out.
func runTaskWizard(ctx context.Context, deps HandlerDeps, log *slog.Logger, s Session, start *discordgo.Interaction, present responder, title string, initial *task.Task) (t task.Task, last *discordgo.Interaction, ok bool) {
	w := wizard.New(deps.Location, initial)
	sess := deps.Sessions.Open(userID(start), session.InteractiveTimeout)
	defer sess.Close()

	if err := present(ctx, s, start, categoryStep(sess, title, "", w)); err != nil {
		log.ErrorContext(ctx, "Failed to start wizard", "error", err)
		return task.Task{}, nil, false
	}

	for {
		ev, err := sess.Next(ctx)
		if err != nil {
			w.Timeout()
			log.InfoContext(ctx, "Wizard ended without input", "state", w.State(), "reason", err)
			endSession(ctx, log, s, start, msgTimedOut)
			return task.Task{}, nil, false
		}

		switch ev.Action {
		case actionCancel:
			w.Cancel()
			log.InfoContext(ctx, "Wizard cancelled", "user_id", ev.UserID)
			if err := update(ctx, s, ev.Interaction, ephemeral(msgCancelled, nil, nil)); err != nil {
				log.ErrorContext(ctx, "Failed to acknowledge cancel", "error", err)
			}
			return task.Task{}, nil, false

		case actionCategory:
			c, err := task.ParseCategory(first(ev.Values))
			if err == nil {
				err = w.ChooseCategory(c)
			}
			if err != nil {
				respondError(ctx, log, s, ev.Interaction, err)
				continue
			}
			if err := s.InteractionRespond(ev.Interaction, taskModal(sess.CustomID(actionForm), title, w.FormDefaults()), discordgo.WithContext(ctx)); err != nil {
				log.ErrorContext(ctx, "Failed to open task form", "error", err)
			}

		case actionOpenForm:
			if w.State() == wizard.Confirming {
				if err := w.Revise(); err != nil {
					respondError(ctx, log, s, ev.Interaction, err)
					continue
				}
			}
			if w.State() != wizard.AwaitingForm {
				respondText(ctx, log, s, ev.Interaction, "Choose a category first.")
				continue
			}
			if err := s.InteractionRespond(ev.Interaction, taskModal(sess.CustomID(actionForm), title, w.FormDefaults()), discordgo.WithContext(ctx)); err != nil {
				log.ErrorContext(ctx, "Failed to open task form", "error", err)
			}

		case actionForm:
			if err := w.SubmitForm(formFrom(ev.Fields)); err != nil {
				if errors.Is(err, wizard.ErrInvalidTransition) {
					respondText(ctx, log, s, ev.Interaction, msgExpired)
					continue
				}
				if err := update(ctx, s, ev.Interaction, categoryStep(sess, title, err.Error(), w)); err != nil {
					log.ErrorContext(ctx, "Failed to show form error", "error", err)
				}
				continue
			}
			preview, err := w.Preview()
			if err != nil {
				respondError(ctx, log, s, ev.Interaction, err)
				continue
			}
			if err := update(ctx, s, ev.Interaction, confirmStep(sess, title, preview)); err != nil {
				log.ErrorContext(ctx, "Failed to show confirmation", "error", err)
			}

		case actionConfirm:
			t, err := w.Confirm()
			if err != nil {
				if apperrors.Is(err, apperrors.CodeMissingField) {
					if err := update(ctx, s, ev.Interaction, ephemeral(msgCancelled, nil, nil)); err != nil {
						log.ErrorContext(ctx, "Failed to acknowledge cancel", "error", err)
					}
					return task.Task{}, nil, false
				}
				respondError(ctx, log, s, ev.Interaction, err)
				continue
			}
			return t, ev.Interaction, true

		default:
			respondText(ctx, log, s, ev.Interaction, msgExpired)
		}
	}
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
