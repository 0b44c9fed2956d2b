package handlers_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/jonboulle/clockwork"

	"github.com/edgard/taskbot/internal/bot/handlers"
	"github.com/edgard/taskbot/internal/chat"
	"github.com/edgard/taskbot/internal/chat/chattest"
	"github.com/edgard/taskbot/internal/reminder"
	"github.com/edgard/taskbot/internal/session"
	"github.com/edgard/taskbot/internal/store"
	"github.com/edgard/taskbot/internal/task"
)

var tokyo = time.FixedZone("JST", 9*60*60)

type memPersister struct {
	mu   sync.Mutex
	data []byte
}

func (p *memPersister) Load(context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.data == nil {
		return nil, store.ErrNotFound
	}
	return p.data, nil
}

func (p *memPersister) Save(_ context.Context, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data = data
	return nil
}

var errRespond = errors.New("respond failed")

type fakeSession struct {
	mu        sync.Mutex
	responses []*discordgo.InteractionResponse
	followups []*discordgo.WebhookParams
	sent      []*discordgo.MessageSend
	// failRespond records responses but reports them as failed.
	failRespond bool
}

func (f *fakeSession) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, resp)
	if f.failRespond {
		return errRespond
	}
	return nil
}

func (f *fakeSession) InteractionResponseEdit(*discordgo.Interaction, *discordgo.WebhookEdit, ...discordgo.RequestOption) (*discordgo.Message, error) {
	return &discordgo.Message{}, nil
}

func (f *fakeSession) FollowupMessageCreate(_ *discordgo.Interaction, _ bool, data *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.followups = append(f.followups, data)
	return &discordgo.Message{ID: "followup"}, nil
}

func (f *fakeSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, data)
	return &discordgo.Message{ID: "panel-1", ChannelID: channelID}, nil
}

// waitResponse waits for the n-th interaction response (1-based).
func (f *fakeSession) waitResponse(t *testing.T, n int) *discordgo.InteractionResponse {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		if len(f.responses) >= n {
			resp := f.responses[n-1]
			f.mu.Unlock()
			return resp
		}
		f.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for response %d", n)
	return nil
}

// waitFollowup waits for the n-th followup message (1-based).
func (f *fakeSession) waitFollowup(t *testing.T, n int) *discordgo.WebhookParams {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		if len(f.followups) >= n {
			params := f.followups[n-1]
			f.mu.Unlock()
			return params
		}
		f.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for followup %d", n)
	return nil
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type env struct {
	logs   *syncBuffer
	deps   handlers.HandlerDeps
	router *handlers.Router
	fs     *fakeSession
	gw     *chattest.Gateway
	clock  *clockwork.FakeClock
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	logs := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(logs, nil))

	st, err := store.Open(ctx, &memPersister{}, logger)
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	clock := clockwork.NewFakeClockAt(time.Date(2024, time.March, 1, 10, 0, 0, 0, tokyo))
	gw := chattest.New()
	gw.Now = clock.Now

	deps := handlers.HandlerDeps{
		Logger:   logger,
		Store:    st,
		Reminder: reminder.New(st, gw, tokyo, logger, nil),
		Gateway:  gw,
		Sessions: session.NewManager(clock, logger),
		Clock:    clock,
		Location: tokyo,
	}
	return &env{
		logs:   logs,
		deps:   deps,
		router: handlers.NewRouter(deps, handlers.RegisterAllCommands(deps)),
		fs:     &fakeSession{},
		gw:     gw,
		clock:  clock,
	}
}

func member(perms int64) *discordgo.Member {
	return &discordgo.Member{User: &discordgo.User{ID: "u1", Username: "alice"}, Permissions: perms}
}

func command(name string, perms int64, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		ID:        "cmd",
		Type:      discordgo.InteractionApplicationCommand,
		GuildID:   "g1",
		ChannelID: "c1",
		Member:    member(perms),
		Data:      discordgo.ApplicationCommandInteractionData{Name: name, Options: opts},
	}}
}

func component(customID string, values ...string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		ID:        "component",
		Type:      discordgo.InteractionMessageComponent,
		GuildID:   "g1",
		ChannelID: "c1",
		Member:    member(0),
		Message:   &discordgo.Message{ID: "m1"},
		Data:      discordgo.MessageComponentInteractionData{CustomID: customID, Values: values},
	}}
}

func modal(customID string, fields map[string]string) *discordgo.InteractionCreate {
	var rows []discordgo.MessageComponent
	for id, value := range fields {
		rows = append(rows, &discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			&discordgo.TextInput{CustomID: id, Value: value},
		}})
	}
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		ID:        "modal",
		Type:      discordgo.InteractionModalSubmit,
		GuildID:   "g1",
		ChannelID: "c1",
		Member:    member(0),
		Data:      discordgo.ModalSubmitInteractionData{CustomID: customID, Components: rows},
	}}
}

func content(resp *discordgo.InteractionResponse) string {
	if resp.Data == nil {
		return ""
	}
	return resp.Data.Content
}

// sessionPrefix extracts "<session id>:" from the first component of a response.
func sessionPrefix(t *testing.T, resp *discordgo.InteractionResponse) string {
	t.Helper()
	if resp.Data == nil {
		t.Fatalf("response has no data: %+v", resp)
	}
	return componentPrefix(t, resp.Data.Components)
}

func componentPrefix(t *testing.T, components []discordgo.MessageComponent) string {
	t.Helper()
	if len(components) == 0 {
		t.Fatal("no components")
	}
	row, ok := components[0].(discordgo.ActionsRow)
	if !ok || len(row.Components) == 0 {
		t.Fatalf("unexpected first component %T", components[0])
	}
	var customID string
	switch c := row.Components[0].(type) {
	case discordgo.SelectMenu:
		customID = c.CustomID
	case discordgo.Button:
		customID = c.CustomID
	default:
		t.Fatalf("unexpected component %T", c)
	}
	id, _, ok := session.Split(customID)
	if !ok {
		t.Fatalf("custom id %q is not a session id", customID)
	}
	return id + ":"
}

func TestAdminCommandRequiresPermission(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	opt := &discordgo.ApplicationCommandInteractionDataOption{Name: "channel", Type: discordgo.ApplicationCommandOptionChannel, Value: "c9"}

	e.router.Handle(context.Background(), e.fs, command("set_ping_channel", 0, opt))
	if got := content(e.fs.waitResponse(t, 1)); !strings.Contains(got, "Manage Server") {
		t.Errorf("response = %q", got)
	}
	if _, ok := e.deps.Store.PingChannel(); ok {
		t.Errorf("ping channel set without permission")
	}

	e.router.Handle(context.Background(), e.fs, command("set_ping_channel", discordgo.PermissionManageServer, opt))
	e.fs.waitResponse(t, 2)
	if id, ok := e.deps.Store.PingChannel(); !ok || id != "c9" {
		t.Errorf("PingChannel() = %q, %v", id, ok)
	}
}

func TestSetLogChannelDefaultsToCurrent(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.router.Handle(context.Background(), e.fs, command("set_log_channel", discordgo.PermissionAdministrator))
	e.fs.waitResponse(t, 1)
	if id, ok := e.deps.Store.LogChannel(); !ok || id != "c1" {
		t.Errorf("LogChannel() = %q, %v", id, ok)
	}
	// The change itself is logged to the new log channel.
	if sent := e.gw.Sent(); len(sent) != 1 || sent[0].ChannelID != "c1" {
		t.Errorf("log messages = %+v", sent)
	}
}

func TestStopPing(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	date := func(v string) *discordgo.ApplicationCommandInteractionDataOption {
		return &discordgo.ApplicationCommandInteractionDataOption{Name: "date", Type: discordgo.ApplicationCommandOptionString, Value: v}
	}

	e.router.Handle(context.Background(), e.fs, command("stop_ping", discordgo.PermissionManageServer, date("31/03/2024")))
	if got := content(e.fs.waitResponse(t, 1)); !strings.Contains(got, "2024-01-31") {
		t.Errorf("invalid date response = %q", got)
	}

	e.router.Handle(context.Background(), e.fs, command("stop_ping", discordgo.PermissionManageServer, date("2024-03-10")))
	e.fs.waitResponse(t, 2)
	want := time.Date(2024, time.March, 10, 0, 0, 0, 0, tokyo)
	if got := e.deps.Store.StopPingUntil(); !got.Equal(want) {
		t.Errorf("StopPingUntil() = %v, want %v", got, want)
	}

	e.router.Handle(context.Background(), e.fs, command("resume_ping", discordgo.PermissionManageServer))
	e.fs.waitResponse(t, 3)
	if got := e.deps.Store.StopPingUntil(); got.After(e.deps.Clock.Now()) {
		t.Errorf("StopPingUntil() = %v after resume", got)
	}
}

func TestWarnCommandsAreDMOnly(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.router.Handle(context.Background(), e.fs, command("enable_warn", 0))
	if got := content(e.fs.waitResponse(t, 1)); !strings.Contains(got, "direct messages") {
		t.Errorf("guild response = %q", got)
	}

	dm := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		ID:   "dm",
		Type: discordgo.InteractionApplicationCommand,
		User: &discordgo.User{ID: "u7"},
		Data: discordgo.ApplicationCommandInteractionData{Name: "enable_warn"},
	}}
	e.router.Handle(context.Background(), e.fs, dm)
	e.fs.waitResponse(t, 2)
	if users := e.deps.Store.WarnUsers(); len(users) != 1 || users[0] != "u7" {
		t.Errorf("WarnUsers() = %v", users)
	}

	dm.Data = discordgo.ApplicationCommandInteractionData{Name: "disable_warn"}
	e.router.Handle(context.Background(), e.fs, dm)
	e.fs.waitResponse(t, 3)
	if users := e.deps.Store.WarnUsers(); len(users) != 0 {
		t.Errorf("WarnUsers() = %v after disable", users)
	}
}

func TestAddTaskRequiresPingRole(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.router.Handle(context.Background(), e.fs, command("add_task", 0))
	if got := content(e.fs.waitResponse(t, 1)); !strings.Contains(got, "ping role") {
		t.Errorf("response = %q", got)
	}
	if e.deps.Sessions.Len() != 0 {
		t.Errorf("a session was opened")
	}
}

func TestAddTaskWizard(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := newEnv(t)
	if err := e.deps.Store.SetPingRole(ctx, "r1"); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.router.Handle(ctx, e.fs, command("add_task", 0))
	}()

	prefix := sessionPrefix(t, e.fs.waitResponse(t, 1))

	e.router.Handle(ctx, e.fs, component(prefix+"category", "Homework"))
	if resp := e.fs.waitResponse(t, 2); resp.Type != discordgo.InteractionResponseModal {
		t.Fatalf("response type = %v, want modal", resp.Type)
	}

	// An impossible date keeps the wizard on the form.
	e.router.Handle(ctx, e.fs, modal(prefix+"form", map[string]string{
		"subject": "Math", "details": "p.12", "date": "2024-02-30", "time": "09:00",
	}))
	if resp := e.fs.waitResponse(t, 3); resp.Type != discordgo.InteractionResponseUpdateMessage {
		t.Fatalf("response type = %v, want message update", resp.Type)
	}

	e.router.Handle(ctx, e.fs, modal(prefix+"form", map[string]string{
		"subject": "Math", "details": "p.1", "date": "2024-03-02", "time": "09:00",
	}))
	e.fs.waitResponse(t, 4)

	// Going back from the confirmation reopens the form.
	e.router.Handle(ctx, e.fs, component(prefix+"open_form"))
	if resp := e.fs.waitResponse(t, 5); resp.Type != discordgo.InteractionResponseModal {
		t.Fatalf("response type = %v, want modal", resp.Type)
	}
	e.router.Handle(ctx, e.fs, modal(prefix+"form", map[string]string{
		"subject": "Math", "details": "p.12", "date": "2024-03-02", "time": "09:00",
	}))
	e.fs.waitResponse(t, 6)

	e.router.Handle(ctx, e.fs, component(prefix+"confirm"))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("handler did not finish")
	}

	tasks := e.deps.Store.Tasks()
	if len(tasks) != 1 {
		t.Fatalf("Tasks() = %v", tasks)
	}
	if tasks[0].Details != "p.12" || !tasks[0].Datetime.Equal(time.Date(2024, time.March, 2, 9, 0, 0, 0, tokyo)) {
		t.Errorf("task = %+v", tasks[0])
	}
	if e.deps.Sessions.Len() != 0 {
		t.Errorf("Sessions.Len() = %d after wizard", e.deps.Sessions.Len())
	}
}

// addTaskWithReminder posts today's reminder, then runs /add_task for a task
// due tomorrow up to the confirmation. It returns the channel closed when the
// handler finishes.
func addTaskWithReminder(t *testing.T, e *env) <-chan struct{} {
	t.Helper()
	ctx := context.Background()
	if err := e.deps.Store.SetPingChannel(ctx, "ping"); err != nil {
		t.Fatal(err)
	}
	if err := e.deps.Store.SetPingRole(ctx, "r1"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.deps.Reminder.Ping(ctx, e.clock.Now()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.router.Handle(ctx, e.fs, command("add_task", 0))
	}()

	prefix := sessionPrefix(t, e.fs.waitResponse(t, 1))
	e.router.Handle(ctx, e.fs, component(prefix+"category", "Homework"))
	e.fs.waitResponse(t, 2)
	e.router.Handle(ctx, e.fs, modal(prefix+"form", map[string]string{
		"subject": "Math", "details": "p.12", "date": "2024-03-02", "time": "09:00",
	}))
	e.fs.waitResponse(t, 3)
	e.router.Handle(ctx, e.fs, component(prefix+"confirm"))
	e.fs.waitResponse(t, 4)
	return done
}

func reminderThread(t *testing.T, e *env) []chat.Message {
	t.Helper()
	msgs, err := e.gw.RecentMessages(context.Background(), "ping", 10)
	if err != nil {
		t.Fatalf("RecentMessages() error = %v", err)
	}
	return msgs
}

func TestTaskChangeUpdatesReminderWithoutAnswer(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := newEnv(t)
	done := addTaskWithReminder(t, e)

	// The quiet update-reply is posted before the announce question.
	e.fs.waitFollowup(t, 1)
	msgs := reminderThread(t, e)
	if len(msgs) != 2 || msgs[0].ReplyTo != msgs[1].ID {
		t.Fatalf("ping channel = %+v", msgs)
	}
	sent := e.gw.Sent()
	if update := sent[len(sent)-1].Message; !update.SuppressMentions {
		t.Errorf("update-reply notifies the role before the answer")
	}
	if c, err := e.deps.Reminder.Stale(ctx, e.clock.Now()); err != nil || c != nil {
		t.Errorf("Stale() after task change = %v, %v", c, err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := e.clock.BlockUntilContext(waitCtx, 1); err != nil {
		t.Fatalf("announce prompt is not waiting: %v", err)
	}
	e.clock.Advance(session.AnnounceTimeout + time.Minute)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("handler did not finish after the prompt timed out")
	}
	if got := len(reminderThread(t, e)); got != 2 {
		t.Errorf("ping channel has %d messages after timeout, want 2", got)
	}
	if e.deps.Sessions.Len() != 0 {
		t.Errorf("Sessions.Len() = %d after timeout", e.deps.Sessions.Len())
	}
}

func TestAnnounceTaskChange(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := newEnv(t)
	done := addTaskWithReminder(t, e)

	prompt := e.fs.waitFollowup(t, 1)
	prefix := componentPrefix(t, prompt.Components)
	e.router.Handle(ctx, e.fs, component(prefix+"announce"))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("handler did not finish")
	}
	if got := content(e.fs.waitResponse(t, 5)); !strings.Contains(got, "was announced") {
		t.Errorf("response = %q", got)
	}

	msgs := reminderThread(t, e)
	if len(msgs) != 3 {
		t.Fatalf("ping channel = %+v", msgs)
	}
	announcement, updateReply := msgs[0], msgs[1]
	if announcement.ReplyTo != updateReply.ID {
		t.Errorf("announcement threads under %q, want %q", announcement.ReplyTo, updateReply.ID)
	}
	if !strings.HasPrefix(announcement.Content, "<@&r1>") {
		t.Errorf("announcement content = %q", announcement.Content)
	}
	if len(announcement.Embeds) != 1 || announcement.Embeds[0].Title != "Task added" {
		t.Errorf("announcement embeds = %+v", announcement.Embeds)
	}
}

func TestDuplicateTaskFailureIsLogged(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := newEnv(t)
	if err := e.deps.Store.SetPingRole(ctx, "r1"); err != nil {
		t.Fatal(err)
	}
	existing, err := task.New(task.Homework, task.SubjectOf("Math"), "p.12", time.Date(2024, time.March, 2, 9, 0, 0, 0, tokyo))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.deps.Store.Insert(ctx, existing); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.router.Handle(ctx, e.fs, command("add_task", 0))
	}()
	prefix := sessionPrefix(t, e.fs.waitResponse(t, 1))
	e.router.Handle(ctx, e.fs, component(prefix+"category", "Homework"))
	e.fs.waitResponse(t, 2)
	e.router.Handle(ctx, e.fs, modal(prefix+"form", map[string]string{
		"subject": "Math", "details": "p.12", "date": "2024-03-02", "time": "09:00",
	}))
	e.fs.waitResponse(t, 3)

	e.fs.mu.Lock()
	e.fs.failRespond = true
	e.fs.mu.Unlock()
	e.router.Handle(ctx, e.fs, component(prefix+"confirm"))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("handler did not finish")
	}
	if got := content(e.fs.waitResponse(t, 4)); !strings.Contains(got, "already exists") {
		t.Errorf("response = %q", got)
	}
	if got := len(e.deps.Store.Tasks()); got != 1 {
		t.Errorf("Tasks() has %d tasks, want 1", got)
	}
	if logs := e.logs.String(); !strings.Contains(logs, "Failed to report duplicate task") {
		t.Errorf("undelivered response was not logged:\n%s", logs)
	}
}

func TestExpiredSession(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.router.Handle(context.Background(), e.fs, component("0b6c1e9e-4f3a-4b8e-9a52-6a1f0f7e2d11:confirm"))
	if got := content(e.fs.waitResponse(t, 1)); !strings.Contains(got, "expired") {
		t.Errorf("response = %q", got)
	}
}

func TestPanel(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := newEnv(t)
	e.router.Handle(ctx, e.fs, command("deploy_panel", discordgo.PermissionManageServer))
	e.fs.waitResponse(t, 1)

	ref, ok := e.deps.Store.PanelMessage()
	if !ok || ref.MessageID != "panel-1" || ref.ChannelID != "c1" {
		t.Fatalf("PanelMessage() = %+v, %v", ref, ok)
	}

	// A button on an old panel is rejected.
	e.router.Handle(ctx, e.fs, component("panel:tasks"))
	if got := content(e.fs.waitResponse(t, 2)); !strings.Contains(got, "no longer active") {
		t.Errorf("stale panel response = %q", got)
	}
}
