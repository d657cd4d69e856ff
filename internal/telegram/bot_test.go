package telegram_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"clipper/internal/estimate"
	"clipper/internal/job"
	"clipper/internal/telegram"
	"clipper/internal/testsupport"
	"clipper/internal/workflow"
)

type stubWorkflow struct {
	mu          sync.Mutex
	submissions []workflow.Submission
	submitErr   error
	confirms    []string
	confirmErr  error
	cancelErr   error
	retries     []string
	active      *job.Snapshot
}

func (s *stubWorkflow) Submit(_ context.Context, sub workflow.Submission) (job.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submissions = append(s.submissions, sub)
	if s.submitErr != nil {
		return job.Snapshot{}, s.submitErr
	}
	return job.Snapshot{ID: "01HNEW", RequesterID: sub.RequesterID, ChatID: sub.ChatID, State: job.StateCreated}, nil
}

func (s *stubWorkflow) Confirm(_ int64, jobID string, accept bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirms = append(s.confirms, jobID+"="+map[bool]string{true: "yes", false: "no"}[accept])
	return s.confirmErr
}

func (s *stubWorkflow) Cancel(int64) (job.Snapshot, error) {
	if s.cancelErr != nil {
		return job.Snapshot{}, s.cancelErr
	}
	return job.Snapshot{ID: "01HOLD"}, nil
}

func (s *stubWorkflow) Retry(_ context.Context, _, _ int64, jobID string) (job.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retries = append(s.retries, jobID)
	if jobID != "01HOLD" {
		return job.Snapshot{}, workflow.ErrUnknownJob
	}
	return job.Snapshot{ID: "01HRETRY"}, nil
}

func (s *stubWorkflow) Active(int64) (job.Snapshot, bool) {
	if s.active == nil {
		return job.Snapshot{}, false
	}
	return *s.active, true
}

type stubSettings struct {
	allowed map[int64]bool
	current estimate.Preset
	setErr  error
	set     []string
}

func (s *stubSettings) Authorize(_ context.Context, userID int64) bool { return s.allowed[userID] }

func (s *stubSettings) CurrentPreset(context.Context, int64) estimate.Preset { return s.current }

func (s *stubSettings) SetPreset(_ context.Context, _ int64, name string) (estimate.Preset, error) {
	if s.setErr != nil {
		return estimate.Preset{}, s.setErr
	}
	s.set = append(s.set, name)
	for _, p := range presets {
		if p.Name == name {
			s.current = p
			return p, nil
		}
	}
	return estimate.Preset{}, errors.New("unknown preset")
}

func (s *stubSettings) Presets() []estimate.Preset { return presets }

type stubActions struct {
	mu      sync.Mutex
	actions []string
}

func (s *stubActions) LogAction(_ context.Context, _ int64, action, detail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, action+":"+detail)
	return nil
}

type botFixture struct {
	api      *fakeAPI
	flow     *stubWorkflow
	settings *stubSettings
	actions  *stubActions
	bot      *telegram.Bot
}

func newBotFixture(t *testing.T) *botFixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	f := &botFixture{
		api:      &fakeAPI{},
		flow:     &stubWorkflow{},
		settings: &stubSettings{allowed: map[int64]bool{7: true}, current: presets[1]},
		actions:  &stubActions{},
	}
	f.bot = telegram.NewBot(cfg, f.api, f.flow, f.settings, f.actions, nil)
	return f
}

func textUpdate(userID int64, text string) tgbotapi.Update {
	msg := &tgbotapi.Message{
		MessageID: 10,
		From:      &tgbotapi.User{ID: userID},
		Chat:      &tgbotapi.Chat{ID: userID * 10},
		Text:      text,
	}
	if strings.HasPrefix(text, "/") {
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}}
	}
	return tgbotapi.Update{Message: msg}
}

func callbackUpdate(userID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb-1",
		From: &tgbotapi.User{ID: userID},
		Data: data,
		Message: &tgbotapi.Message{
			MessageID: 55,
			Chat:      &tgbotapi.Chat{ID: userID * 10},
		},
	}}
}

func TestUnauthorizedUserIsRefusedWithoutSubmitting(t *testing.T) {
	f := newBotFixture(t)
	f.bot.HandleUpdate(context.Background(), textUpdate(99, "https://youtu.be/abc"))

	if got := f.api.lastText(t); got != "❌ You are not authorized to use this bot." {
		t.Fatalf("unexpected reply %q", got)
	}
	if len(f.flow.submissions) != 0 {
		t.Fatal("unauthorized user must not reach the workflow")
	}
}

func TestURLMessageSubmitsJob(t *testing.T) {
	f := newBotFixture(t)
	f.bot.HandleUpdate(context.Background(), textUpdate(7, "  https://youtu.be/abc  "))

	if len(f.flow.submissions) != 1 {
		t.Fatalf("expected one submission, got %d", len(f.flow.submissions))
	}
	sub := f.flow.submissions[0]
	if sub.RequesterID != 7 || sub.ChatID != 70 || sub.URL != "https://youtu.be/abc" {
		t.Fatalf("unexpected submission %+v", sub)
	}
	if len(f.api.Sent()) != 0 {
		t.Fatal("accepted submissions are reported by the status notifier, not the bot")
	}
	if len(f.actions.actions) != 1 || f.actions.actions[0] != "submit:01HNEW" {
		t.Fatalf("unexpected action log %v", f.actions.actions)
	}
}

func TestSubmitErrorsAreExplained(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{workflow.ErrActiveJob, "already have a video in progress"},
		{workflow.ErrNotRunning, "restarting"},
	}
	for _, tc := range cases {
		f := newBotFixture(t)
		f.flow.submitErr = tc.err
		f.bot.HandleUpdate(context.Background(), textUpdate(7, "https://youtu.be/abc"))
		if got := f.api.lastText(t); !strings.Contains(got, tc.want) {
			t.Fatalf("error %v: reply %q missing %q", tc.err, got, tc.want)
		}
	}
}

func TestNonURLTextIsRejected(t *testing.T) {
	f := newBotFixture(t)
	f.bot.HandleUpdate(context.Background(), textUpdate(7, "hello there"))
	if got := f.api.lastText(t); !strings.Contains(got, "Invalid URL") {
		t.Fatalf("unexpected reply %q", got)
	}
	if len(f.flow.submissions) != 0 {
		t.Fatal("plain text must not be submitted")
	}
}

func TestCommands(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	f.bot.HandleUpdate(ctx, textUpdate(7, "/start"))
	start, ok := f.api.Sent()[0].(tgbotapi.MessageConfig)
	if !ok || !strings.Contains(start.Text, "Video Download Bot") || start.ReplyMarkup == nil {
		t.Fatalf("unexpected /start reply %#v", f.api.Sent()[0])
	}

	f.bot.HandleUpdate(ctx, textUpdate(7, "/help"))
	if got := f.api.lastText(t); !strings.Contains(got, "File Size Limit: 50.0 MB") {
		t.Fatalf("help should show the upload limit, got %q", got)
	}

	f.bot.HandleUpdate(ctx, textUpdate(7, "/status"))
	if got := f.api.lastText(t); got != "No video in progress. Send me a URL to start." {
		t.Fatalf("unexpected /status reply %q", got)
	}
	f.flow.active = &job.Snapshot{State: job.StateEncoding, Progress: 42, Preset: presets[1]}
	f.bot.HandleUpdate(ctx, textUpdate(7, "/status"))
	if got := f.api.lastText(t); !strings.Contains(got, "Encoding") || !strings.Contains(got, "42%") {
		t.Fatalf("unexpected /status reply %q", got)
	}

	f.bot.HandleUpdate(ctx, textUpdate(7, "/cancel"))
	if got := f.api.lastText(t); !strings.Contains(got, "Cancelling") {
		t.Fatalf("unexpected /cancel reply %q", got)
	}
	f.flow.cancelErr = workflow.ErrUnknownJob
	f.bot.HandleUpdate(ctx, textUpdate(7, "/cancel"))
	if got := f.api.lastText(t); got != "There is nothing to cancel." {
		t.Fatalf("unexpected /cancel reply %q", got)
	}

	f.bot.HandleUpdate(ctx, textUpdate(7, "/bogus"))
	if got := f.api.lastText(t); !strings.Contains(got, "Unknown command") {
		t.Fatalf("unexpected reply %q", got)
	}
}

func TestConfirmAndDeclineCallbacks(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	f.bot.HandleUpdate(ctx, callbackUpdate(7, "confirm:01HJOB"))
	f.bot.HandleUpdate(ctx, callbackUpdate(7, "decline:01HJOB"))
	if strings.Join(f.flow.confirms, ",") != "01HJOB=yes,01HJOB=no" {
		t.Fatalf("unexpected confirmations %v", f.flow.confirms)
	}

	f.flow.confirmErr = workflow.ErrNotAwaitingConfirmation
	f.bot.HandleUpdate(ctx, callbackUpdate(7, "confirm:01HJOB"))
	reqs := f.api.Requests()
	last, ok := reqs[len(reqs)-1].(tgbotapi.CallbackConfig)
	if !ok || last.Text != "This request is no longer active." {
		t.Fatalf("stale confirmation should be answered, got %#v", reqs[len(reqs)-1])
	}
}

func TestUnauthorizedCallbackIsAnsweredWithAlert(t *testing.T) {
	f := newBotFixture(t)
	f.bot.HandleUpdate(context.Background(), callbackUpdate(99, "confirm:01HJOB"))
	if len(f.flow.confirms) != 0 {
		t.Fatal("unauthorized callback reached the workflow")
	}
	reqs := f.api.Requests()
	answer, ok := reqs[0].(tgbotapi.CallbackConfig)
	if !ok || !answer.ShowAlert || answer.Text != "❌ Unauthorized" {
		t.Fatalf("unexpected answer %#v", reqs[0])
	}
}

func TestRetryCallback(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	f.bot.HandleUpdate(ctx, callbackUpdate(7, "retry:01HOLD"))
	f.bot.HandleUpdate(ctx, callbackUpdate(7, "retry:01HGONE"))
	if strings.Join(f.flow.retries, ",") != "01HOLD,01HGONE" {
		t.Fatalf("unexpected retries %v", f.flow.retries)
	}
	reqs := f.api.Requests()
	last := reqs[len(reqs)-1].(tgbotapi.CallbackConfig)
	if last.Text != "This request is no longer active." {
		t.Fatalf("unknown job should be reported stale, got %q", last.Text)
	}
	if len(f.actions.actions) != 1 || f.actions.actions[0] != "retry:01HOLD" {
		t.Fatalf("unexpected action log %v", f.actions.actions)
	}
}

func TestPresetSelection(t *testing.T) {
	f := newBotFixture(t)
	f.bot.HandleUpdate(context.Background(), callbackUpdate(7, "preset:0"))

	if len(f.settings.set) != 1 || f.settings.set[0] != presets[0].Name {
		t.Fatalf("expected preset %q saved, got %v", presets[0].Name, f.settings.set)
	}
	var edit tgbotapi.EditMessageTextConfig
	for _, req := range f.api.Requests() {
		if e, ok := req.(tgbotapi.EditMessageTextConfig); ok {
			edit = e
		}
	}
	if edit.MessageID != 55 || !strings.Contains(edit.Text, "Current preset: Very Fast 480p30") {
		t.Fatalf("settings message not refreshed: %#v", edit)
	}
	if data := callbackData(edit.ReplyMarkup); len(data) != 3 || data[0] != "preset:0" || data[2] != "menu:back" {
		t.Fatalf("unexpected settings keyboard %v", data)
	}
	if label := edit.ReplyMarkup.InlineKeyboard[0][0].Text; label != "• Very Fast 480p30" {
		t.Fatalf("current preset should be marked, got %q", label)
	}

	f.bot.HandleUpdate(context.Background(), callbackUpdate(7, "preset:9"))
	if len(f.settings.set) != 1 {
		t.Fatal("out of range preset index must be ignored")
	}
}

func TestMenuNavigation(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	for target, want := range map[string]string{
		"menu:download": "Send me a video URL",
		"menu:help":     "How to Use",
		"menu:back":     "Video Download Bot",
		"settings":      "Settings",
	} {
		f.bot.HandleUpdate(ctx, callbackUpdate(7, target))
		reqs := f.api.Requests()
		var edit *tgbotapi.EditMessageTextConfig
		for i := len(reqs) - 1; i >= 0; i-- {
			if e, ok := reqs[i].(tgbotapi.EditMessageTextConfig); ok {
				edit = &e
				break
			}
		}
		if edit == nil || !strings.Contains(edit.Text, want) {
			t.Fatalf("%s: expected edit containing %q", target, want)
		}
	}
}

func TestRunStopsWithContext(t *testing.T) {
	f := newBotFixture(t)
	f.api.updates = make(chan tgbotapi.Update, 1)
	f.api.updates <- textUpdate(7, "https://youtu.be/abc")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.bot.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		f.flow.mu.Lock()
		n := len(f.flow.submissions)
		f.flow.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("update was not handled")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	f.api.mu.Lock()
	stopped := f.api.stopped
	f.api.mu.Unlock()
	if !stopped {
		t.Fatal("Run should stop receiving updates")
	}
}
