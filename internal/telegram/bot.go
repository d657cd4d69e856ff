package telegram

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"clipper/internal/config"
	"clipper/internal/estimate"
	"clipper/internal/job"
	"clipper/internal/logging"
	"clipper/internal/probe"
	"clipper/internal/services"
	"clipper/internal/workflow"
)

// API is the subset of *tgbotapi.BotAPI the bot needs.
type API interface {
	Sender
	GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Workflow is the job pipeline as seen from the chat.
type Workflow interface {
	Submit(ctx context.Context, sub workflow.Submission) (job.Snapshot, error)
	Confirm(requesterID int64, jobID string, accept bool) error
	Cancel(requesterID int64) (job.Snapshot, error)
	Retry(ctx context.Context, requesterID, chatID int64, jobID string) (job.Snapshot, error)
	Active(requesterID int64) (job.Snapshot, bool)
}

// Settings is the whitelist and preset surface.
type Settings interface {
	Authorize(ctx context.Context, userID int64) bool
	CurrentPreset(ctx context.Context, userID int64) estimate.Preset
	SetPreset(ctx context.Context, userID int64, name string) (estimate.Preset, error)
	Presets() []estimate.Preset
}

// ActionLog records user actions for the retention-limited audit log.
type ActionLog interface {
	LogAction(ctx context.Context, userID int64, action, detail string) error
}

// Bot routes updates.
type Bot struct {
	api          API
	flow         Workflow
	settings     Settings
	actions      ActionLog
	ceilingBytes int64
	pollTimeout  int
	logger       *slog.Logger
}

// NewBot constructs a bot. actions may be nil.
func NewBot(cfg *config.Config, api API, flow Workflow, settings Settings, actions ActionLog, logger *slog.Logger) *Bot {
	return &Bot{
		api:          api,
		flow:         flow,
		settings:     settings,
		actions:      actions,
		ceilingBytes: cfg.UploadCeilingBytes(),
		pollTimeout:  cfg.Telegram.PollTimeout,
		logger:       logging.NewComponentLogger(logger, "telegram"),
	}
}

// Run polls updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = b.pollTimeout
	updates := b.api.GetUpdatesChan(cfg)
	defer b.api.StopReceivingUpdates()

	b.logger.Info("polling for updates", logging.Int("poll_timeout", b.pollTimeout))
	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate routes a single update. Each update gets its own correlation id.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	ctx = services.WithRequestID(ctx, uuid.NewString())
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	userID, chatID := msg.From.ID, msg.Chat.ID
	ctx = services.WithRequesterID(ctx, userID)
	logger := logging.WithContext(ctx, b.logger)

	if !b.settings.Authorize(ctx, userID) {
		logger.Info("unauthorized message", logging.String(logging.FieldEventType, "unauthorized"))
		b.reply(ctx, chatID, msgUnauthorized, nil)
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, msg.Command(), userID, chatID)
		return
	}

	text := strings.TrimSpace(msg.Text)
	if !probe.LooksLikeURL(text) {
		b.reply(ctx, chatID, msgNotURL, nil)
		return
	}
	b.submit(ctx, userID, chatID, text)
}

func (b *Bot) handleCommand(ctx context.Context, command string, userID, chatID int64) {
	switch command {
	case "start":
		markup := mainMenuKeyboard()
		b.reply(ctx, chatID, welcomeText(), &markup)
		b.logAction(ctx, userID, "start", "")
	case "help":
		markup := backKeyboard()
		b.reply(ctx, chatID, helpText(b.ceilingBytes, b.settings.CurrentPreset(ctx, userID)), &markup)
	case "settings":
		current := b.settings.CurrentPreset(ctx, userID)
		markup := settingsKeyboard(b.settings.Presets(), current)
		b.reply(ctx, chatID, settingsText(current), &markup)
	case "status":
		if snap, ok := b.flow.Active(userID); ok {
			b.reply(ctx, chatID, activeText(snap), nil)
			return
		}
		b.reply(ctx, chatID, msgNoActiveJob, nil)
	case "cancel":
		snap, err := b.flow.Cancel(userID)
		if err != nil {
			b.reply(ctx, chatID, msgNothingToCancel, nil)
			return
		}
		b.reply(ctx, chatID, msgCancelling, nil)
		b.logAction(ctx, userID, "cancel", snap.ID)
	default:
		b.reply(ctx, chatID, msgUnknownCommand, nil)
	}
}

func (b *Bot) submit(ctx context.Context, userID, chatID int64, url string) {
	snap, err := b.flow.Submit(ctx, workflow.Submission{RequesterID: userID, ChatID: chatID, URL: url})
	b.answerSubmit(ctx, chatID, err)
	if err == nil {
		b.logAction(ctx, userID, "submit", snap.ID)
	}
}

func (b *Bot) answerSubmit(ctx context.Context, chatID int64, err error) {
	switch {
	case err == nil:
	case errors.Is(err, workflow.ErrActiveJob):
		b.reply(ctx, chatID, msgBusy, nil)
	case errors.Is(err, workflow.ErrUnauthorized):
		b.reply(ctx, chatID, msgUnauthorized, nil)
	case errors.Is(err, workflow.ErrNotRunning):
		b.reply(ctx, chatID, msgNotRunning, nil)
	default:
		logging.WithContext(ctx, b.logger).Error("submit failed", logging.Error(err))
		b.reply(ctx, chatID, msgNotRunning, nil)
	}
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq.From == nil || cq.Message == nil || cq.Message.Chat == nil {
		b.answer(ctx, cq.ID, "", false)
		return
	}
	userID, chatID, messageID := cq.From.ID, cq.Message.Chat.ID, cq.Message.MessageID
	ctx = services.WithRequesterID(ctx, userID)

	if !b.settings.Authorize(ctx, userID) {
		b.answer(ctx, cq.ID, msgUnauthorizedShort, true)
		return
	}

	action, arg, _ := strings.Cut(cq.Data, ":")
	switch action {
	case cbConfirm, cbDecline:
		if err := b.flow.Confirm(userID, arg, action == cbConfirm); err != nil {
			b.answer(ctx, cq.ID, msgStale, false)
			return
		}
		b.answer(ctx, cq.ID, "", false)
		b.logAction(ctx, userID, action, arg)
	case cbRetry:
		_, err := b.flow.Retry(ctx, userID, chatID, arg)
		switch {
		case err == nil:
			b.answer(ctx, cq.ID, "🔁 Retrying...", false)
			b.logAction(ctx, userID, "retry", arg)
		case errors.Is(err, workflow.ErrUnknownJob):
			b.answer(ctx, cq.ID, msgStale, false)
		default:
			b.answer(ctx, cq.ID, "", false)
			b.answerSubmit(ctx, chatID, err)
		}
	case cbSettings:
		b.answer(ctx, cq.ID, "", false)
		b.showSettings(ctx, userID, chatID, messageID)
	case cbPreset:
		b.choosePreset(ctx, cq.ID, userID, chatID, messageID, arg)
	case cbMenu:
		b.answer(ctx, cq.ID, "", false)
		b.showMenu(ctx, userID, chatID, messageID, arg)
	default:
		b.answer(ctx, cq.ID, "", false)
	}
}

func (b *Bot) showSettings(ctx context.Context, userID, chatID int64, messageID int) {
	current := b.settings.CurrentPreset(ctx, userID)
	b.edit(ctx, chatID, messageID, settingsText(current), settingsKeyboard(b.settings.Presets(), current))
}

func (b *Bot) choosePreset(ctx context.Context, callbackID string, userID, chatID int64, messageID int, arg string) {
	presets := b.settings.Presets()
	idx, err := strconv.Atoi(arg)
	if err != nil || idx < 0 || idx >= len(presets) {
		b.answer(ctx, callbackID, msgStale, false)
		return
	}
	preset, err := b.settings.SetPreset(ctx, userID, presets[idx].Name)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, b.logger), "preset change failed", "preset_change_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "user keeps the previous preset"),
		)
		b.answer(ctx, callbackID, "❌ Could not save the preset. Please try again.", true)
		return
	}
	b.answer(ctx, callbackID, "✅ Preset: "+preset.Name, false)
	b.logAction(ctx, userID, "preset", preset.Name)
	b.edit(ctx, chatID, messageID, settingsText(preset), settingsKeyboard(presets, preset))
}

func (b *Bot) showMenu(ctx context.Context, userID, chatID int64, messageID int, target string) {
	switch target {
	case "download":
		b.edit(ctx, chatID, messageID, urlPromptText(), backKeyboard())
	case "help":
		b.edit(ctx, chatID, messageID, helpText(b.ceilingBytes, b.settings.CurrentPreset(ctx, userID)), backKeyboard())
	default:
		b.edit(ctx, chatID, messageID, welcomeText(), mainMenuKeyboard())
	}
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string, markup *tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	if markup != nil {
		msg.ReplyMarkup = *markup
	}
	if _, err := b.api.Send(msg); err != nil {
		logging.WithContext(ctx, b.logger).Warn("send message failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "send_failed"),
			logging.String(logging.FieldErrorHint, "check bot api connectivity"),
			logging.String(logging.FieldImpact, "user did not receive a reply"),
		)
	}
}

func (b *Bot) edit(ctx context.Context, chatID int64, messageID int, text string, markup tgbotapi.InlineKeyboardMarkup) {
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, markup)
	if _, err := b.api.Request(edit); err != nil && !isNotModified(err) {
		logging.WithContext(ctx, b.logger).Debug("edit message failed", logging.Error(err))
	}
}

func (b *Bot) answer(ctx context.Context, callbackID, text string, alert bool) {
	cfg := tgbotapi.NewCallback(callbackID, text)
	cfg.ShowAlert = alert
	if _, err := b.api.Request(cfg); err != nil {
		logging.WithContext(ctx, b.logger).Debug("answer callback failed", logging.Error(err))
	}
}

func (b *Bot) logAction(ctx context.Context, userID int64, action, detail string) {
	if b.actions == nil {
		return
	}
	if err := b.actions.LogAction(ctx, userID, action, detail); err != nil {
		logging.WithContext(ctx, b.logger).Debug("action log write failed", logging.Error(err))
	}
}
