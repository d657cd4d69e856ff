package telegram

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"clipper/internal/job"
	"clipper/internal/logging"
	"clipper/internal/services"
	"clipper/internal/workflow"
)

// Sender is the subset of *tgbotapi.BotAPI used to deliver messages.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// StatusNotifier keeps one status message per job and edits it on every
// update.
type StatusNotifier struct {
	api    Sender
	logger *slog.Logger

	mu       sync.Mutex
	messages map[string]*statusMessage
}

type statusMessage struct {
	mu        sync.Mutex
	messageID int
	lastText  string
}

// NewStatusNotifier constructs a notifier.
func NewStatusNotifier(api Sender, logger *slog.Logger) *StatusNotifier {
	return &StatusNotifier{
		api:      api,
		logger:   logging.NewComponentLogger(logger, "telegram-status"),
		messages: make(map[string]*statusMessage),
	}
}

// Notify renders snap and sends or edits the job's status message. The
// message is forgotten once the job is terminal.
func (n *StatusNotifier) Notify(ctx context.Context, snap job.Snapshot, event workflow.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	text, markup := RenderStatus(snap, event)

	n.mu.Lock()
	msg, ok := n.messages[snap.ID]
	if !ok {
		msg = &statusMessage{}
		n.messages[snap.ID] = msg
	}
	n.mu.Unlock()
	if snap.State.IsTerminal() {
		defer n.forget(snap.ID)
	}

	msg.mu.Lock()
	defer msg.mu.Unlock()

	if msg.messageID == 0 {
		out := tgbotapi.NewMessage(snap.ChatID, text)
		if markup != nil {
			out.ReplyMarkup = *markup
		}
		sent, err := n.api.Send(out)
		if err != nil {
			return services.Wrap(services.ErrTransient, "notify", "send status", "", err)
		}
		msg.messageID = sent.MessageID
		msg.lastText = text
		return nil
	}

	if text == msg.lastText && markup == nil {
		return nil
	}
	var edit tgbotapi.EditMessageTextConfig
	if markup != nil {
		edit = tgbotapi.NewEditMessageTextAndMarkup(snap.ChatID, msg.messageID, text, *markup)
	} else {
		edit = tgbotapi.NewEditMessageText(snap.ChatID, msg.messageID, text)
	}
	if _, err := n.api.Request(edit); err != nil {
		if isNotModified(err) {
			return nil
		}
		return services.Wrap(services.ErrTransient, "notify", "edit status", "", err)
	}
	msg.lastText = text
	return nil
}

// Tracked reports how many jobs currently own a status message.
func (n *StatusNotifier) Tracked() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

func (n *StatusNotifier) forget(jobID string) {
	n.mu.Lock()
	delete(n.messages, jobID)
	n.mu.Unlock()
}

func isNotModified(err error) bool {
	return err != nil && strings.Contains(err.Error(), "message is not modified")
}
