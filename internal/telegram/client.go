package telegram

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"clipper/internal/config"
	"clipper/internal/logging"
	"clipper/internal/services"
)

// pollGrace is how long a long-poll request may outlive its server-side timeout.
const pollGrace = 30 * time.Second

// NewAPI connects to the Bot API with the configured token and endpoint. Every
// request is bounded by the poll timeout plus pollGrace.
func NewAPI(cfg *config.Config) (*tgbotapi.BotAPI, error) {
	endpoint := strings.TrimSpace(cfg.Telegram.APIEndpoint)
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	timeout := time.Duration(cfg.Telegram.PollTimeout)*time.Second + pollGrace
	api, err := tgbotapi.NewBotAPIWithClient(cfg.Telegram.BotToken, endpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "telegram", "connect",
			"bot api rejected the token or is unreachable", scrubToken(err, cfg.Telegram.BotToken))
	}
	api.Debug = cfg.Telegram.Debug
	return api, nil
}

// UploadAPI sends videos on a dedicated client. Each send runs under the
// caller's context and is cut off after the upload timeout.
type UploadAPI struct {
	base   *tgbotapi.BotAPI
	client *http.Client
}

// NewUploadAPI derives an upload client from a connected api.
func NewUploadAPI(api *tgbotapi.BotAPI, timeout time.Duration) *UploadAPI {
	return &UploadAPI{base: api, client: &http.Client{Timeout: timeout}}
}

// Send issues c without a caller context.
func (u *UploadAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	return u.SendContext(context.Background(), c)
}

// Request issues c without a caller context.
func (u *UploadAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	resp, err := u.bound(context.Background()).Request(c)
	return resp, scrubToken(err, u.base.Token)
}

// SendContext issues c and aborts the HTTP request when ctx ends.
func (u *UploadAPI) SendContext(ctx context.Context, c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg, err := u.bound(ctx).Send(c)
	if err != nil && ctx.Err() != nil {
		return msg, ctx.Err()
	}
	return msg, scrubToken(err, u.base.Token)
}

func (u *UploadAPI) bound(ctx context.Context) *tgbotapi.BotAPI {
	api := *u.base
	api.Client = contextClient{ctx: ctx, client: u.client}
	return &api
}

// contextClient attaches ctx to every request it issues.
type contextClient struct {
	ctx    context.Context
	client *http.Client
}

func (c contextClient) Do(req *http.Request) (*http.Response, error) {
	return c.client.Do(req.WithContext(c.ctx))
}

// scrubToken removes the bot token, which the Bot API embeds in request URLs,
// from transport errors.
func scrubToken(err error, token string) error {
	if err == nil || token == "" || !strings.Contains(err.Error(), token) {
		return err
	}
	return errors.New(logging.RedactLine(err.Error(), token))
}
