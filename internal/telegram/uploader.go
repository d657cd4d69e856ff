package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"clipper/internal/estimate"
	"clipper/internal/logging"
	"clipper/internal/services"
)

// UploadError reports a file the transport did not accept.
type UploadError struct {
	ChatID int64
	Path   string
	Err    error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload to chat %d: %v", e.ChatID, e.Err)
}

func (e *UploadError) Unwrap() []error {
	return []error{e.Err, services.ErrExternalTool}
}

// Uploader sends finished videos.
type Uploader struct {
	api    Sender
	logger *slog.Logger
}

// NewUploader constructs an uploader.
func NewUploader(api Sender, logger *slog.Logger) *Uploader {
	return &Uploader{api: api, logger: logging.NewComponentLogger(logger, "telegram-upload")}
}

type contextSender interface {
	SendContext(ctx context.Context, c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// SendFile uploads path as a streamable video. With an UploadAPI the request
// is aborted when ctx ends. Other senders cannot be interrupted, so a
// cancelled ctx returns immediately and leaves their call running.
func (u *Uploader) SendFile(ctx context.Context, chatID int64, path, caption string) error {
	info, err := os.Stat(path)
	if err != nil {
		return &UploadError{ChatID: chatID, Path: path, Err: err}
	}
	video := tgbotapi.NewVideo(chatID, tgbotapi.FilePath(path))
	video.Caption = caption
	video.SupportsStreaming = true

	if cs, ok := u.api.(contextSender); ok {
		_, err = cs.SendContext(ctx, video)
	} else {
		err = u.sendDetached(ctx, video)
	}
	if err != nil {
		return &UploadError{ChatID: chatID, Path: path, Err: err}
	}
	logging.WithContext(ctx, u.logger).Debug("video uploaded",
		logging.Int64("chat_id", chatID),
		logging.String("size", estimate.FormatMB(info.Size())),
	)
	return nil
}

func (u *Uploader) sendDetached(ctx context.Context, video tgbotapi.VideoConfig) error {
	done := make(chan error, 1)
	go func() {
		_, err := u.api.Send(video)
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
