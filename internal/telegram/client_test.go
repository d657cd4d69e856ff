package telegram_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"clipper/internal/telegram"
	"clipper/internal/testsupport"
)

const getMeResponse = `{"ok":true,"result":{"id":7,"is_bot":true,"first_name":"Clipper","username":"clipper_bot"}}`

func TestUploadIsAbortedWhenContextEnds(t *testing.T) {
	var inFlight, finished atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/getMe") {
			_, _ = io.WriteString(w, getMeResponse)
			return
		}
		_, _ = io.Copy(io.Discard, r.Body)
		inFlight.Add(1)
		defer inFlight.Add(-1)
		select {
		case <-r.Context().Done():
		case <-release:
			finished.Add(1)
			_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":1}}`)
		}
	}))
	defer srv.Close()
	defer close(release)

	cfg := testsupport.NewConfig(t)
	cfg.Telegram.APIEndpoint = srv.URL + "/bot%s/%s"
	api, err := telegram.NewAPI(cfg)
	if err != nil {
		t.Fatalf("NewAPI: %v", err)
	}
	if api.Self.UserName != "clipper_bot" {
		t.Fatalf("unexpected bot identity %q", api.Self.UserName)
	}

	u := telegram.NewUploader(telegram.NewUploadAPI(api, time.Minute), nil)
	path := filepath.Join(t.TempDir(), "encoded.mp4")
	testsupport.WriteFile(t, path, 4096)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	err = u.SendFile(ctx, 1, path, "")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for inFlight.Load() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := inFlight.Load(); n != 0 {
		t.Fatalf("sendVideo still in flight after the upload timed out: %d", n)
	}
	if finished.Load() != 0 {
		t.Fatal("upload must not complete after the caller gave up")
	}
}

func TestUploadClientTimeoutBoundsRequest(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/getMe") {
			_, _ = io.WriteString(w, getMeResponse)
			return
		}
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	cfg := testsupport.NewConfig(t)
	cfg.Telegram.APIEndpoint = srv.URL + "/bot%s/%s"
	api, err := telegram.NewAPI(cfg)
	if err != nil {
		t.Fatalf("NewAPI: %v", err)
	}

	u := telegram.NewUploader(telegram.NewUploadAPI(api, 100*time.Millisecond), nil)
	path := filepath.Join(t.TempDir(), "encoded.mp4")
	testsupport.WriteFile(t, path, 4096)

	start := time.Now()
	err = u.SendFile(context.Background(), 1, path, "")
	var uploadErr *telegram.UploadError
	if !errors.As(err, &uploadErr) {
		t.Fatalf("expected UploadError, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("upload outlived its client timeout: %v", elapsed)
	}
	if strings.Contains(err.Error(), cfg.Telegram.BotToken) {
		t.Fatalf("upload error leaks the bot token: %v", err)
	}
}

func TestNewAPIErrorOmitsToken(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Telegram.APIEndpoint = "http://127.0.0.1:1/bot%s/%s"

	_, err := telegram.NewAPI(cfg)
	if err == nil {
		t.Fatal("expected connection error")
	}
	if strings.Contains(err.Error(), cfg.Telegram.BotToken) {
		t.Fatalf("error leaks the bot token: %v", err)
	}
	if !strings.Contains(err.Error(), "bot api") {
		t.Fatalf("error lost its context: %v", err)
	}
}
