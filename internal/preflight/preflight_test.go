package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"clipper/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "missing"))
	if result.Passed {
		t.Fatal("expected failure for missing directory")
	}
	if !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", path)
	if result.Passed || !strings.Contains(result.Detail, "is not a directory") {
		t.Fatalf("expected not-a-directory failure, got %+v", result)
	}
}

func TestRunAllChecksConfiguredDirectories(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	results := RunAll(context.Background(), cfg)
	if len(results) != 3 {
		t.Fatalf("expected three directory checks, got %d", len(results))
	}
	if err := Failed(results); err != nil {
		t.Fatalf("expected all checks to pass: %v", err)
	}

	if err := os.RemoveAll(cfg.Paths.LogDir); err != nil {
		t.Fatal(err)
	}
	err := Failed(RunAll(context.Background(), cfg))
	if err == nil || !strings.Contains(err.Error(), "Log directory") {
		t.Fatalf("expected log directory failure, got %v", err)
	}
}

func TestRunAllIncludesRedisForRedisBackend(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Store.Backend = "redis"
	cfg.Store.RedisAddr = "127.0.0.1:1"

	results := RunAll(context.Background(), cfg)
	last := results[len(results)-1]
	if last.Name != "Redis" || last.Passed {
		t.Fatalf("expected failing redis check, got %+v", last)
	}

	cfg.Store.RedisAddr = ""
	if result := CheckRedis(context.Background(), cfg); result.Passed || result.Detail != "missing redis_addr" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestCheckTelegram_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/getMe") {
			t.Errorf("unexpected method path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Clipper","username":"clipper_bot"}}`))
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Telegram.APIEndpoint = srv.URL + "/bot%s/%s"
	result := CheckTelegram(cfg)
	if !result.Passed || result.Detail != "@clipper_bot" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestCheckTelegram_BadToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":401,"description":"Unauthorized"}`))
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Telegram.APIEndpoint = srv.URL + "/bot%s/%s"
	result := CheckTelegram(cfg)
	if result.Passed || !strings.Contains(result.Detail, "unauthorized") {
		t.Fatalf("expected unauthorized failure, got %+v", result)
	}
}

func TestCheckTelegram_MissingToken(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Telegram.BotToken = ""
	if result := CheckTelegram(cfg); result.Passed || result.Detail != "bot token missing" {
		t.Fatalf("unexpected result %+v", result)
	}
}
