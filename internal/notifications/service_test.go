package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"clipper/internal/config"
	"clipper/internal/estimate"
	"clipper/internal/job"
	"clipper/internal/notifications"
	"clipper/internal/services"
)

type capture struct {
	mu       sync.Mutex
	calls    int
	title    string
	tags     string
	priority string
	body     string
}

func newCaptureServer(t *testing.T, status int) (*httptest.Server, *capture) {
	t.Helper()
	c := &capture{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		c.mu.Lock()
		c.calls++
		c.title = r.Header.Get("Title")
		c.tags = r.Header.Get("Tags")
		c.priority = r.Header.Get("Priority")
		c.body = string(body)
		c.mu.Unlock()
		w.WriteHeader(status)
		_, _ = w.Write([]byte("rate limited"))
	}))
	t.Cleanup(server.Close)
	return server, c
}

func newService(topic string, mutate func(*config.Config)) notifications.Service {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = topic
	cfg.Notifications.RequestTimeout = 5
	if mutate != nil {
		mutate(&cfg)
	}
	return notifications.NewService(&cfg)
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	svc := newService("", nil)
	if err := svc.Publish(context.Background(), notifications.EventError, notifications.Payload{"error": "boom"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
	if err := svc.JobFinished(context.Background(), job.Snapshot{State: job.StateFailed}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:          "daemon started",
			event:         notifications.EventDaemonStarted,
			payload:       notifications.Payload{"store": "redis"},
			expectTitle:   "Clipper - Started",
			expectMessage: "🚀 Bot started (store: redis)",
			expectTags:    "clipper,daemon,started",
		},
		{
			name:          "daemon stopped",
			event:         notifications.EventDaemonStopped,
			payload:       notifications.Payload{"active": "2"},
			expectTitle:   "Clipper - Stopped",
			expectMessage: "🛑 Bot stopped with 2 active job(s)",
			expectTags:    "clipper,daemon,stopped",
		},
		{
			name:  "error",
			event: notifications.EventError,
			payload: notifications.Payload{
				"context": "store",
				"error":   "database is locked",
			},
			expectTitle:    "Clipper - Error",
			expectMessage:  "❌ Error with store: database is locked",
			expectTags:     "clipper,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server, captured := newCaptureServer(t, http.StatusOK)
			svc := newService(server.URL, nil)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestJobFinishedAlertsOnFailureWithRedactedURL(t *testing.T) {
	server, captured := newCaptureServer(t, http.StatusOK)
	svc := newService(server.URL, nil)

	snap := job.Snapshot{
		ID:          "01HFAIL",
		RequesterID: 42,
		SourceURL:   "https://www.youtube.com/watch?v=secret&token=abc",
		Preset:      estimate.Preset{Name: "Very Fast 720p30"},
		State:       job.StateFailed,
		Reason:      job.ReasonEncodeFailed,
	}
	if err := svc.JobFinished(context.Background(), snap); err != nil {
		t.Fatalf("JobFinished: %v", err)
	}
	if captured.title != "Clipper - Job Failed" || captured.priority != "high" {
		t.Fatalf("unexpected headers title=%q priority=%q", captured.title, captured.priority)
	}
	if !strings.Contains(captured.body, "encode_failed") || !strings.Contains(captured.body, "Requester: 42") {
		t.Fatalf("unexpected body %q", captured.body)
	}
	if strings.Contains(captured.body, "token=abc") {
		t.Fatalf("alert leaked the query string: %q", captured.body)
	}
}

func TestJobFinishedRespectsToggles(t *testing.T) {
	server, captured := newCaptureServer(t, http.StatusOK)
	svc := newService(server.URL, nil)
	ctx := context.Background()

	ordinary := []job.Snapshot{
		{State: job.StateCompleted},
		{State: job.StateRejected, Reason: job.ReasonEstimateTooLarge},
		{State: job.StateCancelled, Reason: job.ReasonUserStop},
		{State: job.StateCancelled, Reason: job.ReasonExpired},
	}
	for _, snap := range ordinary {
		if err := svc.JobFinished(ctx, snap); err != nil {
			t.Fatalf("JobFinished(%s): %v", snap.State, err)
		}
	}
	if captured.calls != 0 {
		t.Fatalf("expected no alerts with completions disabled, got %d", captured.calls)
	}

	svc = newService(server.URL, func(c *config.Config) {
		c.Notifications.JobFailures = false
		c.Notifications.JobCompletions = true
	})
	if err := svc.JobFinished(ctx, job.Snapshot{State: job.StateFailed, Reason: job.ReasonTimeout}); err != nil {
		t.Fatalf("JobFinished: %v", err)
	}
	if captured.calls != 0 {
		t.Fatal("failure alerts are disabled")
	}

	size := int64(20 * 1024 * 1024)
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	done := job.Snapshot{
		ID:          "01HDONE",
		State:       job.StateCompleted,
		Preset:      estimate.Preset{Name: "Very Fast 480p30"},
		OutputBytes: &size,
		CreatedAt:   start,
		UpdatedAt:   start.Add(95 * time.Second),
	}
	if err := svc.JobFinished(ctx, done); err != nil {
		t.Fatalf("JobFinished: %v", err)
	}
	want := "✅ Job 01HDONE delivered (Very Fast 480p30)\nSize: 20.0 MB\nTook: 1m35s"
	if captured.body != want {
		t.Fatalf("expected %q, got %q", want, captured.body)
	}
}

func TestNtfyErrorStatusIsReported(t *testing.T) {
	server, _ := newCaptureServer(t, http.StatusTooManyRequests)
	svc := newService(server.URL, nil)
	err := svc.TestNotification(context.Background())
	if err == nil {
		t.Fatal("expected error for 429 response")
	}
	if !errors.Is(err, services.ErrTransient) || !strings.Contains(err.Error(), "429") {
		t.Fatalf("unexpected error %v", err)
	}
}
