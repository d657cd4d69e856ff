package notifications

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"clipper/internal/config"
	"clipper/internal/estimate"
	"clipper/internal/job"
	"clipper/internal/logging"
	"clipper/internal/services"
)

const userAgent = "Clipper-Go/0.1.0"

// Event identifies an operator alert.
type Event string

const (
	EventJobFailed     Event = "job_failed"
	EventJobCompleted  Event = "job_completed"
	EventDaemonStarted Event = "daemon_started"
	EventDaemonStopped Event = "daemon_stopped"
	EventError         Event = "error"
	EventTest          Event = "test"
)

// Payload carries the values an event message is rendered from.
type Payload map[string]string

// Service defines the alert surface exposed to the daemon and workflow.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
	JobFinished(ctx context.Context, snap job.Snapshot) error
	TestNotification(ctx context.Context) error
}

// NewService builds an ntfy-backed service when a topic is configured and a
// noop implementation otherwise.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:       topic,
		client:         &http.Client{Timeout: timeout},
		jobFailures:    cfg.Notifications.JobFailures,
		jobCompletions: cfg.Notifications.JobCompletions,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint       string
	client         *http.Client
	jobFailures    bool
	jobCompletions bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !n.enabled(event) {
		return nil
	}
	msg, ok := render(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

// JobFinished alerts on a terminal job. Rejections and user cancels are
// ordinary outcomes and never alert.
func (n *ntfyService) JobFinished(ctx context.Context, snap job.Snapshot) error {
	event, ok := jobEvent(snap)
	if !ok {
		return nil
	}
	return n.Publish(ctx, event, jobPayload(snap))
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, message{
		title:    "Clipper - Test",
		body:     "🧪 Notification system test",
		tags:     []string{"clipper", "test"},
		priority: "low",
	})
}

func (n *ntfyService) enabled(event Event) bool {
	switch event {
	case EventJobFailed:
		return n.jobFailures
	case EventJobCompleted:
		return n.jobCompletions
	default:
		return true
	}
}

func jobEvent(snap job.Snapshot) (Event, bool) {
	switch snap.State {
	case job.StateFailed:
		return EventJobFailed, true
	case job.StateCompleted:
		return EventJobCompleted, true
	case job.StateCancelled:
		if snap.Reason == job.ReasonShutdown {
			return EventJobFailed, true
		}
	}
	return "", false
}

func jobPayload(snap job.Snapshot) Payload {
	payload := Payload{
		"jobID":     snap.ID,
		"requester": fmt.Sprintf("%d", snap.RequesterID),
		"url":       logging.RedactURL(snap.SourceURL),
		"preset":    snap.Preset.Name,
		"reason":    string(snap.Reason),
	}
	if snap.OutputBytes != nil {
		payload["size"] = estimate.FormatMB(*snap.OutputBytes)
	}
	if !snap.CreatedAt.IsZero() && !snap.UpdatedAt.IsZero() {
		payload["duration"] = snap.UpdatedAt.Sub(snap.CreatedAt).Round(time.Second).String()
	}
	return payload
}

func render(event Event, p Payload) (message, bool) {
	switch event {
	case EventJobFailed:
		body := fmt.Sprintf("❌ Job %s failed: %s\nURL: %s\nRequester: %s", p["jobID"], p["reason"], p["url"], p["requester"])
		return message{
			title:    "Clipper - Job Failed",
			body:     body,
			tags:     []string{"clipper", "job", "failed"},
			priority: "high",
		}, true
	case EventJobCompleted:
		body := fmt.Sprintf("✅ Job %s delivered (%s)", p["jobID"], p["preset"])
		if size := p["size"]; size != "" {
			body += "\nSize: " + size
		}
		if duration := p["duration"]; duration != "" {
			body += "\nTook: " + duration
		}
		return message{
			title: "Clipper - Job Complete",
			body:  body,
			tags:  []string{"clipper", "job", "completed"},
		}, true
	case EventDaemonStarted:
		return message{
			title: "Clipper - Started",
			body:  fmt.Sprintf("🚀 Bot started (store: %s)", valueOr(p["store"], "sqlite")),
			tags:  []string{"clipper", "daemon", "started"},
		}, true
	case EventDaemonStopped:
		return message{
			title: "Clipper - Stopped",
			body:  fmt.Sprintf("🛑 Bot stopped with %s active job(s)", valueOr(p["active"], "0")),
			tags:  []string{"clipper", "daemon", "stopped"},
		}, true
	case EventError:
		var b strings.Builder
		b.WriteString("❌ Error")
		if label := strings.TrimSpace(p["context"]); label != "" {
			b.WriteString(" with ")
			b.WriteString(label)
		}
		b.WriteString(": ")
		b.WriteString(valueOr(strings.TrimSpace(p["error"]), "unknown"))
		return message{
			title:    "Clipper - Error",
			body:     b.String(),
			tags:     []string{"clipper", "error", "alert"},
			priority: "high",
		}, true
	default:
		return message{}, false
	}
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "notify", "build ntfy request", "check notifications.ntfy_topic", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "notify", "send ntfy notification", "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return services.Wrap(services.ErrTransient, "notify", "send ntfy notification",
			fmt.Sprintf("ntfy returned %d", resp.StatusCode), errors.New(strings.TrimSpace(string(body))))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error   { return nil }
func (noopService) JobFinished(context.Context, job.Snapshot) error { return nil }
func (noopService) TestNotification(context.Context) error          { return nil }
