package workflow

import (
	"context"
	"errors"
	"log/slog"

	"clipper/internal/job"
	"clipper/internal/logging"
)

func (m *Manager) notify(ctx context.Context, snap job.Snapshot, event Event) {
	if m.deps.Notifier == nil {
		return
	}
	if err := m.deps.Notifier.Notify(ctx, snap, event); err != nil {
		logger := logging.WithContext(ctx, m.logger)
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not send status update")
			return
		}
		logging.WarnWithContext(logger, "status update failed", "status_notify_failed",
			logging.String(logging.FieldState, string(snap.State)),
			logging.String("event", string(event.Kind)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check chat transport connectivity"),
			logging.String(logging.FieldImpact, "requester sees a stale status"),
		)
	}
}

// progressHandler returns a line callback that parses subprocess progress,
// logs it in coarse buckets and forwards at most one update per
// ProgressInterval to the Notifier. The percentage never goes backwards.
func (m *Manager) progressHandler(ctx context.Context, entry *activeJob, logger *slog.Logger, phase string, parse func(string) (float64, bool)) func(string) {
	return func(line string) {
		percent, ok := parse(line)
		if !ok {
			return
		}
		now := m.now()

		entry.mu.Lock()
		if entry.sampler.ShouldLog(phase, percent) {
			logger.Info("progress",
				logging.String(logging.FieldEventType, "progress"),
				logging.String("phase", phase),
				logging.Float64("percent", percent),
			)
		}
		j := entry.job
		if percent <= j.Progress {
			entry.mu.Unlock()
			return
		}
		j.Progress = percent
		due := entry.lastProgress.IsZero() || now.Sub(entry.lastProgress) >= m.limits.ProgressInterval
		if !due {
			entry.mu.Unlock()
			return
		}
		entry.lastProgress = now
		snap := j.Snapshot()
		entry.mu.Unlock()

		m.notify(ctx, snap, Event{Kind: EventProgress, From: snap.State, To: snap.State, CeilingBytes: m.limits.CeilingBytes})
	}
}
