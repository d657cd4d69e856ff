package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"clipper/internal/estimate"
	"clipper/internal/job"
	"clipper/internal/logging"
	"clipper/internal/probe"
	"clipper/internal/services"
)

// finalizeTimeout bounds the terminal notification, history write and alert
// when the job context is already cancelled.
const finalizeTimeout = 10 * time.Second

func probeReason(err error) job.Reason {
	var probeErr *probe.Error
	if errors.As(err, &probeErr) {
		switch probeErr.Kind {
		case probe.KindUnsupported:
			return job.ReasonProbeUnsupported
		case probe.KindTimeout:
			return job.ReasonProbeTimeout
		}
	}
	if errors.Is(err, services.ErrTimeout) {
		return job.ReasonProbeTimeout
	}
	return job.ReasonProbeUnreachable
}

// terminate moves the job into its terminal state.
func (m *Manager) terminate(entry *activeJob, logger *slog.Logger, out *outcome) {
	if out == nil {
		out = failed(job.ReasonInternal, errors.New("pipeline returned no outcome"))
	}
	snap, err := entry.update(func(j *job.Job) error {
		return j.Finish(out.state, out.reason, m.now())
	})
	if err != nil {
		logger.Error("terminal transition rejected",
			logging.String(logging.FieldState, string(snap.State)),
			logging.String("target", string(out.state)),
			logging.Error(err),
		)
		return
	}
	m.deps.Observer.StateEntered(out.state)

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "job_"+string(out.state)),
		logging.String(logging.FieldState, string(out.state)),
		logging.String("reason", string(out.reason)),
	}
	switch out.state {
	case job.StateFailed:
		attrs = append(attrs,
			logging.String("error_kind", services.Kind(out.err)),
			logging.Error(out.err),
			logging.Alert("job_failed"),
		)
		logger.Error("job failed", logging.Args(attrs...)...)
	case job.StateCompleted:
		logger.Info("job completed", logging.Args(attrs...)...)
	default:
		if out.err != nil {
			attrs = append(attrs, logging.Error(out.err))
		}
		logger.Info("job ended", logging.Args(attrs...)...)
	}
}

// finalize runs on every worker exit, including panics. Temporary paths are
// removed and the slot is released before the terminal status is published.
func (m *Manager) finalize(ctx context.Context, entry *activeJob, logger *slog.Logger, started time.Time) {
	if r := recover(); r != nil {
		logger.Error("job worker panicked",
			logging.String(logging.FieldEventType, "job_panic"),
			logging.Any("panic", r),
			logging.String("stack", string(debug.Stack())),
			logging.Alert("job_panic"),
		)
		if !entry.snapshot().State.IsTerminal() {
			m.terminate(entry, logger, failed(job.ReasonInternal, fmt.Errorf("panic: %v", r)))
		}
	}
	if !entry.snapshot().State.IsTerminal() {
		m.terminate(entry, logger, failed(job.ReasonInternal, errors.New("worker exited without terminal state")))
	}
	entry.cancel(nil)

	if err := entry.job.Temp.Cleanup(); err != nil {
		logging.WarnWithContext(logger, "job cleanup incomplete", "job_cleanup_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove leftover files under the work directory"),
			logging.String(logging.FieldImpact, "disk space is not reclaimed until the next startup sweep"),
		)
	}

	final := entry.snapshot()
	remaining := m.release(entry, final)
	m.deps.Observer.ActiveJobs(remaining)
	m.deps.Observer.JobFinished(final)
	logger.Debug("job finalized",
		logging.String(logging.FieldState, string(final.State)),
		logging.Duration("elapsed", m.now().Sub(started)),
		logging.Int("active_jobs", remaining),
	)

	outCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	event := Event{
		Kind:         EventTransition,
		To:           final.State,
		CeilingBytes: m.limits.CeilingBytes,
		Suggestions:  m.suggestions(final),
	}
	m.notify(outCtx, final, event)

	if m.deps.Recorder != nil {
		if err := m.deps.Recorder.RecordJob(outCtx, final); err != nil {
			logging.WarnWithContext(logger, "job history write failed", "job_history_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check store access"),
				logging.String(logging.FieldImpact, "job missing from history"),
			)
		}
	}
	if m.deps.Alerter != nil {
		if err := m.deps.Alerter.JobFinished(outCtx, final); err != nil {
			logger.Debug("operator alert failed", logging.Error(err))
		}
	}
}

// suggestions lists cheaper presets when size was the problem.
func (m *Manager) suggestions(snap job.Snapshot) []estimate.Preset {
	if m.deps.Presets == nil {
		return nil
	}
	switch snap.Reason {
	case job.ReasonEstimateTooLarge, job.ReasonSourceTooLargeNoEstimate, job.ReasonSourceTooLarge, job.ReasonOutputTooLarge:
		return m.deps.Presets.Cheaper(snap.Preset)
	default:
		return nil
	}
}
