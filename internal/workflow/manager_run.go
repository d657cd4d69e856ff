package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"clipper/internal/estimate"
	"clipper/internal/job"
	"clipper/internal/logging"
	"clipper/internal/runner"
	"clipper/internal/services"
	"clipper/internal/staging"
)

// UploadCaption accompanies the delivered video.
const UploadCaption = "✅ Your video is ready!"

// outcome is the terminal state a pipeline step resolved to.
type outcome struct {
	state  job.State
	reason job.Reason
	err    error
}

func failed(reason job.Reason, err error) *outcome {
	return &outcome{state: job.StateFailed, reason: reason, err: err}
}

// cancelled maps the job context's cancellation cause to a reason.
func cancelled(ctx context.Context) *outcome {
	cause := context.Cause(ctx)
	switch {
	case errors.Is(cause, errUserStop):
		return &outcome{state: job.StateCancelled, reason: job.ReasonUserStop, err: cause}
	case errors.Is(cause, errExpired):
		return &outcome{state: job.StateCancelled, reason: job.ReasonExpired}
	}
	return &outcome{state: job.StateCancelled, reason: job.ReasonShutdown, err: cause}
}

func (m *Manager) run(ctx context.Context, entry *activeJob) {
	defer m.wg.Done()
	started := m.now()
	snap := entry.snapshot()
	ctx = services.WithJobID(services.WithRequesterID(ctx, snap.RequesterID), snap.ID)
	logger := logging.WithContext(ctx, m.logger)

	defer m.finalize(ctx, entry, logger, started)

	out := m.pipeline(ctx, entry, logger)
	m.terminate(entry, logger, out)
}

func (m *Manager) pipeline(ctx context.Context, entry *activeJob, logger *slog.Logger) *outcome {
	if err := m.advance(ctx, entry, job.StateProbing); err != nil {
		return failed(job.ReasonInternal, err)
	}
	if out := m.probe(ctx, entry, logger); out != nil {
		return out
	}
	if out := m.decide(ctx, entry, logger); out != nil {
		return out
	}
	dir, source, out := m.fetch(ctx, entry, logger)
	if out != nil {
		return out
	}
	encoded, out := m.encode(ctx, entry, logger, dir, source)
	if out != nil {
		return out
	}
	if out := m.upload(ctx, entry, logger, encoded); out != nil {
		return out
	}
	return &outcome{state: job.StateCompleted}
}

func (m *Manager) probe(ctx context.Context, entry *activeJob, logger *slog.Logger) *outcome {
	stageCtx := services.WithStage(ctx, "probe")
	started := m.now()
	result, err := m.deps.Prober.Probe(stageCtx, entry.snapshot().SourceURL)
	if err != nil {
		if ctx.Err() != nil {
			return cancelled(ctx)
		}
		return failed(probeReason(err), err)
	}
	m.deps.Observer.StageCompleted("probe", m.now().Sub(started))
	_, _ = entry.update(func(j *job.Job) error {
		j.SourceBytes = result.SizeBytes
		j.DurationSeconds = result.DurationSeconds
		j.EstimateBytes = estimate.Optional(result.DurationSeconds, j.Preset)
		return nil
	})
	return nil
}

// decide routes the probed job and, when needed, waits for the requester.
func (m *Manager) decide(ctx context.Context, entry *activeJob, logger *slog.Logger) *outcome {
	snap := entry.snapshot()
	decision := job.Decide(snap.SourceBytes, snap.EstimateBytes, m.limits.CeilingBytes)
	logger.Info("size decision",
		logging.String(logging.FieldEventType, "size_decision"),
		logging.String("decision", string(decision.State)),
		logging.String("reason", string(decision.Reason)),
		logging.String("source", estimate.FormatOptionalMB(snap.SourceBytes)),
		logging.String("estimate", estimate.FormatOptionalMB(snap.EstimateBytes)),
		logging.String("ceiling", estimate.FormatMB(m.limits.CeilingBytes)),
		logging.String("preset", snap.Preset.Name),
	)

	switch decision.State {
	case job.StateRejected:
		return &outcome{state: job.StateRejected, reason: decision.Reason}
	case job.StateAwaitingConfirmation:
		if err := m.advance(ctx, entry, job.StateAwaitingConfirmation); err != nil {
			return failed(job.ReasonInternal, err)
		}
		return m.awaitConfirmation(ctx, entry, logger)
	default:
		if err := m.advance(ctx, entry, job.StateDirectProceed); err != nil {
			return failed(job.ReasonInternal, err)
		}
		return nil
	}
}

func (m *Manager) awaitConfirmation(ctx context.Context, entry *activeJob, logger *slog.Logger) *outcome {
	var expiry <-chan time.Time
	if m.limits.ConfirmationExpiry > 0 {
		timer := time.NewTimer(m.limits.ConfirmationExpiry)
		defer timer.Stop()
		expiry = timer.C
	}
	select {
	case accept := <-entry.confirm:
		if !accept {
			logger.Info("confirmation declined", logging.String(logging.FieldEventType, "confirmation_declined"))
			return &outcome{state: job.StateCancelled, reason: job.ReasonDeclined}
		}
		logger.Info("confirmation accepted", logging.String(logging.FieldEventType, "confirmation_accepted"))
		return nil
	case <-expiry:
		logger.Info("confirmation expired",
			logging.String(logging.FieldEventType, "confirmation_expired"),
			logging.Duration("window", m.limits.ConfirmationExpiry),
		)
		return &outcome{state: job.StateCancelled, reason: job.ReasonExpired}
	case <-ctx.Done():
		return cancelled(ctx)
	}
}

// fetch downloads the source into a fresh job workspace.
func (m *Manager) fetch(ctx context.Context, entry *activeJob, logger *slog.Logger) (string, string, *outcome) {
	if err := m.advance(ctx, entry, job.StateFetching); err != nil {
		return "", "", failed(job.ReasonInternal, err)
	}
	snap := entry.snapshot()
	dir, err := staging.NewWorkspace(m.workDir, snap.RequesterID, snap.ID)
	if err != nil {
		return "", "", failed(job.ReasonInternal, services.Wrap(services.ErrConfiguration, "fetch", "create workspace", "", err))
	}
	if err := entry.job.Temp.Add(dir); err != nil {
		_ = os.RemoveAll(dir)
		return "", "", failed(job.ReasonInternal, err)
	}

	stageCtx := services.WithStage(ctx, "fetch")
	started := m.now()
	cmd := m.tools.FetchCommand(snap.SourceURL, dir, m.limits.FetchTimeout, m.progressHandler(stageCtx, entry, logger, "fetch", runner.ParseFetchProgress))
	if _, err := m.deps.Executor.Run(stageCtx, cmd); err != nil {
		return "", "", m.toolFailure(ctx, err, job.ReasonDownloadFailed)
	}

	path, size, err := runner.FindFetched(dir)
	if err != nil {
		return "", "", failed(job.ReasonDownloadFailed, err)
	}
	if err := entry.job.Temp.Add(path); err != nil {
		return "", "", failed(job.ReasonInternal, err)
	}
	m.deps.Observer.StageCompleted("fetch", m.now().Sub(started))
	snap, _ = entry.update(func(j *job.Job) error {
		j.FetchedBytes = &size
		return nil
	})
	logger.Info("fetch finished",
		logging.String("fetched", estimate.FormatMB(size)),
		logging.Duration("elapsed", m.now().Sub(started)),
	)

	if job.AbortAfterFetch(size, snap.EstimateBytes, m.limits.CeilingBytes) {
		return "", "", failed(job.ReasonSourceTooLarge, fmt.Errorf("fetched %s exceeds ceiling %s with estimate %s",
			estimate.FormatMB(size), estimate.FormatMB(m.limits.CeilingBytes), estimate.FormatOptionalMB(snap.EstimateBytes)))
	}
	return dir, path, nil
}

// encode transcodes the fetched file with the job's preset.
func (m *Manager) encode(ctx context.Context, entry *activeJob, logger *slog.Logger, dir, source string) (string, *outcome) {
	if err := m.advance(ctx, entry, job.StateEncoding); err != nil {
		return "", failed(job.ReasonInternal, err)
	}
	snap := entry.snapshot()
	dst := runner.EncodedPath(dir)
	if err := entry.job.Temp.Add(dst); err != nil {
		return "", failed(job.ReasonInternal, err)
	}

	stageCtx := services.WithStage(ctx, "encode")
	started := m.now()
	cmd := m.tools.EncodeCommand(source, dst, snap.Preset, dir, m.limits.EncodeTimeout, m.progressHandler(stageCtx, entry, logger, "encode", runner.ParseEncodeProgress))
	if _, err := m.deps.Executor.Run(stageCtx, cmd); err != nil {
		return "", m.toolFailure(ctx, err, job.ReasonEncodeFailed)
	}

	info, err := os.Stat(dst)
	if err != nil || info.IsDir() || info.Size() == 0 {
		return "", failed(job.ReasonEncodeFailed, services.Wrap(services.ErrExternalTool, "encode", "verify output", "encoder produced no output", err))
	}
	size := info.Size()
	m.deps.Observer.StageCompleted("encode", m.now().Sub(started))
	_, _ = entry.update(func(j *job.Job) error {
		j.OutputBytes = &size
		return nil
	})
	logger.Info("encode finished",
		logging.String("output", estimate.FormatMB(size)),
		logging.String("estimate", estimate.FormatOptionalMB(snap.EstimateBytes)),
		logging.Duration("elapsed", m.now().Sub(started)),
	)
	if size > m.limits.CeilingBytes {
		return "", failed(job.ReasonOutputTooLarge, fmt.Errorf("encoded %s exceeds ceiling %s",
			estimate.FormatMB(size), estimate.FormatMB(m.limits.CeilingBytes)))
	}
	return dst, nil
}

func (m *Manager) upload(ctx context.Context, entry *activeJob, logger *slog.Logger, path string) *outcome {
	if err := m.advance(ctx, entry, job.StateUploading); err != nil {
		return failed(job.ReasonInternal, err)
	}
	snap := entry.snapshot()
	uploadCtx := services.WithStage(ctx, "upload")
	if m.limits.UploadTimeout > 0 {
		var cancel context.CancelFunc
		uploadCtx, cancel = context.WithTimeout(uploadCtx, m.limits.UploadTimeout)
		defer cancel()
	}
	started := m.now()
	if err := m.deps.Uploader.SendFile(uploadCtx, snap.ChatID, path, UploadCaption); err != nil {
		if ctx.Err() != nil {
			return cancelled(ctx)
		}
		if errors.Is(uploadCtx.Err(), context.DeadlineExceeded) {
			return failed(job.ReasonTimeout, services.Wrap(services.ErrTimeout, "upload", "send file", "", err))
		}
		return failed(job.ReasonUploadFailed, err)
	}
	m.deps.Observer.StageCompleted("upload", m.now().Sub(started))
	logger.Info("upload finished", logging.Duration("elapsed", m.now().Sub(started)))
	return nil
}

// toolFailure converts a subprocess error into a terminal outcome.
func (m *Manager) toolFailure(ctx context.Context, err error, reason job.Reason) *outcome {
	if ctx.Err() != nil {
		return cancelled(ctx)
	}
	var runErr *runner.RunError
	if errors.As(err, &runErr) && runErr.Kind == runner.KindTimeout {
		return failed(job.ReasonTimeout, err)
	}
	return failed(reason, err)
}

// advance applies a forward transition and publishes it.
func (m *Manager) advance(ctx context.Context, entry *activeJob, to job.State) error {
	var from job.State
	snap, err := entry.update(func(j *job.Job) error {
		from = j.State
		return j.Transition(to, m.now())
	})
	if err != nil {
		return err
	}
	m.deps.Observer.StateEntered(to)
	m.notify(ctx, snap, Event{Kind: EventTransition, From: from, To: to, CeilingBytes: m.limits.CeilingBytes})
	return nil
}
