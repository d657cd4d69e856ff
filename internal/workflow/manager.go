package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"clipper/internal/config"
	"clipper/internal/job"
	"clipper/internal/logging"
	"clipper/internal/runner"
	"clipper/internal/services"
)

// Limits are the size ceiling and the timeouts the worker enforces.
type Limits struct {
	CeilingBytes       int64
	ConfirmationExpiry time.Duration
	FetchTimeout       time.Duration
	EncodeTimeout      time.Duration
	UploadTimeout      time.Duration
	ProgressInterval   time.Duration
}

// LimitsFromConfig derives Limits from configuration.
func LimitsFromConfig(cfg *config.Config) Limits {
	return Limits{
		CeilingBytes:       cfg.UploadCeilingBytes(),
		ConfirmationExpiry: cfg.ConfirmationExpiry(),
		FetchTimeout:       cfg.FetchTimeout(),
		EncodeTimeout:      cfg.EncodeTimeout(),
		UploadTimeout:      cfg.UploadTimeout(),
		ProgressInterval:   cfg.ProgressInterval(),
	}
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithLimits overrides the limits derived from configuration.
func WithLimits(limits Limits) ManagerOption {
	return func(m *Manager) {
		m.limits = limits
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// Manager coordinates one worker per active job.
type Manager struct {
	workDir string
	tools   runner.Toolchain
	limits  Limits
	deps    Dependencies
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	running bool
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	active  map[int64]*activeJob
	recent  map[int64]job.Snapshot
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, deps Dependencies, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if deps.Observer == nil {
		deps.Observer = nopObserver{}
	}
	m := &Manager{
		workDir: cfg.Paths.WorkDir,
		tools:   runner.ToolchainFromConfig(cfg),
		limits:  LimitsFromConfig(cfg),
		deps:    deps,
		logger:  logging.NewComponentLogger(logger, "workflow"),
		now:     time.Now,
		active:  make(map[int64]*activeJob),
		recent:  make(map[int64]job.Snapshot),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start accepts submissions. Workers inherit ctx.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("workflow already running")
	}
	if m.deps.Gate == nil || m.deps.Prober == nil || m.deps.Executor == nil || m.deps.Uploader == nil {
		return services.Wrap(services.ErrConfiguration, "workflow", "start", "gate, prober, executor and uploader are required", nil)
	}
	m.baseCtx, m.cancel = context.WithCancel(ctx)
	m.running = true
	return nil
}

// Stop cancels every in-flight job and waits for their finalizers.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// Submit authorizes the requester, claims the requester's slot and starts
// the job. Unauthorized requesters never get a job.
func (m *Manager) Submit(ctx context.Context, sub Submission) (job.Snapshot, error) {
	ctx = services.WithRequesterID(ctx, sub.RequesterID)
	logger := logging.WithContext(ctx, m.logger)

	if !m.deps.Gate.Authorize(ctx, sub.RequesterID) {
		m.deps.Observer.SubmitRejected("unauthorized")
		logger.Info("submission denied", logging.String(logging.FieldEventType, "submit_unauthorized"))
		return job.Snapshot{}, ErrUnauthorized
	}
	preset := m.deps.Gate.CurrentPreset(ctx, sub.RequesterID)

	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return job.Snapshot{}, ErrNotRunning
	}
	if existing, ok := m.active[sub.RequesterID]; ok {
		snap := existing.snapshot()
		m.mu.Unlock()
		m.deps.Observer.SubmitRejected("active_job")
		logger.Info("submission rejected; requester busy",
			logging.String("active_job_id", snap.ID),
			logging.String(logging.FieldState, string(snap.State)),
		)
		return snap, ErrActiveJob
	}
	j := job.New(sub.RequesterID, sub.ChatID, sub.URL, preset, m.now())
	jobCtx, cancel := context.WithCancelCause(m.baseCtx)
	entry := &activeJob{
		job:     j,
		cancel:  cancel,
		confirm: make(chan bool, 1),
		sampler: logging.NewProgressSampler(0),
	}
	m.active[sub.RequesterID] = entry
	count := len(m.active)
	m.wg.Add(1)
	m.mu.Unlock()

	m.deps.Observer.JobSubmitted()
	m.deps.Observer.ActiveJobs(count)
	logger.Info("job accepted",
		logging.String(logging.FieldJobID, j.ID),
		logging.URL(j.SourceURL),
		logging.String("preset", preset.Name),
	)

	if rid, ok := services.RequestIDFromContext(ctx); ok {
		jobCtx = services.WithRequestID(jobCtx, rid)
	}
	snap := entry.snapshot()
	go m.run(jobCtx, entry)
	return snap, nil
}

// Confirm answers a pending confirmation.
func (m *Manager) Confirm(requesterID int64, jobID string, accept bool) error {
	m.mu.Lock()
	entry, ok := m.active[requesterID]
	m.mu.Unlock()
	if !ok || entry.id() != jobID {
		return ErrUnknownJob
	}
	if entry.snapshot().State != job.StateAwaitingConfirmation {
		return ErrNotAwaitingConfirmation
	}
	if entry.expired(m.now(), m.limits.ConfirmationExpiry) {
		entry.cancel(errExpired)
		return ErrConfirmationExpired
	}
	select {
	case entry.confirm <- accept:
		return nil
	default:
		return ErrNotAwaitingConfirmation
	}
}

// Cancel stops the requester's active job. The worker observes the
// cancellation, kills any running subprocess and finalizes the job.
func (m *Manager) Cancel(requesterID int64) (job.Snapshot, error) {
	m.mu.Lock()
	entry, ok := m.active[requesterID]
	m.mu.Unlock()
	if !ok {
		return job.Snapshot{}, ErrUnknownJob
	}
	entry.cancel(errUserStop)
	return entry.snapshot(), nil
}

// Retry resubmits the URL of the requester's most recent finished job.
func (m *Manager) Retry(ctx context.Context, requesterID, chatID int64, jobID string) (job.Snapshot, error) {
	m.mu.Lock()
	last, ok := m.recent[requesterID]
	m.mu.Unlock()
	if !ok || last.ID != jobID || strings.TrimSpace(last.SourceURL) == "" {
		return job.Snapshot{}, ErrUnknownJob
	}
	if chatID == 0 {
		chatID = last.ChatID
	}
	return m.Submit(ctx, Submission{RequesterID: requesterID, ChatID: chatID, URL: last.SourceURL})
}

// Active returns the requester's active job.
func (m *Manager) Active(requesterID int64) (job.Snapshot, bool) {
	m.mu.Lock()
	entry, ok := m.active[requesterID]
	m.mu.Unlock()
	if !ok {
		return job.Snapshot{}, false
	}
	return entry.snapshot(), true
}

// ActiveCount returns the number of jobs in flight.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running bool
	Active  []job.Snapshot
}

// Status returns the latest workflow information.
func (m *Manager) Status() StatusSummary {
	m.mu.Lock()
	summary := StatusSummary{Running: m.running, Active: make([]job.Snapshot, 0, len(m.active))}
	for _, entry := range m.active {
		summary.Active = append(summary.Active, entry.snapshot())
	}
	m.mu.Unlock()
	return summary
}

// release frees the requester's slot and remembers the finished job for Retry.
func (m *Manager) release(entry *activeJob, final job.Snapshot) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.active[final.RequesterID]; ok && current == entry {
		delete(m.active, final.RequesterID)
	}
	m.recent[final.RequesterID] = final
	return len(m.active)
}

// activeJob pairs a job with its worker's controls. mu guards job fields
// that other goroutines snapshot.
type activeJob struct {
	mu      sync.Mutex
	job     *job.Job
	cancel  context.CancelCauseFunc
	confirm chan bool

	sampler      *logging.ProgressSampler
	lastProgress time.Time
}

func (a *activeJob) id() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.job.ID
}

func (a *activeJob) snapshot() job.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.job.Snapshot()
}

func (a *activeJob) expired(now time.Time, window time.Duration) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.job.Expired(now, window)
}

func (a *activeJob) update(fn func(j *job.Job) error) (job.Snapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := fn(a.job); err != nil {
		return a.job.Snapshot(), err
	}
	return a.job.Snapshot(), nil
}
