package daemon

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"clipper/internal/config"
	"clipper/internal/logging"
	"clipper/internal/notifications"
	"clipper/internal/services"
	"clipper/internal/workflow"
)

// ErrAlreadyRunning reports a second Start or a lock held by another process.
var ErrAlreadyRunning = errors.New("daemon already running")

// Workflow is the job pipeline lifecycle.
type Workflow interface {
	Start(ctx context.Context) error
	Stop()
	Status() workflow.StatusSummary
}

// Poller receives chat updates until ctx ends.
type Poller interface {
	Run(ctx context.Context) error
}

// MetricsServer is the optional HTTP exporter.
type MetricsServer interface {
	Start() error
	Stop(ctx context.Context) error
}

// Components are the collaborators the daemon owns. Metrics and Alerts are optional.
type Components struct {
	Workflow Workflow
	Poller   Poller
	Metrics  MetricsServer
	Alerts   notifications.Service
	// StoreBackend labels the lifecycle alert.
	StoreBackend string
	// Lock is an instance lock already taken with AcquireLock. When nil,
	// Start acquires one.
	Lock *flock.Flock
}

// Daemon coordinates the background services and enforces single-instance execution.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	components Components

	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
	pollErr error
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Workflow     workflow.StatusSummary
	DatabasePath string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, logger *slog.Logger, components Components) (*Daemon, error) {
	if cfg == nil || components.Workflow == nil || components.Poller == nil {
		return nil, errors.New("daemon requires config, workflow manager, and poller")
	}
	if components.Alerts == nil {
		components.Alerts = notifications.NewService(&config.Config{})
	}
	lockPath := cfg.LockPath()
	lock := components.Lock
	if lock == nil {
		lock = flock.New(lockPath)
	}
	return &Daemon{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		components: components,
		lockPath:   lockPath,
		lock:       lock,
	}, nil
}

// AcquireLock takes the single-instance lock for cfg. Callers hold it across
// startup work that touches shared state, then pass it to New.
func AcquireLock(cfg *config.Config) (*flock.Flock, error) {
	lockPath := cfg.LockPath()
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "daemon", "acquire lock", lockPath, err)
	}
	if !ok {
		return nil, services.Wrap(ErrAlreadyRunning, "daemon", "acquire lock", "another clipper instance holds "+lockPath, nil)
	}
	return lock, nil
}

// Start acquires the daemon lock and launches the workflow, the metrics
// server and the poller.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return ErrAlreadyRunning
	}

	if !d.lock.Locked() {
		ok, err := d.lock.TryLock()
		if err != nil {
			return services.Wrap(services.ErrConfiguration, "daemon", "acquire lock", d.lockPath, err)
		}
		if !ok {
			return services.Wrap(ErrAlreadyRunning, "daemon", "acquire lock", "another clipper instance holds "+d.lockPath, nil)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.components.Workflow.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return services.Wrap(services.ErrConfiguration, "daemon", "start workflow", "", err)
	}
	if d.components.Metrics != nil {
		if err := d.components.Metrics.Start(); err != nil {
			logging.WarnWithContext(d.logger, "metrics server unavailable", "metrics_start_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check metrics.bind"),
				logging.String(logging.FieldImpact, "prometheus scrapes will fail"),
			)
		}
	}

	d.cancel = cancel
	d.done = make(chan struct{})
	d.pollErr = nil
	done := d.done
	go func() {
		defer close(done)
		err := d.components.Poller.Run(runCtx)
		if err != nil {
			d.logger.Error("update polling stopped", logging.Error(err))
		}
		d.mu.Lock()
		d.pollErr = err
		d.mu.Unlock()
	}()

	d.running.Store(true)
	d.logger.Info("clipper daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
	)
	d.alert(ctx, notifications.EventDaemonStarted, notifications.Payload{"store": d.components.StoreBackend})
	return nil
}

// Done is closed when the poller exits. It is nil before Start.
func (d *Daemon) Done() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.done
}

// Err returns the poller's exit error, if any.
func (d *Daemon) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pollErr
}

// Stop cancels polling, drains the workflow and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	if !d.running.Load() {
		d.mu.Unlock()
		return
	}
	cancel, done := d.cancel, d.done
	d.cancel = nil
	d.mu.Unlock()

	active := len(d.components.Workflow.Status().Active)
	cancel()
	<-done
	d.components.Workflow.Stop()

	if d.components.Metrics != nil {
		ctx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		if err := d.components.Metrics.Stop(ctx); err != nil {
			d.logger.Debug("metrics server shutdown", logging.Error(err))
		}
		stop()
	}

	d.alert(context.Background(), notifications.EventDaemonStopped, notifications.Payload{"active": strconv.Itoa(active)})
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock",
			logging.Error(err),
			logging.String(logging.FieldEventType, "lock_release_failed"),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if no clipper process is running"),
			logging.String(logging.FieldImpact, "next start may report the daemon as running"),
		)
	}
	d.running.Store(false)
	d.logger.Info("clipper daemon stopped", logging.Int("interrupted_jobs", active))
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	return SendTestNotification(ctx, d.cfg)
}

// SendTestNotification publishes a test alert with cfg's ntfy settings.
func SendTestNotification(ctx context.Context, cfg *config.Config) (bool, string, error) {
	if cfg == nil {
		return false, "configuration unavailable", errors.New("configuration unavailable")
	}
	if cfg.Notifications.NtfyTopic == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := notifications.NewService(cfg).TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		Workflow:     d.components.Workflow.Status(),
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
	}
}

func (d *Daemon) alert(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := d.components.Alerts.Publish(ctx, event, payload); err != nil {
		d.logger.Debug("lifecycle alert failed", logging.String("event", string(event)), logging.Error(err))
	}
}
