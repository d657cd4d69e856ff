// Package daemonrun assembles the bot process from configuration.
package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"clipper/internal/config"
	"clipper/internal/daemon"
	"clipper/internal/deps"
	"clipper/internal/estimate"
	"clipper/internal/gate"
	"clipper/internal/logging"
	"clipper/internal/metrics"
	"clipper/internal/notifications"
	"clipper/internal/preflight"
	"clipper/internal/probe"
	"clipper/internal/runner"
	"clipper/internal/staging"
	"clipper/internal/store"
	"clipper/internal/store/redisstore"
	"clipper/internal/telegram"
	"clipper/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Directory is the whitelist/settings backend the gate and CLI share.
type Directory interface {
	gate.Directory
	gate.SettingsWriter
	AddUser(ctx context.Context, userID int64) error
	RemoveUser(ctx context.Context, userID int64) (bool, error)
	ListUsers(ctx context.Context) ([]store.User, error)
}

// Run starts the bot and blocks until SIGINT/SIGTERM or the poller exits.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.ValidateForDaemon(); err != nil {
		return err
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	// The pid file and the workspace sweep belong to the lock holder.
	lock, err := daemon.AcquireLock(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	missing := logDependencySnapshot(logger, cfg)
	if len(missing) > 0 {
		return fmt.Errorf("missing required tools: %s (run `clipper deps`)", strings.Join(missing, ", "))
	}

	checks := preflight.RunAll(signalCtx, cfg)
	for _, result := range checks {
		if !result.Passed {
			logger.Error("preflight check failed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
				logging.String(logging.FieldEventType, "preflight_failed"),
			)
		}
	}
	if err := preflight.Failed(checks); err != nil {
		return err
	}

	pidPath := filepath.Join(cfg.Paths.StateDir, "clipper.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	history, err := store.Open(cfg)
	if err != nil {
		logger.Error("open state database", logging.Error(err))
		return err
	}
	defer history.Close()

	dir, closeDir, err := OpenDirectory(signalCtx, cfg, history)
	if err != nil {
		logger.Error("open user directory", logging.Error(err), logging.String("backend", cfg.Store.Backend))
		return err
	}
	defer closeDir()

	seedUsers(signalCtx, logger, dir, cfg.Access.SeedUsers)
	staging.CleanStale(signalCtx, cfg.Paths.WorkDir, 0, logger)

	table, err := estimate.FromConfig(cfg)
	if err != nil {
		return err
	}

	api, err := telegram.NewAPI(cfg)
	if err != nil {
		return err
	}
	logger.Info("connected to bot api", logging.String("bot", api.Self.UserName))

	exec := runner.New(
		runner.WithKillGrace(cfg.KillGrace()),
		runner.WithSecrets(cfg.Telegram.BotToken),
		runner.WithLogger(logger),
	)
	tools := runner.ToolchainFromConfig(cfg)
	g := gate.New(dir, table, logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	observer := metrics.New(reg)
	alerts := notifications.NewService(cfg)

	manager := workflow.NewManager(cfg, workflow.Dependencies{
		Gate:     g,
		Prober:   probe.New(exec, tools, cfg.ProbeTimeout(), cfg.Paths.WorkDir, logger),
		Executor: exec,
		Presets:  table,
		Notifier: telegram.NewStatusNotifier(api, logger),
		Uploader: telegram.NewUploader(telegram.NewUploadAPI(api, cfg.UploadTimeout()), logger),
		Recorder: history,
		Observer: observer,
		Alerter:  alerts,
	}, logger)
	bot := telegram.NewBot(cfg, api, manager, g, history, logger)

	components := daemon.Components{
		Workflow:     manager,
		Poller:       bot,
		Alerts:       alerts,
		StoreBackend: cfg.Store.Backend,
		Lock:         lock,
	}
	if cfg.Metrics.Enabled {
		components.Metrics = metrics.NewServer(cfg.Metrics.Bind, reg, func() metrics.Health {
			status := manager.Status()
			return metrics.Health{Running: status.Running, ActiveJobs: len(status.Active)}
		}, logger)
	}

	d, err := daemon.New(cfg, logger, components)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	if err := d.Start(signalCtx); err != nil {
		return err
	}
	defer d.Stop()

	go runJanitor(signalCtx, logger, history, cfg.Store.LogRetentionHours)

	select {
	case <-signalCtx.Done():
		logger.Info("clipper daemon shutting down")
	case <-d.Done():
		if err := d.Err(); err != nil {
			return err
		}
	}
	return nil
}

// OpenDirectory returns the configured whitelist backend. The SQLite store is
// reused when the backend is sqlite.
func OpenDirectory(ctx context.Context, cfg *config.Config, sqlite *store.Store) (Directory, func(), error) {
	switch cfg.Store.Backend {
	case "", "sqlite":
		return sqlite, func() {}, nil
	case "redis":
		rdb, err := redisstore.Open(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return rdb, func() { _ = rdb.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store backend %q", cfg.Store.Backend)
	}
}

func seedUsers(ctx context.Context, logger *slog.Logger, dir Directory, ids []int64) {
	for _, id := range ids {
		if err := dir.AddUser(ctx, id); err != nil {
			logging.WarnWithContext(logger, "seed user failed", "seed_user_failed",
				logging.Int64("user_id", id),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "add the user with `clipper users add`"),
				logging.String(logging.FieldImpact, "user cannot submit videos"),
			)
			continue
		}
		logger.Info("whitelist seeded", logging.Int64("user_id", id))
	}
}

// Pruner deletes action log rows older than a cutoff.
type Pruner interface {
	PruneLogs(ctx context.Context, cutoff time.Time) (int64, error)
}

func runJanitor(ctx context.Context, logger *slog.Logger, pruner Pruner, retentionHours int) {
	if retentionHours <= 0 {
		return
	}
	retention := time.Duration(retentionHours) * time.Hour
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		PruneOnce(ctx, logger, pruner, retention, time.Now())
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// PruneOnce removes action log entries older than retention.
func PruneOnce(ctx context.Context, logger *slog.Logger, pruner Pruner, retention time.Duration, now time.Time) int64 {
	removed, err := pruner.PruneLogs(ctx, now.Add(-retention))
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			logger.Warn("action log prune failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "log_prune_failed"),
				logging.String(logging.FieldErrorHint, "check state database permissions"),
				logging.String(logging.FieldImpact, "action log keeps growing"),
			)
		}
		return 0
	}
	if removed > 0 {
		logger.Debug("action log pruned", logging.Int64("removed", removed))
	}
	return removed
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) []string {
	statuses := deps.CheckBinaries(deps.Requirements(cfg))
	attrs := []logging.Attr{logging.String(logging.FieldEventType, "dependency_snapshot")}
	for _, status := range statuses {
		attrs = append(attrs, logging.Bool(strings.ToLower(status.Name)+"_available", status.Available))
	}
	attrs = append(attrs,
		logging.String("store_backend", cfg.Store.Backend),
		logging.Bool("ntfy_enabled", cfg.Notifications.NtfyTopic != ""),
		logging.Bool("metrics_enabled", cfg.Metrics.Enabled),
	)
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
	return deps.MissingRequired(statuses)
}
