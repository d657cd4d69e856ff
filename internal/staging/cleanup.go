package staging

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"clipper/internal/logging"
)

// Sweep is the outcome of CleanStale.
type Sweep struct {
	Removed []string
	Failed  []Failure
}

// Failure is a workspace that could not be inspected or removed.
type Failure struct {
	Path string
	Err  error
}

// Err joins every failure, or returns nil.
func (s Sweep) Err() error {
	errs := make([]error, len(s.Failed))
	for i, f := range s.Failed {
		errs[i] = fmt.Errorf("%s: %w", f.Path, f.Err)
	}
	return errors.Join(errs...)
}

// CleanStale removes job and probe workspaces under workDir whose last
// modification is older than maxAge. A zero maxAge removes all of them, which
// is what startup wants since no job survives a restart. Entries this package
// did not create are never touched.
func CleanStale(ctx context.Context, workDir string, maxAge time.Duration, logger *slog.Logger) Sweep {
	var sweep Sweep
	workDir = strings.TrimSpace(workDir)
	if workDir == "" {
		return sweep
	}

	stale, err := staleWorkspaces(workDir, time.Now().Add(-maxAge))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		sweep.Failed = append(sweep.Failed, Failure{Path: workDir, Err: err})
	}
	for _, path := range stale {
		if ctx.Err() != nil {
			break
		}
		if err := os.RemoveAll(path); err != nil {
			sweep.Failed = append(sweep.Failed, Failure{Path: path, Err: err})
			continue
		}
		sweep.Removed = append(sweep.Removed, path)
	}

	if len(sweep.Failed) > 0 {
		logging.WarnWithContext(logger, "stale workspace sweep incomplete", "workspace_cleanup_failed",
			logging.Int("failed", len(sweep.Failed)),
			logging.Error(sweep.Err()),
			logging.String(logging.FieldErrorHint, "check work_dir permissions"),
			logging.String(logging.FieldImpact, "disk space not reclaimed"),
		)
	}
	if len(sweep.Removed) > 0 && logger != nil {
		logger.Info("removed stale workspaces",
			logging.Int("count", len(sweep.Removed)),
			logging.String("work_dir", workDir),
			logging.String(logging.FieldEventType, "workspace_cleanup"),
		)
	}
	return sweep
}

// staleWorkspaces lists workspace directories modified before cutoff.
func staleWorkspaces(workDir string, cutoff time.Time) ([]string, error) {
	entries, err := os.ReadDir(workDir)
	if err != nil {
		return nil, err
	}
	var stale []string
	var errs []error
	for _, entry := range entries {
		if !entry.IsDir() || !isWorkspaceName(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if info.ModTime().Before(cutoff) {
			stale = append(stale, filepath.Join(workDir, entry.Name()))
		}
	}
	return stale, errors.Join(errs...)
}
