package job

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// ErrCleanedUp is returned when adding a path after cleanup ran.
var ErrCleanedUp = errors.New("temp paths already cleaned up")

// TempPaths is the append-only set of filesystem paths a job owns.
type TempPaths struct {
	mu      sync.Mutex
	paths   []string
	removed map[string]bool
	sealed  bool
}

// Add registers a path for removal. Duplicates are ignored.
func (t *TempPaths) Add(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sealed {
		return fmt.Errorf("%w: %s", ErrCleanedUp, path)
	}
	for _, existing := range t.paths {
		if existing == path {
			return nil
		}
	}
	t.paths = append(t.paths, path)
	return nil
}

// Paths returns the registered paths in insertion order.
func (t *TempPaths) Paths() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := make([]string, len(t.paths))
	copy(cp, t.paths)
	return cp
}

// Cleanup removes every registered path. Paths already removed are skipped,
// so calling it again only retries earlier failures.
func (t *TempPaths) Cleanup() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sealed = true
	if t.removed == nil {
		t.removed = make(map[string]bool, len(t.paths))
	}
	var errs []error
	// Reverse order removes files before their parent workspace.
	for i := len(t.paths) - 1; i >= 0; i-- {
		path := t.paths[i]
		if t.removed[path] {
			continue
		}
		if err := os.RemoveAll(path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("remove %s: %w", path, err))
			continue
		}
		t.removed[path] = true
	}
	return errors.Join(errs...)
}
