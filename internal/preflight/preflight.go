package preflight

import (
	"context"
	"fmt"
	"strings"

	"clipper/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the offline checks for the given config. Redis is only
// checked when it backs the whitelist.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
	}
	if cfg.Store.Backend == "redis" {
		results = append(results, CheckRedis(ctx, cfg))
	}
	return results
}

// Failed joins the failed results into one error, or returns nil.
func Failed(results []Result) error {
	var parts []string
	for _, r := range results {
		if !r.Passed {
			parts = append(parts, r.Name+": "+r.Detail)
		}
	}
	if len(parts) == 0 {
		return nil
	}
	return fmt.Errorf("preflight failed: %s", strings.Join(parts, "; "))
}
