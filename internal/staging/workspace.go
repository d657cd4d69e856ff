package staging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

const (
	jobPrefix   = "video_"
	probePrefix = "probe_"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// NewWorkspace creates the dedicated directory for one job:
// <workDir>/video_<requester>_<job>. It fails if the directory already exists
// so two jobs can never share one.
func NewWorkspace(workDir string, requesterID int64, jobID string) (string, error) {
	workDir = strings.TrimSpace(workDir)
	if workDir == "" {
		return "", errors.New("work directory not configured")
	}
	jobID = unsafeChars.ReplaceAllString(jobID, "")
	if jobID == "" {
		return "", errors.New("job id required")
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", fmt.Errorf("create work directory: %w", err)
	}
	dir := filepath.Join(workDir, jobPrefix+strconv.FormatInt(requesterID, 10)+"_"+jobID)
	if err := os.Mkdir(dir, 0o700); err != nil {
		return "", fmt.Errorf("create job workspace: %w", err)
	}
	return dir, nil
}

func isWorkspaceName(name string) bool {
	return strings.HasPrefix(name, jobPrefix) || strings.HasPrefix(name, probePrefix)
}
