package logs

import (
	"encoding/json"
	"strings"

	"clipper/internal/logging"
)

// Filter selects log lines. The zero value matches everything.
type Filter struct {
	JobID    string
	MinLevel string
}

var levelRank = map[string]int{"DEBUG": 0, "INFO": 1, "WARN": 2, "ERROR": 3}

// Match reports whether line passes the filter. Console lines carry the job
// as component[id] and JSON lines as a job_id field.
func (f Filter) Match(line string) bool {
	if f.JobID == "" && f.MinLevel == "" {
		return true
	}
	level, jobID := parseLine(line)
	if f.JobID != "" && jobID != f.JobID {
		return false
	}
	if f.MinLevel != "" {
		want, ok := levelRank[strings.ToUpper(f.MinLevel)]
		if ok && levelRank[level] < want {
			return false
		}
	}
	return true
}

func parseLine(line string) (level, jobID string) {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "{") {
		var record map[string]any
		if err := json.Unmarshal([]byte(trimmed), &record); err == nil {
			level, _ = record["level"].(string)
			jobID, _ = record[logging.FieldJobID].(string)
			return strings.ToUpper(level), jobID
		}
	}

	// 2006-01-02T15:04:05Z LEVEL component[job]: message key=value
	fields := strings.SplitN(trimmed, " ", 4)
	if len(fields) >= 2 {
		level = fields[1]
	}
	if len(fields) >= 3 {
		head := fields[2]
		if open := strings.IndexByte(head, '['); open >= 0 {
			if end := strings.Index(head[open:], "]:"); end > 0 {
				jobID = head[open+1 : open+end]
			}
		}
	}
	return level, jobID
}
