package job

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"clipper/internal/estimate"
)

// Job is one submitted URL. It is owned by a single worker goroutine; other
// goroutines read it through Snapshot copies.
type Job struct {
	ID          string
	RequesterID int64
	ChatID      int64
	SourceURL   string
	Preset      estimate.Preset

	SourceBytes     *int64
	DurationSeconds *float64
	EstimateBytes   *int64
	FetchedBytes    *int64
	OutputBytes     *int64

	State     State
	Reason    Reason
	Progress  float64
	CreatedAt time.Time
	UpdatedAt time.Time

	Temp *TempPaths
}

// New creates a job in StateCreated. The preset is captured once and never
// re-read for the lifetime of the job.
func New(requesterID, chatID int64, sourceURL string, preset estimate.Preset, now time.Time) *Job {
	return &Job{
		ID:          ulid.Make().String(),
		RequesterID: requesterID,
		ChatID:      chatID,
		SourceURL:   strings.TrimSpace(sourceURL),
		Preset:      preset,
		State:       StateCreated,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
		Temp:        &TempPaths{},
	}
}

// Transition validates and applies a state change.
func (j *Job) Transition(to State, now time.Time) error {
	if err := Next(j.State, to); err != nil {
		return err
	}
	j.State = to
	j.Progress = 0
	j.UpdatedAt = now.UTC()
	return nil
}

// Finish moves the job into a terminal state with a reason.
func (j *Job) Finish(to State, reason Reason, now time.Time) error {
	if err := j.Transition(to, now); err != nil {
		return err
	}
	j.Reason = reason
	return nil
}

// Expired reports whether a job waiting for confirmation has been abandoned.
func (j *Job) Expired(now time.Time, window time.Duration) bool {
	return j.State == StateAwaitingConfirmation && window > 0 && now.Sub(j.UpdatedAt) >= window
}

// Snapshot is a read-only copy of a job's observable fields.
type Snapshot struct {
	ID              string
	RequesterID     int64
	ChatID          int64
	SourceURL       string
	Preset          estimate.Preset
	SourceBytes     *int64
	DurationSeconds *float64
	EstimateBytes   *int64
	FetchedBytes    *int64
	OutputBytes     *int64
	State           State
	Reason          Reason
	Progress        float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Snapshot copies the job. Pointer fields are copied by value.
func (j *Job) Snapshot() Snapshot {
	return Snapshot{
		ID:              j.ID,
		RequesterID:     j.RequesterID,
		ChatID:          j.ChatID,
		SourceURL:       j.SourceURL,
		Preset:          j.Preset,
		SourceBytes:     copyInt(j.SourceBytes),
		DurationSeconds: copyFloat(j.DurationSeconds),
		EstimateBytes:   copyInt(j.EstimateBytes),
		FetchedBytes:    copyInt(j.FetchedBytes),
		OutputBytes:     copyInt(j.OutputBytes),
		State:           j.State,
		Reason:          j.Reason,
		Progress:        j.Progress,
		CreatedAt:       j.CreatedAt,
		UpdatedAt:       j.UpdatedAt,
	}
}

func copyInt(v *int64) *int64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
