package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clipper/internal/estimate"
	"clipper/internal/job"
	"clipper/internal/probe"
	"clipper/internal/runner"
)

var (
	// ErrActiveJob rejects a submission while the requester already has a job.
	ErrActiveJob = errors.New("requester already has an active job")
	// ErrUnauthorized rejects a requester that is not whitelisted.
	ErrUnauthorized = errors.New("requester not authorized")
	// ErrUnknownJob reports a job id that does not belong to the requester's
	// active or most recent job.
	ErrUnknownJob = errors.New("unknown job")
	// ErrNotAwaitingConfirmation reports a confirmation answer for a job that
	// is no longer waiting for one.
	ErrNotAwaitingConfirmation = errors.New("job is not awaiting confirmation")
	// ErrConfirmationExpired reports an answer that arrived after the
	// confirmation window closed.
	ErrConfirmationExpired = fmt.Errorf("%w: confirmation window elapsed", ErrNotAwaitingConfirmation)
	// ErrNotRunning rejects submissions before Start or after Stop.
	ErrNotRunning = errors.New("workflow not running")
)

var (
	// errUserStop is the cancellation cause set by Cancel.
	errUserStop = errors.New("cancelled by requester")
	// errExpired is the cancellation cause for an answer past the window.
	errExpired = errors.New("confirmation expired")
)

// Submission is one inbound URL.
type Submission struct {
	RequesterID int64
	ChatID      int64
	URL         string
}

// EventKind classifies a notification.
type EventKind string

const (
	// EventTransition reports a state change.
	EventTransition EventKind = "transition"
	// EventProgress reports throttled fetch or encode progress.
	EventProgress EventKind = "progress"
)

// Event accompanies every snapshot handed to the Notifier.
type Event struct {
	Kind EventKind
	From job.State
	To   job.State
	// CeilingBytes is the upload ceiling the decision was made against.
	CeilingBytes int64
	// Suggestions lists cheaper presets for size rejections.
	Suggestions []estimate.Preset
}

// Gate decides who may submit and with which preset.
type Gate interface {
	Authorize(ctx context.Context, requesterID int64) bool
	CurrentPreset(ctx context.Context, requesterID int64) estimate.Preset
}

// Prober reads size and duration for a URL.
type Prober interface {
	Probe(ctx context.Context, url string) (probe.Result, error)
}

// Notifier renders job status for the requester. It has no decision authority.
type Notifier interface {
	Notify(ctx context.Context, snap job.Snapshot, event Event) error
}

// Uploader hands the finished file to the chat transport.
type Uploader interface {
	SendFile(ctx context.Context, chatID int64, path, caption string) error
}

// Recorder persists finished jobs.
type Recorder interface {
	RecordJob(ctx context.Context, snap job.Snapshot) error
}

// Observer receives metrics events.
type Observer interface {
	JobSubmitted()
	SubmitRejected(reason string)
	StateEntered(state job.State)
	StageCompleted(stage string, elapsed time.Duration)
	JobFinished(snap job.Snapshot)
	ActiveJobs(count int)
}

// Alerter forwards terminal outcomes to the operator.
type Alerter interface {
	JobFinished(ctx context.Context, snap job.Snapshot) error
}

// Dependencies are the collaborators injected by the composition root. Gate,
// Prober, Executor and Uploader are required.
type Dependencies struct {
	Gate     Gate
	Prober   Prober
	Executor runner.Executor
	Presets  *estimate.Table
	Notifier Notifier
	Uploader Uploader
	Recorder Recorder
	Observer Observer
	Alerter  Alerter
}

type nopObserver struct{}

func (nopObserver) JobSubmitted()                        {}
func (nopObserver) SubmitRejected(string)                {}
func (nopObserver) StateEntered(job.State)               {}
func (nopObserver) StageCompleted(string, time.Duration) {}
func (nopObserver) JobFinished(job.Snapshot)             {}
func (nopObserver) ActiveJobs(int)                       {}
