package job_test

import (
	"testing"
	"time"

	"clipper/internal/estimate"
	"clipper/internal/job"
)

func TestNewJobAndTransitions(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	preset := estimate.Preset{Name: "Very Fast 480p30", BitrateKbps: 1000, Overhead: 0.05}
	j := job.New(7, 70, " https://example.com/v ", preset, now)

	if j.ID == "" || len(j.ID) != 26 {
		t.Fatalf("expected ULID id, got %q", j.ID)
	}
	if j.State != job.StateCreated || j.SourceURL != "https://example.com/v" {
		t.Fatalf("unexpected new job %+v", j)
	}
	other := job.New(7, 70, "https://example.com/v", preset, now)
	if other.ID == j.ID {
		t.Fatal("job ids must be unique")
	}

	if err := j.Transition(job.StateFetching, now); err == nil {
		t.Fatal("expected invalid transition error")
	}
	if j.State != job.StateCreated {
		t.Fatalf("state changed after rejected transition: %s", j.State)
	}

	steps := []job.State{job.StateProbing, job.StateAwaitingConfirmation}
	for _, s := range steps {
		if err := j.Transition(s, now); err != nil {
			t.Fatalf("Transition(%s): %v", s, err)
		}
	}
	if j.Expired(now.Add(9*time.Minute), 10*time.Minute) {
		t.Fatal("job should not be expired yet")
	}
	if !j.Expired(now.Add(10*time.Minute), 10*time.Minute) {
		t.Fatal("job should be expired")
	}

	if err := j.Finish(job.StateCancelled, job.ReasonExpired, now); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	snap := j.Snapshot()
	if snap.State != job.StateCancelled || snap.Reason != job.ReasonExpired {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.Preset != preset {
		t.Fatalf("preset changed: %+v", snap.Preset)
	}
}

func TestSnapshotCopiesPointers(t *testing.T) {
	j := job.New(1, 1, "https://example.com", estimate.Preset{Name: "p", BitrateKbps: 1}, time.Now())
	size := int64(10)
	j.SourceBytes = &size
	snap := j.Snapshot()
	*j.SourceBytes = 20
	if *snap.SourceBytes != 10 {
		t.Fatalf("snapshot shares pointer with job: %d", *snap.SourceBytes)
	}
}

func TestReasonRetryable(t *testing.T) {
	if job.ReasonEstimateTooLarge.Retryable() {
		t.Fatal("size rejections should not offer retry")
	}
	if !job.ReasonDownloadFailed.Retryable() {
		t.Fatal("download failures should offer retry")
	}
}
