package workflow_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"clipper/internal/config"
	"clipper/internal/estimate"
	"clipper/internal/job"
	"clipper/internal/probe"
	"clipper/internal/runner"
	"clipper/internal/testsupport"
	"clipper/internal/workflow"
)

const mib = int64(1024 * 1024)

type stubGate struct {
	allowed map[int64]bool
	preset  estimate.Preset
}

func (g *stubGate) Authorize(_ context.Context, id int64) bool { return g.allowed[id] }

func (g *stubGate) CurrentPreset(context.Context, int64) estimate.Preset { return g.preset }

type stubProber struct {
	mu     sync.Mutex
	calls  int
	result probe.Result
	err    error
	block  chan struct{}
}

func (p *stubProber) Probe(ctx context.Context, _ string) (probe.Result, error) {
	p.mu.Lock()
	p.calls++
	block := p.block
	p.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return probe.Result{}, ctx.Err()
		}
	}
	return p.result, p.err
}

func (p *stubProber) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type stubExecutor struct {
	t          *testing.T
	mu         sync.Mutex
	calls      map[string]int
	fetchBytes int64
	encBytes   int64
	lines      []string
	fetchErr   error
	encodeErr  error
}

func (e *stubExecutor) Run(_ context.Context, cmd runner.Command) (runner.ExitInfo, error) {
	e.mu.Lock()
	if e.calls == nil {
		e.calls = map[string]int{}
	}
	e.calls[cmd.Name]++
	e.mu.Unlock()

	for _, line := range e.lines {
		if cmd.OnLine != nil {
			cmd.OnLine(line)
		}
	}
	switch cmd.Name {
	case "fetch":
		if e.fetchErr != nil {
			return runner.ExitInfo{}, e.fetchErr
		}
		testsupport.WriteFile(e.t, filepath.Join(cmd.Dir, "source.mp4"), e.fetchBytes)
	case "encode":
		if e.encodeErr != nil {
			return runner.ExitInfo{}, e.encodeErr
		}
		testsupport.WriteFile(e.t, argAfter(cmd.Args, "-o"), e.encBytes)
	}
	return runner.ExitInfo{}, nil
}

func (e *stubExecutor) Calls(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[name]
}

func argAfter(args []string, flag string) string {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

type recordedEvent struct {
	snap  job.Snapshot
	event workflow.Event
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (n *recordingNotifier) Notify(_ context.Context, snap job.Snapshot, event workflow.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, recordedEvent{snap: snap, event: event})
	return nil
}

func (n *recordingNotifier) Events() []recordedEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]recordedEvent(nil), n.events...)
}

func (n *recordingNotifier) States() []job.State {
	var states []job.State
	for _, ev := range n.Events() {
		if ev.event.Kind == workflow.EventTransition {
			states = append(states, ev.event.To)
		}
	}
	return states
}

func (n *recordingNotifier) Progress() int {
	count := 0
	for _, ev := range n.Events() {
		if ev.event.Kind == workflow.EventProgress {
			count++
		}
	}
	return count
}

// waitFor polls until a transition to state is published.
func (n *recordingNotifier) waitFor(t *testing.T, state job.State) recordedEvent {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		for _, ev := range n.Events() {
			if ev.event.Kind == workflow.EventTransition && ev.event.To == state {
				return ev
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state %s never published; saw %v", state, n.States())
	return recordedEvent{}
}

type stubUploader struct {
	mu      sync.Mutex
	paths   []string
	caption string
	err     error
	panics  bool
}

func (u *stubUploader) SendFile(_ context.Context, _ int64, path, caption string) error {
	if u.panics {
		panic("uploader exploded")
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, err := os.Stat(path); err != nil {
		return err
	}
	u.paths = append(u.paths, path)
	u.caption = caption
	return u.err
}

func (u *stubUploader) Uploads() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.paths)
}

type stubRecorder struct {
	mu    sync.Mutex
	snaps []job.Snapshot
}

func (r *stubRecorder) RecordJob(_ context.Context, snap job.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, snap)
	return nil
}

func (r *stubRecorder) Records() []job.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]job.Snapshot(nil), r.snaps...)
}

type harness struct {
	cfg      *config.Config
	manager  *workflow.Manager
	gate     *stubGate
	prober   *stubProber
	exec     *stubExecutor
	notifier *recordingNotifier
	uploader *stubUploader
	recorder *stubRecorder

	customExec runner.Executor
	clock      func() time.Time
}

type harnessOption func(*harness, *workflow.Limits)

func withExecutor(exec runner.Executor) harnessOption {
	return func(h *harness, _ *workflow.Limits) {
		h.exec = nil
		h.customExec = exec
	}
}

func withTools(fetcher, encoder string) harnessOption {
	return func(h *harness, _ *workflow.Limits) {
		h.cfg.Tools.Fetcher = fetcher
		h.cfg.Tools.Encoder = encoder
	}
}

func withLimits(fn func(*workflow.Limits)) harnessOption {
	return func(_ *harness, limits *workflow.Limits) {
		fn(limits)
	}
}

func withClock(now func() time.Time) harnessOption {
	return func(h *harness, _ *workflow.Limits) {
		h.clock = now
	}
}

func newHarness(t *testing.T, presetName string, opts ...harnessOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	table, err := estimate.FromConfig(cfg)
	if err != nil {
		t.Fatalf("preset table: %v", err)
	}
	preset, ok := table.Lookup(presetName)
	if !ok {
		t.Fatalf("unknown preset %q", presetName)
	}
	h := &harness{
		cfg:      cfg,
		gate:     &stubGate{allowed: map[int64]bool{1: true, 2: true}, preset: preset},
		prober:   &stubProber{},
		exec:     &stubExecutor{t: t, fetchBytes: 10 * mib, encBytes: 5 * mib},
		notifier: &recordingNotifier{},
		uploader: &stubUploader{},
		recorder: &stubRecorder{},
	}
	limits := workflow.LimitsFromConfig(cfg)
	limits.ProgressInterval = time.Hour
	for _, opt := range opts {
		opt(h, &limits)
	}
	var exec runner.Executor = h.exec
	if h.customExec != nil {
		exec = h.customExec
	}
	h.manager = workflow.NewManager(cfg, workflow.Dependencies{
		Gate:     h.gate,
		Prober:   h.prober,
		Executor: exec,
		Presets:  table,
		Notifier: h.notifier,
		Uploader: h.uploader,
		Recorder: h.recorder,
	}, nil, workflow.WithLimits(limits), workflow.WithClock(h.clock))
	if err := h.manager.Start(context.Background()); err != nil {
		t.Fatalf("start manager: %v", err)
	}
	t.Cleanup(h.manager.Stop)
	return h
}

func sizeResult(sizeMB int64, durationSeconds float64) probe.Result {
	size := sizeMB * mib
	res := probe.Result{SizeBytes: &size}
	if durationSeconds > 0 {
		res.DurationSeconds = &durationSeconds
	}
	return res
}

func contains(states []job.State, want job.State) bool {
	for _, s := range states {
		if s == want {
			return true
		}
	}
	return false
}

func assertNoWorkspaces(t *testing.T, workDir string) {
	t.Helper()
	entries, err := os.ReadDir(workDir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("read work dir: %v", err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "video_") {
			t.Fatalf("workspace %s left behind", entry.Name())
		}
	}
}

func waitIdle(t *testing.T, m *workflow.Manager) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for m.ActiveCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("active jobs never drained: %d", m.ActiveCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// processGone treats zombies as gone since the container init may not reap them.
func processGone(pid int) bool {
	if err := unix.Kill(pid, 0); errors.Is(err, unix.ESRCH) {
		return true
	}
	stat, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if err != nil {
		return os.IsNotExist(err)
	}
	fields := strings.Fields(string(stat[strings.LastIndexByte(string(stat), ')')+1:]))
	return len(fields) > 0 && fields[0] == "Z"
}
