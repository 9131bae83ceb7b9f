package runs

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashab24/batch-job-orch/lib/images"
	"github.com/Ashab24/batch-job-orch/lib/manifest"
	"github.com/Ashab24/batch-job-orch/lib/paths"
)

var testIndex = manifest.StaticIndex{
	"requests": {"2.31.0"},
}

// fakeRuntime satisfies Runtime without launching a process. It records the
// last StartOptions and drives the handle from the test.
type fakeRuntime struct {
	mu       sync.Mutex
	exitCode int
	output   string
	hold     bool

	lastOpts   StartOptions
	lastHandle *fakeHandle
}

func (f *fakeRuntime) Start(ctx context.Context, opts StartOptions) (Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.output != "" && opts.Output != nil {
		opts.Output.Write([]byte(f.output))
	}

	h := &fakeHandle{exitCode: f.exitCode, done: make(chan struct{})}
	if !f.hold {
		h.close()
	}

	f.lastOpts = opts
	f.lastHandle = h
	return h, nil
}

func (f *fakeRuntime) last() (StartOptions, *fakeHandle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastOpts, f.lastHandle
}

type fakeHandle struct {
	mu       sync.Mutex
	exitCode int
	done     chan struct{}
	closed   bool
}

func (h *fakeHandle) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.closed {
		h.closed = true
		close(h.done)
	}
}

func (h *fakeHandle) Wait(ctx context.Context) (ExitResult, error) {
	select {
	case <-ctx.Done():
		return ExitResult{ExitCode: -1}, ctx.Err()
	case <-h.done:
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return ExitResult{ExitCode: h.exitCode}, nil
}

func (h *fakeHandle) Stop(ctx context.Context, grace time.Duration) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrNotRunning
	}
	h.exitCode = 128 + 15
	h.mu.Unlock()
	h.close()
	return nil
}

// buildReadyImage assembles a hermetic sealed image and blocks until it is
// ready, so runs can materialize a real filesystem.
func buildReadyImage(t *testing.T, p *paths.Paths) *images.Image {
	t.Helper()

	im, err := images.NewManager(p, testIndex, 1, nil, nil)
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.py"), []byte("print('hi')\n"), 0644))

	img, err := im.CreateImage(context.Background(), images.CreateImageRequest{
		Name:        "event-rollup",
		Runtime:     "python312",
		Base:        "scratch",
		Manifest:    []byte("requests ==2.31.0\n"),
		SourceDir:   dir,
		EntryScript: "main.py",
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		img, err = im.GetImage(context.Background(), img.ID)
		return err == nil && img.Status == images.StatusReady
	}, 10*time.Second, 10*time.Millisecond)

	return img
}

func newTestManager(t *testing.T, rt Runtime) (Manager, *paths.Paths, *images.Image) {
	t.Helper()
	p := paths.New(t.TempDir())
	img := buildReadyImage(t, p)

	im, err := images.NewManager(p, testIndex, 1, nil, nil)
	require.NoError(t, err)

	m, err := NewManager(p, im, rt, nil, nil)
	require.NoError(t, err)
	return m, p, img
}

func awaitTerminal(t *testing.T, m Manager, id string) *Run {
	t.Helper()
	var run *Run
	require.Eventually(t, func() bool {
		var err error
		run, err = m.GetRun(context.Background(), id)
		if err != nil {
			return false
		}
		return run.Status == StatusSucceeded || run.Status == StatusFailed
	}, 10*time.Second, 10*time.Millisecond)
	return run
}

func TestCreateRun_Succeeds(t *testing.T) {
	rt := &fakeRuntime{exitCode: 0}
	m, p, img := newTestManager(t, rt)

	run, err := m.CreateRun(context.Background(), CreateRunRequest{
		ImageID: img.ID,
		Env:     map[string]string{"INPUT_BUCKET": "raw-events"},
	})
	require.NoError(t, err)

	final := awaitTerminal(t, m, run.ID)
	assert.Equal(t, StatusSucceeded, final.Status)
	require.NotNil(t, final.ExitCode)
	assert.Equal(t, 0, *final.ExitCode)
	assert.NotNil(t, final.StartedAt)
	assert.NotNil(t, final.CompletedAt)

	opts, _ := rt.last()

	// The sealed entrypoint is invoked verbatim, with no extra arguments.
	assert.Equal(t, img.Entrypoint, opts.Command)

	// Build-time flag variables and platform-injected variables both land in
	// the process environment.
	assert.Contains(t, opts.Env, "PYTHONUNBUFFERED=1")
	assert.Contains(t, opts.Env, "PYTHONDONTWRITEBYTECODE=1")
	assert.Contains(t, opts.Env, "INPUT_BUCKET=raw-events")

	// The working directory is the image's, inside a materialized filesystem
	// containing the source.
	assert.Equal(t, img.WorkingDir, "/"+filepath.Base(opts.Dir))
	assert.FileExists(t, filepath.Join(opts.Dir, "main.py"))

	// Scratch filesystem is gone after completion.
	assert.NoDirExists(t, p.RunRootfs(run.ID))
}

func TestCreateRun_InjectedEnvWins(t *testing.T) {
	rt := &fakeRuntime{}
	m, _, img := newTestManager(t, rt)

	run, err := m.CreateRun(context.Background(), CreateRunRequest{
		ImageID: img.ID,
		Env:     map[string]string{"PYTHONUNBUFFERED": "0"},
	})
	require.NoError(t, err)
	awaitTerminal(t, m, run.ID)

	opts, _ := rt.last()
	assert.Contains(t, opts.Env, "PYTHONUNBUFFERED=0")
	assert.NotContains(t, opts.Env, "PYTHONUNBUFFERED=1")
}

func TestCreateRun_NonZeroExitFails(t *testing.T) {
	rt := &fakeRuntime{exitCode: 5}
	m, _, img := newTestManager(t, rt)

	run, err := m.CreateRun(context.Background(), CreateRunRequest{ImageID: img.ID})
	require.NoError(t, err)

	final := awaitTerminal(t, m, run.ID)
	assert.Equal(t, StatusFailed, final.Status)
	require.NotNil(t, final.ExitCode)
	assert.Equal(t, 5, *final.ExitCode)
}

func TestCreateRun_ImageNotUsable(t *testing.T) {
	p := paths.New(t.TempDir())
	im, err := images.NewManager(p, testIndex, 1, nil, nil)
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.py"), []byte(""), 0644))

	img, err := im.CreateImage(context.Background(), images.CreateImageRequest{
		Name:        "broken",
		Runtime:     "python312",
		Base:        "scratch",
		Manifest:    []byte("no-such-package ==1.0.0\n"),
		SourceDir:   dir,
		EntryScript: "main.py",
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		img, err = im.GetImage(context.Background(), img.ID)
		return err == nil && img.Status == images.StatusFailed
	}, 10*time.Second, 10*time.Millisecond)

	m, err := NewManager(p, im, &fakeRuntime{}, nil, nil)
	require.NoError(t, err)

	_, err = m.CreateRun(context.Background(), CreateRunRequest{ImageID: img.ID})
	assert.ErrorIs(t, err, ErrImageNotUsable)

	_, err = m.CreateRun(context.Background(), CreateRunRequest{ImageID: "img-missing"})
	assert.ErrorIs(t, err, images.ErrNotFound)
}

func TestCancelRun(t *testing.T) {
	rt := &fakeRuntime{hold: true}
	m, _, img := newTestManager(t, rt)

	run, err := m.CreateRun(context.Background(), CreateRunRequest{ImageID: img.ID})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		r, err := m.GetRun(context.Background(), run.ID)
		return err == nil && r.Status == StatusRunning
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, m.CancelRun(context.Background(), run.ID))

	final := awaitTerminal(t, m, run.ID)
	assert.Equal(t, StatusFailed, final.Status)
	require.NotNil(t, final.ExitCode)
	assert.Equal(t, 128+15, *final.ExitCode)

	// Terminal runs cannot be cancelled again.
	assert.ErrorIs(t, m.CancelRun(context.Background(), run.ID), ErrNotRunning)
	assert.ErrorIs(t, m.CancelRun(context.Background(), "run-missing"), ErrNotFound)
}

func TestStreamRunLogs(t *testing.T) {
	rt := &fakeRuntime{output: "line one\nline two\n"}
	m, _, img := newTestManager(t, rt)

	run, err := m.CreateRun(context.Background(), CreateRunRequest{ImageID: img.ID})
	require.NoError(t, err)
	awaitTerminal(t, m, run.ID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, err := m.StreamRunLogs(ctx, run.ID, 10, false)
	require.NoError(t, err)

	var lines []string
	for line := range ch {
		lines = append(lines, line)
	}
	assert.Equal(t, []string{"line one", "line two"}, lines)
}

func TestListRuns(t *testing.T) {
	rt := &fakeRuntime{}
	m, _, img := newTestManager(t, rt)

	runs, err := m.ListRuns(context.Background())
	require.NoError(t, err)
	assert.Empty(t, runs)

	first, err := m.CreateRun(context.Background(), CreateRunRequest{ImageID: img.ID})
	require.NoError(t, err)
	awaitTerminal(t, m, first.ID)

	second, err := m.CreateRun(context.Background(), CreateRunRequest{ImageID: img.ID})
	require.NoError(t, err)
	awaitTerminal(t, m, second.ID)

	runs, err = m.ListRuns(context.Background())
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}
