package runs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/nrednav/cuid2"
	"go.opentelemetry.io/otel/metric"

	"github.com/Ashab24/batch-job-orch/lib/images"
	"github.com/Ashab24/batch-job-orch/lib/paths"
)

// Manager handles run lifecycle operations: launch, wait, cancel, logs.
// There is no retry and no partial-result handling; a run is one process
// executed to completion, and its exit status is the run's exit status.
type Manager interface {
	CreateRun(ctx context.Context, req CreateRunRequest) (*Run, error)
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context) ([]Run, error)
	// CancelRun delivers SIGTERM and escalates to SIGKILL. The recorded
	// exit code reflects the signal (128+signal), never success.
	CancelRun(ctx context.Context, id string) error
	// StreamRunLogs returns the last tail lines and, when follow is set,
	// keeps streaming until the context is cancelled.
	StreamRunLogs(ctx context.Context, id string, tail int, follow bool) (<-chan string, error)
}

// cancelGrace is how long SIGTERM gets before SIGKILL.
const cancelGrace = 10 * time.Second

type manager struct {
	paths        *paths.Paths
	imageManager images.Manager
	runtime      Runtime
	logger       *slog.Logger
	metrics      *Metrics

	mu      sync.Mutex
	handles map[string]Handle
}

// NewManager creates a run manager executing on the given runtime. meter
// may be nil to disable metrics.
func NewManager(p *paths.Paths, imageManager images.Manager, runtime Runtime, logger *slog.Logger, meter metric.Meter) (Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}

	m := &manager{
		paths:        p,
		imageManager: imageManager,
		runtime:      runtime,
		logger:       logger,
		handles:      make(map[string]Handle),
	}

	if meter != nil {
		metrics, err := NewMetrics(meter)
		if err != nil {
			return nil, fmt.Errorf("create metrics: %w", err)
		}
		m.metrics = metrics
	}

	return m, nil
}

func (m *manager) CreateRun(ctx context.Context, req CreateRunRequest) (*Run, error) {
	img, err := m.imageManager.GetImage(ctx, req.ImageID)
	if err != nil {
		return nil, err
	}
	if img.Status != images.StatusReady {
		return nil, fmt.Errorf("%w: status %s", ErrImageNotUsable, img.Status)
	}

	id := "run-" + cuid2.Generate()

	meta := &runMetadata{
		ID:        id,
		ImageID:   req.ImageID,
		Status:    StatusPending,
		Env:       req.Env,
		CreatedAt: time.Now(),
	}
	if err := writeMetadata(m.paths, meta); err != nil {
		return nil, fmt.Errorf("write metadata: %w", err)
	}

	rootfs, err := materialize(m.paths, id, req.ImageID)
	if err != nil {
		m.completeWithError(id, fmt.Errorf("materialize image: %w", err))
		return nil, fmt.Errorf("materialize image: %w", err)
	}

	logFile, err := os.OpenFile(m.paths.RunLog(id), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		m.completeWithError(id, err)
		return nil, fmt.Errorf("open run log: %w", err)
	}

	handle, err := m.runtime.Start(ctx, StartOptions{
		Dir:     filepath.Join(rootfs, img.WorkingDir),
		Command: img.Entrypoint,
		Env:     mergedEnv(img.Env, req.Env),
		Output:  logFile,
	})
	if err != nil {
		logFile.Close()
		m.completeWithError(id, err)
		return nil, fmt.Errorf("start run: %w", err)
	}

	now := time.Now()
	meta.Status = StatusRunning
	meta.StartedAt = &now
	if err := writeMetadata(m.paths, meta); err != nil {
		m.logger.Error("write metadata after start", "id", id, "error", err)
	}

	m.mu.Lock()
	m.handles[id] = handle
	m.mu.Unlock()

	m.logger.Info("run started", "id", id, "image", req.ImageID)

	go m.awaitRun(id, handle, logFile, now)

	return meta.toRun(), nil
}

// awaitRun blocks on the single process and records its terminal state.
func (m *manager) awaitRun(id string, handle Handle, logFile *os.File, started time.Time) {
	result, waitErr := handle.Wait(context.Background())
	logFile.Close()

	m.mu.Lock()
	delete(m.handles, id)
	m.mu.Unlock()

	// The materialized filesystem is per-run scratch space.
	os.RemoveAll(m.paths.RunRootfs(id))

	meta, err := readMetadata(m.paths, id)
	if err != nil {
		m.logger.Error("read metadata at run completion", "id", id, "error", err)
		return
	}

	now := time.Now()
	meta.CompletedAt = &now

	if waitErr != nil {
		meta.Status = StatusFailed
		msg := waitErr.Error()
		meta.Error = &msg
	} else {
		meta.ExitCode = &result.ExitCode
		if result.ExitCode == 0 {
			meta.Status = StatusSucceeded
		} else {
			meta.Status = StatusFailed
		}
	}

	if err := writeMetadata(m.paths, meta); err != nil {
		m.logger.Error("write metadata at run completion", "id", id, "error", err)
	}

	duration := now.Sub(started)
	exitCode := -1
	if meta.ExitCode != nil {
		exitCode = *meta.ExitCode
	}
	m.logger.Info("run completed", "id", id, "status", meta.Status, "exit_code", exitCode, "duration", duration)
	if m.metrics != nil {
		m.metrics.RecordRun(context.Background(), meta.Status, exitCode, duration)
	}
}

func (m *manager) completeWithError(id string, cause error) {
	meta, err := readMetadata(m.paths, id)
	if err != nil {
		return
	}
	now := time.Now()
	meta.Status = StatusFailed
	meta.CompletedAt = &now
	msg := cause.Error()
	meta.Error = &msg
	writeMetadata(m.paths, meta)
}

func (m *manager) GetRun(ctx context.Context, id string) (*Run, error) {
	meta, err := readMetadata(m.paths, id)
	if err != nil {
		return nil, err
	}
	return meta.toRun(), nil
}

func (m *manager) ListRuns(ctx context.Context) ([]Run, error) {
	metas, err := listMetadata(m.paths)
	if err != nil {
		return nil, fmt.Errorf("list metadata: %w", err)
	}

	runs := make([]Run, 0, len(metas))
	for _, meta := range metas {
		runs = append(runs, *meta.toRun())
	}
	return runs, nil
}

func (m *manager) CancelRun(ctx context.Context, id string) error {
	if _, err := readMetadata(m.paths, id); err != nil {
		return err
	}

	m.mu.Lock()
	handle, ok := m.handles[id]
	m.mu.Unlock()
	if !ok {
		return ErrNotRunning
	}

	m.logger.Info("cancelling run", "id", id)
	return handle.Stop(ctx, cancelGrace)
}

// mergedEnv layers the platform-injected environment over the image's
// build-time environment. Platform values win on collision.
func mergedEnv(imageEnv, injected map[string]string) []string {
	merged := make(map[string]string, len(imageEnv)+len(injected))
	for k, v := range imageEnv {
		merged[k] = v
	}
	for k, v := range injected {
		merged[k] = v
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+merged[k])
	}
	return env
}
