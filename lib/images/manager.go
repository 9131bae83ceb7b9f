package images

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/nrednav/cuid2"
	"go.opentelemetry.io/otel/metric"

	"github.com/Ashab24/batch-job-orch/lib/manifest"
	"github.com/Ashab24/batch-job-orch/lib/paths"
)

// Manager handles sealed-image lifecycle operations.
type Manager interface {
	// CreateImage accepts a build and runs it asynchronously; the returned
	// image carries the initial status and queue position.
	CreateImage(ctx context.Context, req CreateImageRequest) (*Image, error)
	GetImage(ctx context.Context, id string) (*Image, error)
	// GetImageDockerfile renders the image's build contract as a Dockerfile,
	// for users who want to reproduce the build with standard tooling.
	GetImageDockerfile(ctx context.Context, id string) (string, error)
	ListImages(ctx context.Context) ([]Image, error)
	DeleteImage(ctx context.Context, id string) error
}

type manager struct {
	paths   *paths.Paths
	index   manifest.PackageIndex
	queue   *buildQueue
	logger  *slog.Logger
	metrics *Metrics
}

// NewManager creates an image manager resolving dependencies against the
// given package index. meter may be nil to disable metrics.
func NewManager(p *paths.Paths, index manifest.PackageIndex, maxConcurrent int, logger *slog.Logger, meter metric.Meter) (Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}

	m := &manager{
		paths:  p,
		index:  index,
		queue:  newBuildQueue(maxConcurrent),
		logger: logger,
	}

	if meter != nil {
		metrics, err := NewMetrics(meter, m.queue)
		if err != nil {
			return nil, fmt.Errorf("create metrics: %w", err)
		}
		m.metrics = metrics
	}

	return m, nil
}

func (m *manager) CreateImage(ctx context.Context, req CreateImageRequest) (*Image, error) {
	rt, err := GetRuntime(req.Runtime)
	if err != nil {
		return nil, err
	}

	// Validate flags before accepting the build.
	env, err := rt.EnvForFlags(req.Flags)
	if err != nil {
		return nil, err
	}

	// Manifest parse failures are synchronous build failures: the build is
	// never accepted and no artifact of any kind is produced.
	man, err := manifest.Parse(req.Manifest)
	if err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	if req.EntryScript == "" {
		return nil, fmt.Errorf("entry script is required")
	}
	if _, err := os.Stat(m.entryPath(req)); err != nil {
		return nil, fmt.Errorf("entry script %s: %w", req.EntryScript, err)
	}

	id := req.ID
	if id == "" {
		id = generateImageID(req.Name)
	}
	if imageExists(m.paths, id) {
		return nil, ErrAlreadyExists
	}

	meta := &imageMetadata{
		ID:           id,
		Name:         req.Name,
		Runtime:      req.Runtime,
		Status:       StatusPending,
		ManifestHash: man.Hash(),
		Base:         req.Base,
		EntryScript:  req.EntryScript,
		Env:          env,
		CreatedAt:    time.Now(),
	}
	if err := writeMetadata(m.paths, meta); err != nil {
		return nil, fmt.Errorf("write metadata: %w", err)
	}

	pos := m.queue.enqueue(id, func() {
		m.runBuild(context.Background(), id, req, man, env, rt)
	})
	if pos > 0 {
		meta.QueuePosition = &pos
		if err := writeMetadata(m.paths, meta); err != nil {
			m.logger.Error("write metadata for queue position", "id", id, "error", err)
		}
	}

	m.logger.Info("image build accepted", "id", id, "runtime", req.Runtime, "queue_position", pos)
	return meta.toImage(), nil
}

// runBuild executes one build to completion and releases the queue slot.
func (m *manager) runBuild(ctx context.Context, id string, req CreateImageRequest, man *manifest.Manifest, env map[string]string, rt *Runtime) {
	defer m.queue.markComplete(id)
	if req.CleanupSource {
		defer os.RemoveAll(req.SourceDir)
	}

	start := time.Now()
	m.logger.Info("starting image build", "id", id)

	m.updateStatus(id, StatusResolving)

	locked, err := man.Resolve(m.index)
	if err != nil {
		m.failBuild(ctx, id, req.Runtime, start, fmt.Errorf("resolve dependencies: %w", err))
		return
	}

	m.updateStatus(id, StatusAssembling)

	result, err := m.assemble(ctx, id, req, locked, env, rt)
	if err != nil {
		m.failBuild(ctx, id, req.Runtime, start, err)
		return
	}

	meta, readErr := readMetadata(m.paths, id)
	if readErr != nil {
		m.logger.Error("read metadata after assemble", "id", id, "error", readErr)
		return
	}
	meta.Status = StatusReady
	meta.QueuePosition = nil
	meta.Digest = result.digest.String()
	meta.DepsLayer = result.depsDiffID.String()
	meta.SizeBytes = &result.sizeBytes
	meta.Entrypoint = result.entrypoint
	meta.Env = result.env
	meta.WorkingDir = workDir
	if err := writeMetadata(m.paths, meta); err != nil {
		m.logger.Error("write metadata after assemble", "id", id, "error", err)
		return
	}

	duration := time.Since(start)
	m.logger.Info("image sealed", "id", id, "digest", meta.Digest, "duration", duration)
	if m.metrics != nil {
		m.metrics.RecordBuild(ctx, "success", req.Runtime, duration)
	}
}

// failBuild records the failure and guarantees no partial sealed artifact
// remains on disk.
func (m *manager) failBuild(ctx context.Context, id, runtime string, start time.Time, buildErr error) {
	removeLayout(m.paths, id)

	m.logger.Error("image build failed", "id", id, "error", buildErr)

	meta, err := readMetadata(m.paths, id)
	if err != nil {
		m.logger.Error("read metadata for failure", "id", id, "error", err)
		return
	}
	meta.Status = StatusFailed
	meta.QueuePosition = nil
	msg := buildErr.Error()
	meta.Error = &msg
	if err := writeMetadata(m.paths, meta); err != nil {
		m.logger.Error("write metadata for failure", "id", id, "error", err)
	}

	if m.metrics != nil {
		m.metrics.RecordBuild(ctx, "failed", runtime, time.Since(start))
	}
}

func (m *manager) updateStatus(id, status string) {
	meta, err := readMetadata(m.paths, id)
	if err != nil {
		m.logger.Error("read metadata for status update", "id", id, "error", err)
		return
	}
	meta.Status = status
	meta.QueuePosition = m.queue.position(id)
	if err := writeMetadata(m.paths, meta); err != nil {
		m.logger.Error("write metadata for status update", "id", id, "error", err)
	}
}

func (m *manager) GetImage(ctx context.Context, id string) (*Image, error) {
	meta, err := readMetadata(m.paths, id)
	if err != nil {
		return nil, err
	}
	img := meta.toImage()
	img.QueuePosition = m.queue.position(id)
	return img, nil
}

func (m *manager) GetImageDockerfile(ctx context.Context, id string) (string, error) {
	meta, err := readMetadata(m.paths, id)
	if err != nil {
		return "", err
	}
	rt, err := GetRuntime(meta.Runtime)
	if err != nil {
		return "", err
	}
	return rt.Dockerfile(meta.Base, meta.EntryScript, meta.Env), nil
}

func (m *manager) ListImages(ctx context.Context) ([]Image, error) {
	metas, err := listMetadata(m.paths)
	if err != nil {
		return nil, fmt.Errorf("list metadata: %w", err)
	}

	images := make([]Image, 0, len(metas))
	for _, meta := range metas {
		images = append(images, *meta.toImage())
	}
	return images, nil
}

func (m *manager) DeleteImage(ctx context.Context, id string) error {
	return deleteImage(m.paths, id)
}

func (m *manager) entryPath(req CreateImageRequest) string {
	return req.SourceDir + string(os.PathSeparator) + req.EntryScript
}

var idSanitizer = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// generateImageID derives a stable-looking ID from the image name, with a
// short random suffix to keep repeated builds of the same name distinct.
func generateImageID(name string) string {
	sanitized := strings.Trim(idSanitizer.ReplaceAllString(name, "-"), "-")
	if sanitized == "" {
		sanitized = "image"
	}
	suffix := cuid2.Generate()
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return fmt.Sprintf("img-%s-%s", strings.ToLower(sanitized), suffix)
}
