package providers

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/ghodss/yaml"
	"go.opentelemetry.io/otel/metric"

	"github.com/Ashab24/batch-job-orch/cmd/api/config"
	"github.com/Ashab24/batch-job-orch/lib/images"
	"github.com/Ashab24/batch-job-orch/lib/logger"
	"github.com/Ashab24/batch-job-orch/lib/manifest"
	"github.com/Ashab24/batch-job-orch/lib/otel"
	"github.com/Ashab24/batch-job-orch/lib/paths"
	"github.com/Ashab24/batch-job-orch/lib/runs"
)

// ProvideContext provides a base context
func ProvideContext() context.Context {
	return context.Background()
}

// ProvideLogger provides a structured logger
func ProvideLogger() *slog.Logger {
	return logger.New()
}

// ProvideConfig provides the application configuration
func ProvideConfig() *config.Config {
	return config.Load()
}

// ProvidePaths provides the data directory layout
func ProvidePaths(cfg *config.Config) *paths.Paths {
	return paths.New(cfg.DataDir)
}

// ProvideMeter provides the OTel meter, or nil when export is not configured
func ProvideMeter(ctx context.Context, log *slog.Logger) (metric.Meter, func(), error) {
	meter, shutdown, err := otel.SetupMetrics(ctx, "batch-job-orch")
	if err != nil {
		return nil, nil, fmt.Errorf("setup metrics: %w", err)
	}
	cleanup := func() {
		if err := shutdown(context.Background()); err != nil {
			log.Error("metrics shutdown", "error", err)
		}
	}
	return meter, cleanup, nil
}

// ProvidePackageIndex loads the package version index used for manifest
// resolution. Without a configured index every manifest entry is unknown,
// so builds fail loudly rather than silently resolving nothing.
func ProvidePackageIndex(cfg *config.Config, log *slog.Logger) (manifest.PackageIndex, error) {
	if cfg.PackageIndexPath == "" {
		log.Warn("PACKAGE_INDEX not set; manifest resolution will reject all packages")
		return manifest.StaticIndex{}, nil
	}

	data, err := os.ReadFile(cfg.PackageIndexPath)
	if err != nil {
		return nil, fmt.Errorf("read package index: %w", err)
	}

	var index manifest.StaticIndex
	if err := yaml.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("parse package index: %w", err)
	}
	log.Info("loaded package index", "path", cfg.PackageIndexPath, "packages", len(index))
	return index, nil
}

// ProvideImageManager provides the image manager
func ProvideImageManager(cfg *config.Config, p *paths.Paths, index manifest.PackageIndex, log *slog.Logger, meter metric.Meter) (images.Manager, error) {
	return images.NewManager(p, index, cfg.MaxConcurrentBuilds, log, meter)
}

// ProvideRuntime provides the run execution backend
func ProvideRuntime() runs.Runtime {
	return runs.NewExecRuntime()
}

// ProvideRunManager provides the run manager
func ProvideRunManager(p *paths.Paths, imageManager images.Manager, runtime runs.Runtime, log *slog.Logger, meter metric.Meter) (runs.Manager, error) {
	return runs.NewManager(p, imageManager, runtime, log, meter)
}
