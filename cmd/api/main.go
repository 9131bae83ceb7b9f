package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ghodss/yaml"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	batchjoborch "github.com/Ashab24/batch-job-orch"
	"github.com/Ashab24/batch-job-orch/cmd/api/api"
	"github.com/Ashab24/batch-job-orch/cmd/api/config"
	"github.com/Ashab24/batch-job-orch/lib/images"
	"github.com/Ashab24/batch-job-orch/lib/middleware"
	"github.com/Ashab24/batch-job-orch/lib/runs"
)

// application holds the initialized components
type application struct {
	Ctx          context.Context
	Logger       *slog.Logger
	Config       *config.Config
	Meter        metric.Meter
	ImageManager images.Manager
	RunManager   runs.Manager
	ApiService   *api.ApiService
}

func main() {
	if err := run(); err != nil {
		slog.Error("application terminated", "error", err)
		os.Exit(1)
	}
}

func run() error {
	app, cleanup, err := initializeApp()
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}
	defer cleanup()

	logger := app.Logger
	slog.SetDefault(logger)

	// Setup context with signal handling
	ctx, stop := signal.NotifyContext(app.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsMiddleware := middleware.NoopHTTPMetrics()
	if app.Meter != nil {
		httpMetrics, err := middleware.NewHTTPMetrics(app.Meter)
		if err != nil {
			return fmt.Errorf("create http metrics: %w", err)
		}
		metricsMiddleware = httpMetrics.Middleware
	}

	r := chi.NewRouter()

	// Serve OpenAPI spec
	r.Get("/spec.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.oai.openapi")
		w.Write(batchjoborch.OpenAPIYAML)
	})

	r.Get("/spec.json", func(w http.ResponseWriter, r *http.Request) {
		jsonData, err := yaml.YAMLToJSON(batchjoborch.OpenAPIYAML)
		if err != nil {
			http.Error(w, "Failed to convert YAML to JSON", http.StatusInternalServerError)
			logger.ErrorContext(r.Context(), "Failed to convert YAML to JSON", "error", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(jsonData)
	})

	// Mount API routes
	r.Mount("/", app.ApiService.Router(logger, metricsMiddleware))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", app.Config.Port),
		Handler: r,
	}

	// Error group for coordinated shutdown
	grp, gctx := errgroup.WithContext(ctx)

	grp.Go(func() error {
		logger.Info("starting API server", "port", app.Config.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			return err
		}
		return nil
	})

	grp.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown http server", "error", err)
			return err
		}

		logger.Info("http server shutdown complete")
		return nil
	})

	return grp.Wait()
}
