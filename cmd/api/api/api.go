package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Ashab24/batch-job-orch/cmd/api/config"
	"github.com/Ashab24/batch-job-orch/lib/images"
	"github.com/Ashab24/batch-job-orch/lib/middleware"
	"github.com/Ashab24/batch-job-orch/lib/runs"
)

// ApiService holds the managers behind the HTTP surface.
type ApiService struct {
	Config       *config.Config
	ImageManager images.Manager
	RunManager   runs.Manager
}

// New creates a new ApiService
func New(
	config *config.Config,
	imageManager images.Manager,
	runManager runs.Manager,
) *ApiService {
	return &ApiService{
		Config:       config,
		ImageManager: imageManager,
		RunManager:   runManager,
	}
}

// Router mounts the API routes with the standard middleware stack. The
// metrics middleware is injected so it can be a no-op when OTel is disabled.
func (s *ApiService) Router(log *slog.Logger, metricsMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.InjectLogger(log))
	r.Use(middleware.AccessLogger(log))
	r.Use(metricsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(pr chi.Router) {
		if s.Config.JwtSecret != "" {
			pr.Use(middleware.VerifyJWT(s.Config.JwtSecret))
		}

		pr.Route("/images", func(ir chi.Router) {
			ir.Post("/", s.CreateImage)
			ir.Get("/", s.ListImages)
			ir.Get("/{id}", s.GetImage)
			ir.Get("/{id}/dockerfile", s.GetImageDockerfile)
			ir.Delete("/{id}", s.DeleteImage)
		})

		pr.Route("/runs", func(rr chi.Router) {
			rr.Post("/", s.CreateRun)
			rr.Get("/", s.ListRuns)
			rr.Get("/{id}", s.GetRun)
			rr.Delete("/{id}", s.CancelRun)
			rr.Get("/{id}/logs", s.GetRunLogs)
		})
	})

	return r
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
