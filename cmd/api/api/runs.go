package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Ashab24/batch-job-orch/lib/runs"
)

type createRunBody struct {
	ImageID string            `json:"image_id"`
	Env     map[string]string `json:"env,omitempty"`
}

// CreateRun launches a run of a sealed image
func (s *ApiService) CreateRun(w http.ResponseWriter, r *http.Request) {
	var body createRunBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, "decode request body: "+err.Error())
		return
	}
	if body.ImageID == "" {
		badRequest(w, "image_id is required")
		return
	}

	run, err := s.RunManager.CreateRun(r.Context(), runs.CreateRunRequest{
		ImageID: body.ImageID,
		Env:     body.Env,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, run)
}

// ListRuns lists all runs
func (s *ApiService) ListRuns(w http.ResponseWriter, r *http.Request) {
	all, err := s.RunManager.ListRuns(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, all)
}

// GetRun gets run details
func (s *ApiService) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.RunManager.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, run)
}

// CancelRun terminates a running run
func (s *ApiService) CancelRun(w http.ResponseWriter, r *http.Request) {
	if err := s.RunManager.CancelRun(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// GetRunLogs streams the run's captured output as plain text, one line per
// write. With follow=true the response stays open until the client goes
// away.
func (s *ApiService) GetRunLogs(w http.ResponseWriter, r *http.Request) {
	tail := 100
	if raw := r.URL.Query().Get("tail"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			badRequest(w, "tail must be a non-negative integer")
			return
		}
		tail = n
	}
	follow := r.URL.Query().Get("follow") == "true"

	lines, err := s.RunManager.StreamRunLogs(r.Context(), chi.URLParam(r, "id"), tail, follow)
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	for line := range lines {
		if _, err := w.Write([]byte(line + "\n")); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}
