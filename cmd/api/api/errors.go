package api

import (
	"errors"
	"net/http"

	"github.com/Ashab24/batch-job-orch/lib/images"
	"github.com/Ashab24/batch-job-orch/lib/logger"
	"github.com/Ashab24/batch-job-orch/lib/manifest"
	"github.com/Ashab24/batch-job-orch/lib/runs"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// respondError maps manager errors onto HTTP statuses.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	code := "error"

	switch {
	case errors.Is(err, images.ErrNotFound), errors.Is(err, runs.ErrNotFound):
		status = http.StatusNotFound
		code = "not_found"
	case errors.Is(err, images.ErrAlreadyExists):
		status = http.StatusConflict
		code = "already_exists"
	case errors.Is(err, runs.ErrNotRunning):
		status = http.StatusConflict
		code = "not_running"
	case errors.Is(err, images.ErrInvalidName),
		errors.Is(err, images.ErrUnknownFlag),
		errors.Is(err, runs.ErrImageNotUsable),
		errors.Is(err, manifest.ErrEmpty),
		errors.Is(err, manifest.ErrBadEntry):
		status = http.StatusBadRequest
		code = "bad_request"
	}

	if status == http.StatusInternalServerError {
		logger.FromContext(r.Context()).ErrorContext(r.Context(), "request failed", "error", err)
	}

	respondJSON(w, status, apiError{Code: code, Message: err.Error()})
}

func badRequest(w http.ResponseWriter, message string) {
	respondJSON(w, http.StatusBadRequest, apiError{Code: "bad_request", Message: message})
}
