package api

import (
	"errors"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Ashab24/batch-job-orch/lib/archive"
	"github.com/Ashab24/batch-job-orch/lib/images"
)

// maxManifestSize bounds the dependency manifest upload. Manifests are
// hand-written text files; anything bigger is a mistake.
const maxManifestSize = 1 << 20

// CreateImage accepts a multipart build request: metadata fields plus a
// manifest file and a gzipped source tarball. The build runs asynchronously;
// the response carries the initial status and queue position.
func (s *ApiService) CreateImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.Config.MaxSourceSize+maxManifestSize)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		badRequest(w, "parse multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	manifestFile, _, err := r.FormFile("manifest")
	if err != nil {
		badRequest(w, "manifest file is required")
		return
	}
	defer manifestFile.Close()

	manifestData, err := io.ReadAll(io.LimitReader(manifestFile, maxManifestSize))
	if err != nil {
		badRequest(w, "read manifest: "+err.Error())
		return
	}

	sourceFile, _, err := r.FormFile("source")
	if err != nil {
		badRequest(w, "source archive is required")
		return
	}
	defer sourceFile.Close()

	sourceDir, err := os.MkdirTemp("", "image-source-")
	if err != nil {
		respondError(w, r, err)
		return
	}

	if _, err := archive.ExtractTarGz(sourceFile, sourceDir, s.Config.MaxSourceSize); err != nil {
		os.RemoveAll(sourceDir)
		if errors.Is(err, archive.ErrTooLarge) || errors.Is(err, archive.ErrInvalidPath) {
			badRequest(w, "source archive: "+err.Error())
			return
		}
		respondError(w, r, err)
		return
	}

	req := images.CreateImageRequest{
		Name:          r.FormValue("name"),
		Runtime:       r.FormValue("runtime"),
		Base:          r.FormValue("base"),
		Manifest:      manifestData,
		SourceDir:     sourceDir,
		EntryScript:   r.FormValue("entry_script"),
		Flags:         parseFlags(r.FormValue("flags")),
		CleanupSource: true,
	}

	img, err := s.ImageManager.CreateImage(r.Context(), req)
	if err != nil {
		// The build was never accepted, so the source is still ours.
		os.RemoveAll(sourceDir)
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, img)
}

// parseFlags maps the form field onto the request's flag semantics: an
// absent field keeps the defaults (nil), "none" disables all flags, and
// anything else is a comma-separated list.
func parseFlags(raw string) []string {
	if raw == "" {
		return nil
	}
	if raw == "none" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	flags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			flags = append(flags, p)
		}
	}
	return flags
}

// ListImages lists all images
func (s *ApiService) ListImages(w http.ResponseWriter, r *http.Request) {
	imgs, err := s.ImageManager.ListImages(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, imgs)
}

// GetImage gets image details
func (s *ApiService) GetImage(w http.ResponseWriter, r *http.Request) {
	img, err := s.ImageManager.GetImage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, img)
}

// GetImageDockerfile returns the image's build contract rendered as a
// Dockerfile, so the build can be reproduced with standard tooling.
func (s *ApiService) GetImageDockerfile(w http.ResponseWriter, r *http.Request) {
	df, err := s.ImageManager.GetImageDockerfile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(df))
}

// DeleteImage deletes an image
func (s *ApiService) DeleteImage(w http.ResponseWriter, r *http.Request) {
	if err := s.ImageManager.DeleteImage(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
