package images

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/Ashab24/batch-job-orch/lib/paths"
)

// imageMetadata is the metadata stored on disk next to the sealed layout.
type imageMetadata struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Runtime       string            `json:"runtime"`
	Status        string            `json:"status"`
	QueuePosition *int              `json:"queue_position,omitempty"`
	Error         *string           `json:"error,omitempty"`
	Digest        string            `json:"digest,omitempty"`
	DepsLayer     string            `json:"deps_layer,omitempty"`
	ManifestHash  string            `json:"manifest_hash,omitempty"`
	SizeBytes     *int64            `json:"size_bytes,omitempty"`
	Base          string            `json:"base,omitempty"`
	EntryScript   string            `json:"entry_script,omitempty"`
	Entrypoint    []string          `json:"entrypoint,omitempty"`
	Env           map[string]string `json:"env,omitempty"`
	WorkingDir    string            `json:"working_dir,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

func (m *imageMetadata) toImage() *Image {
	return &Image{
		ID:            m.ID,
		Name:          m.Name,
		Runtime:       m.Runtime,
		Status:        m.Status,
		QueuePosition: m.QueuePosition,
		Error:         m.Error,
		Digest:        m.Digest,
		DepsLayer:     m.DepsLayer,
		ManifestHash:  m.ManifestHash,
		SizeBytes:     m.SizeBytes,
		Base:          m.Base,
		EntryScript:   m.EntryScript,
		Entrypoint:    m.Entrypoint,
		Env:           m.Env,
		WorkingDir:    m.WorkingDir,
		CreatedAt:     m.CreatedAt,
	}
}

// writeMetadata writes metadata atomically using temp file + rename.
func writeMetadata(p *paths.Paths, meta *imageMetadata) error {
	if err := os.MkdirAll(p.ImageDir(meta.ID), 0755); err != nil {
		return fmt.Errorf("create image directory: %w", err)
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	tempPath := p.ImageMetadata(meta.ID) + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write temp metadata: %w", err)
	}

	if err := os.Rename(tempPath, p.ImageMetadata(meta.ID)); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename metadata: %w", err)
	}

	return nil
}

func readMetadata(p *paths.Paths, id string) (*imageMetadata, error) {
	data, err := os.ReadFile(p.ImageMetadata(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read metadata: %w", err)
	}

	var meta imageMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}

	return &meta, nil
}

func listMetadata(p *paths.Paths) ([]*imageMetadata, error) {
	entries, err := os.ReadDir(p.ImagesDir())
	if err != nil {
		if os.IsNotExist(err) {
			return []*imageMetadata{}, nil
		}
		return nil, fmt.Errorf("read images directory: %w", err)
	}

	var metas []*imageMetadata
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := readMetadata(p, entry.Name())
		if err != nil {
			// Skip invalid entries rather than failing the listing.
			continue
		}
		metas = append(metas, meta)
	}

	return metas, nil
}

func imageExists(p *paths.Paths, id string) bool {
	_, err := readMetadata(p, id)
	return err == nil
}

func deleteImage(p *paths.Paths, id string) error {
	dir := p.ImageDir(id)
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("stat image directory: %w", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove image directory: %w", err)
	}

	return nil
}

// removeLayout deletes the sealed layout for a failed build so no partial
// image artifact remains; the failure metadata itself is kept.
func removeLayout(p *paths.Paths, id string) {
	os.RemoveAll(p.ImageLayout(id))
}
