package runs

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/Ashab24/batch-job-orch/lib/paths"
)

type runMetadata struct {
	ID          string            `json:"id"`
	ImageID     string            `json:"image_id"`
	Status      string            `json:"status"`
	ExitCode    *int              `json:"exit_code,omitempty"`
	Error       *string           `json:"error,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

func (m *runMetadata) toRun() *Run {
	return &Run{
		ID:          m.ID,
		ImageID:     m.ImageID,
		Status:      m.Status,
		ExitCode:    m.ExitCode,
		Error:       m.Error,
		Env:         m.Env,
		CreatedAt:   m.CreatedAt,
		StartedAt:   m.StartedAt,
		CompletedAt: m.CompletedAt,
	}
}

func writeMetadata(p *paths.Paths, meta *runMetadata) error {
	if err := os.MkdirAll(p.RunDir(meta.ID), 0755); err != nil {
		return fmt.Errorf("create run directory: %w", err)
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	tempPath := p.RunMetadata(meta.ID) + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write temp metadata: %w", err)
	}

	if err := os.Rename(tempPath, p.RunMetadata(meta.ID)); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename metadata: %w", err)
	}

	return nil
}

func readMetadata(p *paths.Paths, id string) (*runMetadata, error) {
	data, err := os.ReadFile(p.RunMetadata(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read metadata: %w", err)
	}

	var meta runMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}

	return &meta, nil
}

func listMetadata(p *paths.Paths) ([]*runMetadata, error) {
	entries, err := os.ReadDir(p.RunsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return []*runMetadata{}, nil
		}
		return nil, fmt.Errorf("read runs directory: %w", err)
	}

	var metas []*runMetadata
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := readMetadata(p, entry.Name())
		if err != nil {
			continue
		}
		metas = append(metas, meta)
	}

	return metas, nil
}
