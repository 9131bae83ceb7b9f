package runs

import "time"

// Run status constants. The container itself has no observable state between
// launch and termination; these statuses are the platform-side record.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Run is one invocation of a sealed image, executed to completion exactly
// once. The exit code is the entry process's own, surfaced verbatim; a
// process killed by a signal reports 128+signal.
type Run struct {
	ID          string            `json:"id"`
	ImageID     string            `json:"image_id"`
	Status      string            `json:"status"`
	ExitCode    *int              `json:"exit_code,omitempty"`
	Error       *string           `json:"error,omitempty"`
	Env         map[string]string `json:"env,omitempty"` // platform-injected environment
	CreatedAt   time.Time         `json:"created_at"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

// CreateRunRequest starts a run of a sealed image. No command-line arguments
// exist: the platform injects environment variables only.
type CreateRunRequest struct {
	ImageID string
	Env     map[string]string
}
