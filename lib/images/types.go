package images

import "time"

// Image build status constants.
const (
	StatusPending    = "pending"
	StatusResolving  = "resolving"
	StatusAssembling = "assembling"
	StatusReady      = "ready"
	StatusFailed     = "failed"
)

// Environment flags recognized by the build contract. They are set into the
// sealed image's config and apply process-wide for every run of the image.
const (
	// FlagDisableBytecodeCache stops the runtime from persisting compiled
	// artifacts to disk inside the container.
	FlagDisableBytecodeCache = "disable-bytecode-cache"
	// FlagForceUnbufferedIO flushes every stdout/stderr line immediately so
	// log collectors lose nothing on abrupt termination.
	FlagForceUnbufferedIO = "force-unbuffered-io"
)

// Image is a sealed (or in-flight) job image.
type Image struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Runtime       string            `json:"runtime"`
	Status        string            `json:"status"`
	QueuePosition *int              `json:"queue_position,omitempty"`
	Error         *string           `json:"error,omitempty"`
	Digest        string            `json:"digest,omitempty"`        // manifest digest of the sealed image (sha256:...)
	DepsLayer     string            `json:"deps_layer,omitempty"`    // diff ID of the dependency layer (cache observability)
	ManifestHash  string            `json:"manifest_hash,omitempty"` // content hash of the dependency manifest
	SizeBytes     *int64            `json:"size_bytes,omitempty"`
	Base          string            `json:"base,omitempty"` // requested base reference, "" for the runtime default
	EntryScript   string            `json:"entry_script,omitempty"`
	Entrypoint    []string          `json:"entrypoint,omitempty"`
	Env           map[string]string `json:"env,omitempty"`
	WorkingDir    string            `json:"working_dir,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// CreateImageRequest describes a build: a base runtime, a dependency
// manifest, a source tree, and one designated entry script.
type CreateImageRequest struct {
	// Name is a human label for the image; the ID is derived from it when
	// not supplied.
	Name string
	// ID optionally fixes the image ID.
	ID string
	// Runtime selects the language runtime (see dockerfile.go for the
	// supported set).
	Runtime string
	// Base overrides the runtime's default base reference. "scratch"
	// produces an image with no base layers.
	Base string
	// Manifest is the raw dependency manifest.
	Manifest []byte
	// SourceDir is the application source tree, already on local disk.
	SourceDir string
	// EntryScript is the path of the entry script relative to SourceDir.
	EntryScript string
	// Flags lists the environment flags to set; nil means both recognized
	// flags, matching the packaging contract's defaults.
	Flags []string
	// CleanupSource hands ownership of SourceDir to the manager, which
	// removes it once the build reaches a terminal state.
	CleanupSource bool
}
