package images

import (
	"strings"

	"github.com/distribution/reference"
)

// NormalizedRef is a validated and normalized base-image reference, either
// tagged ("docker.io/library/python:3.12-slim") or pinned by digest
// ("docker.io/library/python@sha256:...").
type NormalizedRef struct {
	raw        string
	repository string
	tag        string // empty if digest ref
	digest     string // empty if tag ref
	isDigest   bool
}

// ParseNormalizedRef validates and normalizes a user-provided reference.
// Examples:
//   - "python" -> "docker.io/library/python:latest"
//   - "python:3.12-slim" -> "docker.io/library/python:3.12-slim"
//   - "python@sha256:abc..." -> "docker.io/library/python@sha256:abc..."
func ParseNormalizedRef(s string) (*NormalizedRef, error) {
	named, err := reference.ParseNormalizedNamed(s)
	if err != nil {
		return nil, err
	}

	ref := &NormalizedRef{
		repository: reference.Domain(named) + "/" + reference.Path(named),
	}

	if canonical, ok := named.(reference.Canonical); ok {
		ref.isDigest = true
		ref.digest = canonical.Digest().String()
		ref.raw = canonical.String()
		return ref, nil
	}

	tagged := reference.TagNameOnly(named)
	if t, ok := tagged.(reference.Tagged); ok {
		ref.tag = t.Tag()
	}
	ref.raw = tagged.String()

	return ref, nil
}

// String returns the full normalized reference.
func (r *NormalizedRef) String() string { return r.raw }

// IsDigest reports whether the reference pins a digest.
func (r *NormalizedRef) IsDigest() bool { return r.isDigest }

// Repository returns the repository path without tag or digest.
func (r *NormalizedRef) Repository() string { return r.repository }

// Tag returns the tag for tagged references, "" otherwise.
func (r *NormalizedRef) Tag() string { return r.tag }

// Digest returns the digest for digest references, "" otherwise.
func (r *NormalizedRef) Digest() string { return r.digest }

// DigestHex returns the hex portion of the digest without the algorithm
// prefix, "" for tagged references.
func (r *NormalizedRef) DigestHex() string {
	if r.digest == "" {
		return ""
	}
	parts := strings.SplitN(r.digest, ":", 2)
	if len(parts) != 2 {
		return ""
	}
	return parts[1]
}
