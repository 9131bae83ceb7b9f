// Package manifest parses and resolves dependency manifests.
//
// A manifest is a newline-separated list of package-constraint entries, e.g.
//
//	requests ==2.31.0
//	google-cloud-storage >=2.10, <3
//	# comments and blank lines are ignored
//
// The manifest's content hash is the cache key for the dependency layer of a
// sealed image: builds that share a manifest share that layer regardless of
// source changes.
package manifest

import (
	"bufio"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/opencontainers/go-digest"
)

var (
	ErrEmpty          = errors.New("manifest has no entries")
	ErrBadEntry       = errors.New("malformed manifest entry")
	ErrUnresolvable   = errors.New("unresolvable dependency")
	ErrUnknownPackage = errors.New("unknown package")
)

// Entry is a single declared dependency.
type Entry struct {
	Name       string
	Constraint *semver.Constraints
	// Raw is the constraint exactly as written, kept for error messages
	// and lockfile provenance.
	Raw string
}

// Manifest is a parsed dependency manifest.
type Manifest struct {
	Entries []Entry
	hash    string
}

// Parse reads a manifest from its raw bytes. Entries are validated eagerly:
// a single malformed line fails the whole parse.
func Parse(data []byte) (*Manifest, error) {
	m := &Manifest{}

	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		entry, err := parseEntry(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		m.Entries = append(m.Entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan manifest: %w", err)
	}

	if len(m.Entries) == 0 {
		return nil, ErrEmpty
	}

	// The cache key is the digest of the raw bytes, so formatting-only edits
	// invalidate the layer the same way they invalidate a COPY'd file.
	m.hash = digest.FromBytes(data).String()

	return m, nil
}

// parseEntry splits "name constraint" where the constraint may also be glued
// to the name by an operator (requests==2.31.0).
func parseEntry(line string) (Entry, error) {
	name := line
	raw := ""

	if idx := strings.IndexAny(line, " \t=<>!^~"); idx > 0 {
		name = line[:idx]
		raw = strings.TrimSpace(line[idx:])
	}

	if !validName(name) {
		return Entry{}, fmt.Errorf("%w: %q", ErrBadEntry, line)
	}

	if raw == "" {
		// Bare name means any version.
		raw = "*"
	}

	c, err := semver.NewConstraint(normalizeConstraint(raw))
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %q: %v", ErrBadEntry, line, err)
	}

	return Entry{Name: name, Constraint: c, Raw: raw}, nil
}

// normalizeConstraint maps pip-style operators onto semver range syntax.
func normalizeConstraint(raw string) string {
	s := strings.ReplaceAll(raw, "==", "=")
	s = strings.ReplaceAll(s, "~=", "~")
	return s
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return false
		}
	}
	return true
}

// Hash returns the canonical digest (sha256:...) of the manifest's raw bytes.
func (m *Manifest) Hash() string {
	return m.hash
}

// PackageIndex answers which versions exist for a package.
type PackageIndex interface {
	// Versions returns all published versions for a package name, or
	// ErrUnknownPackage if the package does not exist.
	Versions(name string) ([]string, error)
}

// Locked is a fully pinned dependency produced by resolution.
type Locked struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	// Constraint records what the manifest asked for.
	Constraint string `json:"constraint"`
}

// Resolve pins every entry to the highest index version satisfying its
// constraint. Any entry that cannot be satisfied aborts resolution; the
// caller must not produce an image in that case.
func (m *Manifest) Resolve(index PackageIndex) ([]Locked, error) {
	locked := make([]Locked, 0, len(m.Entries))

	for _, e := range m.Entries {
		versions, err := index.Versions(e.Name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrUnresolvable, e.Name, err)
		}

		best := pickBest(versions, e.Constraint)
		if best == "" {
			return nil, fmt.Errorf("%w: %s %s", ErrUnresolvable, e.Name, e.Raw)
		}

		locked = append(locked, Locked{
			Name:       e.Name,
			Version:    best,
			Constraint: e.Raw,
		})
	}

	// Deterministic lockfile order regardless of manifest order.
	sort.Slice(locked, func(i, j int) bool { return locked[i].Name < locked[j].Name })

	return locked, nil
}

func pickBest(versions []string, c *semver.Constraints) string {
	var best *semver.Version
	var bestRaw string
	for _, raw := range versions {
		v, err := semver.NewVersion(raw)
		if err != nil {
			continue
		}
		if !c.Check(v) {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best = v
			bestRaw = raw
		}
	}
	return bestRaw
}

// StaticIndex is a PackageIndex backed by an in-memory map. It serves both
// tests and air-gapped builds where the version set is vendored alongside
// the build environment.
type StaticIndex map[string][]string

func (s StaticIndex) Versions(name string) ([]string, error) {
	versions, ok := s[name]
	if !ok {
		return nil, ErrUnknownPackage
	}
	return versions, nil
}
