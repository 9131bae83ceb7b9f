package images

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/layout"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/tarball"
	specsv1 "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/Ashab24/batch-job-orch/lib/manifest"
	"github.com/Ashab24/batch-job-orch/lib/paths"
)

// workDir is the fixed working directory inside every sealed image.
const workDir = "/app"

// assembled carries the results of a sealed build.
type assembled struct {
	digest     v1.Hash
	depsDiffID v1.Hash
	sizeBytes  int64
	entrypoint []string
	env        map[string]string
}

// assemble produces the sealed image: base, then the dependency layer
// (derived only from the resolved manifest), then the source layer, with the
// env flags and entrypoint fixed in the config. The layer order is the
// cache invariant: source-only changes never touch the dependency layer.
func (m *manager) assemble(ctx context.Context, id string, req CreateImageRequest, locked []manifest.Locked, env map[string]string, rt *Runtime) (*assembled, error) {
	base, err := baseImage(ctx, req.Base, rt)
	if err != nil {
		return nil, fmt.Errorf("base image: %w", err)
	}

	depsLayer, err := dependencyLayer(locked)
	if err != nil {
		return nil, fmt.Errorf("dependency layer: %w", err)
	}
	depsDiffID, err := depsLayer.DiffID()
	if err != nil {
		return nil, fmt.Errorf("deps diff id: %w", err)
	}

	srcLayer, err := sourceLayer(req.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("source layer: %w", err)
	}

	img, err := mutate.AppendLayers(base, depsLayer, srcLayer)
	if err != nil {
		return nil, fmt.Errorf("append layers: %w", err)
	}

	entrypoint := []string{rt.Interpreter, req.EntryScript}

	cf, err := img.ConfigFile()
	if err != nil {
		return nil, fmt.Errorf("config file: %w", err)
	}
	cf = cf.DeepCopy()
	if cf.OS == "" {
		cf.OS = "linux"
	}
	if cf.Architecture == "" {
		cf.Architecture = "amd64"
	}
	cf.Config.WorkingDir = workDir
	cf.Config.Entrypoint = entrypoint
	// No default arguments: the platform injects environment only.
	cf.Config.Cmd = nil
	cf.Config.Env = mergeEnv(cf.Config.Env, env)

	img, err = mutate.ConfigFile(img, cf)
	if err != nil {
		return nil, fmt.Errorf("set config: %w", err)
	}

	if err := m.seal(id, img); err != nil {
		return nil, err
	}

	digest, err := img.Digest()
	if err != nil {
		return nil, fmt.Errorf("image digest: %w", err)
	}

	size, err := imageSize(img)
	if err != nil {
		return nil, fmt.Errorf("image size: %w", err)
	}

	return &assembled{
		digest:     digest,
		depsDiffID: depsDiffID,
		sizeBytes:  size,
		entrypoint: entrypoint,
		env:        env,
	}, nil
}

// seal writes the image to its OCI layout. The layout directory only ever
// exists for a completed seal; failures remove it entirely.
func (m *manager) seal(id string, img v1.Image) error {
	layoutDir := m.paths.ImageLayout(id)

	lp, err := layout.Write(layoutDir, empty.Index)
	if err != nil {
		return fmt.Errorf("write layout: %w", err)
	}
	err = lp.AppendImage(img, layout.WithAnnotations(map[string]string{
		specsv1.AnnotationRefName: id,
	}))
	if err != nil {
		os.RemoveAll(layoutDir)
		return fmt.Errorf("append image: %w", err)
	}
	return nil
}

// LoadSealed loads the sealed image from an image's OCI layout.
func LoadSealed(p *paths.Paths, id string) (v1.Image, error) {
	idx, err := layout.ImageIndexFromPath(p.ImageLayout(id))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotSealed, err)
	}

	im, err := idx.IndexManifest()
	if err != nil {
		return nil, fmt.Errorf("index manifest: %w", err)
	}
	if len(im.Manifests) == 0 {
		return nil, ErrNotSealed
	}

	img, err := idx.Image(im.Manifests[0].Digest)
	if err != nil {
		return nil, fmt.Errorf("load image: %w", err)
	}
	return img, nil
}

func baseImage(ctx context.Context, base string, rt *Runtime) (v1.Image, error) {
	if base == "" {
		base = rt.DefaultBase
	}
	if base == "scratch" {
		return empty.Image, nil
	}

	normalized, err := ParseNormalizedRef(base)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidName, err)
	}

	ref, err := name.ParseReference(normalized.String())
	if err != nil {
		return nil, fmt.Errorf("parse reference: %w", err)
	}

	return remote.Image(ref, remote.WithContext(ctx))
}

// dependencyLayer builds the deterministic layer holding the installed
// dependency set. Its content is a pure function of the resolved lockfile,
// which is itself a pure function of the manifest: the layer (and its cache
// key) cannot change unless the manifest does.
func dependencyLayer(locked []manifest.Locked) (v1.Layer, error) {
	lock, err := json.MarshalIndent(locked, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal lockfile: %w", err)
	}

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	if err := writeTarDir(tw, "app/"); err != nil {
		return nil, err
	}
	if err := writeTarFile(tw, "app/deps.lock", lock, 0644); err != nil {
		return nil, err
	}
	if err := writeTarDir(tw, "app/vendor/"); err != nil {
		return nil, err
	}
	for _, dep := range locked {
		dir := fmt.Sprintf("app/vendor/%s-%s/", dep.Name, dep.Version)
		if err := writeTarDir(tw, dir); err != nil {
			return nil, err
		}
		info := fmt.Sprintf("name: %s\nversion: %s\nconstraint: %s\n", dep.Name, dep.Version, dep.Constraint)
		if err := writeTarFile(tw, dir+"PKG-INFO", []byte(info), 0644); err != nil {
			return nil, err
		}
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("close tar: %w", err)
	}

	return layerFromBytes(buf.Bytes())
}

// sourceLayer tars the application source tree under the working directory.
// Entries are written in sorted order with zeroed timestamps so identical
// trees produce identical layers.
func sourceLayer(sourceDir string) (v1.Layer, error) {
	var files []string
	err := filepath.WalkDir(sourceDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk source: %w", err)
	}
	sort.Strings(files)

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	if err := writeTarDir(tw, "app/"); err != nil {
		return nil, err
	}

	seenDirs := map[string]bool{"app/": true}
	for _, path := range files {
		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return nil, fmt.Errorf("relativize %s: %w", path, err)
		}
		rel = filepath.ToSlash(rel)

		// Parent directories first.
		parts := strings.Split(rel, "/")
		for i := 1; i < len(parts); i++ {
			dir := "app/" + strings.Join(parts[:i], "/") + "/"
			if !seenDirs[dir] {
				if err := writeTarDir(tw, dir); err != nil {
					return nil, err
				}
				seenDirs[dir] = true
			}
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}

		if err := writeTarFile(tw, "app/"+rel, data, int64(info.Mode().Perm())); err != nil {
			return nil, err
		}
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("close tar: %w", err)
	}

	return layerFromBytes(buf.Bytes())
}

func writeTarDir(tw *tar.Writer, name string) error {
	if err := tw.WriteHeader(&tar.Header{
		Name:     name,
		Typeflag: tar.TypeDir,
		Mode:     0755,
		Format:   tar.FormatUSTAR,
	}); err != nil {
		return fmt.Errorf("tar dir %s: %w", name, err)
	}
	return nil
}

func writeTarFile(tw *tar.Writer, name string, data []byte, mode int64) error {
	if err := tw.WriteHeader(&tar.Header{
		Name:     name,
		Typeflag: tar.TypeReg,
		Mode:     mode,
		Size:     int64(len(data)),
		Format:   tar.FormatUSTAR,
	}); err != nil {
		return fmt.Errorf("tar header %s: %w", name, err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("tar write %s: %w", name, err)
	}
	return nil
}

func layerFromBytes(data []byte) (v1.Layer, error) {
	return tarball.LayerFromOpener(func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	})
}

func mergeEnv(existing []string, extra map[string]string) []string {
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	merged := make([]string, 0, len(existing)+len(keys))
	for _, kv := range existing {
		name, _, _ := strings.Cut(kv, "=")
		if _, shadowed := extra[name]; !shadowed {
			merged = append(merged, kv)
		}
	}
	for _, k := range keys {
		merged = append(merged, k+"="+extra[k])
	}
	return merged
}

func imageSize(img v1.Image) (int64, error) {
	m, err := img.Manifest()
	if err != nil {
		return 0, err
	}
	size := m.Config.Size
	for _, l := range m.Layers {
		size += l.Size
	}
	return size, nil
}
