package runs

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/google/go-containerregistry/pkg/v1/mutate"

	"github.com/Ashab24/batch-job-orch/lib/images"
	"github.com/Ashab24/batch-job-orch/lib/paths"
)

// materialize flattens the sealed image's filesystem into the run's rootfs
// directory. Every run gets its own copy; nothing is shared between runs.
func materialize(p *paths.Paths, runID, imageID string) (string, error) {
	img, err := images.LoadSealed(p, imageID)
	if err != nil {
		return "", err
	}

	rootfs := p.RunRootfs(runID)
	if err := os.MkdirAll(rootfs, 0755); err != nil {
		return "", fmt.Errorf("create rootfs dir: %w", err)
	}

	rc := mutate.Extract(img)
	defer rc.Close()

	if err := untar(rc, rootfs); err != nil {
		os.RemoveAll(rootfs)
		return "", fmt.Errorf("extract image: %w", err)
	}

	return rootfs, nil
}

func untar(r io.Reader, destDir string) error {
	tr := tar.NewReader(r)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar header: %w", err)
		}

		target, err := securejoin.SecureJoin(destDir, header.Name)
		if err != nil {
			return fmt.Errorf("join %s: %w", header.Name, err)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(header.Mode)); err != nil {
				return fmt.Errorf("create dir %s: %w", header.Name, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return fmt.Errorf("create parent dir: %w", err)
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(header.Mode))
			if err != nil {
				return fmt.Errorf("create file %s: %w", header.Name, err)
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return fmt.Errorf("write file %s: %w", header.Name, err)
			}
			f.Close()
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return fmt.Errorf("create parent dir: %w", err)
			}
			if err := os.Symlink(header.Linkname, target); err != nil {
				return fmt.Errorf("create symlink %s: %w", header.Name, err)
			}
		default:
			// Devices, fifos and hard links have no place in a job image.
			continue
		}
	}
}
