// Package archive extracts source bundles uploaded for image builds.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	securejoin "github.com/cyphar/filepath-securejoin"
)

var (
	// ErrTooLarge is returned when extracted content exceeds the size limit.
	ErrTooLarge = errors.New("archive content exceeds size limit")
	// ErrInvalidPath is returned when a tar entry has a malicious path.
	ErrInvalidPath = errors.New("invalid archive path")
)

// ExtractTarGz extracts a tar.gz archive to destDir, aborting if the
// extracted content exceeds maxBytes. Returns the total extracted bytes.
//
// Entry paths are resolved with securejoin so traversal sequences and
// absolute paths cannot escape destDir. Cumulative size is tracked and a
// LimitReader guards each file copy.
func ExtractTarGz(r io.Reader, destDir string, maxBytes int64) (int64, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return 0, fmt.Errorf("create dest dir: %w", err)
	}

	gzr, err := gzip.NewReader(r)
	if err != nil {
		return 0, fmt.Errorf("gzip reader: %w", err)
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)

	var extracted int64
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return extracted, fmt.Errorf("read tar header: %w", err)
		}

		targetPath, err := securejoin.SecureJoin(destDir, header.Name)
		if err != nil {
			return extracted, fmt.Errorf("%w: %s", ErrInvalidPath, header.Name)
		}

		if extracted+header.Size > maxBytes {
			return extracted, fmt.Errorf("%w: would exceed %d bytes", ErrTooLarge, maxBytes)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(targetPath, os.FileMode(header.Mode)); err != nil {
				return extracted, fmt.Errorf("create dir %s: %w", header.Name, err)
			}

		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
				return extracted, fmt.Errorf("create parent dir: %w", err)
			}

			f, err := os.OpenFile(targetPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(header.Mode))
			if err != nil {
				return extracted, fmt.Errorf("create file %s: %w", header.Name, err)
			}

			// +1 to detect overflow past the remaining budget.
			n, err := io.Copy(f, io.LimitReader(tr, maxBytes-extracted+1))
			f.Close()
			if err != nil {
				return extracted, fmt.Errorf("write file %s: %w", header.Name, err)
			}

			extracted += n
			if extracted > maxBytes {
				return extracted, fmt.Errorf("%w: exceeded %d bytes", ErrTooLarge, maxBytes)
			}

		case tar.TypeSymlink:
			resolved, err := securejoin.SecureJoin(filepath.Dir(targetPath), header.Linkname)
			if err != nil || !within(destDir, resolved) {
				return extracted, fmt.Errorf("%w: symlink escapes destination", ErrInvalidPath)
			}
			if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
				return extracted, fmt.Errorf("create parent dir for symlink: %w", err)
			}
			if err := os.Symlink(header.Linkname, targetPath); err != nil {
				return extracted, fmt.Errorf("create symlink %s: %w", header.Name, err)
			}

		default:
			// Skip devices, fifos, hard links.
			continue
		}
	}

	return extracted, nil
}

func within(destDir, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(destDir), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel == "." || filepath.IsLocal(rel)
}
