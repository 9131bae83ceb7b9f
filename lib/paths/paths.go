// Package paths centralizes the on-disk layout under the data directory.
package paths

import "path/filepath"

// Paths resolves locations for images, runs, and build scratch space.
// Layout:
//
//	{dataDir}/images/{id}/image/      OCI layout of the sealed image
//	{dataDir}/images/{id}/metadata.json
//	{dataDir}/runs/{id}/rootfs/       materialized filesystem for a run
//	{dataDir}/runs/{id}/run.log
//	{dataDir}/runs/{id}/metadata.json
type Paths struct {
	dataDir string
}

func New(dataDir string) *Paths {
	return &Paths{dataDir: dataDir}
}

func (p *Paths) DataDir() string {
	return p.dataDir
}

func (p *Paths) ImagesDir() string {
	return filepath.Join(p.dataDir, "images")
}

func (p *Paths) ImageDir(id string) string {
	return filepath.Join(p.ImagesDir(), id)
}

// ImageLayout is the OCI layout directory holding the sealed image.
func (p *Paths) ImageLayout(id string) string {
	return filepath.Join(p.ImageDir(id), "image")
}

func (p *Paths) ImageMetadata(id string) string {
	return filepath.Join(p.ImageDir(id), "metadata.json")
}

func (p *Paths) RunsDir() string {
	return filepath.Join(p.dataDir, "runs")
}

func (p *Paths) RunDir(id string) string {
	return filepath.Join(p.RunsDir(), id)
}

// RunRootfs is where the image filesystem is materialized for a run.
func (p *Paths) RunRootfs(id string) string {
	return filepath.Join(p.RunDir(id), "rootfs")
}

// RunLog is the captured stdout/stderr of the run, one line per write.
func (p *Paths) RunLog(id string) string {
	return filepath.Join(p.RunDir(id), "run.log")
}

func (p *Paths) RunMetadata(id string) string {
	return filepath.Join(p.RunDir(id), "metadata.json")
}
