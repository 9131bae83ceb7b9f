package runs

import "errors"

var (
	ErrNotFound       = errors.New("run not found")
	ErrImageNotUsable = errors.New("image is not ready to run")
	ErrNotRunning     = errors.New("run is not running")
)
