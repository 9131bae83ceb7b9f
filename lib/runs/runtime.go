package runs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Runtime launches the entry process of a run.
type Runtime interface {
	// Start begins execution and returns a handle for the single process.
	Start(ctx context.Context, opts StartOptions) (Handle, error)
}

// StartOptions describes the launch: the materialized working directory,
// the entrypoint exactly as sealed into the image, and the full environment
// (build-time flags plus platform-injected variables). There are no
// default arguments.
type StartOptions struct {
	Dir     string
	Command []string
	Env     []string
	// Output receives both stdout and stderr. Writes are line-granular and
	// never buffered, so collectors observe output as it happens and lose
	// nothing on abrupt termination.
	Output io.Writer
}

// ExitResult is the terminal state of a run's process.
type ExitResult struct {
	// ExitCode is the process's own exit status; 128+signal when killed.
	ExitCode int
}

// Handle is one running entry process.
type Handle interface {
	// Wait blocks until the process terminates.
	Wait(ctx context.Context) (ExitResult, error)
	// Stop terminates the process: SIGTERM, then SIGKILL after the grace
	// period.
	Stop(ctx context.Context, grace time.Duration) error
}

// ExecRuntime runs entry processes directly on the host, resolving the
// image's interpreter against the host PATH. It is the single-node
// execution backend; each run gets its own materialized filesystem and
// process, so no state is shared between runs.
type ExecRuntime struct{}

func NewExecRuntime() *ExecRuntime {
	return &ExecRuntime{}
}

func (e *ExecRuntime) Start(ctx context.Context, opts StartOptions) (Handle, error) {
	if len(opts.Command) == 0 {
		return nil, fmt.Errorf("entrypoint is empty")
	}

	bin, err := exec.LookPath(opts.Command[0])
	if err != nil {
		return nil, fmt.Errorf("resolve interpreter %s: %w", opts.Command[0], err)
	}

	cmd := exec.Command(bin, opts.Command[1:]...)
	cmd.Dir = opts.Dir
	cmd.Env = opts.Env

	out := &syncWriter{w: opts.Output}
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start process: %w", err)
	}

	h := &execHandle{cmd: cmd, done: make(chan struct{})}
	go func() {
		h.err = cmd.Wait()
		close(h.done)
	}()

	return h, nil
}

type execHandle struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

func (h *execHandle) Wait(ctx context.Context) (ExitResult, error) {
	select {
	case <-ctx.Done():
		return ExitResult{ExitCode: -1}, ctx.Err()
	case <-h.done:
	}

	if h.err == nil {
		return ExitResult{ExitCode: 0}, nil
	}

	var ee *exec.ExitError
	if errors.As(h.err, &ee) {
		if ws, ok := ee.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return ExitResult{ExitCode: 128 + int(ws.Signal())}, nil
		}
		return ExitResult{ExitCode: ee.ExitCode()}, nil
	}

	return ExitResult{ExitCode: -1}, h.err
}

func (h *execHandle) Stop(ctx context.Context, grace time.Duration) error {
	if h.cmd.Process == nil {
		return ErrNotRunning
	}

	// Already exited.
	select {
	case <-h.done:
		return ErrNotRunning
	default:
	}

	if err := h.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal process: %w", err)
	}

	select {
	case <-h.done:
		return nil
	case <-time.After(grace):
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := h.cmd.Process.Kill(); err != nil {
		return fmt.Errorf("kill process: %w", err)
	}
	<-h.done
	return nil
}

// syncWriter serializes stdout and stderr onto one unbuffered destination so
// line order is preserved exactly as written.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return len(p), nil
	}
	return s.w.Write(p)
}
