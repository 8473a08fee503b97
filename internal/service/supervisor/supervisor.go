package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"

	"github.com/AidanHarveyNelson/factorio-headless/internal/domain/stage"
	"github.com/AidanHarveyNelson/factorio-headless/internal/logger"
)

// State is the supervised child's lifecycle state.
type State string

const (
	// StateStarting is set before the child process exists.
	StateStarting State = "starting"
	// StateRunning is set once the child has been started.
	StateRunning State = "running"
	// StateStopping is entered only on an external termination request.
	StateStopping State = "stopping"
	// StateStopped is a clean exit, or any exit after a termination request.
	StateStopped State = "stopped"
	// StateCrashed is an abnormal exit with no termination requested.
	StateCrashed State = "crashed"
)

// signalExitBase is the conventional exit code offset for signal-terminated
// processes, matching what container orchestrators expect.
const signalExitBase = 128

var errChildStartFailed = errors.New("unable to start server process")

// Supervisor runs the server binary as a child process and proxies its
// lifecycle: termination signals are forwarded, the child's exit decides the
// final state, and its exit code becomes the manager's own. There is no
// internal restart; crash recovery belongs to the container orchestrator.
type Supervisor struct {
	mu    sync.Mutex
	state State

	// termination carries external stop requests, from the OS signal
	// handler or from Terminate.
	termination chan os.Signal
}

// New creates a Supervisor in the starting state.
func New() *Supervisor {
	return &Supervisor{
		state:       StateStarting,
		termination: make(chan os.Signal, 1),
	}
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

func (s *Supervisor) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = state
}

// Terminate requests an external shutdown, as if the manager had received
// the signal from the orchestrator.
func (s *Supervisor) Terminate(sig os.Signal) {
	select {
	case s.termination <- sig:
	default:
	}
}

// RunToCompletion executes a short-lived child (such as save generation) and
// waits for it, without signal proxying beyond context cancellation.
func (s *Supervisor) RunToCompletion(ctx context.Context, spec *LaunchSpec) error {
	cmd := exec.CommandContext(ctx, spec.Binary, spec.Args...) //nolint:gosec // Spec is built from validated config.
	cmd.Dir = spec.WorkingDir
	cmd.Env = spec.Env
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	logger.InfoKV(ctx, "Running command to completion", "binary", spec.Binary, "args", spec.Args)

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %w", stage.ErrChildProcess, err)
	}

	return nil
}

// Supervise starts the child and blocks until it exits, forwarding
// termination signals meanwhile. The returned exit code is the child's own;
// the error is non-nil only for a crash (abnormal exit without a termination
// request) or a start failure.
//
// The blocking wait and the signal path run concurrently: the wait feeds a
// result channel from a goroutine and the select below races it against
// termination requests.
func (s *Supervisor) Supervise(ctx context.Context, spec *LaunchSpec) (int, error) {
	cmd := exec.Command(spec.Binary, spec.Args...) //nolint:gosec // Spec is built from validated config.
	cmd.Dir = spec.WorkingDir
	cmd.Env = spec.Env
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	logger.InfoKV(ctx, "Starting server process", "binary", spec.Binary, "args", spec.Args)

	if err := cmd.Start(); err != nil {
		s.setState(StateCrashed)

		return 1, fmt.Errorf("%w: %w: %w", stage.ErrChildProcess, errChildStartFailed, err)
	}

	s.setState(StateRunning)
	logger.InfoKV(ctx, "Server process running", "pid", cmd.Process.Pid)

	signal.Notify(s.termination, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(s.termination)

	waitResult := make(chan error, 1)

	go func() {
		waitResult <- cmd.Wait()
	}()

	for {
		select {
		case sig := <-s.termination:
			s.setState(StateStopping)
			logger.InfoKV(ctx, "Forwarding termination signal to server", "signal", sig)

			if err := cmd.Process.Signal(sig); err != nil {
				logger.WarnKV(ctx, "Unable to forward signal", "signal", sig, "error", err)
			}

		case waitErr := <-waitResult:
			return s.finish(ctx, waitErr)
		}
	}
}

// finish classifies the child's exit and settles the final state.
func (s *Supervisor) finish(ctx context.Context, waitErr error) (int, error) {
	code := exitCode(waitErr)
	stopping := s.State() == StateStopping

	switch {
	case stopping:
		// Any exit after a termination request is an ordered shutdown.
		s.setState(StateStopped)
		logger.InfoKV(ctx, "Server stopped after termination request", "exit_code", code)

		return code, nil
	case waitErr == nil:
		s.setState(StateStopped)
		logger.Info(ctx, "Server exited cleanly")

		return 0, nil
	default:
		s.setState(StateCrashed)
		logger.ErrorKV(ctx, "Server crashed", "exit_code", code, "error", waitErr)

		return code, fmt.Errorf("%w: server exited abnormally with code %d", stage.ErrChildProcess, code)
	}
}

// exitCode maps a Wait error to the child's exit code, using the
// conventional 128+signal encoding for signal-terminated children.
func exitCode(waitErr error) int {
	if waitErr == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if !errors.As(waitErr, &exitErr) {
		return 1
	}

	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return signalExitBase + int(status.Signal())
	}

	return exitErr.ExitCode()
}
