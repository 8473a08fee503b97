package stage

import (
	"errors"
	"fmt"
)

// Stage identifies a lifecycle pipeline step for diagnostics.
// Every fatal error is wrapped with its stage so operators can tell which
// step failed without reading source.
type Stage string

const (
	// Resolve determines which upstream release to install.
	Resolve Stage = "resolve"
	// Install downloads and unpacks the selected release.
	Install Stage = "install"
	// Reconcile prepares the persistent volume layout and mod manifest.
	Reconcile Stage = "reconcile"
	// Select chooses the save or scenario to launch.
	Select Stage = "select"
	// Launch builds the launch spec and starts the server process.
	Launch Stage = "launch"
	// Supervise waits on the running server process.
	Supervise Stage = "supervise"
)

// Error categories. Component errors wrap one of these so callers can pick a
// recovery policy with errors.Is regardless of the concrete failure.
var (
	// ErrConfiguration marks bad or missing user-declared state.
	ErrConfiguration = errors.New("configuration error")
	// ErrNetwork marks resolution or download failures.
	ErrNetwork = errors.New("network error")
	// ErrFilesystem marks permission or space failures on the volume.
	ErrFilesystem = errors.New("filesystem error")
	// ErrChildProcess marks an abnormal child exit.
	ErrChildProcess = errors.New("child process error")
)

// Error attaches a pipeline stage to an underlying failure.
type Error struct {
	// Stage is the pipeline step that produced the failure.
	Stage Stage
	// Err is the underlying error.
	Err error
}

// Error renders the stage-qualified message.
func (e *Error) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

// Unwrap exposes the underlying error for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap annotates err with the given stage. A nil err stays nil.
func Wrap(s Stage, err error) error {
	if err == nil {
		return nil
	}

	return &Error{Stage: s, Err: err}
}

// Of reports the stage recorded on err, if any.
func Of(err error) (Stage, bool) {
	var stageErr *Error
	if errors.As(err, &stageErr) {
		return stageErr.Stage, true
	}

	return "", false
}
