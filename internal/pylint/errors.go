package pylint

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned by Start while another run is in flight.
	ErrBusy = errors.New("another pylint analysis is in progress")

	// ErrStartFailed indicates the interpreter process could not be started.
	ErrStartFailed = errors.New("pylint analysis failed to start")

	// ErrNoRCFileLocation means there is neither a project nor a saved file
	// to put a generated pylintrc next to.
	ErrNoRCFileLocation = errors.New("no location for pylintrc: file not saved and no project")

	// ErrRCFileExists is returned when generation would overwrite a pylintrc.
	ErrRCFileExists = errors.New("pylintrc already exists")

	// ErrGenerateFailed indicates pylint --generate-rcfile failed.
	ErrGenerateFailed = errors.New("generating pylintrc failed")

	// ErrProbeFailed indicates the pylint installation could not be inspected.
	ErrProbeFailed = errors.New("pylint is not available")
)

// LinterError wraps a failure of an interpreter invocation together with
// whatever it wrote to stderr.
type LinterError struct {
	Interpreter string
	Err         error
	Output      string
}

func (e *LinterError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("%s: %v: %s", e.Interpreter, e.Err, e.Output)
	}
	return fmt.Sprintf("%s: %v", e.Interpreter, e.Err)
}

func (e *LinterError) Unwrap() error {
	return e.Err
}

// NewLinterError creates a LinterError without output.
func NewLinterError(interpreter string, err error) *LinterError {
	return &LinterError{Interpreter: interpreter, Err: err}
}

// WithOutput returns a copy carrying the given stderr text.
func (e *LinterError) WithOutput(output string) *LinterError {
	return &LinterError{
		Interpreter: e.Interpreter,
		Err:         e.Err,
		Output:      output,
	}
}
