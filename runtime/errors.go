package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
)

// Kind is the closed set of ways a run can fail.
type Kind string

const (
	// KindConnection means the container engine could not be reached.
	// Retrying later may succeed.
	KindConnection Kind = "connection"
	// KindExecution means the engine answered but the container did not
	// run to a zero exit: missing image, bad command, non-zero status.
	KindExecution Kind = "execution"
	// KindTimeout means the run exceeded its deadline and was killed.
	KindTimeout Kind = "timeout"
)

// Error is the only error type runners return.
type Error struct {
	Kind     Kind
	Image    string
	ExitCode int
	Err      error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindConnection:
		return fmt.Sprintf("container engine unreachable: %v", e.Err)
	case KindTimeout:
		return fmt.Sprintf("%s: %v", e.Image, e.Err)
	default:
		if e.ExitCode != 0 {
			return fmt.Sprintf("%s exited with status %d: %v", e.Image, e.ExitCode, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Image, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func connectionError(err error) *Error {
	return &Error{Kind: KindConnection, Err: err}
}

func executionError(image string, exitCode int, err error) *Error {
	return &Error{Kind: KindExecution, Image: image, ExitCode: exitCode, Err: err}
}

func timeoutError(image string, err error) *Error {
	return &Error{Kind: KindTimeout, Image: image, ExitCode: -1, Err: err}
}

// Interrupted builds the error for a run whose context ended before the
// container finished. A caller that went away is told apart from a run that
// hit its deadline; both are timeouts.
func Interrupted(ctx context.Context, image string, timeout time.Duration) *Error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return timeoutError(image, errors.New("run cancelled by caller"))
	}
	if timeout > 0 {
		return timeoutError(image, errors.Newf("execution timed out after %s", timeout))
	}
	return timeoutError(image, errors.New("execution timed out"))
}

// NewError builds a runner error for backends living outside this package.
func NewError(kind Kind, image string, exitCode int, err error) *Error {
	return &Error{Kind: kind, Image: image, ExitCode: exitCode, Err: err}
}

// KindOf extracts the failure kind from err. Deadline and cancellation
// errors that escaped a runner are reported as timeouts; anything else that
// is not a *Error is treated as an execution failure.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimeout
	}
	return KindExecution
}

// IsRetryable reports whether the failure is transient (engine unreachable).
func IsRetryable(err error) bool {
	return KindOf(err) == KindConnection
}
