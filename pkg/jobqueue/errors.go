package jobqueue

import "errors"

var (
	ErrDispatcherStopped = errors.New("jobqueue: dispatcher is stopped")
	ErrUnknownKind       = errors.New("jobqueue: no handler registered for job kind")
)

type skipError struct {
	cause error
}

func (e skipError) Error() string {
	if e.cause == nil {
		return "skipped"
	}
	return e.cause.Error()
}

func (e skipError) Unwrap() error {
	return e.cause
}

// Skip marks err as a permanent skip condition: the job is finished, it is
// not retried and it does not count as a failure.
func Skip(err error) error {
	if err == nil {
		return nil
	}
	return skipError{cause: err}
}

// IsSkip reports whether err was marked with Skip.
func IsSkip(err error) bool {
	var target skipError
	return errors.As(err, &target)
}

type permanentError struct {
	cause error
}

func (e permanentError) Error() string {
	if e.cause == nil {
		return "permanent error"
	}
	return e.cause.Error()
}

func (e permanentError) Unwrap() error {
	return e.cause
}

// Permanent marks err as non-retryable. The job goes to the dead-letter
// path without spending the rest of its attempt budget.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{cause: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var target permanentError
	return errors.As(err, &target)
}
