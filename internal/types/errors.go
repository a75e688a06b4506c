package types

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	ErrorKindParse             ErrorKind = "parse"
	ErrorKindGeneration        ErrorKind = "generation"
	ErrorKindMissingExecutable ErrorKind = "missing_executable"
	ErrorKindNotExecutable     ErrorKind = "not_executable"
	ErrorKindSupervision       ErrorKind = "supervision"
	ErrorKindPrecondition      ErrorKind = "precondition"
)

// LaunchError tags a failure with the launch phase it belongs to. Subject
// names the node, file or tool involved.
type LaunchError struct {
	Kind    ErrorKind
	Subject string
	Err     error
}

func (e *LaunchError) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s error (%s): %v", e.Kind, e.Subject, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

func NewLaunchError(kind ErrorKind, subject string, err error) *LaunchError {
	return &LaunchError{Kind: kind, Subject: subject, Err: err}
}

// KindOf returns the kind of the first LaunchError in err's chain, or "".
func KindOf(err error) ErrorKind {
	var launchErr *LaunchError
	if errors.As(err, &launchErr) {
		return launchErr.Kind
	}
	return ""
}
