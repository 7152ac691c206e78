package lifecycle

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnexpectedTransition is returned when a transition is fed to the
// machine in a state that does not accept it
var ErrUnexpectedTransition = errors.New("unexpected lifecycle transition")

// SubmissionRejectedError is a registration rejected by the runtime.
// Section and Name are set for decodable module errors; Message holds the
// generic rendering otherwise.
type SubmissionRejectedError struct {
	Section string
	Name    string
	Docs    []string
	Message string
}

func (e *SubmissionRejectedError) Error() string {
	if e.Section != "" || e.Name != "" {
		msg := fmt.Sprintf("%s.%s", e.Section, e.Name)
		if len(e.Docs) > 0 {
			msg += ": " + strings.Join(e.Docs, " ")
		}
		return msg
	}
	if e.Message != "" {
		return e.Message
	}
	return "submission rejected"
}

// SubmissionTransportError is a failure to build, send or follow a submission
type SubmissionTransportError struct {
	Err error
}

func (e *SubmissionTransportError) Error() string {
	return fmt.Sprintf("submission failed: %v", e.Err)
}

func (e *SubmissionTransportError) Unwrap() error {
	return e.Err
}
