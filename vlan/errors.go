package vlan

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned before any command is sent
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrVerification matches every *VerificationError
	ErrVerification = errors.New("verification failed")
)

// VerificationError reports a response that lacks the expected marker.
type VerificationError struct {
	Command  string
	Expected string
	Response string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("command %q: expected %q in response, got %q", e.Command, e.Expected, e.Response)
}

// Is lets errors.Is(err, ErrVerification) match.
func (e *VerificationError) Is(target error) bool {
	return target == ErrVerification
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
