package backend

import (
	"errors"
	"fmt"
)

// Sentinel errors for the two ways a backend call can fail.
var (
	ErrNetworkFailure = errors.New("network failure")
	ErrMalformedReply = errors.New("malformed reply")
)

// StatusError is a non-success HTTP status from the backend.
type StatusError struct {
	StatusCode int
	Endpoint   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned %d at %s", e.StatusCode, e.Endpoint)
}

// Is lets a StatusError match ErrNetworkFailure.
func (e *StatusError) Is(target error) bool {
	if target == ErrNetworkFailure {
		return true
	}
	_, ok := target.(*StatusError)
	return ok
}

func networkErr(endpoint string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrNetworkFailure, endpoint, err)
}

func malformedErr(endpoint, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrMalformedReply, endpoint, reason)
}
