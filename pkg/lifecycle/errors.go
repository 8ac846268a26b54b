package lifecycle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/NavarchProject/gpurunner/pkg/lambda"
)

var (
	// ErrAmbiguousState means more than one running instance matches the
	// requested type, so the runner cannot tell which one it owns.
	ErrAmbiguousState = errors.New("ambiguous state")

	// ErrUnhealthyInstance means the instance reported unhealthy. It is not
	// expected to recover.
	ErrUnhealthyInstance = errors.New("instance is unhealthy")

	// ErrInstanceTerminated means the instance terminated while it was
	// expected to become active.
	ErrInstanceTerminated = errors.New("instance terminated unexpectedly")

	// ErrMissingAddress means the instance has no IP address to report.
	ErrMissingAddress = errors.New("instance has no IP address")

	// ErrUnexpectedResponse means the API answered with a shape the
	// runner cannot act on, such as a launch returning two ids.
	ErrUnexpectedResponse = errors.New("unexpected API response")

	// ErrSSHKeyNotFound means the configured SSH key is not registered.
	ErrSSHKeyNotFound = errors.New("SSH key not found")
)

// AmbiguousStateError lists the instances that matched.
type AmbiguousStateError struct {
	InstanceType string
	InstanceIDs  []string
}

func (e *AmbiguousStateError) Error() string {
	return fmt.Sprintf("found %d running instances of type %s (%s); expected at most one",
		len(e.InstanceIDs), e.InstanceType, strings.Join(e.InstanceIDs, ", "))
}

func (e *AmbiguousStateError) Unwrap() error {
	return ErrAmbiguousState
}

// StatusError is returned when polling stops on a status that can never
// become the desired one.
type StatusError struct {
	InstanceID string
	Observed   lambda.Status
	Desired    lambda.Status
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("instance %s is %s while waiting for %s: %v", e.InstanceID, e.Observed, e.Desired, e.Err)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// MissingAddressError is returned when an instance reaches its terminal
// status without an IP address.
type MissingAddressError struct {
	InstanceID string
	Status     lambda.Status
}

func (e *MissingAddressError) Error() string {
	return fmt.Sprintf("instance %s is %s but has no IP address", e.InstanceID, e.Status)
}

func (e *MissingAddressError) Unwrap() error {
	return ErrMissingAddress
}

// UnexpectedResponseError describes an API answer the runner refuses to
// guess about.
type UnexpectedResponseError struct {
	Op     string
	Detail string
}

func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Detail)
}

func (e *UnexpectedResponseError) Unwrap() error {
	return ErrUnexpectedResponse
}
