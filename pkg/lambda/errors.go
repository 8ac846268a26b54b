package lambda

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error codes returned by the Lambda Cloud API.
const (
	CodeUnknown                 = "global/unknown"
	CodeInvalidAPIKey           = "global/invalid-api-key"
	CodeAccountInactive         = "global/account-inactive"
	CodeInvalidParameters       = "global/invalid-parameters"
	CodeObjectDoesNotExist      = "global/object-does-not-exist"
	CodeInsufficientCapacity    = "instance-operations/launch/insufficient-capacity"
	CodeFileSystemInWrongRegion = "instance-operations/launch/file-system-in-wrong-region"
	CodeFileSystemsNotSupported = "instance-operations/launch/file-systems-not-supported"
	CodeSSHKeyInUse             = "ssh-keys/key-in-use"
)

// TransportError is returned when a request could not reach the API or its
// response could not be read.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("lambda %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Temporary reports true: a request that never got an answer may succeed
// when sent again.
func (e *TransportError) Temporary() bool {
	return true
}

// FieldError describes a problem with a single request parameter.
type FieldError struct {
	Code    string
	Message string
}

// APIError is returned for any non-2xx response.
type APIError struct {
	Op          string
	StatusCode  int
	Code        string
	Message     string
	Suggestion  string
	FieldErrors map[string]FieldError
}

func (e *APIError) Error() string {
	var b strings.Builder
	if e.Code != "" {
		fmt.Fprintf(&b, "lambda %s: API error: %s (code: %s, status: %d)", e.Op, e.Message, e.Code, e.StatusCode)
	} else {
		fmt.Fprintf(&b, "lambda %s: API error: status %d: %s", e.Op, e.StatusCode, e.Message)
	}
	if e.Suggestion != "" {
		fmt.Fprintf(&b, "; suggestion: %s", e.Suggestion)
	}
	if len(e.FieldErrors) > 0 {
		fields := make([]string, 0, len(e.FieldErrors))
		for name := range e.FieldErrors {
			fields = append(fields, name)
		}
		sort.Strings(fields)
		for _, name := range fields {
			fmt.Fprintf(&b, "; %s: %s", name, e.FieldErrors[name].Message)
		}
	}
	return b.String()
}

// HasCode reports whether err is an APIError with the given code.
func HasCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// IsNotFound reports whether the API said the object does not exist.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == CodeObjectDoesNotExist || (apiErr.Code == "" && apiErr.StatusCode == 404)
}

// IsInsufficientCapacity reports whether a launch failed for lack of capacity.
func IsInsufficientCapacity(err error) bool {
	return HasCode(err, CodeInsufficientCapacity)
}

// IsTransport reports whether err is a TransportError.
func IsTransport(err error) bool {
	var tErr *TransportError
	return errors.As(err, &tErr)
}
