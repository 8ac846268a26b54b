// Package notify reports the outcome of a runner lifecycle action.
package notify

import (
	"context"
	"errors"
	"time"
)

// Event types.
const (
	EventLaunched           = "launched"
	EventAlreadyRunning     = "already_running"
	EventTerminated         = "terminated"
	EventNothingToTerminate = "nothing_to_terminate"
	EventFailed             = "failed"
)

// Event describes the outcome of one start or terminate run.
type Event struct {
	Type         string    `json:"event"`
	RunID        string    `json:"run_id"`
	Action       string    `json:"action"`
	InstanceType string    `json:"instance_type"`
	InstanceID   string    `json:"instance_id,omitempty"`
	IP           string    `json:"ip,omitempty"`
	Error        string    `json:"error,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Notifier sends lifecycle outcome events.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Multi fans an event out to several notifiers and joins their errors.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, event Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
