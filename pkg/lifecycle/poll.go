package lifecycle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/NavarchProject/gpurunner/pkg/lambda"
)

// Step is the outcome of one observation in the polling state machine.
type Step int

const (
	// Continue means wait one interval and observe again.
	Continue Step = iota
	// Succeed means the desired status was reached.
	Succeed
	// Fail means the desired status can no longer be reached.
	Fail
)

func (s Step) String() string {
	switch s {
	case Continue:
		return "continue"
	case Succeed:
		return "succeed"
	case Fail:
		return "fail"
	default:
		return fmt.Sprintf("Step(%d)", int(s))
	}
}

// Transition decides what to do after observing an instance status. The
// returned error is non-nil exactly when the step is Fail.
//
// Unhealthy always fails. Terminated fails when waiting for active, since a
// terminated instance never comes back. Every other status, including ones
// the API may add later, keeps the loop waiting.
func Transition(observed, desired lambda.Status) (Step, error) {
	switch {
	case observed == desired:
		return Succeed, nil
	case observed == lambda.StatusUnhealthy:
		return Fail, ErrUnhealthyInstance
	case observed == lambda.StatusTerminated && desired == lambda.StatusActive:
		return Fail, ErrInstanceTerminated
	default:
		return Continue, nil
	}
}

// WaitForStatus polls the instance until it reaches desired, Transition
// fails, or ctx is done. The first observation is made immediately; each
// further one follows a PollInterval wait on the orchestrator's clock.
//
// There is no deadline unless Options.PollTimeout is set or ctx carries one.
//
// When waiting for terminated, a not-found answer counts as terminated: the
// instance may be removed from the API before the runner sees its final
// status.
func (o *Orchestrator) WaitForStatus(ctx context.Context, id string, desired lambda.Status) (*lambda.Instance, error) {
	if o.opts.PollTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.PollTimeout)
		defer cancel()
	}

	logger := o.logger.With(slog.String("instance_id", id), slog.String("desired_status", string(desired)))
	logger.InfoContext(ctx, "waiting for instance status",
		slog.Duration("poll_interval", o.opts.PollInterval),
		slog.Duration("poll_timeout", o.opts.PollTimeout),
	)

	var last lambda.Status
	for polls := 1; ; polls++ {
		inst, err := o.api.GetInstance(ctx, id)
		if err != nil {
			if desired == lambda.StatusTerminated && lambda.IsNotFound(err) {
				logger.InfoContext(ctx, "instance no longer exists, treating as terminated", slog.Int("polls", polls))
				o.recorder.ObservePoll(lambda.StatusTerminated)
				return &lambda.Instance{ID: id, Status: lambda.StatusTerminated}, nil
			}
			if last != "" {
				return nil, fmt.Errorf("getting instance %s (last status %s): %w", id, last, err)
			}
			return nil, fmt.Errorf("getting instance %s: %w", id, err)
		}

		last = inst.Status
		o.recorder.ObservePoll(inst.Status)

		step, reason := Transition(inst.Status, desired)
		switch step {
		case Succeed:
			logger.InfoContext(ctx, "instance reached desired status", slog.Int("polls", polls))
			return inst, nil
		case Fail:
			logger.ErrorContext(ctx, "instance entered a status it cannot leave",
				slog.String("status", string(inst.Status)),
				slog.Int("polls", polls),
			)
			return inst, &StatusError{InstanceID: id, Observed: inst.Status, Desired: desired, Err: reason}
		}

		logger.InfoContext(ctx, "instance not ready, waiting",
			slog.String("status", string(inst.Status)),
			slog.Int("polls", polls),
		)

		select {
		case <-ctx.Done():
			return inst, fmt.Errorf("waiting for instance %s to become %s (last status %s): %w", id, desired, inst.Status, ctx.Err())
		case <-o.clock.After(o.opts.PollInterval):
		}
	}
}
