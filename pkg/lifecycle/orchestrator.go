// Package lifecycle starts and terminates a single Lambda Cloud runner
// instance per instance type.
//
// Every run re-reads the world from the API: there is no local state, so a
// CI step can be retried safely. The idempotency check finishes before any
// launch or terminate request is sent. It does not protect against two runs
// executing at the same time.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/NavarchProject/gpurunner/pkg/availability"
	"github.com/NavarchProject/gpurunner/pkg/clock"
	"github.com/NavarchProject/gpurunner/pkg/lambda"
	"github.com/NavarchProject/gpurunner/pkg/notify"
)

// Actions.
const (
	ActionStart     = "start"
	ActionTerminate = "terminate"
)

// Outcome is how a successful run ended.
type Outcome string

const (
	OutcomeLaunched           Outcome = notify.EventLaunched
	OutcomeAlreadyRunning     Outcome = notify.EventAlreadyRunning
	OutcomeTerminated         Outcome = notify.EventTerminated
	OutcomeNothingToTerminate Outcome = notify.EventNothingToTerminate
	outcomeFailed                     = notify.EventFailed
)

// Result is the outcome of Start or Terminate.
type Result struct {
	RunID    string
	Outcome  Outcome
	Instance *lambda.Instance
	// IP is set for OutcomeLaunched and OutcomeTerminated.
	IP string
}

// Recorder receives lifecycle measurements.
type Recorder interface {
	ObservePoll(status lambda.Status)
	ObserveRun(action, outcome string, duration time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) ObservePoll(lambda.Status)                {}
func (noopRecorder) ObserveRun(string, string, time.Duration) {}

// Options configures the orchestrator.
type Options struct {
	// SSHKeyName is the single SSH key installed on launched instances.
	// Default: github-runner.
	SSHKeyName string

	// NamePrefix is prepended to the instance type name to form the
	// instance name. Default: github-runner-.
	NamePrefix string

	// FileSystemNames are attached to launched instances.
	FileSystemNames []string

	// VerifySSHKey checks that SSHKeyName is registered before launching.
	VerifySSHKey bool

	// PollInterval is the wait between status checks. Default: 30s.
	PollInterval time.Duration

	// PollTimeout bounds each wait for a status. Zero polls forever.
	PollTimeout time.Duration

	Logger   *slog.Logger
	Clock    clock.Clock
	Recorder Recorder
	Notifier notify.Notifier
}

// DefaultOptions returns the options used by the CI runner.
func DefaultOptions() Options {
	return Options{
		SSHKeyName:   "github-runner",
		NamePrefix:   "github-runner-",
		PollInterval: 30 * time.Second,
	}
}

// Orchestrator drives the runner lifecycle against the Lambda Cloud API.
type Orchestrator struct {
	api      lambda.API
	opts     Options
	logger   *slog.Logger
	clock    clock.Clock
	recorder Recorder
	notifier notify.Notifier
}

// New creates an orchestrator. Zero-valued options take their defaults.
func New(api lambda.API, opts Options) *Orchestrator {
	defaults := DefaultOptions()
	if opts.SSHKeyName == "" {
		opts.SSHKeyName = defaults.SSHKeyName
	}
	if opts.NamePrefix == "" {
		opts.NamePrefix = defaults.NamePrefix
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaults.PollInterval
	}

	o := &Orchestrator{
		api:      api,
		opts:     opts,
		logger:   opts.Logger,
		clock:    opts.Clock,
		recorder: opts.Recorder,
		notifier: opts.Notifier,
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.clock == nil {
		o.clock = clock.Real()
	}
	if o.recorder == nil {
		o.recorder = noopRecorder{}
	}
	if o.notifier == nil {
		o.notifier = notify.NewLogNotifier(o.logger)
	}
	return o
}

// InstanceName returns the name given to the runner of an instance type.
func (o *Orchestrator) InstanceName(instanceType string) string {
	return o.opts.NamePrefix + instanceType
}

// FindRunning returns the running instance of the given type, or nil if
// there is none. More than one match is an AmbiguousStateError.
func (o *Orchestrator) FindRunning(ctx context.Context, instanceType string) (*lambda.Instance, error) {
	instances, err := o.api.ListInstances(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing instances: %w", err)
	}

	var matching []lambda.Instance
	for _, inst := range instances {
		if inst.TypeName() == instanceType {
			matching = append(matching, inst)
		}
	}

	switch len(matching) {
	case 0:
		return nil, nil
	case 1:
		return &matching[0], nil
	default:
		ids := make([]string, 0, len(matching))
		for _, inst := range matching {
			ids = append(ids, inst.ID)
		}
		return nil, &AmbiguousStateError{InstanceType: instanceType, InstanceIDs: ids}
	}
}

// Start ensures one instance of the given type is active and returns its IP
// address. If one is already running, nothing is launched and the result
// has OutcomeAlreadyRunning.
func (o *Orchestrator) Start(ctx context.Context, instanceType string) (*Result, error) {
	return o.run(ctx, ActionStart, instanceType, o.start)
}

// Terminate terminates the running instance of the given type and waits
// until it is gone. The result carries the IP the instance had. If nothing
// is running the result has OutcomeNothingToTerminate.
//
// The instance is terminated whatever its current status, including booting.
func (o *Orchestrator) Terminate(ctx context.Context, instanceType string) (*Result, error) {
	return o.run(ctx, ActionTerminate, instanceType, o.terminate)
}

type runFunc func(ctx context.Context, rs *runState) (*Result, error)

// runState is shared between run and the action it wraps. instanceID is set
// as soon as an instance is launched or targeted, so a failure event can
// name the instance that may need cleaning up.
type runState struct {
	logger       *slog.Logger
	instanceType string
	instanceID   string
}

func (o *Orchestrator) run(ctx context.Context, action, instanceType string, fn runFunc) (*Result, error) {
	runID := uuid.NewString()
	rs := &runState{
		logger: o.logger.With(
			slog.String("run_id", runID),
			slog.String("action", action),
			slog.String("instance_type", instanceType),
		),
		instanceType: instanceType,
	}
	started := o.clock.Now()

	res, err := fn(ctx, rs)

	event := notify.Event{
		RunID:        runID,
		Action:       action,
		InstanceType: instanceType,
		InstanceID:   rs.instanceID,
		Timestamp:    o.clock.Now().UTC(),
	}
	if err != nil {
		event.Type = outcomeFailed
		event.Error = err.Error()
		if event.InstanceID == "" {
			event.InstanceID = failedInstanceID(err)
		}
	} else {
		res.RunID = runID
		event.Type = string(res.Outcome)
		event.IP = res.IP
		if res.Instance != nil {
			event.InstanceID = res.Instance.ID
		}
	}

	o.recorder.ObserveRun(action, event.Type, o.clock.Since(started))

	// The outcome is reported even when ctx was cancelled by a signal: a run
	// interrupted mid-boot is the one an operator most needs to hear about.
	notifyCtx := context.WithoutCancel(ctx)
	if nerr := o.notifier.Notify(notifyCtx, event); nerr != nil {
		rs.logger.WarnContext(notifyCtx, "failed to send notification", slog.String("error", nerr.Error()))
	}

	if err != nil {
		return nil, err
	}
	return res, nil
}

func failedInstanceID(err error) string {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.InstanceID
	}
	var addrErr *MissingAddressError
	if errors.As(err, &addrErr) {
		return addrErr.InstanceID
	}
	return ""
}

func (o *Orchestrator) start(ctx context.Context, rs *runState) (*Result, error) {
	logger, instanceType := rs.logger, rs.instanceType

	existing, err := o.FindRunning(ctx, instanceType)
	if err != nil {
		logger.ErrorContext(ctx, "idempotency check failed", slog.String("error", err.Error()))
		return nil, err
	}
	if existing != nil {
		logger.WarnContext(ctx, "found running instance, nothing to launch",
			slog.String("instance_id", existing.ID),
			slog.String("status", string(existing.Status)),
		)
		return &Result{Outcome: OutcomeAlreadyRunning, Instance: existing, IP: existing.IP}, nil
	}
	logger.InfoContext(ctx, "no running instance found, creating one")

	if o.opts.VerifySSHKey {
		if err := o.verifySSHKey(ctx); err != nil {
			logger.ErrorContext(ctx, "SSH key check failed", slog.String("error", err.Error()))
			return nil, err
		}
	}

	catalog, err := o.api.ListInstanceTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing instance types: %w", err)
	}

	sel, err := availability.Resolve(catalog, instanceType)
	if err != nil {
		var noCap *availability.NoCapacityError
		if errors.As(err, &noCap) {
			logger.ErrorContext(ctx, "no capacity for requested instance type",
				slog.String("alternatives", availability.FormatAvailable(noCap.Available)),
			)
		}
		return nil, err
	}
	logger.InfoContext(ctx, "found capacity for requested instance type",
		slog.String("region", sel.Region.Name),
		slog.Any("regions", sel.Entry.RegionNames()),
	)

	req, err := lambda.NewLaunchRequest(sel.Entry.InstanceType.Name, sel.Region.Name, o.opts.SSHKeyName, o.InstanceName(instanceType), o.opts.FileSystemNames)
	if err != nil {
		return nil, err
	}

	ids, err := o.api.Launch(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("launching %s in %s: %w", instanceType, sel.Region.Name, err)
	}
	if len(ids) != 1 {
		err := &UnexpectedResponseError{Op: "launch", Detail: fmt.Sprintf("expected exactly 1 instance id, got %d %v", len(ids), ids)}
		logger.ErrorContext(ctx, "launch returned unexpected ids", slog.Any("instance_ids", ids))
		return nil, err
	}
	id := ids[0]
	rs.instanceID = id
	logger.InfoContext(ctx, "launched instance", slog.String("instance_id", id), slog.String("region", sel.Region.Name))

	inst, err := o.WaitForStatus(ctx, id, lambda.StatusActive)
	if err != nil {
		return nil, err
	}
	if inst.IP == "" {
		logger.ErrorContext(ctx, "instance is active but has no IP address", slog.String("instance_id", id))
		return nil, &MissingAddressError{InstanceID: id, Status: inst.Status}
	}

	logger.InfoContext(ctx, "instance is active", slog.String("instance_id", id), slog.String("ip", inst.IP))
	return &Result{Outcome: OutcomeLaunched, Instance: inst, IP: inst.IP}, nil
}

func (o *Orchestrator) terminate(ctx context.Context, rs *runState) (*Result, error) {
	logger, instanceType := rs.logger, rs.instanceType

	existing, err := o.FindRunning(ctx, instanceType)
	if err != nil {
		logger.ErrorContext(ctx, "idempotency check failed", slog.String("error", err.Error()))
		return nil, err
	}
	if existing == nil {
		logger.InfoContext(ctx, "no running instance found, nothing to terminate")
		return &Result{Outcome: OutcomeNothingToTerminate}, nil
	}

	rs.instanceID = existing.ID
	logger = logger.With(slog.String("instance_id", existing.ID))
	logger.InfoContext(ctx, "instance found, terminating", slog.String("status", string(existing.Status)))

	terminated, err := o.api.Terminate(ctx, lambda.TerminateRequest{InstanceIDs: []string{existing.ID}})
	if err != nil {
		return nil, fmt.Errorf("terminating instance %s: %w", existing.ID, err)
	}

	record := *existing
	switch len(terminated) {
	case 0:
		logger.WarnContext(ctx, "terminate response did not echo the instance")
	case 1:
		if terminated[0].ID != existing.ID {
			return nil, &UnexpectedResponseError{Op: "terminate", Detail: fmt.Sprintf("requested %s, API terminated %s", existing.ID, terminated[0].ID)}
		}
		record = terminated[0]
	default:
		return nil, &UnexpectedResponseError{Op: "terminate", Detail: fmt.Sprintf("expected 1 terminated instance, got %d", len(terminated))}
	}

	ip := record.IP
	if ip == "" {
		ip = existing.IP
	}

	final, err := o.WaitForStatus(ctx, existing.ID, lambda.StatusTerminated)
	if err != nil {
		return nil, err
	}
	if ip == "" {
		logger.ErrorContext(ctx, "instance is terminated, but had no IP address")
		return nil, &MissingAddressError{InstanceID: existing.ID, Status: final.Status}
	}

	logger.InfoContext(ctx, "instance is terminated", slog.String("ip", ip))
	return &Result{Outcome: OutcomeTerminated, Instance: final, IP: ip}, nil
}

func (o *Orchestrator) verifySSHKey(ctx context.Context) error {
	keys, err := o.api.ListSSHKeys(ctx)
	if err != nil {
		return fmt.Errorf("listing SSH keys: %w", err)
	}
	for _, key := range keys {
		if key.Name == o.opts.SSHKeyName {
			return nil
		}
	}
	return fmt.Errorf("%w: %q is not registered with the account", ErrSSHKeyNotFound, o.opts.SSHKeyName)
}
