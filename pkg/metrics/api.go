package metrics

import (
	"context"
	"time"

	"github.com/NavarchProject/gpurunner/pkg/lambda"
)

// Operation label values.
const (
	OpListInstanceTypes = "list_instance_types"
	OpListInstances     = "list_instances"
	OpGetInstance       = "get_instance"
	OpLaunch            = "launch"
	OpTerminate         = "terminate"
	OpListSSHKeys       = "list_ssh_keys"
)

// InstrumentAPI wraps api so every request is counted and timed.
func InstrumentAPI(api lambda.API, m *Metrics) lambda.API {
	return &instrumentedAPI{api: api, m: m}
}

type instrumentedAPI struct {
	api lambda.API
	m   *Metrics
}

func (i *instrumentedAPI) observe(op string, start time.Time, err error) {
	i.m.ObserveRequest(op, err, time.Since(start))
}

func (i *instrumentedAPI) ListInstanceTypes(ctx context.Context) (lambda.Catalog, error) {
	start := time.Now()
	catalog, err := i.api.ListInstanceTypes(ctx)
	i.observe(OpListInstanceTypes, start, err)
	return catalog, err
}

func (i *instrumentedAPI) ListInstances(ctx context.Context) ([]lambda.Instance, error) {
	start := time.Now()
	instances, err := i.api.ListInstances(ctx)
	i.observe(OpListInstances, start, err)
	return instances, err
}

func (i *instrumentedAPI) GetInstance(ctx context.Context, id string) (*lambda.Instance, error) {
	start := time.Now()
	inst, err := i.api.GetInstance(ctx, id)
	i.observe(OpGetInstance, start, err)
	return inst, err
}

func (i *instrumentedAPI) Launch(ctx context.Context, req lambda.LaunchRequest) ([]string, error) {
	start := time.Now()
	ids, err := i.api.Launch(ctx, req)
	i.observe(OpLaunch, start, err)
	return ids, err
}

func (i *instrumentedAPI) Terminate(ctx context.Context, req lambda.TerminateRequest) ([]lambda.Instance, error) {
	start := time.Now()
	instances, err := i.api.Terminate(ctx, req)
	i.observe(OpTerminate, start, err)
	return instances, err
}

func (i *instrumentedAPI) ListSSHKeys(ctx context.Context) ([]lambda.SSHKey, error) {
	start := time.Now()
	keys, err := i.api.ListSSHKeys(ctx)
	i.observe(OpListSSHKeys, start, err)
	return keys, err
}
