package lambda

import (
	"context"

	"github.com/NavarchProject/gpurunner/pkg/retry"
)

// WithRetry wraps api so that read operations are retried on temporary
// errors, which for this client means a TransportError. Launch and Terminate
// are passed through untouched: a launch retried after a lost response could
// start a second instance.
func WithRetry(api API, cfg retry.Config) API {
	if !cfg.Enabled() {
		return api
	}
	if cfg.Retryable == nil {
		cfg.Retryable = retry.Temporary
	}
	return &retryingAPI{api: api, retrier: retry.New(cfg)}
}

type retryingAPI struct {
	api     API
	retrier *retry.Retrier
}

func (r *retryingAPI) ListInstanceTypes(ctx context.Context) (Catalog, error) {
	return retry.Value(ctx, r.retrier, "list instance types", r.api.ListInstanceTypes)
}

func (r *retryingAPI) ListInstances(ctx context.Context) ([]Instance, error) {
	return retry.Value(ctx, r.retrier, "list instances", r.api.ListInstances)
}

func (r *retryingAPI) GetInstance(ctx context.Context, id string) (*Instance, error) {
	return retry.Value(ctx, r.retrier, "get instance", func(ctx context.Context) (*Instance, error) {
		return r.api.GetInstance(ctx, id)
	})
}

func (r *retryingAPI) Launch(ctx context.Context, req LaunchRequest) ([]string, error) {
	return r.api.Launch(ctx, req)
}

func (r *retryingAPI) Terminate(ctx context.Context, req TerminateRequest) ([]Instance, error) {
	return r.api.Terminate(ctx, req)
}

func (r *retryingAPI) ListSSHKeys(ctx context.Context) ([]SSHKey, error) {
	return retry.Value(ctx, r.retrier, "list ssh keys", r.api.ListSSHKeys)
}
