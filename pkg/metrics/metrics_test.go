package metrics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/NavarchProject/gpurunner/pkg/lambda"
)

type stubAPI struct {
	getErr error
}

func (s *stubAPI) ListInstanceTypes(context.Context) (lambda.Catalog, error) {
	return lambda.Catalog{}, nil
}

func (s *stubAPI) ListInstances(context.Context) ([]lambda.Instance, error) {
	return nil, nil
}

func (s *stubAPI) GetInstance(_ context.Context, id string) (*lambda.Instance, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return &lambda.Instance{ID: id, Status: lambda.StatusActive}, nil
}

func (s *stubAPI) Launch(context.Context, lambda.LaunchRequest) ([]string, error) {
	return []string{"i-1"}, nil
}

func (s *stubAPI) Terminate(context.Context, lambda.TerminateRequest) ([]lambda.Instance, error) {
	return nil, &lambda.APIError{Op: "terminate", StatusCode: 400, Code: lambda.CodeInvalidParameters}
}

func (s *stubAPI) ListSSHKeys(context.Context) ([]lambda.SSHKey, error) {
	return nil, nil
}

func TestInstrumentAPI(t *testing.T) {
	m := New()
	stub := &stubAPI{}
	api := InstrumentAPI(stub, m)
	ctx := context.Background()

	api.ListInstances(ctx)
	api.GetInstance(ctx, "i-1")
	stub.getErr = &lambda.TransportError{Op: "get instance", Err: errors.New("reset")}
	api.GetInstance(ctx, "i-1")
	api.Terminate(ctx, lambda.TerminateRequest{InstanceIDs: []string{"i-1"}})

	tests := []struct {
		op     string
		result string
		want   float64
	}{
		{OpListInstances, "success", 1},
		{OpGetInstance, "success", 1},
		{OpGetInstance, "transport_error", 1},
		{OpTerminate, "api_error", 1},
		{OpLaunch, "success", 0},
	}
	for _, tt := range tests {
		got := testutil.ToFloat64(m.apiRequestsTotal.WithLabelValues(tt.op, tt.result))
		if got != tt.want {
			t.Errorf("requests{%s,%s} = %v, want %v", tt.op, tt.result, got, tt.want)
		}
	}

	count, err := testutil.GatherAndCount(m.Registry(), "gpurunner_api_request_duration_seconds")
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}
	if count != 3 {
		t.Errorf("duration series = %d, want 3 (one per operation used)", count)
	}
}

func TestObservePollAndRun(t *testing.T) {
	m := New()

	m.ObservePoll(lambda.StatusBooting)
	m.ObservePoll(lambda.StatusBooting)
	m.ObservePoll(lambda.StatusActive)
	m.ObservePoll("")
	m.ObserveRun("start", "launched", 90*time.Second)

	if got := testutil.ToFloat64(m.instancePollsTotal.WithLabelValues("booting")); got != 2 {
		t.Errorf("polls{booting} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.instancePollsTotal.WithLabelValues("unknown")); got != 1 {
		t.Errorf("polls{unknown} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.runsTotal.WithLabelValues("start", "launched")); got != 1 {
		t.Errorf("runs{start,launched} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.runDuration.WithLabelValues("start")); got != 90 {
		t.Errorf("run duration = %v, want 90", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.ObserveRun("terminate", "terminated", time.Minute)

	path := filepath.Join(t.TempDir(), "gpurunner.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read textfile: %v", err)
	}
	want := `gpurunner_lifecycle_runs_total{action="terminate",outcome="terminated"} 1`
	if !strings.Contains(string(data), want) {
		t.Errorf("textfile missing %q:\n%s", want, data)
	}
}

func TestWriteTextfile_BadPath(t *testing.T) {
	m := New()
	err := m.WriteTextfile(filepath.Join(t.TempDir(), "missing", "dir", "x.prom"))
	if err == nil {
		t.Error("WriteTextfile() into a missing directory should fail")
	}
}
