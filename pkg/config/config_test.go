package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/NavarchProject/gpurunner/pkg/lambda"
)

func TestLoad(t *testing.T) {
	yaml := `
api:
  api_key_env: CI_LAMBDA_KEY
  auth_scheme: basic
runner:
  ssh_key_name: ci-key
  file_systems: [shared-cache]
  verify_ssh_key: true
poll:
  interval: 10s
  timeout: 20m
retry:
  max_attempts: 3
metrics:
  textfile: /var/lib/node_exporter/gpurunner.prom
notify:
  webhook_url: https://hooks.example.com/runner
  headers:
    Authorization: Bearer token
instance_types:
  - gpu_1x_a10
  - gpu_8x_h100_sxm5
`
	path := filepath.Join(t.TempDir(), "gpurunner.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.API.BaseURL != lambda.DefaultBaseURL {
		t.Errorf("expected default base URL, got %s", cfg.API.BaseURL)
	}
	if cfg.API.AuthScheme != lambda.AuthBasic {
		t.Errorf("expected auth scheme basic, got %s", cfg.API.AuthScheme)
	}
	if cfg.API.Timeout != 30*time.Second {
		t.Errorf("expected default timeout 30s, got %s", cfg.API.Timeout)
	}
	if cfg.Runner.SSHKeyName != "ci-key" || !cfg.Runner.VerifySSHKey {
		t.Errorf("unexpected runner config: %+v", cfg.Runner)
	}
	if cfg.Runner.NamePrefix != "github-runner-" {
		t.Errorf("expected default name prefix, got %s", cfg.Runner.NamePrefix)
	}
	if cfg.Poll.Interval != 10*time.Second || cfg.Poll.Timeout != 20*time.Minute {
		t.Errorf("unexpected poll config: %+v", cfg.Poll)
	}
	if cfg.Retry.MaxAttempts != 3 || cfg.Retry.InitialDelay != 2*time.Second {
		t.Errorf("unexpected retry config: %+v", cfg.Retry)
	}
	if cfg.Notify.Headers["Authorization"] != "Bearer token" {
		t.Errorf("expected webhook header, got %v", cfg.Notify.Headers)
	}
	if cfg.Notify.Timeout != 10*time.Second {
		t.Errorf("expected default notify timeout 10s, got %s", cfg.Notify.Timeout)
	}

	cat, err := cfg.Catalog()
	if err != nil {
		t.Fatalf("Catalog() error: %v", err)
	}
	if !cat.Contains("gpu_8x_h100_sxm5") || cat.Contains("gpu_1x_a100") {
		t.Errorf("catalog should hold exactly the configured names, got %v", cat.Names())
	}
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	def := Default()
	if cfg.Poll.Interval != def.Poll.Interval || cfg.Runner.SSHKeyName != def.Runner.SSHKeyName {
		t.Errorf("empty config should equal defaults, got %+v", cfg)
	}
	if cfg.Poll.Timeout != 0 {
		t.Errorf("poll timeout should default to unbounded, got %s", cfg.Poll.Timeout)
	}
	if cfg.RetryPolicy().Enabled() {
		t.Error("retries should be disabled by default")
	}

	cat, err := cfg.Catalog()
	if err != nil {
		t.Fatal(err)
	}
	if len(cat.Names()) != 13 {
		t.Errorf("expected the built-in catalog of 13 types, got %d", len(cat.Names()))
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown key",
			yaml:    "poll:\n  intervall: 5s\n",
			wantErr: "intervall",
		},
		{
			name:    "bad auth scheme",
			yaml:    "api:\n  auth_scheme: token\n",
			wantErr: "auth_scheme",
		},
		{
			name:    "relative base url",
			yaml:    "api:\n  base_url: /api/v1\n",
			wantErr: "base_url",
		},
		{
			name:    "negative poll timeout",
			yaml:    "poll:\n  timeout: -1s\n",
			wantErr: "poll.timeout",
		},
		{
			name:    "bad duration",
			yaml:    "poll:\n  interval: soon\n",
			wantErr: "parsing config",
		},
		{
			name:    "retry delays inverted",
			yaml:    "retry:\n  initial_delay: 30s\n  max_delay: 5s\n",
			wantErr: "initial_delay",
		},
		{
			name:    "malformed instance type",
			yaml:    "instance_types: [a100]\n",
			wantErr: "instance_types",
		},
		{
			name:    "duplicate instance type",
			yaml:    "instance_types: [gpu_1x_a10, gpu_1x_a10]\n",
			wantErr: "instance_types",
		},
		{
			name:    "bad webhook url",
			yaml:    "notify:\n  webhook_url: hooks\n",
			wantErr: "webhook_url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "reading config") {
		t.Errorf("expected read error, got %v", err)
	}
}

func TestAPIKey(t *testing.T) {
	t.Setenv("LAMBDA_API_KEY", "from-default-env")
	t.Setenv("CI_LAMBDA_KEY", "from-custom-env")

	cfg := Default()
	if key, _ := cfg.APIKey("explicit"); key != "explicit" {
		t.Errorf("explicit key should win, got %s", key)
	}
	if key, _ := cfg.APIKey(""); key != "from-default-env" {
		t.Errorf("expected default env key, got %s", key)
	}

	cfg.API.APIKeyEnv = "CI_LAMBDA_KEY"
	if key, _ := cfg.APIKey(""); key != "from-custom-env" {
		t.Errorf("expected custom env key, got %s", key)
	}

	cfg.API.APIKeyEnv = "UNSET_GPURUNNER_KEY"
	_, err := cfg.APIKey("")
	if err == nil || !strings.Contains(err.Error(), "UNSET_GPURUNNER_KEY") {
		t.Errorf("expected error naming the env var, got %v", err)
	}
}

func TestRetryPolicy(t *testing.T) {
	cfg, err := Parse([]byte("retry:\n  max_attempts: 4\n  initial_delay: 1s\n  max_delay: 8s\n"))
	if err != nil {
		t.Fatal(err)
	}
	policy := cfg.RetryPolicy()
	if !policy.Enabled() || policy.MaxAttempts != 4 {
		t.Errorf("expected 4 attempts, got %+v", policy)
	}
	if policy.InitialDelay != time.Second || policy.MaxDelay != 8*time.Second {
		t.Errorf("unexpected delays: %s, %s", policy.InitialDelay, policy.MaxDelay)
	}
	if policy.Multiplier != 2.0 {
		t.Errorf("expected multiplier 2, got %v", policy.Multiplier)
	}
}
