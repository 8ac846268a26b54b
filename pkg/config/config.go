// Package config loads the optional gpurunner YAML configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/NavarchProject/gpurunner/pkg/catalog"
	"github.com/NavarchProject/gpurunner/pkg/lambda"
	"github.com/NavarchProject/gpurunner/pkg/retry"
)

// DefaultAPIKeyEnv is the environment variable holding the API key.
const DefaultAPIKeyEnv = "LAMBDA_API_KEY"

// Config is the root configuration for gpurunner.
type Config struct {
	API           APIConfig     `yaml:"api,omitempty"`
	Runner        RunnerConfig  `yaml:"runner,omitempty"`
	Poll          PollConfig    `yaml:"poll,omitempty"`
	Retry         RetryConfig   `yaml:"retry,omitempty"`
	Metrics       MetricsConfig `yaml:"metrics,omitempty"`
	Notify        NotifyConfig  `yaml:"notify,omitempty"`
	InstanceTypes []string      `yaml:"instance_types,omitempty"` // Empty uses the built-in catalog
}

// APIConfig configures the Lambda Cloud client.
type APIConfig struct {
	BaseURL    string        `yaml:"base_url,omitempty"`
	APIKeyEnv  string        `yaml:"api_key_env,omitempty"` // Environment variable name
	AuthScheme string        `yaml:"auth_scheme,omitempty"` // bearer, basic
	Timeout    time.Duration `yaml:"timeout,omitempty"`
}

// RunnerConfig configures launched instances.
type RunnerConfig struct {
	SSHKeyName   string   `yaml:"ssh_key_name,omitempty"`
	NamePrefix   string   `yaml:"name_prefix,omitempty"`
	FileSystems  []string `yaml:"file_systems,omitempty"`
	VerifySSHKey bool     `yaml:"verify_ssh_key,omitempty"`
}

// PollConfig configures status polling.
type PollConfig struct {
	Interval time.Duration `yaml:"interval,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"` // 0 polls forever
}

// RetryConfig configures retries of read-only API calls.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts,omitempty"` // 1 disables retries
	InitialDelay time.Duration `yaml:"initial_delay,omitempty"`
	MaxDelay     time.Duration `yaml:"max_delay,omitempty"`
}

// MetricsConfig configures metrics export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty"` // node_exporter textfile path
}

// NotifyConfig configures outcome notifications.
type NotifyConfig struct {
	WebhookURL string            `yaml:"webhook_url,omitempty"`
	Headers    map[string]string `yaml:"headers,omitempty"`
	Timeout    time.Duration     `yaml:"timeout,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse parses configuration from YAML bytes. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.API.BaseURL != "" {
		u, err := url.Parse(c.API.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("api.base_url %q is not an absolute URL", c.API.BaseURL)
		}
	}
	switch c.API.AuthScheme {
	case "", lambda.AuthBearer, lambda.AuthBasic:
	default:
		return fmt.Errorf("api.auth_scheme must be %s or %s, got %q", lambda.AuthBearer, lambda.AuthBasic, c.API.AuthScheme)
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must be >= 0")
	}

	if c.Poll.Interval < 0 {
		return fmt.Errorf("poll.interval must be >= 0")
	}
	if c.Poll.Timeout < 0 {
		return fmt.Errorf("poll.timeout must be >= 0")
	}

	if c.Retry.MaxAttempts < 0 {
		return fmt.Errorf("retry.max_attempts must be >= 0")
	}
	if c.Retry.MaxDelay > 0 && c.Retry.InitialDelay > c.Retry.MaxDelay {
		return fmt.Errorf("retry.initial_delay cannot exceed retry.max_delay")
	}

	if c.Notify.WebhookURL != "" {
		u, err := url.Parse(c.Notify.WebhookURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("notify.webhook_url %q is not an absolute URL", c.Notify.WebhookURL)
		}
	}

	if len(c.InstanceTypes) > 0 {
		if _, err := catalog.New(c.InstanceTypes); err != nil {
			return fmt.Errorf("instance_types: %w", err)
		}
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = lambda.DefaultBaseURL
	}
	if c.API.APIKeyEnv == "" {
		c.API.APIKeyEnv = DefaultAPIKeyEnv
	}
	if c.API.AuthScheme == "" {
		c.API.AuthScheme = lambda.AuthBearer
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = 30 * time.Second
	}

	if c.Runner.SSHKeyName == "" {
		c.Runner.SSHKeyName = "github-runner"
	}
	if c.Runner.NamePrefix == "" {
		c.Runner.NamePrefix = "github-runner-"
	}

	if c.Poll.Interval == 0 {
		c.Poll.Interval = 30 * time.Second
	}

	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 1
	}
	if c.Retry.InitialDelay == 0 {
		c.Retry.InitialDelay = 2 * time.Second
	}
	if c.Retry.MaxDelay == 0 {
		c.Retry.MaxDelay = 16 * time.Second
	}

	if c.Notify.Timeout == 0 {
		c.Notify.Timeout = 10 * time.Second
	}
}

// Catalog returns the instance type catalog this configuration allows.
func (c *Config) Catalog() (*catalog.Catalog, error) {
	if len(c.InstanceTypes) == 0 {
		return catalog.Default(), nil
	}
	return catalog.New(c.InstanceTypes)
}

// RetryPolicy returns the retry settings for read-only API calls.
func (c *Config) RetryPolicy() retry.Config {
	policy := retry.NetworkConfig()
	policy.MaxAttempts = c.Retry.MaxAttempts
	policy.InitialDelay = c.Retry.InitialDelay
	policy.MaxDelay = c.Retry.MaxDelay
	return policy
}

// APIKey resolves the API key. An explicit value wins over the
// environment variable named by api.api_key_env.
func (c *Config) APIKey(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	env := c.API.APIKeyEnv
	if env == "" {
		env = DefaultAPIKeyEnv
	}
	if key := os.Getenv(env); key != "" {
		return key, nil
	}
	return "", fmt.Errorf("no API key: pass --api-key or set %s", env)
}
