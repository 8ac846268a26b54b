// Package lambda is a client for the Lambda Cloud instance API.
package lambda

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://cloud.lambdalabs.com/api/v1"
	defaultTimeout = 30 * time.Second
)

// Authentication schemes accepted by the API.
const (
	AuthBearer = "bearer"
	AuthBasic  = "basic"
)

// API is the set of Lambda Cloud operations the runner lifecycle needs.
type API interface {
	ListInstanceTypes(ctx context.Context) (Catalog, error)
	ListInstances(ctx context.Context) ([]Instance, error)
	GetInstance(ctx context.Context, id string) (*Instance, error)
	Launch(ctx context.Context, req LaunchRequest) ([]string, error)
	Terminate(ctx context.Context, req TerminateRequest) ([]Instance, error)
	ListSSHKeys(ctx context.Context) ([]SSHKey, error)
}

// Config holds configuration for the Lambda Cloud client.
type Config struct {
	APIKey     string
	BaseURL    string // Optional, defaults to Lambda Cloud API
	AuthScheme string // bearer (default) or basic
	Timeout    time.Duration
	HTTPClient *http.Client // Optional, overrides Timeout
	Logger     *slog.Logger
}

// Client implements API over HTTP. It never retries; see WithRetry.
type Client struct {
	apiKey     string
	baseURL    string
	authScheme string
	client     *http.Client
	logger     *slog.Logger
}

// New creates a new Lambda Cloud client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	scheme := strings.ToLower(cfg.AuthScheme)
	switch scheme {
	case "":
		scheme = AuthBearer
	case AuthBearer, AuthBasic:
	default:
		return nil, fmt.Errorf("unsupported auth scheme %q", cfg.AuthScheme)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		authScheme: scheme,
		client:     httpClient,
		logger:     logger,
	}, nil
}

// ListInstanceTypes returns the instance type catalog, including the regions
// that currently have capacity for each type.
func (c *Client) ListInstanceTypes(ctx context.Context) (Catalog, error) {
	c.logger.DebugContext(ctx, "getting instance types")
	var resp instanceTypesResponse
	if err := c.do(ctx, "list instance types", http.MethodGet, "/instance-types", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return Catalog{}, nil
	}
	return Catalog(resp.Data), nil
}

// ListInstances returns all running instances.
func (c *Client) ListInstances(ctx context.Context) ([]Instance, error) {
	c.logger.DebugContext(ctx, "getting running instances")
	var resp listInstancesResponse
	if err := c.do(ctx, "list instances", http.MethodGet, "/instances", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// GetInstance returns the details of one instance.
func (c *Client) GetInstance(ctx context.Context, id string) (*Instance, error) {
	if id == "" {
		return nil, fmt.Errorf("instance id is required")
	}
	c.logger.DebugContext(ctx, "getting instance details", slog.String("instance_id", id))
	var resp getInstanceResponse
	if err := c.do(ctx, "get instance", http.MethodGet, "/instances/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// Launch launches instances and returns their ids. The API may launch fewer
// instances than requested.
func (c *Client) Launch(ctx context.Context, req LaunchRequest) ([]string, error) {
	c.logger.DebugContext(ctx, "launching instance",
		slog.String("instance_type", req.InstanceTypeName),
		slog.String("region", req.RegionName),
		slog.Int("quantity", req.Quantity),
	)
	var resp launchResponse
	if err := c.do(ctx, "launch", http.MethodPost, "/instance-operations/launch", req, &resp); err != nil {
		return nil, err
	}
	return resp.Data.InstanceIDs, nil
}

// Terminate terminates instances and returns the records the API echoed back.
func (c *Client) Terminate(ctx context.Context, req TerminateRequest) ([]Instance, error) {
	if len(req.InstanceIDs) == 0 {
		return nil, fmt.Errorf("at least one instance id is required")
	}
	c.logger.DebugContext(ctx, "terminating instances", slog.Any("instance_ids", req.InstanceIDs))
	var resp terminateResponse
	if err := c.do(ctx, "terminate", http.MethodPost, "/instance-operations/terminate", req, &resp); err != nil {
		return nil, err
	}
	return resp.Data.TerminatedInstances, nil
}

// ListSSHKeys returns the SSH keys registered with the account.
func (c *Client) ListSSHKeys(ctx context.Context) ([]SSHKey, error) {
	c.logger.DebugContext(ctx, "getting SSH keys")
	var resp listSSHKeysResponse
	if err := c.do(ctx, "list SSH keys", http.MethodGet, "/ssh-keys", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("lambda %s: failed to marshal request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("lambda %s: failed to create request: %w", op, err)
	}
	c.setHeaders(httpReq, in != nil)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseError(op, resp.StatusCode, data)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("lambda %s: failed to decode response: %w", op, err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request, hasBody bool) {
	if c.authScheme == AuthBasic {
		req.SetBasicAuth(c.apiKey, "")
	} else {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
}

func parseError(op string, status int, body []byte) error {
	apiErr := &APIError{Op: op, StatusCode: status}

	var errResp errorResponse
	if json.Unmarshal(body, &errResp) == nil && (errResp.Error.Code != "" || errResp.Error.Message != "") {
		apiErr.Code = errResp.Error.Code
		apiErr.Message = errResp.Error.Message
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(status)
		}
		apiErr.Suggestion = errResp.Error.Suggestion
		if len(errResp.FieldErrors) > 0 {
			apiErr.FieldErrors = make(map[string]FieldError, len(errResp.FieldErrors))
			for name, fe := range errResp.FieldErrors {
				apiErr.FieldErrors[name] = FieldError{Code: fe.Code, Message: fe.Message}
			}
		}
		return apiErr
	}

	apiErr.Message = strings.TrimSpace(string(body))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}
