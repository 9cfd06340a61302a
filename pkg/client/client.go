// Package client is the HTTP client for a running webstackd daemon. It is
// what the CLI subcommands and any embedding shell use to drive the stack
// remotely.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Config holds client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger
}

// DefaultConfig returns the configuration matching the daemon's defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://127.0.0.1:9180/api",
		Timeout: 10 * time.Second,
	}
}

// Client communicates with a webstackd daemon over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultConfig().BaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		baseURL: cfg.BaseURL,
		logger:  cfg.Logger,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

// IsReachable checks whether the daemon answers on its API base path.
func (c *Client) IsReachable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("daemon unreachable", "err", err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// Start starts one service kind ("webserver", "scriptruntime", "database" or
// an alias the daemon accepts).
func (c *Client) Start(ctx context.Context, kind string) error {
	return c.post(ctx, "/start?kind="+url.QueryEscape(kind))
}

// Stop stops one service kind.
func (c *Client) Stop(ctx context.Context, kind string) error {
	return c.post(ctx, "/stop?kind="+url.QueryEscape(kind))
}

// StartAll starts the whole stack in dependency order.
func (c *Client) StartAll(ctx context.Context) error {
	return c.post(ctx, "/start-all")
}

// StopAll stops the whole stack.
func (c *Client) StopAll(ctx context.Context) error {
	return c.post(ctx, "/stop-all")
}

// GenerateConfig regenerates the web server configuration from the daemon's
// current route set.
func (c *Client) GenerateConfig(ctx context.Context) error {
	return c.post(ctx, "/config/generate")
}

// Status returns the lifecycle view of every service.
func (c *Client) Status(ctx context.Context) ([]ServiceStatus, error) {
	var out []ServiceStatus
	if err := c.get(ctx, "/status", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// StatusOf returns the lifecycle view of one service kind.
func (c *Client) StatusOf(ctx context.Context, kind string) (ServiceStatus, error) {
	var out ServiceStatus
	err := c.get(ctx, "/status?kind="+url.QueryEscape(kind), &out)
	return out, err
}

// Health returns the records of the daemon's most recent health sweep.
func (c *Client) Health(ctx context.Context) ([]HealthRecord, error) {
	var out []HealthRecord
	if err := c.get(ctx, "/health", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Journal returns up to limit recent lifecycle journal entries, newest first.
// limit <= 0 uses the daemon's default.
func (c *Client) Journal(ctx context.Context, limit int) ([]JournalEntry, error) {
	path := "/journal"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out []JournalEntry
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	return c.checkStatus(resp)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if err := c.checkStatus(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	var er ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil || er.Error == "" {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return fmt.Errorf("API error: %s", er.Error)
}
