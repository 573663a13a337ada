package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jobfill/jobfill/internal/config"
	"github.com/jobfill/jobfill/internal/domain"
	"github.com/jobfill/jobfill/internal/observability"
	"github.com/jobfill/jobfill/internal/resilience"
	"github.com/jobfill/jobfill/pkg/httputil"
)

// ActionsPath is the route prefix of the action API
const ActionsPath = "/api/v1/actions/"

// ClientConfig configures the HTTP transport
type ClientConfig struct {
	BaseURL string
	// APIKey is sent as X-API-Key when set
	APIKey  string
	Timeout time.Duration
	// RequestsPerSecond caps outgoing calls; 0 disables the limiter
	RequestsPerSecond float64
	Burst             int
	Breaker           resilience.Config
}

// DefaultClientConfig returns defaults for a background service on localhost
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:           "http://localhost:8080",
		Timeout:           10 * time.Second,
		RequestsPerSecond: 20,
		Burst:             5,
		Breaker:           resilience.DefaultConfig("transport"),
	}
}

// ClientConfigFrom maps the environment settings onto a client config
func ClientConfigFrom(cfg config.TransportConfig, apiKey string) ClientConfig {
	out := DefaultClientConfig()
	out.BaseURL = cfg.BaseURL
	out.APIKey = apiKey
	if cfg.Timeout > 0 {
		out.Timeout = cfg.Timeout
	}
	out.RequestsPerSecond = cfg.RequestsPerSecond
	if cfg.Burst > 0 {
		out.Burst = cfg.Burst
	}
	out.Breaker = resilience.DefaultConfig("background")
	if cfg.BreakerTimeout > 0 {
		out.Breaker.Timeout = cfg.BreakerTimeout
	}
	if failures := cfg.BreakerFailures; failures > 0 {
		out.Breaker.ReadyToTrip = func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		}
	}
	return out
}

// Client calls the background action API over HTTP
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	breakers   *resilience.Group
	metrics    *observability.Metrics
	logger     *zap.Logger
}

var _ Backend = (*Client)(nil)

// NewClient creates an HTTP transport client
func NewClient(cfg ClientConfig, metrics *observability.Metrics, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	def := DefaultClientConfig()
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
	}

	breakerCfg := cfg.Breaker
	breakerCfg.OnStateChange = resilience.LogStateChanges(logger, func(name string, _, to resilience.State) {
		metrics.RecordCircuitState(name, int(to))
	})

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    limiter,
		breakers:   resilience.NewGroup(breakerCfg),
		metrics:    metrics,
		logger:     logger,
	}, nil
}

// Do posts an action with an optional payload and decodes the response data
// into out when out is non-nil. Transport failures come back as
// TRANSPORT_ERROR; rejections keep the server's error code.
func (c *Client) Do(ctx context.Context, action domain.Action, payload, out any) error {
	start := time.Now()
	err := c.breakers.Get(string(action)).Execute(ctx, func(ctx context.Context) error {
		return c.do(ctx, action, payload, out)
	})

	status := "ok"
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrTooManyRequests):
		status = "rejected"
		err = domain.ErrServiceUnavailable("background").WithCause(err)
	case err != nil:
		status = "error"
	}
	c.metrics.RecordTransportCall(action, status, time.Since(start))

	if err != nil {
		c.logger.Debug("action call failed",
			zap.String("action", string(action)),
			zap.Error(err),
		)
	}
	return err
}

func (c *Client) do(ctx context.Context, action domain.Action, payload, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}

	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			return fmt.Errorf("encoding %s payload: %w", action, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ActionsPath+string(action), &body)
	if err != nil {
		return domain.ErrTransport(action, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.ErrTransport(action, err)
	}
	defer resp.Body.Close()

	return httputil.DecodeResponse(resp, out)
}

// GetProfile fetches the stored profile; nil when none is stored
func (c *Client) GetProfile(ctx context.Context) (*domain.Profile, error) {
	var resp domain.ProfileResponse
	if err := c.Do(ctx, domain.ActionGetProfile, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Profile, nil
}

// GetLearnedPatterns fetches every learned pattern
func (c *Client) GetLearnedPatterns(ctx context.Context) (domain.LearnedPatterns, error) {
	var resp domain.LearnedPatternsResponse
	if err := c.Do(ctx, domain.ActionGetLearnedPatterns, nil, &resp); err != nil {
		return nil, err
	}
	if resp.LearnedPatterns == nil {
		return domain.LearnedPatterns{}, nil
	}
	return resp.LearnedPatterns, nil
}

// SaveLearnedPattern persists one association
func (c *Client) SaveLearnedPattern(ctx context.Context, pattern domain.LearnedPattern) error {
	return c.Do(ctx, domain.ActionSaveLearnedPattern, pattern, nil)
}

// UpdateProfile merges a partial profile into the stored one
func (c *Client) UpdateProfile(ctx context.Context, partial domain.UpdateProfileRequest) error {
	return c.Do(ctx, domain.ActionUpdateProfile, partial, nil)
}

// FillForm asks the background to run a fill on the active page
func (c *Client) FillForm(ctx context.Context) (domain.FillResponse, error) {
	var resp domain.FillResponse
	err := c.Do(ctx, domain.ActionFillForm, nil, &resp)
	return resp, err
}

// Breakers exposes the per-action circuit states
func (c *Client) Breakers() map[string]resilience.State {
	return c.breakers.States()
}
