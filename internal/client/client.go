package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/q09sssisiwjb/boltshell/internal/infrastructure/resilience"
)

// Config configures a Client
type Config struct {
	BaseURL string
	// Timeout bounds every request. It must outlast the server's command
	// timeout for exec calls to report their own timeouts.
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// RequestsPerSecond limits outgoing calls. Zero is unlimited.
	RequestsPerSecond float64
	// FailureThreshold is the consecutive server failures that open the breaker
	FailureThreshold uint32
	BreakerTimeout   time.Duration
	// Logger receives breaker state changes. Nil discards them.
	Logger *zap.Logger
}

// DefaultConfig returns the configuration for the server at baseURL
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:          baseURL,
		Timeout:          11 * time.Minute,
		RetryMax:         3,
		RetryWaitMin:     500 * time.Millisecond,
		RetryWaitMax:     5 * time.Second,
		FailureThreshold: 5,
		BreakerTimeout:   30 * time.Second,
	}
}

// Client talks to a boltshell server
type Client struct {
	resty   *resty.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
}

type noRetryKey struct{}

// New creates a client. Idempotent calls are retried on transport errors and
// 5xx responses; calls that run commands are sent once.
func New(cfg Config) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.RetryMax
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.Logger = nil
	retryClient.CheckRetry = checkRetry
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	restyClient := resty.NewWithClient(retryClient.StandardClient()).
		SetBaseURL(cfg.BaseURL).
		SetHeader("User-Agent", "boltsh/1.0").
		SetHeader("Accept", "application/json")
	if cfg.Timeout > 0 {
		restyClient.SetTimeout(cfg.Timeout)
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), int(cfg.RequestsPerSecond)+1)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	breaker := resilience.New("boltshell", resilience.Settings{
		Trials:   1,
		Cooldown: cfg.BreakerTimeout,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !serverFault(err)
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
				zap.String("server", cfg.BaseURL),
			)
		},
	})

	return &Client{
		resty:   restyClient,
		limiter: limiter,
		breaker: breaker,
	}
}

func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Value(noRetryKey{}) != nil {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// serverFault reports errors that say the server itself is unhealthy. Shell
// level outcomes such as command timeouts do not count.
func serverFault(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusInternalServerError ||
			apiErr.StatusCode == http.StatusServiceUnavailable
	}
	return !errors.Is(err, context.Canceled)
}

// BreakerState returns the current circuit breaker state
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

type call struct {
	method string
	path   string
	body   interface{}
	once   bool
}

// send runs one API call through the limiter and circuit breaker and
// decodes a JSON result into out when out is non-nil
func (c *Client) send(ctx context.Context, req call, out interface{}) (*resty.Response, error) {
	return resilience.Call(ctx, c.breaker, func(ctx context.Context) (*resty.Response, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit error: %w", err)
		}
		if req.once {
			ctx = context.WithValue(ctx, noRetryKey{}, true)
		}

		var apiErr errorBody
		r := c.resty.R().SetContext(ctx).SetError(&apiErr)
		if out != nil {
			r.SetResult(out)
		}
		if req.body != nil {
			r.SetBody(req.body)
		}

		resp, err := r.Execute(req.method, req.path)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", req.method, req.path, err)
		}
		if resp.IsError() {
			return resp, apiErr.toError(resp.StatusCode())
		}
		return resp, nil
	})
}
