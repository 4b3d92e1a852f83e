package venue

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// maxAttempts is how many times a single REST call is tried on transport
// errors before giving up.
const maxAttempts = 3

// Response is one REST call outcome. Non-2xx statuses are not errors at
// this layer; the adapter decides which venue rejections are retryable,
// which map to order rejections and which are fatal.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports a 2xx status.
func (r Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// RESTClient is the shared signed-request primitive: every adapter call
// goes through Do, so the retry and rate-limit policy lives in one place
// instead of per endpoint.
type RESTClient struct {
	venue   string
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// RESTConfig holds REST client configuration.
type RESTConfig struct {
	Venue string
	// Client overrides the HTTP client, for tests.
	Client *http.Client
	// RequestsPerSecond caps the call rate; zero means 10 rps.
	RequestsPerSecond float64
	Logger            *zap.Logger
}

// NewRESTClient creates the shared request primitive for one venue.
func NewRESTClient(cfg RESTConfig) *RESTClient {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	rps := cfg.RequestsPerSecond
	if rps == 0 {
		rps = 10
	}

	return &RESTClient{
		venue:   cfg.Venue,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)),
		logger:  cfg.Logger,
	}
}

// Do executes one request, rebuilding it per attempt (signatures carry
// timestamps, so a retry needs a fresh signature). Transport errors are
// retried up to maxAttempts; on exhaustion the last error is returned
// wrapped. Any HTTP response, 2xx or not, ends the loop.
func (c *RESTClient) Do(ctx context.Context, build func(ctx context.Context) (*http.Request, error)) (Response, error) {
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := c.limiter.Wait(ctx)
		if err != nil {
			return Response{}, fmt.Errorf("rate limit wait: %w", err)
		}

		req, err := build(ctx)
		if err != nil {
			return Response{}, fmt.Errorf("build request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			RequestsTotal.WithLabelValues(c.venue, "transport_error").Inc()
			c.logger.Warn("rest-transport-error",
				zap.String("venue", c.venue),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			continue
		}

		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			lastErr = err
			RequestsTotal.WithLabelValues(c.venue, "transport_error").Inc()
			continue
		}

		outcome := "ok"
		if resp.StatusCode >= 300 {
			outcome = "rejected"
		}
		RequestsTotal.WithLabelValues(c.venue, outcome).Inc()

		return Response{StatusCode: resp.StatusCode, Body: body}, nil
	}

	RequestsTotal.WithLabelValues(c.venue, "exhausted").Inc()
	return Response{}, fmt.Errorf("connection error to %s after %d attempts: %w", c.venue, maxAttempts, lastErr)
}
