// Package transport implements the retrying HTTP requestor shared by the
// directory and asset API clients.
//
// A request answered with 429 or a transient 5xx status is retried after a
// fixed delay up to a maximum number of attempts. No wait follows the final
// attempt. Any other status is returned to the caller with a nil error.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/agentstation/assetsync/pkg/constants"
	"github.com/agentstation/assetsync/pkg/errors"
	"github.com/agentstation/assetsync/pkg/logging"
)

// maxBodySize bounds successful response bodies.
const maxBodySize = 32 << 20

// DefaultRetryableStatuses are retried in addition to 429.
var DefaultRetryableStatuses = []int{
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// ContextSleep is the default Sleeper.
func ContextSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Observer receives attempt and retry events, typically for metrics.
type Observer interface {
	// ObserveAttempt is called once per attempt. status is 0 on a transport error.
	ObserveAttempt(method string, status int)
	// ObserveRetry is called before each wait.
	ObserveRetry(method string, status int)
}

// Client sends requests with authentication, pacing and retry.
type Client struct {
	http        *http.Client
	baseURL     *url.URL
	auth        Authenticator
	token       string
	maxAttempts int
	delay       time.Duration
	retryable   map[int]bool
	sleep       Sleeper
	limiter     *rate.Limiter
	observer    Observer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithAuth sets the authenticator and the token it applies.
func WithAuth(auth Authenticator, token string) Option {
	return func(c *Client) {
		c.auth = auth
		c.token = token
	}
}

// WithMaxAttempts sets the total number of attempts per request.
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithRetryDelay sets the fixed wait between attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.delay = d
		}
	}
}

// WithRetryableStatuses replaces the transient statuses that are retried.
// 429 is always retried.
func WithRetryableStatuses(statuses ...int) Option {
	return func(c *Client) {
		c.retryable = statusSet(statuses)
	}
}

// WithSleeper injects the wait function.
func WithSleeper(s Sleeper) Option {
	return func(c *Client) {
		if s != nil {
			c.sleep = s
		}
	}
}

// WithRateLimit paces requests to rps with the given burst. rps <= 0 disables pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithObserver registers an attempt/retry observer.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// New creates a client for baseURL. An empty baseURL requires absolute request paths.
func New(baseURL string, opts ...Option) (*Client, error) {
	c := &Client{
		http:        &http.Client{Timeout: constants.DefaultHTTPTimeout},
		auth:        &NoAuth{},
		maxAttempts: constants.DefaultMaxRetries,
		delay:       constants.DefaultRetryDelay,
		retryable:   statusSet(DefaultRetryableStatuses),
		sleep:       ContextSleep,
	}
	if baseURL != "" {
		u, err := url.Parse(baseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, errors.NewValidationError("base_url", baseURL, "must be an absolute URL")
		}
		c.baseURL = u
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// MaxAttempts returns the configured attempt limit.
func (c *Client) MaxAttempts() int {
	return c.maxAttempts
}

// Send performs r with retry. A nil error means a response was received
// whose status is not retryable; callers interpret the status themselves.
func (c *Client) Send(ctx context.Context, r Request) (*Response, error) {
	if r.Method == "" {
		r.Method = http.MethodGet
	}
	target, err := resolve(c.baseURL, r)
	if err != nil {
		return nil, err
	}

	var payload []byte
	if r.Body != nil {
		payload, err = json.Marshal(r.Body)
		if err != nil {
			return nil, errors.WrapParse("json", "request body", err)
		}
	}

	logger := logging.FromContext(ctx).With().
		Str("method", r.Method).
		Str("url", redact(target)).
		Logger()

	var (
		lastStatus int
		lastErr    error
		attempt    int
	)
	for attempt = 1; attempt <= c.maxAttempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, c.abort(ctx, r.Method, target, attempt-1, err)
			}
		}

		resp, err := c.do(ctx, r, target, payload)
		if err != nil {
			if ctx.Err() != nil {
				return nil, c.abort(ctx, r.Method, target, attempt, ctx.Err())
			}
			lastStatus, lastErr = 0, err
			c.observeAttempt(r.Method, 0)
			logger.Debug().Err(err).Int("attempt", attempt).Msg("Request failed")
		} else {
			c.observeAttempt(r.Method, resp.StatusCode)
			logger.Debug().Int("attempt", attempt).Int("status", resp.StatusCode).Msg("Response received")

			if !c.shouldRetry(resp.StatusCode) {
				body, readErr := readBody(resp, maxBodySize)
				if readErr != nil {
					if ctx.Err() != nil {
						return nil, c.abort(ctx, r.Method, target, attempt, ctx.Err())
					}
					lastStatus, lastErr = 0, fmt.Errorf("read response body: %w", readErr)
				} else {
					return &Response{
						StatusCode: resp.StatusCode,
						Header:     resp.Header,
						Body:       body,
						URL:        target.String(),
						Attempts:   attempt,
					}, nil
				}
			} else {
				_, _ = readBody(resp, drainLimit)
				lastStatus, lastErr = resp.StatusCode, nil
			}
		}

		if attempt == c.maxAttempts {
			break
		}

		if c.observer != nil {
			c.observer.ObserveRetry(r.Method, lastStatus)
		}
		logger.Warn().
			Int("attempt", attempt).
			Int("max_attempts", c.maxAttempts).
			Int("status", lastStatus).
			Dur("delay", c.delay).
			AnErr("cause", lastErr).
			Msg("Retrying request")

		if err := c.sleep(ctx, c.delay); err != nil {
			return nil, c.abort(ctx, r.Method, target, attempt, err)
		}
	}

	return nil, &errors.RequestError{
		Method:     r.Method,
		URL:        redact(target),
		Attempts:   attempt,
		StatusCode: lastStatus,
		Err:        lastErr,
	}
}

// do performs a single attempt.
func (c *Client) do(ctx context.Context, r Request, target *url.URL, payload []byte) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, target.String(), body)
	if err != nil {
		return nil, errors.WrapResource("create", "request", r.Method+" "+redact(target), err)
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if c.auth != nil {
		c.auth.Apply(req, c.token)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.http.Do(req)
}

// abort wraps a cancellation so both ErrTransport and the context error match.
func (c *Client) abort(ctx context.Context, method string, target *url.URL, attempts int, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	return &errors.RequestError{
		Method:   method,
		URL:      redact(target),
		Attempts: attempts,
		Err:      err,
	}
}

func (c *Client) shouldRetry(status int) bool {
	return status == http.StatusTooManyRequests || c.retryable[status]
}

func (c *Client) observeAttempt(method string, status int) {
	if c.observer != nil {
		c.observer.ObserveAttempt(method, status)
	}
}

func statusSet(statuses []int) map[int]bool {
	m := make(map[int]bool, len(statuses))
	for _, s := range statuses {
		m[s] = true
	}
	return m
}

// redact drops query values that may carry secrets.
func redact(u *url.URL) string {
	c := *u
	q := c.Query()
	for _, k := range []string{"key", "api_key", "access_token"} {
		if q.Has(k) {
			q.Set(k, "REDACTED")
		}
	}
	c.RawQuery = q.Encode()
	return c.String()
}

// StatusLabel renders a status code for metric labels.
func StatusLabel(status int) string {
	if status == 0 {
		return "error"
	}
	return strconv.Itoa(status)
}
