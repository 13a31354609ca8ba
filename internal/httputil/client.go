// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the retrying, authenticated HTTP transport shared
// by every source adapter. Retries, backoff, rate-limit hints, the session
// token, and per-host politeness delays all live here so that adapters and
// tests never deal with them directly.
package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/pdiddy/paper-scraper/internal/observability"
	"github.com/pdiddy/paper-scraper/pkg/types"
)

// Clock supplies time and blocking waits. Tests substitute a fake clock so
// backoff and politeness delays complete instantly and can be inspected.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Authenticator obtains a session token. Login must issue its request through
// c.DoAnonymous so that it does not recurse into token acquisition.
type Authenticator interface {
	Login(ctx context.Context, c *Client) (string, error)
}

// Client is an HTTP transport with capped retries, jittered exponential
// backoff, Retry-After support, a cached session token, and a randomized
// politeness delay between consecutive calls to the same host. It is safe
// for concurrent use.
type Client struct {
	http       *http.Client
	policy     types.RetryPolicy
	polite     types.PolitenessConfig
	userAgent  string
	userAgents []string
	auth       Authenticator
	clock      Clock
	randN      func(n int64) int64
	limiter    *rate.Limiter
	metrics    *observability.Metrics
	logger     zerolog.Logger

	tokenMu sync.Mutex
	token   string
	logins  int

	hostMu   sync.Mutex
	lastCall map[string]time.Time
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithClock replaces the wall clock used for waits.
func WithClock(clock Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// WithRandom replaces the source of jitter. randN must return a value in [0, n).
func WithRandom(randN func(n int64) int64) Option {
	return func(c *Client) { c.randN = randN }
}

// WithAuthenticator enables session authentication.
func WithAuthenticator(a Authenticator) Option {
	return func(c *Client) { c.auth = a }
}

// WithUserAgents rotates among agents instead of sending the configured one.
func WithUserAgents(agents ...string) Option {
	return func(c *Client) { c.userAgents = agents }
}

// WithMetrics records request and retry counters.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client from cfg.
func New(cfg types.TransportConfig, opts ...Option) *Client {
	policy := cfg.Retry
	if policy.Timeout <= 0 {
		policy.Timeout = cfg.Timeout
	}
	if policy.DelayMax < policy.DelayMin {
		policy.DelayMax = policy.DelayMin
	}

	c := &Client{
		http:      &http.Client{},
		policy:    policy,
		polite:    cfg.Politeness,
		userAgent: cfg.UserAgent,
		clock:     realClock{},
		randN:     rand.Int64N,
		logger:    zerolog.Nop(),
		lastCall:  make(map[string]time.Time),
	}
	if cfg.Politeness.RateLimit > 0 {
		burst := cfg.Politeness.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.Politeness.RateLimit), burst)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Logins returns the number of authentication calls issued so far.
func (c *Client) Logins() int {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	return c.logins
}

// Do sends req, attaching the session token when an Authenticator is set.
// Retryable statuses and transport failures are retried per the policy; once
// the budget is exhausted Do returns a *types.TransportError. Any other
// response is returned to the caller, who must close its body.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	return c.do(ctx, req, c.auth != nil)
}

// DoAnonymous is Do without the session token.
func (c *Client) DoAnonymous(ctx context.Context, req *http.Request) (*http.Response, error) {
	return c.do(ctx, req, false)
}

// GetJSON issues a GET and decodes a 2xx JSON body into v.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	return DecodeJSON(resp, v)
}

// PostJSON sends body as JSON and decodes a 2xx JSON response into v. The
// request carries the session token when an Authenticator is set.
func (c *Client) PostJSON(ctx context.Context, url string, body, v any) error {
	return c.postJSON(ctx, url, body, v, c.auth != nil)
}

// PostJSONAnonymous is PostJSON without the session token. Authenticators use
// it to log in.
func (c *Client) PostJSONAnonymous(ctx context.Context, url string, body, v any) error {
	return c.postJSON(ctx, url, body, v, false)
}

func (c *Client) postJSON(ctx context.Context, url string, body, v any, authed bool) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	resp, err := c.do(ctx, req, authed)
	if err != nil {
		return err
	}
	return DecodeJSON(resp, v)
}

// Fetch issues a GET and returns the 2xx response body.
func (c *Client) Fetch(ctx context.Context, url string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := CheckStatus(resp); err != nil {
		return nil, err
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	return body, nil
}

// DecodeJSON checks the status of resp, decodes its body into v, and closes it.
func DecodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if err := CheckStatus(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding response from %s: %w", requestURL(resp), err)
	}
	return nil
}

// HTTPStatusError reports a non-retryable, non-2xx response.
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("HTTP %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

// CheckStatus returns an *HTTPStatusError for responses outside 2xx.
func CheckStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &HTTPStatusError{URL: requestURL(resp), StatusCode: resp.StatusCode, Body: string(snippet)}
}

func requestURL(resp *http.Response) string {
	if resp.Request == nil || resp.Request.URL == nil {
		return ""
	}
	return resp.Request.URL.String()
}

// sessionToken returns the cached token, logging in once if none is cached.
// The lock is held during login so concurrent callers share one login.
func (c *Client) sessionToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	if c.token != "" {
		return c.token, nil
	}
	c.logins++
	c.metrics.RecordLogin()
	tok, err := c.auth.Login(ctx, c)
	if err != nil {
		return "", fmt.Errorf("authenticating: %w", err)
	}
	if tok == "" {
		return "", fmt.Errorf("authenticating: empty token")
	}
	c.token = tok
	c.logger.Debug().Msg("session token acquired")
	return tok, nil
}

// invalidate drops stale if it is still the cached token. A token already
// replaced by another caller is left alone.
func (c *Client) invalidate(stale string) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	if c.token == stale {
		c.token = ""
	}
}

func (c *Client) pickUserAgent() string {
	if len(c.userAgents) > 0 {
		return c.userAgents[c.randN(int64(len(c.userAgents)))]
	}
	return c.userAgent
}

// cancelOnClose releases the per-attempt context once the body is closed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
