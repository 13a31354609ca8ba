// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/pdiddy/paper-scraper/pkg/types"
)

// do runs the retry loop for one logical call. The politeness delay is drawn
// once per call; backoff waits apply between attempts of the same call.
func (c *Client) do(ctx context.Context, req *http.Request, authed bool) (*http.Response, error) {
	host := req.URL.Host
	if err := c.waitPolite(ctx, host); err != nil {
		return nil, err
	}
	defer c.markDone(host)

	if req.Header.Get("User-Agent") == "" {
		if ua := c.pickUserAgent(); ua != "" {
			req.Header.Set("User-Agent", ua)
		}
	}

	schedule := c.newBackOff()
	reauthed := false
	last := &types.TransportError{URL: req.URL.String()}

	for attempt := 0; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		var token string
		if authed {
			tok, err := c.sessionToken(ctx)
			if err != nil {
				return nil, err
			}
			token = tok
		}

		resp, err := c.attempt(ctx, req, token)
		last.Attempts = attempt + 1
		var wait time.Duration

		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.metrics.RecordRequest(host, 0)
			last.Kind = classify(err)
			last.StatusCode = 0
			last.Cause = err
			wait = c.nextDelay(schedule)

		case resp.StatusCode == http.StatusUnauthorized && authed && !reauthed:
			c.metrics.RecordRequest(host, resp.StatusCode)
			drain(resp)
			c.invalidate(token)
			reauthed = true
			c.logger.Debug().Str("url", req.URL.String()).Msg("session expired, re-authenticating")
			// Token refresh does not consume the retry budget.
			attempt--
			continue

		case c.policy.Retryable(resp.StatusCode):
			c.metrics.RecordRequest(host, resp.StatusCode)
			last.StatusCode = resp.StatusCode
			last.Cause = nil
			if resp.StatusCode == http.StatusTooManyRequests {
				last.Kind = types.TransportRateLimited
			} else {
				last.Kind = types.TransportUnreachable
			}
			if hint, ok := c.retryAfter(resp); ok {
				wait = hint
				last.RetryAfter = hint
			} else {
				wait = c.nextDelay(schedule)
			}
			drain(resp)

		default:
			c.metrics.RecordRequest(host, resp.StatusCode)
			return resp, nil
		}

		if attempt >= c.policy.MaxRetries {
			return nil, last
		}
		if req.Body != nil && req.GetBody == nil {
			return nil, fmt.Errorf("cannot retry %s: request body is not replayable", req.URL)
		}

		c.metrics.RecordRetry(host, string(last.Kind))
		c.logger.Debug().
			Str("url", req.URL.String()).
			Int("attempt", attempt+1).
			Int("status", last.StatusCode).
			Dur("wait", wait).
			Msg("retrying request")

		if err := c.clock.Sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

// attempt sends one copy of req with its own timeout. The returned body
// releases the timeout when closed.
func (c *Client) attempt(ctx context.Context, req *http.Request, token string) (*http.Response, error) {
	actx, cancel := ctx, context.CancelFunc(func() {})
	if c.policy.Timeout > 0 {
		actx, cancel = context.WithTimeout(ctx, c.policy.Timeout)
	}

	r := req.Clone(actx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			cancel()
			return nil, fmt.Errorf("resetting request body: %w", err)
		}
		r.Body = body
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(r)
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// classify tags a failed attempt as a timeout or an unreachable host.
func classify(err error) types.TransportErrorKind {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return types.TransportTimeout
	}
	return types.TransportUnreachable
}

// newBackOff builds an exponential schedule starting at DelayMin and capped
// at DelayMax, with ±50% jitter.
func (c *Client) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.policy.DelayMin
	b.MaxInterval = c.policy.DelayMax
	b.Multiplier = 2
	b.RandomizationFactor = 0.5
	b.MaxElapsedTime = 0
	b.Clock = c.clock
	b.Reset()
	return b
}

// nextDelay draws the next backoff delay, clamped to [DelayMin, DelayMax].
func (c *Client) nextDelay(b *backoff.ExponentialBackOff) time.Duration {
	d := b.NextBackOff()
	if d == backoff.Stop || d > c.policy.DelayMax {
		d = c.policy.DelayMax
	}
	if d < c.policy.DelayMin {
		d = c.policy.DelayMin
	}
	return d
}

// retryAfter parses a Retry-After header given in seconds or as an HTTP
// date. The hint is capped at MaxRetryAfter when that is set.
func (c *Client) retryAfter(resp *http.Response) (time.Duration, bool) {
	v := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if v == "" {
		return 0, false
	}
	var d time.Duration
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		if secs < 0 {
			return 0, false
		}
		d = time.Duration(secs) * time.Second
	} else if t, err := http.ParseTime(v); err == nil {
		d = t.Sub(c.clock.Now())
		if d < 0 {
			d = 0
		}
	} else {
		return 0, false
	}
	if c.policy.MaxRetryAfter > 0 && d > c.policy.MaxRetryAfter {
		d = c.policy.MaxRetryAfter
	}
	return d, true
}

// waitPolite blocks until the randomized politeness gap since the previous
// call to host has elapsed. The slot is reserved before sleeping so that
// concurrent callers queue behind each other.
func (c *Client) waitPolite(ctx context.Context, host string) error {
	gap := c.politeDelay()

	c.hostMu.Lock()
	now := c.clock.Now()
	next := now
	if last, ok := c.lastCall[host]; ok {
		if t := last.Add(gap); t.After(now) {
			next = t
		}
	}
	c.lastCall[host] = next
	c.hostMu.Unlock()

	if wait := next.Sub(now); wait > 0 {
		return c.clock.Sleep(ctx, wait)
	}
	return ctx.Err()
}

// markDone moves the host's last-call time to the end of the call.
func (c *Client) markDone(host string) {
	c.hostMu.Lock()
	defer c.hostMu.Unlock()
	if now := c.clock.Now(); now.After(c.lastCall[host]) {
		c.lastCall[host] = now
	}
}

func (c *Client) politeDelay() time.Duration {
	lo, hi := c.polite.DelayMin, c.polite.DelayMax
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(c.randN(int64(hi-lo)+1))
}
