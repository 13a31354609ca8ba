// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-scraper/pkg/types"
)

// fakeClock advances only when Sleep is called and records every wait.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sleeps = append(f.sleeps, d)
	f.now = f.now.Add(d)
	return nil
}

func (f *fakeClock) Sleeps() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.sleeps...)
}

func testConfig(maxRetries int) types.TransportConfig {
	return types.TransportConfig{
		HTTPConfig: types.HTTPConfig{UserAgent: "paper-scraper-test"},
		Retry: types.RetryPolicy{
			MaxRetries:    maxRetries,
			DelayMin:      10 * time.Millisecond,
			DelayMax:      40 * time.Millisecond,
			Timeout:       2 * time.Second,
			MaxRetryAfter: time.Minute,
		},
	}
}

// scripted serves the given statuses in order, then 200 forever.
func scripted(t *testing.T, statuses ...int) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := int(atomic.AddInt32(&calls, 1))
		if n <= len(statuses) {
			w.WriteHeader(statuses[n-1])
			return
		}
		fmt.Fprint(w, `{"ok":true}`)
	}))
	t.Cleanup(ts.Close)
	return ts, &calls
}

func get(t *testing.T, c *Client, url string) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	return c.Do(context.Background(), req)
}

func TestDo_ImmediateSuccess(t *testing.T) {
	ts, calls := scripted(t)
	clock := newFakeClock()
	c := New(testConfig(5), WithClock(clock))

	resp, err := get(t, c, ts.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
	assert.Empty(t, clock.Sleeps())
}

func TestDo_RateLimitedWithinBudget(t *testing.T) {
	ts, calls := scripted(t, 429, 429, 429)
	clock := newFakeClock()
	c := New(testConfig(3), WithClock(clock))

	resp, err := get(t, c, ts.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(4), atomic.LoadInt32(calls), "3 retries after the first attempt")
	require.Len(t, clock.Sleeps(), 3)
	for _, d := range clock.Sleeps() {
		assert.GreaterOrEqual(t, d, 10*time.Millisecond)
		assert.LessOrEqual(t, d, 40*time.Millisecond)
	}
}

func TestDo_RateLimitedExhausted(t *testing.T) {
	ts, calls := scripted(t, 429, 429, 429, 429, 429)
	c := New(testConfig(3), WithClock(newFakeClock()))

	resp, err := get(t, c, ts.URL)
	require.Error(t, err)
	assert.Nil(t, resp)

	var te *types.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, types.TransportRateLimited, te.Kind)
	assert.Equal(t, 4, te.Attempts)
	assert.Equal(t, http.StatusTooManyRequests, te.StatusCode)
	assert.ErrorIs(t, err, types.ErrTransport)
	assert.Equal(t, int32(4), atomic.LoadInt32(calls))
}

func TestDo_ZeroRetries(t *testing.T) {
	ts, calls := scripted(t, 429)
	c := New(testConfig(0), WithClock(newFakeClock()))

	_, err := get(t, c, ts.URL)
	var te *types.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 1, te.Attempts)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestDo_RetryAfter(t *testing.T) {
	clock := newFakeClock()
	tests := []struct {
		name   string
		header string
		want   time.Duration
	}{
		{"seconds", "7", 7 * time.Second},
		{"http date", clock.Now().Add(30 * time.Second).Format(http.TimeFormat), 30 * time.Second},
		{"capped", "99999", time.Minute},
		{"unparseable falls back to backoff", "soon", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				if atomic.AddInt32(&calls, 1) == 1 {
					w.Header().Set("Retry-After", tt.header)
					w.WriteHeader(http.StatusTooManyRequests)
					return
				}
				w.WriteHeader(http.StatusOK)
			}))
			defer ts.Close()

			fc := newFakeClock()
			c := New(testConfig(2), WithClock(fc))
			resp, err := get(t, c, ts.URL)
			require.NoError(t, err)
			resp.Body.Close()

			require.Len(t, fc.Sleeps(), 1)
			if tt.want == 0 {
				assert.GreaterOrEqual(t, fc.Sleeps()[0], 10*time.Millisecond)
				assert.LessOrEqual(t, fc.Sleeps()[0], 40*time.Millisecond)
				return
			}
			assert.Equal(t, tt.want, fc.Sleeps()[0])
		})
	}
}

func TestDo_ServerErrorExhausted(t *testing.T) {
	ts, _ := scripted(t, 503, 502, 500)
	c := New(testConfig(2), WithClock(newFakeClock()))

	_, err := get(t, c, ts.URL)
	var te *types.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, types.TransportUnreachable, te.Kind)
	assert.Equal(t, http.StatusInternalServerError, te.StatusCode)
}

func TestDo_NonRetryableReturned(t *testing.T) {
	ts, calls := scripted(t, http.StatusNotFound)
	clock := newFakeClock()
	c := New(testConfig(5), WithClock(clock))

	resp, err := get(t, c, ts.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
	assert.Empty(t, clock.Sleeps())

	var se *HTTPStatusError
	require.ErrorAs(t, CheckStatus(resp), &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
}

func TestDo_Unreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c := New(testConfig(2), WithClock(newFakeClock()))
	_, err := get(t, c, url)

	var te *types.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, types.TransportUnreachable, te.Kind)
	assert.Equal(t, 3, te.Attempts)
	assert.NotNil(t, te.Cause)
}

func TestDo_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer ts.Close()

	cfg := testConfig(1)
	cfg.Retry.Timeout = 20 * time.Millisecond
	c := New(cfg, WithClock(newFakeClock()))

	_, err := get(t, c, ts.URL)
	var te *types.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, types.TransportTimeout, te.Kind)
	assert.Equal(t, 2, te.Attempts)
}

func TestDo_ContextCanceled(t *testing.T) {
	ts, calls := scripted(t)
	c := New(testConfig(3), WithClock(newFakeClock()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	require.NoError(t, err)

	_, err = c.Do(ctx, req)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func TestDo_ReplaysBody(t *testing.T) {
	var mu sync.Mutex
	var bodies []string
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(b))
		mu.Unlock()
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	c := New(testConfig(2), WithClock(newFakeClock()))
	req, err := http.NewRequest(http.MethodPost, ts.URL, bytes.NewReader([]byte(`{"id":"x"}`)))
	require.NoError(t, err)

	resp, err := c.Do(context.Background(), req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, []string{`{"id":"x"}`, `{"id":"x"}`}, bodies)
}

func TestDo_BackoffStaysWithinBounds(t *testing.T) {
	statuses := make([]int, 8)
	for i := range statuses {
		statuses[i] = http.StatusBadGateway
	}
	ts, _ := scripted(t, statuses...)
	clock := newFakeClock()
	c := New(testConfig(8), WithClock(clock))

	resp, err := get(t, c, ts.URL)
	require.NoError(t, err)
	resp.Body.Close()

	require.Len(t, clock.Sleeps(), 8)
	for i, d := range clock.Sleeps() {
		assert.GreaterOrEqual(t, d, 10*time.Millisecond, "sleep %d", i)
		assert.LessOrEqual(t, d, 40*time.Millisecond, "sleep %d", i)
	}
}

func TestDo_PolitenessDrawnPerCall(t *testing.T) {
	ts, _ := scripted(t, 429, 429)
	clock := newFakeClock()
	cfg := testConfig(3)
	cfg.Retry.DelayMin = time.Second
	cfg.Retry.DelayMax = time.Second
	cfg.Politeness = types.PolitenessConfig{DelayMin: 5 * time.Second, DelayMax: 5 * time.Second}
	c := New(cfg, WithClock(clock))

	// First call: two retries, no politeness wait before the first attempt.
	resp, err := get(t, c, ts.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, []time.Duration{time.Second, time.Second}, clock.Sleeps())

	// Second call to the same host waits out the gap from the end of the first.
	resp, err = get(t, c, ts.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, []time.Duration{time.Second, time.Second, 5 * time.Second}, clock.Sleeps())
}

func TestDo_PolitenessRandomized(t *testing.T) {
	ts, _ := scripted(t)
	clock := newFakeClock()
	cfg := testConfig(0)
	cfg.Politeness = types.PolitenessConfig{DelayMin: time.Second, DelayMax: 3 * time.Second}

	draws := []int64{int64(500 * time.Millisecond), int64(2 * time.Second), 0}
	var i int
	randN := func(n int64) int64 {
		require.Equal(t, int64(2*time.Second)+1, n)
		v := draws[i%len(draws)]
		i++
		return v
	}
	c := New(cfg, WithClock(clock), WithRandom(randN))

	for range 3 {
		resp, err := get(t, c, ts.URL)
		require.NoError(t, err)
		resp.Body.Close()
	}

	// The first call has no predecessor; the next two use fresh draws.
	assert.Equal(t, []time.Duration{3 * time.Second, time.Second}, clock.Sleeps())
}

func TestDo_PolitenessPerHost(t *testing.T) {
	ts1, _ := scripted(t)
	ts2, _ := scripted(t)
	clock := newFakeClock()
	cfg := testConfig(0)
	cfg.Politeness = types.PolitenessConfig{DelayMin: 2 * time.Second, DelayMax: 2 * time.Second}
	c := New(cfg, WithClock(clock))

	for _, u := range []string{ts1.URL, ts2.URL} {
		resp, err := get(t, c, u)
		require.NoError(t, err)
		resp.Body.Close()
	}
	assert.Empty(t, clock.Sleeps())
}

func TestDo_UserAgent(t *testing.T) {
	var seen []string
	var mu sync.Mutex
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Get("User-Agent"))
		mu.Unlock()
	}))
	defer ts.Close()

	c := New(testConfig(0), WithClock(newFakeClock()))
	resp, err := get(t, c, ts.URL)
	require.NoError(t, err)
	resp.Body.Close()

	rot := New(testConfig(0), WithClock(newFakeClock()),
		WithUserAgents("agent-a", "agent-b"),
		WithRandom(func(int64) int64 { return 1 }))
	resp, err = get(t, rot, ts.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, []string{"paper-scraper-test", "agent-b"}, seen)
}

// countingAuth hands out tok-1, tok-2, ... and counts logins.
type countingAuth struct {
	logins int32
	fail   error
}

func (a *countingAuth) Login(ctx context.Context, c *Client) (string, error) {
	if a.fail != nil {
		return "", a.fail
	}
	n := atomic.AddInt32(&a.logins, 1)
	return fmt.Sprintf("tok-%d", n), nil
}

func TestDo_TokenCachedAndRefreshedOnExpiry(t *testing.T) {
	var mu sync.Mutex
	valid := "tok-1"
	var seen []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		seen = append(seen, got)
		if got != valid {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	auth := &countingAuth{}
	c := New(testConfig(0), WithClock(newFakeClock()), WithAuthenticator(auth))

	for range 2 {
		resp, err := get(t, c, ts.URL)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}
	assert.Equal(t, 1, c.Logins(), "token reused across calls")

	// Server-side expiry: the cached token is rejected once, then refreshed.
	mu.Lock()
	valid = "tok-2"
	mu.Unlock()

	resp, err := get(t, c, ts.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	assert.Equal(t, 2, c.Logins())
	assert.Equal(t, []string{"tok-1", "tok-1", "tok-1", "tok-2"}, seen)
}

func TestDo_SingleLoginUnderConcurrency(t *testing.T) {
	ts, _ := scripted(t)
	auth := &countingAuth{}
	c := New(testConfig(0), WithAuthenticator(auth))

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, _ := http.NewRequest(http.MethodGet, ts.URL, nil)
			resp, err := c.Do(context.Background(), req)
			if assert.NoError(t, err) {
				resp.Body.Close()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, c.Logins())
	assert.Equal(t, int32(1), atomic.LoadInt32(&auth.logins))
}

func TestDo_LoginFailure(t *testing.T) {
	ts, calls := scripted(t)
	c := New(testConfig(0), WithAuthenticator(&countingAuth{fail: errors.New("bad credentials")}))

	_, err := get(t, c, ts.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad credentials")
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func TestGetJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.Error(w, "nope", http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `{"name":"ICLR","count":3}`)
	}))
	defer ts.Close()

	c := New(testConfig(0), WithClock(newFakeClock()))

	var out struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	require.NoError(t, c.GetJSON(context.Background(), ts.URL+"/ok", &out))
	assert.Equal(t, "ICLR", out.Name)
	assert.Equal(t, 3, out.Count)

	err := c.GetJSON(context.Background(), ts.URL+"/missing", &out)
	var se *HTTPStatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Contains(t, se.Body, "nope")
}

func TestFetch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "<html>%s</html>", r.Header.Get("Referer"))
	}))
	defer ts.Close()

	c := New(testConfig(0), WithClock(newFakeClock()))
	body, err := c.Fetch(context.Background(), ts.URL, http.Header{"Referer": {"https://www.ijcai.org"}})
	require.NoError(t, err)
	assert.Equal(t, "<html>https://www.ijcai.org</html>", string(body))
}
