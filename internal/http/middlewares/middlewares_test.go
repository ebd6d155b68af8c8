package middlewares

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalystwells/grantd/internal/rate"
)

func TestChain_Order(t *testing.T) {
	var order []string
	mk := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { order = append(order, "h") }), mk("A"), mk("B"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"A", "B", "h"}, order)
}

func TestWithRequestID(t *testing.T) {
	var seen string
	h := WithRequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rr.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, "abc-123", seen)
}

func TestWithRecover(t *testing.T) {
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }), WithLogging(), WithRecover())
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "server_error", body["error"])
}

func TestWithTimeout_SetsDeadline(t *testing.T) {
	var deadline time.Time
	var ok bool
	h := WithTimeout(50 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline, ok = r.Context().Deadline()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(50*time.Millisecond), deadline, 50*time.Millisecond)
}

func TestWithRateLimit_429(t *testing.T) {
	lim := rate.NewMemoryLimiter(2, time.Minute)
	h := WithRateLimit(RateLimitConfig{Limiter: lim})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/oauth/token", nil)
		req.RemoteAddr = "192.0.2.10:5555"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	assert.Equal(t, http.StatusNoContent, do().Code)
	assert.Equal(t, http.StatusNoContent, do().Code)
	rr := do()
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
	assert.NotEqual(t, "0", rr.Header().Get("Retry-After"))
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (rate.Result, error) {
	return rate.Result{}, errors.New("redis down")
}

func TestWithRateLimit_FailsOpen(t *testing.T) {
	h := WithRateLimit(RateLimitConfig{Limiter: brokenLimiter{}})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/oauth/token", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestClientIP_IgnoresForwardedForWithoutTrustedProxies(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.7:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.5")

	assert.Equal(t, "198.51.100.7", clientIP(req))

	var nilPolicy *TrustedProxies
	assert.Equal(t, "198.51.100.7", nilPolicy.Resolve(req))
}

func TestTrustedProxies_Resolve(t *testing.T) {
	tp, err := ParseTrustedProxies([]string{"10.0.0.0/8", " 192.0.2.10 "})
	require.NoError(t, err)

	cases := []struct {
		name   string
		remote string
		xff    []string
		want   string
	}{
		{name: "untrusted peer spoofing XFF", remote: "198.51.100.7:1", xff: []string{"203.0.113.5"}, want: "198.51.100.7"},
		{name: "trusted peer, single hop", remote: "10.1.1.1:1", xff: []string{"203.0.113.5"}, want: "203.0.113.5"},
		{name: "client-supplied prefix is skipped", remote: "10.1.1.1:1", xff: []string{"1.2.3.4, 203.0.113.5"}, want: "203.0.113.5"},
		{name: "chain of trusted proxies", remote: "192.0.2.10:1", xff: []string{"203.0.113.5, 10.2.2.2"}, want: "203.0.113.5"},
		{name: "repeated headers", remote: "10.1.1.1:1", xff: []string{"1.2.3.4", "203.0.113.5"}, want: "203.0.113.5"},
		{name: "all hops trusted", remote: "10.1.1.1:1", xff: []string{"10.3.3.3"}, want: "10.3.3.3"},
		{name: "garbage hop stops the walk", remote: "10.1.1.1:1", xff: []string{"203.0.113.5, not-an-ip"}, want: "10.1.1.1"},
		{name: "trusted peer without XFF", remote: "10.1.1.1:1", want: "10.1.1.1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			for _, v := range tc.xff {
				req.Header.Add("X-Forwarded-For", v)
			}
			assert.Equal(t, tc.want, tp.Resolve(req))
		})
	}
}

func TestParseTrustedProxies_Invalid(t *testing.T) {
	_, err := ParseTrustedProxies([]string{"10.0.0.0/99"})
	require.Error(t, err)
	_, err = ParseTrustedProxies([]string{"proxy.internal"})
	require.Error(t, err)
}

func TestWithRateLimit_SpoofedForwardedForSharesBucket(t *testing.T) {
	limiter := rate.NewMemoryLimiter(1, time.Minute)
	fixed := time.Date(2026, 5, 4, 9, 30, 10, 0, time.UTC)
	limiter.Now = func() time.Time { return fixed }
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}), WithClientIP(nil), WithRateLimit(RateLimitConfig{Limiter: limiter, KeyFunc: IPOnlyRateKey}))

	codes := make([]int, 0, 2)
	for _, xff := range []string{"203.0.113.1", "203.0.113.2"} {
		req := httptest.NewRequest(http.MethodPost, "/oauth/token", nil)
		req.RemoteAddr = "198.51.100.7:4242"
		req.Header.Set("X-Forwarded-For", xff)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusTooManyRequests}, codes)
}

func TestRetryAfterSeconds_RoundsUp(t *testing.T) {
	assert.Equal(t, "1", retryAfterSeconds(300*time.Millisecond))
	assert.Equal(t, "2", retryAfterSeconds(1500*time.Millisecond))
	assert.Equal(t, "60", retryAfterSeconds(time.Minute))
	assert.Equal(t, "1", retryAfterSeconds(0))
}
