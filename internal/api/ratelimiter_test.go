package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type staticLimiter struct {
	allow bool
}

func (s *staticLimiter) Allow() bool {
	return s.allow
}

func TestRateLimitMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		allow      bool
		path       string
		wantCalled bool
		wantStatus int
	}{
		{name: "Allowed", allow: true, path: "/api/entries", wantCalled: true, wantStatus: http.StatusOK},
		{name: "Denied", allow: false, path: "/api/entries/timeout", wantStatus: http.StatusTooManyRequests},
		{name: "HealthBypassesLimit", allow: false, path: healthPath, wantCalled: true, wantStatus: http.StatusOK},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			var called bool
			middleware := rateLimitMiddleware(&staticLimiter{allow: tc.allow}, http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
				called = true
			}))

			rec := httptest.NewRecorder()
			middleware.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))

			if called != tc.wantCalled {
				t.Fatalf("expected handler called=%t, got %t", tc.wantCalled, called)
			}
			if rec.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, rec.Code)
			}
			if tc.wantStatus == http.StatusTooManyRequests && rec.Header().Get("Retry-After") != "1" {
				t.Fatalf("expected Retry-After 1, got %q", rec.Header().Get("Retry-After"))
			}
		})
	}
}

func TestRateLimitMiddlewareNilLimiter(t *testing.T) {
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	if got := rateLimitMiddleware(nil, next); got == nil {
		t.Fatalf("expected handler to be returned unchanged")
	}
}

func TestTokenBucketRetryAfter(t *testing.T) {
	tests := []struct {
		rps  float64
		want int
	}{
		{rps: 10, want: 1},
		{rps: 1, want: 1},
		{rps: 0.5, want: 2},
		{rps: 0.25, want: 4},
	}

	for _, tc := range tests {
		if got := retryAfterSeconds(newTokenBucket(tc.rps, 1)); got != tc.want {
			t.Fatalf("retryAfterSeconds(%v rps) = %d, want %d", tc.rps, got, tc.want)
		}
	}
}

func TestNewTokenBucketUsesDefaults(t *testing.T) {
	bucket := newTokenBucket(0, 0)
	if !bucket.Allow() {
		t.Fatalf("expected first request to be allowed")
	}
	if bucket.Allow() {
		t.Fatalf("expected default burst of one")
	}
	if bucket.RetryAfter() != time.Second {
		t.Fatalf("expected one token per second, got %s", bucket.RetryAfter())
	}
}
