package api

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// WithRateLimit replaces the limiter with a token bucket of rps requests per
// second and the given burst. A zero rps or burst disables rate limiting.
func WithRateLimit(rps float64, burst int) RouterOption {
	return func(cfg *routerConfig) {
		if rps <= 0 || burst <= 0 {
			cfg.rateLimiter = nil
			return
		}
		cfg.rateLimiter = newTokenBucket(rps, burst)
	}
}

type rateLimiter interface {
	Allow() bool
}

// tokenBucket shares one x/time/rate limiter across all diagnostics routes.
type tokenBucket struct {
	limiter *rate.Limiter
}

func newTokenBucket(ratePerSecond float64, burst int) *tokenBucket {
	if ratePerSecond <= 0 {
		ratePerSecond = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &tokenBucket{limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

func (b *tokenBucket) Allow() bool {
	return b.limiter.Allow()
}

// RetryAfter is the time until the bucket refills one token.
func (b *tokenBucket) RetryAfter() time.Duration {
	return time.Duration(float64(time.Second) / float64(b.limiter.Limit()))
}

// rateLimitMiddleware rejects requests once limiter runs dry. Health checks
// are never limited so probes keep working while the API is saturated.
func rateLimitMiddleware(limiter rateLimiter, next http.Handler) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == healthPath || limiter.Allow() {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(limiter)))
		writeFailure(w, r, ErrRateLimited)
	})
}

func retryAfterSeconds(limiter rateLimiter) int {
	withDelay, ok := limiter.(interface{ RetryAfter() time.Duration })
	if !ok {
		return 1
	}
	return max(1, int(math.Ceil(withDelay.RetryAfter().Seconds())))
}
