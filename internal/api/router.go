package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const healthPath = "/api/health"

// RouterOption configures the behaviour of NewRouter.
type RouterOption func(*routerConfig)

// WithLogging controls whether access logs are emitted.
func WithLogging(enabled bool) RouterOption {
	return func(cfg *routerConfig) {
		cfg.enableLogging = enabled
	}
}

// WithRateLimiter overrides the default request rate limiter (primarily for tests).
func WithRateLimiter(limiter rateLimiter) RouterOption {
	return func(cfg *routerConfig) {
		cfg.rateLimiter = limiter
	}
}

type routerConfig struct {
	enableLogging bool
	logger        *zap.Logger
	rateLimiter   rateLimiter
}

// NewRouter serves the read-only diagnostics routes for handler's registry.
// Every request gets a request ID and an access record; access logs and
// panic reports name the configuration source and the key involved.
func NewRouter(handler *Handler, logger *zap.Logger, opts ...RouterOption) http.Handler {
	cfg := routerConfig{
		enableLogging: true,
		logger:        logger,
		rateLimiter:   newTokenBucket(25, 50),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	logger = cfg.logger.With(zap.String("source", handler.source))

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+healthPath, handler.handleHealth)
	mux.HandleFunc("GET /api/entries", handler.handleListEntries)
	mux.HandleFunc("GET /api/entries/{key}", handler.handleGetEntry)
	mux.HandleFunc("GET /api/dump", handler.handleDump)
	mux.HandleFunc("GET /api/check", handler.handleCheck)

	var root http.Handler = corsMiddleware(mux)
	root = recoveryMiddleware(logger, root)
	root = rateLimitMiddleware(cfg.rateLimiter, root)
	root = accessMiddleware(logger, cfg.enableLogging, root)
	return requestIDMiddleware(root)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET,OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type,X-Request-ID")
		h.Set("Access-Control-Expose-Headers", "X-Request-ID,Retry-After")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// accessMiddleware attaches an access record to the request and, when
// logging is enabled, reports it after the response: the registry key and
// conversion for entry lookups, and the error for failed requests.
func accessMiddleware(logger *zap.Logger, logging bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, access := withAccessRecord(r.Context())
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(ctx))
		if !logging {
			return
		}

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", requestIDFromContext(ctx)),
		}
		if access.key != "" {
			fields = append(fields, zap.String("key", access.key), zap.String("type", access.typ))
		}
		if access.err != nil {
			logger.Warn("request failed", append(fields, zap.Error(access.err))...)
			return
		}
		logger.Info("request completed", fields...)
	})
}

// recoveryMiddleware turns a handler panic into an error response. Panics
// carrying registry or schema errors get the same status a returned error
// would.
func recoveryMiddleware(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			err, ok := recovered.(error)
			if !ok {
				err = fmt.Errorf("panic: %v", recovered)
			}

			fields := []zap.Field{zap.Error(err), zap.String("request_id", requestIDFromContext(r.Context()))}
			if access := accessRecordFrom(r.Context()); access != nil && access.key != "" {
				fields = append(fields, zap.String("key", access.key))
			}
			logger.Error("panic recovered", fields...)
			writeFailure(w, r, err)
		}()
		next.ServeHTTP(w, r)
	})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(contextWithRequestID(r.Context(), requestID)))
	})
}

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
