package web

import (
	"context"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/savaki/sso-frontend/internal/openid"
	"github.com/segmentio/ksuid"
)

type requestIDKey struct{}

// RequestID returns the id assigned by RequestIDMiddleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestIDMiddleware assigns every request an id, reusing one supplied by a
// fronting router.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = r.Header.Get("X-Vcap-Request-Id")
		}
		if id == "" {
			id = ksuid.New().String()
		}

		w.Header().Set("X-Request-Id", id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TrustProxyMiddleware lets X-Forwarded-Proto decide the scheme of absolute
// URLs. Enable it only behind a router that overwrites the header.
func TrustProxyMiddleware(trust bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !trust {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(openid.WithTrustedProxy(r.Context())))
		})
	}
}

// LoggingMiddleware logs details about each request and response
func LoggingMiddleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Inject logger into request context
			requestLogger := logger.With().Str("request_id", RequestID(r.Context())).Logger()
			ctx := requestLogger.WithContext(r.Context())
			r = r.WithContext(ctx)

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			zerolog.Ctx(ctx).Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Str("user_agent", r.UserAgent()).
				Msg("Incoming request")

			next.ServeHTTP(rw, r)

			zerolog.Ctx(ctx).Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status_code", rw.statusCode).
				Dur("duration", time.Since(start)).
				Msg("Request completed")
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// PathBaseMiddleware removes pathBase from request paths and records it so
// absolute URLs can be rebuilt.
func PathBaseMiddleware(pathBase string) func(http.Handler) http.Handler {
	pathBase = strings.TrimSuffix(pathBase, "/")

	return func(next http.Handler) http.Handler {
		if pathBase == "" {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == pathBase || strings.HasPrefix(r.URL.Path, pathBase+"/") {
				r.URL.Path = strings.TrimPrefix(r.URL.Path, pathBase)
				if r.URL.Path == "" {
					r.URL.Path = "/"
				}
				r.URL.RawPath = ""
				r = r.WithContext(openid.WithPathBase(r.Context(), pathBase))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RecoveryMiddleware turns a panic into the error page.
func (h *Handler) RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				zerolog.Ctx(r.Context()).Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Msg("Recovered from panic")
				h.renderError(w, r, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
