package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	httpd "github.com/tetherto/svc-facs-httpd"
)

// defaultRequestIDHeader carries the request ID when no override is
// configured.
const defaultRequestIDHeader = "X-Request-ID"

type requestIDContextKey struct{}

// requestIDCtxKey is the context key under which the resolved ID is stored.
var requestIDCtxKey = requestIDContextKey{}

// RequestIDFromContext returns the request ID resolved by
// RequestIDMiddleware, or an empty string when the middleware did not run or
// resolved no ID.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDCtxKey).(string)
	return id
}

// RequestIDConfig configures the Request ID middleware behaviour.
type RequestIDConfig struct {
	// HeaderName overrides the header used to propagate the request ID.
	// Defaults to "X-Request-ID" when empty.
	HeaderName string

	// GenerateFunc is an optional callback that returns a new unique ID.
	// It receives the current request, allowing ID generation based on
	// request context. Defaults to GenerateUUIDv4.
	GenerateFunc func(r *http.Request) string

	// TrustIncoming, when true, reuses an existing request ID from the
	// incoming request header instead of generating a new one.
	TrustIncoming bool
}

// RequestIDMiddleware returns a middleware that stamps each request with an
// ID: on the request header for downstream handlers, on the response header
// for the caller, and in the request context for RequestIDFromContext. An ID
// that resolves empty stamps nothing and the request proceeds unmarked.
func RequestIDMiddleware(cfg RequestIDConfig) httpd.MiddlewareFunc {
	header := cfg.HeaderName
	if header == "" {
		header = defaultRequestIDHeader
	}

	generate := cfg.GenerateFunc
	if generate == nil {
		generate = GenerateUUIDv4
	}

	resolve := func(r *http.Request) string {
		if cfg.TrustIncoming {
			if id := r.Header.Get(header); id != "" {
				return id
			}
		}
		return generate(r)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := resolve(r)
			if id == "" {
				next.ServeHTTP(w, r)
				return
			}

			r.Header.Set(header, id)
			w.Header().Set(header, id)

			ctx := context.WithValue(r.Context(), requestIDCtxKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GenerateUUIDv4 returns a new UUID v4 string.
//
// Spec reference: https://www.rfc-editor.org/rfc/rfc9562#section-5.4
func GenerateUUIDv4(_ *http.Request) string {
	return uuid.NewString()
}

// GenerateUUIDv7 returns a new UUID v7 string. v7 IDs embed a millisecond
// timestamp, so IDs generated later sort lexicographically after earlier
// ones.
//
// Spec reference: https://www.rfc-editor.org/rfc/rfc9562#section-5.7
func GenerateUUIDv7(_ *http.Request) string {
	return uuid.Must(uuid.NewV7()).String()
}
