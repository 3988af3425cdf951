package middleware

import (
	"errors"
	"net/http"

	httpd "github.com/tetherto/svc-facs-httpd"
)

// ErrInvalidMaxBytes is returned when BodyLimitConfig.MaxBytes is not
// greater than zero.
var ErrInvalidMaxBytes = errors.New("body limit: max bytes must be greater than zero")

// BodyLimitConfig configures the Body Limit middleware behaviour.
type BodyLimitConfig struct {
	// MaxBytes is the maximum allowed request body size in bytes.
	// Must be greater than zero.
	MaxBytes int64
}

// BodyLimitMiddleware returns a middleware that caps the size of incoming
// request bodies. It wraps r.Body with http.MaxBytesReader: downstream
// reads beyond the limit fail with *http.MaxBytesError and net/http marks
// the connection to close, so oversized uploads are not drained.
//
// It returns ErrInvalidMaxBytes if MaxBytes is not greater than zero.
func BodyLimitMiddleware(cfg BodyLimitConfig) (httpd.MiddlewareFunc, error) {
	if cfg.MaxBytes <= 0 {
		return nil, ErrInvalidMaxBytes
	}

	maxBytes := cfg.MaxBytes

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}, nil
}
