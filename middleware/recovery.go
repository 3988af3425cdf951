package middleware

import (
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	httpd "github.com/tetherto/svc-facs-httpd"
)

// RecoveryConfig configures the Recovery middleware behaviour.
type RecoveryConfig struct {
	// Logger receives an Error entry with the recovered value and the
	// goroutine stack for every panic. Defaults to a no-op logger when
	// nil; the 500 response is written either way.
	Logger *zap.Logger
}

// RecoveryMiddleware returns a middleware that recovers from panics in
// downstream handlers. When a panic occurs it logs the recovered value with
// the goroutine stack and returns 500 Internal Server Error to the client.
//
// http.ErrAbortHandler is re-raised untouched: panicking with it is the
// sanctioned way for a handler to abort a response, and net/http suppresses
// its stack trace.
func RecoveryMiddleware(cfg RecoveryConfig) httpd.MiddlewareFunc {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}

					logger.Error("panic recovered",
						zap.Any("panic", err),
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
						zap.ByteString("stack", debug.Stack()),
					)

					httpd.ResponseError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
