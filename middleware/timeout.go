package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	httpd "github.com/tetherto/svc-facs-httpd"
)

// ErrInvalidTimeout is returned when TimeoutConfig.Duration is not greater
// than zero.
var ErrInvalidTimeout = errors.New("timeout: duration must be greater than zero")

// TimeoutConfig configures the Timeout middleware behaviour.
type TimeoutConfig struct {
	// Duration is the maximum time allowed for the handler to complete.
	// Must be greater than zero.
	Duration time.Duration

	// Message is the message field of the JSON 503 body returned when the
	// handler overruns. Defaults to "request timed out".
	Message string
}

// TimeoutMiddleware returns a middleware that bounds handler execution time.
// The handler runs with a deadline on its request context and its response
// buffered; if it overruns, the buffered output is discarded and the client
// receives 503 Service Unavailable in the facility's JSON error shape. Late
// writes from the abandoned handler fail with http.ErrHandlerTimeout.
//
// The response is held in memory until the handler returns, so the
// middleware is unsuitable for streaming endpoints.
//
// It returns ErrInvalidTimeout if Duration is not greater than zero.
func TimeoutMiddleware(cfg TimeoutConfig) (httpd.MiddlewareFunc, error) {
	if cfg.Duration <= 0 {
		return nil, ErrInvalidTimeout
	}

	duration := cfg.Duration
	message := cfg.Message
	if message == "" {
		message = "request timed out"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), duration)
			defer cancel()

			dw := &deadlineWriter{dst: w, header: make(http.Header)}

			done := make(chan struct{})
			panicked := make(chan any, 1)
			go func() {
				defer func() {
					if v := recover(); v != nil {
						panicked <- v
					}
				}()
				next.ServeHTTP(dw, r.WithContext(ctx))
				close(done)
			}()

			select {
			case v := <-panicked:
				panic(v)
			case <-done:
				dw.release()
			case <-ctx.Done():
				dw.abandon()
				httpd.ResponseError(w, http.StatusServiceUnavailable, message)
			}
		})
	}, nil
}

// deadlineWriter buffers a handler's response so it can be dropped wholesale
// on timeout. Nothing reaches the client until release; after abandon, the
// client belongs to the timeout response and handler writes are refused.
type deadlineWriter struct {
	dst http.ResponseWriter

	mu       sync.Mutex
	header   http.Header
	body     bytes.Buffer
	status   int
	timedOut bool
}

func (dw *deadlineWriter) Header() http.Header {
	return dw.header
}

func (dw *deadlineWriter) WriteHeader(status int) {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if dw.timedOut || dw.status != 0 {
		return
	}
	dw.status = status
}

func (dw *deadlineWriter) Write(p []byte) (int, error) {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if dw.timedOut {
		return 0, http.ErrHandlerTimeout
	}
	if dw.status == 0 {
		dw.status = http.StatusOK
	}
	return dw.body.Write(p)
}

// release flushes the buffered response to the client. Called only after the
// handler goroutine has returned, so the header map is no longer shared.
func (dw *deadlineWriter) release() {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	dst := dw.dst.Header()
	for name, values := range dw.header {
		dst[name] = values
	}

	if dw.status == 0 {
		dw.status = http.StatusOK
	}
	dw.dst.WriteHeader(dw.status)
	_, _ = dw.dst.Write(dw.body.Bytes())
}

// abandon discards the buffered response and refuses further writes.
func (dw *deadlineWriter) abandon() {
	dw.mu.Lock()
	dw.timedOut = true
	dw.mu.Unlock()
}
