package httpd

import (
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tetherto/svc-facs-httpd/routetable"
)

// State represents the server lifecycle state.
type State int32

const (
	// StateNew indicates the server accepts declarations and has not
	// started.
	StateNew State = iota
	// StateStarting indicates Start is in progress.
	StateStarting
	// StateRunning indicates the server is accepting connections.
	StateRunning
	// StateStopping indicates a graceful shutdown is in progress.
	StateStopping
	// StateStopped indicates the server has stopped; it cannot be started
	// again.
	StateStopped
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// MiddlewareFunc is a function which receives an http.Handler and returns
// another http.Handler. Registered middleware wraps every dispatched request
// as well as the 404/405 miss responses.
type MiddlewareFunc func(http.Handler) http.Handler

// Server is the embeddable HTTP server facility: routes, middleware and
// lifecycle hooks are declared up front, then a single Start freezes the
// declarations and brings the listener up.
//
//	srv := httpd.New(httpd.WithAddr(":8080"))
//	srv.GET("/items", listItems)
//	srv.GET("/items/:id", getItem)
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer srv.Stop(ctx)
//
// All declaration calls must happen on one goroutine before Start. Requests
// that match no route receive the facility's JSON 404 body, or a 405 body
// with the Allow header when the path is registered under other methods.
type Server struct {
	addr   string
	logger *zap.Logger

	table *routetable.Table
	state atomic.Int32

	middleware []MiddlewareFunc
	hooks      hooks

	notFound         http.Handler
	methodNotAllowed http.Handler

	readTimeout       time.Duration
	readHeaderTimeout time.Duration
	writeTimeout      time.Duration
	idleTimeout       time.Duration
	maxHeaderBytes    int
	shutdownTimeout   time.Duration

	enableH2C bool

	certFile  string
	keyFile   string
	reloadTLS bool
	certs     *certReloader

	httpServer *http.Server
	listener   net.Listener
}

// Option is a functional option for configuring the server.
type Option func(*Server)

// WithAddr sets the listen address. The default is ":8080"; use ":0" to let
// the kernel pick a free port (the bound address is available from Addr
// after Start).
func WithAddr(addr string) Option {
	return func(s *Server) {
		s.addr = addr
	}
}

// WithLogger sets the structured logger. The default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithReadTimeout sets the maximum duration for reading an entire request.
func WithReadTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.readTimeout = d
	}
}

// WithReadHeaderTimeout sets the maximum duration for reading request
// headers.
func WithReadHeaderTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.readHeaderTimeout = d
	}
}

// WithWriteTimeout sets the maximum duration before timing out response
// writes.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.writeTimeout = d
	}
}

// WithIdleTimeout sets the maximum time to wait for the next request on a
// kept-alive connection.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.idleTimeout = d
	}
}

// WithMaxHeaderBytes caps the size of request headers.
func WithMaxHeaderBytes(n int) Option {
	return func(s *Server) {
		s.maxHeaderBytes = n
	}
}

// WithShutdownTimeout bounds Stop when the caller's context carries no
// deadline of its own.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.shutdownTimeout = d
	}
}

// WithNotFoundHandler replaces the default 404 response. The default writes
// the facility's JSON body via ResponseJSON.
func WithNotFoundHandler(h http.Handler) Option {
	return func(s *Server) {
		s.notFound = h
	}
}

// WithMethodNotAllowedHandler replaces the default 405 response. The Allow
// header is always set before the handler is invoked.
func WithMethodNotAllowedHandler(h http.Handler) Option {
	return func(s *Server) {
		s.methodNotAllowed = h
	}
}

// WithH2C serves HTTP/2 over cleartext connections (prior knowledge and
// Upgrade) on the plain listener. Ignored when TLS is configured: TLS
// listeners negotiate HTTP/2 via ALPN already.
func WithH2C() Option {
	return func(s *Server) {
		s.enableH2C = true
	}
}

// WithTLS serves TLS using the given certificate and key files.
func WithTLS(certFile, keyFile string) Option {
	return func(s *Server) {
		s.certFile = certFile
		s.keyFile = keyFile
	}
}

// WithTLSReload watches the certificate and key files and re-loads the pair
// when they change, so rotated certificates are picked up without a restart.
// Only meaningful together with WithTLS.
func WithTLSReload() Option {
	return func(s *Server) {
		s.reloadTLS = true
	}
}

// New creates a server with no routes registered. Timeouts default to
// 30s read, 10s read-header, 30s write, 120s idle, and 1 MiB of headers;
// shutdown is bounded at 30s.
func New(opts ...Option) *Server {
	s := &Server{
		addr:              ":8080",
		logger:            zap.NewNop(),
		table:             routetable.New(),
		readTimeout:       30 * time.Second,
		readHeaderTimeout: 10 * time.Second,
		writeTimeout:      30 * time.Second,
		idleTimeout:       120 * time.Second,
		maxHeaderBytes:    1 << 20,
		shutdownTimeout:   30 * time.Second,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.state.Store(int32(StateNew))

	return s
}

// State returns the current lifecycle state.
func (s *Server) State() State {
	return State(s.state.Load())
}

// Addr returns the bound listener address once Start has returned
// successfully, e.g. "127.0.0.1:43721" for a ":0" listen address. Before
// start it returns the empty string.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// registrable reports whether declaration calls are still accepted.
func (s *Server) registrable() bool {
	return s.State() == StateNew
}
