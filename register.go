package httpd

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tetherto/svc-facs-httpd/routetable"
)

// Handle declares a route: a path template, the handler serving it, and one
// or more methods. Templates support ":name" parameter segments and a final
// "*" wildcard segment:
//
//	srv.Handle("/users/:id", userHandler, http.MethodGet, http.MethodDelete)
//	srv.Handle("/static/*", fileHandler, http.MethodGet)
//
// Handle fails with ErrAlreadyStarted once Start has been invoked, with
// ErrNilHandler for a nil handler, and with the route table's own errors
// for an empty method set or a malformed template.
func (s *Server) Handle(template string, handler http.Handler, methods ...string) error {
	if handler == nil {
		return fmt.Errorf("httpd: handle %q: %w", template, ErrNilHandler)
	}
	if !s.registrable() {
		return fmt.Errorf("httpd: handle %q: %w", template, ErrAlreadyStarted)
	}
	return s.table.Register(template, methods, handler)
}

// HandleFunc declares a route with a handler function.
func (s *Server) HandleFunc(template string, fn func(http.ResponseWriter, *http.Request), methods ...string) error {
	if fn == nil {
		return fmt.Errorf("httpd: handle %q: %w", template, ErrNilHandler)
	}
	return s.Handle(template, http.HandlerFunc(fn), methods...)
}

// GET declares a route for the GET method.
func (s *Server) GET(template string, handler http.Handler) error {
	return s.Handle(template, handler, http.MethodGet)
}

// HEAD declares a route for the HEAD method.
func (s *Server) HEAD(template string, handler http.Handler) error {
	return s.Handle(template, handler, http.MethodHead)
}

// POST declares a route for the POST method.
func (s *Server) POST(template string, handler http.Handler) error {
	return s.Handle(template, handler, http.MethodPost)
}

// PUT declares a route for the PUT method.
func (s *Server) PUT(template string, handler http.Handler) error {
	return s.Handle(template, handler, http.MethodPut)
}

// PATCH declares a route for the PATCH method.
func (s *Server) PATCH(template string, handler http.Handler) error {
	return s.Handle(template, handler, http.MethodPatch)
}

// DELETE declares a route for the DELETE method.
func (s *Server) DELETE(template string, handler http.Handler) error {
	return s.Handle(template, handler, http.MethodDelete)
}

// OPTIONS declares a route for the OPTIONS method.
func (s *Server) OPTIONS(template string, handler http.Handler) error {
	return s.Handle(template, handler, http.MethodOptions)
}

// Use appends middleware to the chain. Middleware wraps the dispatcher in
// registration order — the first Use call is the outermost wrapper — and
// sees every request, including those that end in a 404 or 405.
func (s *Server) Use(mw ...MiddlewareFunc) error {
	if !s.registrable() {
		return fmt.Errorf("httpd: use: %w", ErrAlreadyStarted)
	}
	s.middleware = append(s.middleware, mw...)
	return nil
}

// OnStart registers a hook that runs before the listener comes up. Hooks
// run sequentially in registration order; the first error aborts startup.
func (s *Server) OnStart(fn func(context.Context) error) error {
	if !s.registrable() {
		return fmt.Errorf("httpd: on-start hook: %w", ErrAlreadyStarted)
	}
	s.hooks.onStart = append(s.hooks.onStart, fn)
	return nil
}

// OnReady registers a hook that runs after the server starts listening.
// Hooks run asynchronously; a panic is logged and does not affect serving.
func (s *Server) OnReady(fn func()) error {
	if !s.registrable() {
		return fmt.Errorf("httpd: on-ready hook: %w", ErrAlreadyStarted)
	}
	s.hooks.onReady = append(s.hooks.onReady, fn)
	return nil
}

// OnShutdown registers a hook that runs during Stop, after the listener has
// drained. Hooks run in reverse registration order (LIFO) and receive the
// shutdown context.
func (s *Server) OnShutdown(fn func(context.Context)) error {
	if !s.registrable() {
		return fmt.Errorf("httpd: on-shutdown hook: %w", ErrAlreadyStarted)
	}
	s.hooks.onShutdown = append(s.hooks.onShutdown, fn)
	return nil
}

// Routes returns every declaration in registration order: the normalized
// template, its upper-cased methods and its static/dynamic classification.
func (s *Server) Routes() []routetable.Declaration {
	return s.table.Routes()
}

// AllowedMethods returns the registration-ordered methods registered for
// the first route matching the path, or nil when no route matches. This is
// the same table consulted for the 405 Allow header; CORS preflight
// handling builds Access-Control-Allow-Methods from it.
func (s *Server) AllowedMethods(path string) []string {
	return s.table.AllowedMethods(path)
}

// RouteTemplate returns the normalized template of the first route matching
// the path, or "" and false when no route matches. Metrics middleware
// labels requests with it to keep label cardinality bounded.
func (s *Server) RouteTemplate(path string) (string, bool) {
	return s.table.Match(path)
}
