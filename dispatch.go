package httpd

import (
	"net/http"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/tetherto/svc-facs-httpd/routetable"
)

// dispatcher is the http.Handler at the core of a started server. It is
// built once at start, over the frozen route table, and performs the whole
// request flow: exact or pattern dispatch on a hit, 404/405 classification
// and rendering on a miss.
type dispatcher struct {
	table            *routetable.Table
	notFound         http.Handler
	methodNotAllowed http.Handler
}

// ServeHTTP dispatches the handler the table holds for the request's method
// and path. On a miss the table resolves whether the path exists under other
// methods (405 with Allow) or not at all (404).
func (d *dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h, params, ok := d.table.Lookup(r.Method, r.URL.Path)
	if ok {
		h.ServeHTTP(w, withParams(r, params))
		return
	}
	d.renderMiss(w, r, d.table.Resolve(r.URL.Path))
}

// buildHandler assembles the serving chain: the dispatcher at the core,
// middleware wrapped around it in registration order (the first registered
// middleware is outermost), and, when enabled on a cleartext listener, an
// h2c wrapper so HTTP/2 prior-knowledge and upgrade requests are served
// without TLS.
func (s *Server) buildHandler() http.Handler {
	var h http.Handler = &dispatcher{
		table:            s.table,
		notFound:         s.notFound,
		methodNotAllowed: s.methodNotAllowed,
	}

	for i := len(s.middleware) - 1; i >= 0; i-- {
		h = s.middleware[i](h)
	}

	if s.enableH2C && s.certFile == "" {
		h = h2c.NewHandler(h, &http2.Server{})
	}

	return h
}
