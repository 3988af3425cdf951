package httpd

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/tetherto/svc-facs-httpd/routetable"
)

// defaultNotFound writes the facility's 404 body per RFC 9110
// Section 15.5.5. The path in the message is the normalized path the route
// table classified.
func defaultNotFound(w http.ResponseWriter, r *http.Request) {
	path := routetable.Normalize(r.URL.Path)
	ResponseJSON(w, http.StatusNotFound, ErrorBody{
		Message:    fmt.Sprintf("Route %s:%s not found", r.Method, path),
		Error:      "Not Found",
		StatusCode: http.StatusNotFound,
	})
}

// defaultMethodNotAllowed writes the facility's 405 body per RFC 9110
// Section 15.5.6. The Allow header is set by the dispatcher before this
// handler is invoked.
func defaultMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	path := routetable.Normalize(r.URL.Path)
	ResponseJSON(w, http.StatusMethodNotAllowed, ErrorBody{
		Message:    fmt.Sprintf("Route %s:%s method not allowed", r.Method, path),
		Error:      "Method Not Allowed",
		StatusCode: http.StatusMethodNotAllowed,
	})
}

var (
	defaultNotFoundHandler         http.Handler = http.HandlerFunc(defaultNotFound)
	defaultMethodNotAllowedHandler http.Handler = http.HandlerFunc(defaultMethodNotAllowed)
)

// renderMiss shapes the response for a request no route serves. On a 405
// the Allow header is always set — from the resolution's
// registration-ordered method list, comma-and-space joined per RFC 9110
// Section 10.2.1 — before any custom handler runs.
func (d *dispatcher) renderMiss(w http.ResponseWriter, r *http.Request, res routetable.Resolution) {
	if res.Outcome == routetable.OutcomeMethodNotAllowed {
		w.Header().Set("Allow", strings.Join(res.Allowed, ", "))
		h := d.methodNotAllowed
		if h == nil {
			h = defaultMethodNotAllowedHandler
		}
		h.ServeHTTP(w, r)
		return
	}

	h := d.notFound
	if h == nil {
		h = defaultNotFoundHandler
	}
	h.ServeHTTP(w, r)
}
