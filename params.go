package httpd

import (
	"context"
	"net/http"

	"github.com/tetherto/svc-facs-httpd/routetable"
)

// paramsContextKey is an unexported type for the single context key.
type paramsContextKey struct{}

// paramsKey is the context key under which route parameters are stored.
var paramsKey = paramsContextKey{}

// Params returns the route parameters extracted for the current request, if
// any. Parameters exist only for requests dispatched through a dynamic
// route: ":name" segments appear under their name, a trailing wildcard's
// remainder appears under "*".
func Params(r *http.Request) routetable.Params {
	if p, ok := r.Context().Value(paramsKey).(routetable.Params); ok {
		return p
	}
	return nil
}

// Param returns the value of a single route parameter by name and a boolean
// indicating whether the parameter exists.
func Param(r *http.Request, name string) (string, bool) {
	if p, ok := r.Context().Value(paramsKey).(routetable.Params); ok && p != nil {
		val, exists := p[name]
		return val, exists
	}
	return "", false
}

// SetParams sets the route parameters for the given request, returning the
// modified request. This is intended for testing handlers that read Params.
func SetParams(r *http.Request, p routetable.Params) *http.Request {
	return withParams(r, p)
}

// withParams stores the parameters in the request context. Static routes
// carry no parameters and skip the context allocation entirely.
func withParams(r *http.Request, p routetable.Params) *http.Request {
	if len(p) == 0 {
		return r
	}
	ctx := context.WithValue(r.Context(), paramsKey, p)
	return r.WithContext(ctx)
}
