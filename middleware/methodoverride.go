package middleware

import (
	"errors"
	"net/http"
	"strings"

	httpd "github.com/tetherto/svc-facs-httpd"
)

// ErrInvalidOverrideMethod is returned when MethodOverrideConfig lists a
// method that is empty or not uppercase.
var ErrInvalidOverrideMethod = errors.New("method override: methods must be uppercase HTTP methods")

// MethodOverrideConfig configures the Method Override middleware behaviour.
type MethodOverrideConfig struct {
	// HeaderNames lists the headers checked in order; the first non-empty
	// value supplies the override. Nil defaults to
	// X-HTTP-Method-Override, X-Method-Override, X-HTTP-Method.
	HeaderNames []string

	// OriginalMethods lists the request methods eligible for override.
	// Nil defaults to POST alone.
	OriginalMethods []string

	// AllowedMethods restricts what the override may change the method
	// to. Nil defaults to PUT, PATCH, DELETE, HEAD and OPTIONS.
	AllowedMethods []string
}

// defaultOverrideHeaders is checked when HeaderNames is nil.
var defaultOverrideHeaders = []string{
	"X-HTTP-Method-Override",
	"X-Method-Override",
	"X-HTTP-Method",
}

// defaultOriginalMethods applies when OriginalMethods is nil.
var defaultOriginalMethods = []string{http.MethodPost}

// defaultOverrideMethods applies when AllowedMethods is nil.
var defaultOverrideMethods = []string{
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	http.MethodHead,
	http.MethodOptions,
}

// MethodOverrideMiddleware returns a middleware that lets clients tunnel a
// different HTTP method through a header, for intermediaries that only pass
// POST. The first non-empty header from HeaderNames is uppercased and, when
// in the allowed set, replaces r.Method before routing; the header is then
// dropped. Requests whose method is not in OriginalMethods pass through
// untouched.
//
// It returns ErrInvalidOverrideMethod when a configured method is empty or
// not uppercase.
func MethodOverrideMiddleware(cfg MethodOverrideConfig) (httpd.MiddlewareFunc, error) {
	headers := cfg.HeaderNames
	if len(headers) == 0 {
		headers = defaultOverrideHeaders
	}

	originals := cfg.OriginalMethods
	if originals == nil {
		originals = defaultOriginalMethods
	}

	overrides := cfg.AllowedMethods
	if overrides == nil {
		overrides = defaultOverrideMethods
	}

	if !uppercaseMethods(originals) || !uppercaseMethods(overrides) {
		return nil, ErrInvalidOverrideMethod
	}

	headerNames := make([]string, len(headers))
	copy(headerNames, headers)

	originalSet := make(map[string]struct{}, len(originals))
	for _, m := range originals {
		originalSet[m] = struct{}{}
	}

	allowed := make(map[string]struct{}, len(overrides))
	for _, m := range overrides {
		allowed[m] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := originalSet[r.Method]; ok {
				for _, name := range headerNames {
					v := r.Header.Get(name)
					if v == "" {
						continue
					}

					override := strings.ToUpper(v)
					if _, ok := allowed[override]; ok {
						r.Method = override
						r.Header.Del(name)
					}

					break
				}
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}

// uppercaseMethods reports whether every method is non-empty and already
// uppercase.
func uppercaseMethods(methods []string) bool {
	for _, m := range methods {
		if m == "" || m != strings.ToUpper(m) {
			return false
		}
	}

	return true
}
