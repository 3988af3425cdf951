package middleware

import (
	"errors"
	"mime"
	"net/http"
	"strings"

	httpd "github.com/tetherto/svc-facs-httpd"
)

// ErrNoAllowedTypes is returned when ContentTypeConfig.AllowedTypes is
// empty.
var ErrNoAllowedTypes = errors.New("content type: at least one allowed media type is required")

// ContentTypeConfig configures the Content Type middleware behaviour.
type ContentTypeConfig struct {
	// AllowedTypes is the set of acceptable media types. Matching is
	// case-insensitive and ignores parameters, so "application/json"
	// accepts "application/json; charset=utf-8". At least one is
	// required.
	AllowedTypes []string

	// Methods lists the HTTP methods whose requests are checked. Nil
	// defaults to POST, PUT and PATCH.
	Methods []string
}

// defaultCheckedMethods is checked when ContentTypeConfig.Methods is nil.
var defaultCheckedMethods = []string{
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
}

// ContentTypeMiddleware returns a middleware that rejects requests on the
// configured methods whose Content-Type header is missing, malformed or not
// among the allowed media types. Rejections are 415 with the standard JSON
// error body.
//
// It returns ErrNoAllowedTypes when AllowedTypes is empty.
func ContentTypeMiddleware(cfg ContentTypeConfig) (httpd.MiddlewareFunc, error) {
	if len(cfg.AllowedTypes) == 0 {
		return nil, ErrNoAllowedTypes
	}

	methods := cfg.Methods
	if methods == nil {
		methods = defaultCheckedMethods
	}

	checked := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		checked[m] = struct{}{}
	}

	allowed := make(map[string]struct{}, len(cfg.AllowedTypes))
	for _, t := range cfg.AllowedTypes {
		allowed[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, check := checked[r.Method]; check && !acceptableMediaType(r.Header.Get("Content-Type"), allowed) {
				httpd.ResponseError(w, http.StatusUnsupportedMediaType, "unsupported media type")
				return
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}

// acceptableMediaType parses a Content-Type header value and reports
// whether its media type is in the allowed set.
func acceptableMediaType(header string, allowed map[string]struct{}) bool {
	if header == "" {
		return false
	}

	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return false
	}

	_, ok := allowed[strings.ToLower(mediaType)]
	return ok
}
