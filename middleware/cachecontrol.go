package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	httpd "github.com/tetherto/svc-facs-httpd"
)

// ErrNoCacheRules is returned when CacheControlConfig.Rules is empty.
var ErrNoCacheRules = errors.New("cache control: at least one rule is required")

// CacheControlRule maps a Content-Type prefix to caching headers.
type CacheControlRule struct {
	// ContentType is a prefix matched case-insensitively against the
	// response Content-Type, e.g. "image/" or "application/json".
	ContentType string

	// Value is the Cache-Control header to set on a match, e.g.
	// "public, max-age=86400".
	Value string

	// Expires is added to the current time to produce the Expires header
	// (HTTP-date format). Zero renders the current time, which caches
	// treat as already expired. Negative disables the header for this
	// rule.
	Expires time.Duration
}

// CacheControlConfig configures the Cache Control middleware behaviour.
type CacheControlConfig struct {
	// Rules is evaluated in order; the first matching prefix wins.
	// At least one rule is required.
	Rules []CacheControlRule

	// DefaultValue is the Cache-Control header for responses matching no
	// rule. Empty leaves unmatched responses without the header.
	DefaultValue string

	// DefaultExpires is the Expires duration for responses matching no
	// rule, with the same zero/negative semantics as CacheControlRule.
	DefaultExpires time.Duration
}

// cacheRule is a rule normalized at construction time so the per-response
// path only does prefix checks.
type cacheRule struct {
	contentType string
	value       string
	expires     time.Duration
	hasExpires  bool
}

// CacheControlMiddleware returns a middleware that sets Cache-Control and
// Expires on responses according to their Content-Type. The first rule
// whose prefix matches wins; unmatched responses fall back to the config
// defaults. Headers the handler set itself are left alone.
//
// It returns ErrNoCacheRules when Rules is empty.
func CacheControlMiddleware(cfg CacheControlConfig) (httpd.MiddlewareFunc, error) {
	if len(cfg.Rules) == 0 {
		return nil, ErrNoCacheRules
	}

	rules := make([]cacheRule, len(cfg.Rules))
	for i, r := range cfg.Rules {
		rules[i] = cacheRule{
			contentType: strings.ToLower(r.ContentType),
			value:       r.Value,
			expires:     r.Expires,
			hasExpires:  r.Expires >= 0,
		}
	}

	fallback := cacheRule{
		value:      cfg.DefaultValue,
		expires:    cfg.DefaultExpires,
		hasExpires: cfg.DefaultExpires >= 0,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(&cacheWriter{
				ResponseWriter: w,
				rules:          rules,
				fallback:       fallback,
			}, r)
		})
	}, nil
}

// cacheWriter intercepts WriteHeader to inspect the final Content-Type and
// apply the matching rule before headers go out.
type cacheWriter struct {
	http.ResponseWriter
	rules       []cacheRule
	fallback    cacheRule
	wroteHeader bool
}

func (cw *cacheWriter) WriteHeader(status int) {
	if cw.wroteHeader {
		return
	}
	cw.wroteHeader = true

	cw.applyRule()
	cw.ResponseWriter.WriteHeader(status)
}

func (cw *cacheWriter) Write(b []byte) (int, error) {
	if !cw.wroteHeader {
		cw.WriteHeader(http.StatusOK)
	}

	return cw.ResponseWriter.Write(b)
}

// applyRule resolves the rule for the response Content-Type and fills in
// whichever of Cache-Control and Expires the handler left unset.
func (cw *cacheWriter) applyRule() {
	h := cw.Header()

	ccSet := h.Get("Cache-Control") != ""
	exSet := h.Get("Expires") != ""
	if ccSet && exSet {
		return
	}

	rule := cw.fallback
	ct := strings.ToLower(h.Get("Content-Type"))
	for _, r := range cw.rules {
		if strings.HasPrefix(ct, r.contentType) {
			rule = r
			break
		}
	}

	if !ccSet && rule.value != "" {
		h.Set("Cache-Control", rule.value)
	}
	if !exSet && rule.hasExpires {
		h.Set("Expires", time.Now().UTC().Add(rule.expires).Format(http.TimeFormat))
	}
}

// Unwrap returns the wrapped ResponseWriter.
func (cw *cacheWriter) Unwrap() http.ResponseWriter {
	return cw.ResponseWriter
}
