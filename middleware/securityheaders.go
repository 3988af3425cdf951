package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	httpd "github.com/tetherto/svc-facs-httpd"
)

// ErrInvalidFrameOption is returned when SecurityHeadersConfig.FrameOption
// is not one of the valid values: "DENY", "SAMEORIGIN", or empty string.
var ErrInvalidFrameOption = errors.New("security headers: frame option must be DENY, SAMEORIGIN, or empty")

// SecurityHeadersConfig configures the Security Headers middleware
// behaviour.
type SecurityHeadersConfig struct {
	// DisableContentTypeNosniff disables the X-Content-Type-Options:
	// nosniff header. The header is set by default (when false).
	DisableContentTypeNosniff bool

	// FrameOption sets the X-Frame-Options header value.
	// Valid values are "DENY", "SAMEORIGIN", or empty string.
	// Defaults to "DENY".
	FrameOption string

	// ReferrerPolicy sets the Referrer-Policy header value.
	// Defaults to "strict-origin-when-cross-origin".
	ReferrerPolicy string

	// HSTSMaxAge sets the max-age directive for the
	// Strict-Transport-Security header in seconds. When zero, the header
	// is not set.
	HSTSMaxAge int

	// HSTSIncludeSubDomains appends the includeSubDomains directive to
	// the Strict-Transport-Security header. Only effective when
	// HSTSMaxAge > 0.
	HSTSIncludeSubDomains bool

	// HSTSPreload appends the preload directive to the
	// Strict-Transport-Security header. Only effective when
	// HSTSMaxAge > 0.
	HSTSPreload bool

	// CrossOriginOpenerPolicy sets the Cross-Origin-Opener-Policy header.
	// When empty, the header is not set.
	CrossOriginOpenerPolicy string

	// ContentSecurityPolicy sets the Content-Security-Policy header.
	// When empty, the header is not set.
	ContentSecurityPolicy string

	// PermissionsPolicy sets the Permissions-Policy header.
	// When empty, the header is not set.
	PermissionsPolicy string
}

// headerValue is one precomputed response header.
type headerValue struct {
	name  string
	value string
}

// SecurityHeadersMiddleware returns a middleware that sets common security
// response headers. The emitted set is resolved once at construction; each
// request only replays it before calling the next handler.
//
// It returns ErrInvalidFrameOption if FrameOption is set to a value other
// than "DENY", "SAMEORIGIN", or empty string.
func SecurityHeadersMiddleware(cfg SecurityHeadersConfig) (httpd.MiddlewareFunc, error) {
	switch cfg.FrameOption {
	case "", "DENY", "SAMEORIGIN":
	default:
		return nil, ErrInvalidFrameOption
	}

	headers := resolveSecurityHeaders(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for _, hv := range headers {
				h.Set(hv.name, hv.value)
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}

// resolveSecurityHeaders flattens the config into the ordered header list
// emitted on every response, applying the defaults for the always-on
// headers and dropping the optional ones left empty.
func resolveSecurityHeaders(cfg SecurityHeadersConfig) []headerValue {
	var out []headerValue

	if !cfg.DisableContentTypeNosniff {
		out = append(out, headerValue{"X-Content-Type-Options", "nosniff"})
	}

	frame := cfg.FrameOption
	if frame == "" {
		frame = "DENY"
	}
	out = append(out, headerValue{"X-Frame-Options", frame})

	referrer := cfg.ReferrerPolicy
	if referrer == "" {
		referrer = "strict-origin-when-cross-origin"
	}
	out = append(out, headerValue{"Referrer-Policy", referrer})

	if cfg.HSTSMaxAge > 0 {
		out = append(out, headerValue{"Strict-Transport-Security", hstsDirective(cfg)})
	}

	for _, opt := range []headerValue{
		{"Cross-Origin-Opener-Policy", cfg.CrossOriginOpenerPolicy},
		{"Content-Security-Policy", cfg.ContentSecurityPolicy},
		{"Permissions-Policy", cfg.PermissionsPolicy},
	} {
		if opt.value != "" {
			out = append(out, opt)
		}
	}

	return out
}

// hstsDirective renders the Strict-Transport-Security value for a config
// with HSTSMaxAge > 0.
func hstsDirective(cfg SecurityHeadersConfig) string {
	var b strings.Builder
	fmt.Fprintf(&b, "max-age=%d", cfg.HSTSMaxAge)
	if cfg.HSTSIncludeSubDomains {
		b.WriteString("; includeSubDomains")
	}
	if cfg.HSTSPreload {
		b.WriteString("; preload")
	}
	return b.String()
}
