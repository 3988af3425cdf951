package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"

	httpd "github.com/tetherto/svc-facs-httpd"
)

// ErrNoCredentials is returned when BasicAuthConfig carries neither a
// ValidateFunc nor static Credentials.
var ErrNoCredentials = errors.New("basic auth: ValidateFunc or Credentials must be provided")

// BasicAuthConfig configures the Basic Auth middleware behaviour.
//
// Spec reference: https://www.rfc-editor.org/rfc/rfc7617
type BasicAuthConfig struct {
	// Realm is the authentication realm sent in the WWW-Authenticate
	// challenge. Defaults to "Restricted" when empty.
	Realm string

	// ValidateFunc validates credentials dynamically. It takes priority
	// over Credentials when both are set.
	ValidateFunc func(username, password string) bool

	// Credentials maps usernames to passwords. Passwords are compared as
	// SHA-256 digests in constant time, so neither the value nor its
	// length leaks through timing.
	Credentials map[string]string
}

// BasicAuthMiddleware returns a middleware that enforces HTTP Basic
// Authentication per RFC 7617. Requests without valid credentials receive
// 401 with a WWW-Authenticate challenge and the standard JSON error body.
//
// It returns ErrNoCredentials when the config carries no credential source.
func BasicAuthMiddleware(cfg BasicAuthConfig) (httpd.MiddlewareFunc, error) {
	if cfg.ValidateFunc == nil && len(cfg.Credentials) == 0 {
		return nil, ErrNoCredentials
	}

	realm := cfg.Realm
	if realm == "" {
		realm = "Restricted"
	}
	challenge := fmt.Sprintf("Basic realm=%q", realm)

	validate := cfg.ValidateFunc
	if validate == nil {
		credentials := cfg.Credentials
		validate = func(username, password string) bool {
			expected, exists := credentials[username]
			// Compare even for unknown usernames so a miss costs the
			// same time as a wrong password.
			match := digestEqual(password, expected)
			return exists && match
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, password, ok := r.BasicAuth()
			if !ok || !validate(username, password) {
				w.Header().Set("WWW-Authenticate", challenge)
				httpd.ResponseError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}

// digestEqual compares two strings in constant time over their SHA-256
// digests. Hashing first keeps different-length inputs from short-circuiting
// the comparison.
func digestEqual(a, b string) bool {
	ah := sha256.Sum256([]byte(a))
	bh := sha256.Sum256([]byte(b))

	return subtle.ConstantTimeCompare(ah[:], bh[:]) == 1
}
