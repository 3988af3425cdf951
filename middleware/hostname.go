package middleware

import (
	"fmt"
	"net/http"
	"os"

	httpd "github.com/tetherto/svc-facs-httpd"
)

// HostnameConfig configures the Hostname middleware behaviour.
type HostnameConfig struct {
	// Hostname is the value written to the X-Server-Hostname response
	// header. Resolution order: Hostname field, then HostnameEnv
	// environment variables, then os.Hostname.
	Hostname string

	// HostnameEnv is a list of environment variable names checked in
	// order (e.g. ["POD_NAME", "HOSTNAME"]); the first non-empty value
	// wins. Only consulted when Hostname is empty. When all variables
	// are unset or empty, os.Hostname is used as a fallback.
	HostnameEnv []string
}

// HostnameMiddleware returns a middleware that identifies the serving host
// in an X-Server-Hostname response header. The hostname is resolved once,
// when the middleware is created. It returns an error if no hostname can
// be determined.
func HostnameMiddleware(cfg HostnameConfig) (httpd.MiddlewareFunc, error) {
	hostname := cfg.Hostname

	if hostname == "" {
		for _, env := range cfg.HostnameEnv {
			if v, ok := os.LookupEnv(env); ok && v != "" {
				hostname = v
				break
			}
		}
	}

	if hostname == "" {
		h, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("hostname: %w", err)
		}

		hostname = h
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Server-Hostname", hostname)
			next.ServeHTTP(w, r)
		})
	}, nil
}
