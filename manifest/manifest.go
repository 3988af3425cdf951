package manifest

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoRoutePath is returned when a route entry has no path.
var ErrNoRoutePath = errors.New("manifest: route path is required")

// ErrNoRouteMethods is returned when a route entry has no methods.
var ErrNoRouteMethods = errors.New("manifest: route methods are required")

// ErrNoRouteHandler is returned when a route entry names no handler.
var ErrNoRouteHandler = errors.New("manifest: route handler is required")

// ErrTLSFiles is returned when a tls block is present without both the
// certificate and key file.
var ErrTLSFiles = errors.New("manifest: tls requires certFile and keyFile")

// Config is the root of a server manifest.
type Config struct {
	// Server configures the listener and its timeouts.
	Server ServerConfig `yaml:"server"`

	// Routes declares the routes in registration order.
	Routes []RouteConfig `yaml:"routes"`
}

// ServerConfig mirrors the server options expressible in a manifest. Zero
// values fall back to the server defaults.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080" or "127.0.0.1:9000".
	Addr string `yaml:"addr"`

	// ReadTimeout is the maximum duration for reading an entire request.
	ReadTimeout Duration `yaml:"readTimeout"`

	// ReadHeaderTimeout is the maximum duration for reading request
	// headers.
	ReadHeaderTimeout Duration `yaml:"readHeaderTimeout"`

	// WriteTimeout is the maximum duration before timing out response
	// writes.
	WriteTimeout Duration `yaml:"writeTimeout"`

	// IdleTimeout is the maximum time to wait for the next request on a
	// kept-alive connection.
	IdleTimeout Duration `yaml:"idleTimeout"`

	// MaxHeaderBytes caps the size of request headers.
	MaxHeaderBytes int `yaml:"maxHeaderBytes"`

	// ShutdownTimeout bounds graceful shutdown when the stop context
	// carries no deadline.
	ShutdownTimeout Duration `yaml:"shutdownTimeout"`

	// H2C serves HTTP/2 over cleartext connections.
	H2C bool `yaml:"h2c"`

	// TLS configures TLS serving when present.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig configures TLS serving from a manifest.
type TLSConfig struct {
	// CertFile is the path to the PEM certificate. Required.
	CertFile string `yaml:"certFile"`

	// KeyFile is the path to the PEM private key. Required.
	KeyFile string `yaml:"keyFile"`

	// Reload watches both files and swaps the pair in on change.
	Reload bool `yaml:"reload"`
}

// RouteConfig declares one route: a path template, its methods, and the
// name of the handler serving it. Handler names are bound to http.Handler
// values by the embedding application.
type RouteConfig struct {
	// Path is the route template, e.g. "/users/:id" or "/static/*".
	Path string `yaml:"path"`

	// Methods lists the HTTP methods, e.g. [GET, POST].
	Methods []string `yaml:"methods"`

	// Handler names the handler to bind, e.g. "users.get".
	Handler string `yaml:"handler"`
}

// Validate checks the manifest for structural problems: every route needs a
// path, at least one method and a handler name, and a tls block needs both
// file paths. Template syntax is validated at registration time instead.
func (c *Config) Validate() error {
	if tls := c.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		return ErrTLSFiles
	}

	for i, rt := range c.Routes {
		switch {
		case rt.Path == "":
			return fmt.Errorf("manifest: route %d: %w", i, ErrNoRoutePath)
		case len(rt.Methods) == 0:
			return fmt.Errorf("manifest: route %d (%s): %w", i, rt.Path, ErrNoRouteMethods)
		case rt.Handler == "":
			return fmt.Errorf("manifest: route %d (%s): %w", i, rt.Path, ErrNoRouteHandler)
		}
	}

	return nil
}

// Duration wraps time.Duration so manifests can use human-readable strings
// ("300ms", "30s", "1h30m") per Go's time.ParseDuration syntax. An empty
// string unmarshals to zero.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
