package httpd

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tetherto/svc-facs-httpd/manifest"
)

// FromManifest builds a server from a parsed manifest. Handler names in the
// manifest's routes are bound against the handlers map; a name with no entry
// fails with ErrUnknownHandler. Options given here are applied after the
// manifest's server block, so they win on conflict:
//
//	cfg, err := manifest.Load("server.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv, err := httpd.FromManifest(cfg, map[string]http.Handler{
//	    "users.list": listHandler,
//	    "users.get":  getHandler,
//	}, httpd.WithLogger(logger))
//
// The returned server has not been started; hooks, middleware and further
// routes can still be declared before Start.
func FromManifest(cfg *manifest.Config, handlers map[string]http.Handler, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("httpd: manifest must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := New(append(manifestOptions(&cfg.Server), opts...)...)

	for _, rt := range cfg.Routes {
		h, ok := handlers[rt.Handler]
		if !ok {
			return nil, fmt.Errorf("httpd: route %q: handler %q: %w", rt.Path, rt.Handler, ErrUnknownHandler)
		}
		if err := s.Handle(rt.Path, h, rt.Methods...); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// manifestOptions translates a manifest server block into options. Zero
// values are skipped so the server defaults apply.
func manifestOptions(sc *manifest.ServerConfig) []Option {
	var opts []Option

	if sc.Addr != "" {
		opts = append(opts, WithAddr(sc.Addr))
	}
	if d := sc.ReadTimeout.Duration(); d > 0 {
		opts = append(opts, WithReadTimeout(d))
	}
	if d := sc.ReadHeaderTimeout.Duration(); d > 0 {
		opts = append(opts, WithReadHeaderTimeout(d))
	}
	if d := sc.WriteTimeout.Duration(); d > 0 {
		opts = append(opts, WithWriteTimeout(d))
	}
	if d := sc.IdleTimeout.Duration(); d > 0 {
		opts = append(opts, WithIdleTimeout(d))
	}
	if sc.MaxHeaderBytes > 0 {
		opts = append(opts, WithMaxHeaderBytes(sc.MaxHeaderBytes))
	}
	if d := sc.ShutdownTimeout.Duration(); d > 0 {
		opts = append(opts, WithShutdownTimeout(d))
	}
	if sc.H2C {
		opts = append(opts, WithH2C())
	}
	if tls := sc.TLS; tls != nil {
		opts = append(opts, WithTLS(tls.CertFile, tls.KeyFile))
		if tls.Reload {
			opts = append(opts, WithTLSReload())
		}
	}

	return opts
}
