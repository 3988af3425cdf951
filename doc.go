// Package httpd implements an embeddable HTTP server facility with
// declarative route registration and a one-shot lifecycle: routes are
// declared up front, the table freezes when the server starts, and
// requests are then dispatched against the frozen table without locks.
//
// The package implements response semantics based on:
//   - RFC 9110 (HTTP Semantics, successor to RFC 7231)
//   - RFC 3986 (URIs)
//
// # Lifecycle
//
// Create a server, declare routes, then start it once:
//
//	srv := httpd.New(httpd.WithAddr(":8080"))
//	srv.GET("/users/:id", userHandler)
//	srv.POST("/users", createHandler)
//
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer srv.Stop(context.Background())
//
// Start freezes the route table before binding the listener. Declarations
// after Start fail with ErrAlreadyStarted; a second Start fails with
// ErrDuplicateStart. Stop drains in-flight requests within its context
// deadline and is a no-op unless the server is running.
//
// # Route Templates
//
// A template is static when every segment is literal, and dynamic when any
// segment starts with ":" or is exactly "*":
//
//	srv.GET("/health", h)            // static
//	srv.GET("/users/:id", h)         // dynamic: one parameter segment
//	srv.GET("/files/*", h)           // dynamic: trailing wildcard
//
// A ":" parameter matches exactly one non-empty segment. The wildcard is
// only valid as the final segment and matches one or more trailing
// segments, so "/files/*" matches "/files/a" and "/files/a/b" but not
// "/files". Static matches always win over dynamic ones; dynamic routes
// sharing a first segment are tried in declaration order.
//
// # Path Normalization
//
// Before matching, request paths and templates are normalized: everything
// from the first "?" is dropped, all trailing slashes are removed, and an
// empty result becomes "/". Nothing else changes — no percent-decoding, no
// case folding, no dot-segment cleaning — so "/users/" and "/users" hit
// the same route while "/Users" does not.
//
// # Route Parameters
//
// Captured segments are stored in the request context. Param returns a
// single value, Params the whole set; the wildcard remainder is stored
// under "*":
//
//	func userHandler(w http.ResponseWriter, r *http.Request) {
//	    id, _ := httpd.Param(r, "id")
//	    ...
//	}
//
// SetParams attaches parameters to a request for testing handlers in
// isolation:
//
//	req = httpd.SetParams(req, routetable.Params{"id": "42"})
//
// # Miss Handling
//
// When no route serves a request, the server distinguishes two cases. If
// the path matches no template at all it responds 404 Not Found per
// RFC 9110 Section 15.5.5:
//
//	{"message":"Route GET:/nope not found","error":"Not Found","statusCode":404}
//
// If the path matches templates declared for other methods it responds
// 405 Method Not Allowed per RFC 9110 Section 15.5.6, with the Allow
// header listing those methods in declaration order:
//
//	{"message":"Route PUT:/users method not allowed","error":"Method Not Allowed","statusCode":405}
//
// Both responses can be replaced via WithNotFoundHandler and
// WithMethodNotAllowedHandler. The Allow header is always set before a
// custom 405 handler runs.
//
// # Middleware
//
// Use wraps the dispatcher with middleware; the first middleware
// registered becomes the outermost:
//
//	srv.Use(requestIDMiddleware, accessLogMiddleware)
//
// The middleware subpackage provides request IDs, panic recovery, access
// logging, metrics, rate limiting, and other common wrappers.
//
// # Hooks
//
// Hooks observe the lifecycle. OnStart hooks run sequentially before the
// listener binds and abort Start on error. OnReady hooks run in their own
// goroutines once the server is accepting connections. OnShutdown hooks
// run during Stop in reverse registration order:
//
//	srv.OnStart(func(ctx context.Context) error { return pool.Ping(ctx) })
//	srv.OnShutdown(func(ctx context.Context) { pool.Close() })
//
// # Static Files
//
// Static declares a wildcard route that serves a file system:
//
//	srv.Static("/assets", os.DirFS("./public"))
//	srv.Static("/app", appFS, httpd.WithSPAFallback())
//
// Directory listing is disabled unless WithDirectoryListing is given.
//
// # TLS
//
// WithTLS serves TLS from a certificate and key file. WithTLSReload
// additionally watches both files and swaps the pair in on change, so
// certificates rotate without restarting the listener:
//
//	srv := httpd.New(
//	    httpd.WithAddr(":8443"),
//	    httpd.WithTLS("server.crt", "server.key"),
//	    httpd.WithTLSReload(),
//	)
//
// # HTTP/2 Cleartext
//
// WithH2C accepts HTTP/2 without TLS, for gRPC gateways and proxies that
// speak h2c. It is ignored when TLS is configured, where HTTP/2 is
// negotiated via ALPN instead.
//
// # Manifests
//
// FromManifest builds a server from a YAML manifest parsed by the
// manifest subpackage, binding named handlers to declared routes:
//
//	cfg, _ := manifest.Load("server.yaml")
//	srv, err := httpd.FromManifest(cfg, map[string]http.Handler{
//	    "users.get": userHandler,
//	})
//
// # Introspection
//
// Routes returns the declarations in registration order, and
// AllowedMethods returns the methods declared across all templates
// matching a path:
//
//	for _, d := range srv.Routes() {
//	    fmt.Println(d.Methods, d.Template)
//	}
package httpd
