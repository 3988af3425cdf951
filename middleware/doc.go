// Package middleware provides HTTP middleware for the httpd server
// facility.
//
// Every middleware is an httpd.MiddlewareFunc built from a config struct.
// Constructors whose configuration can fail validation return an error;
// install the result with Server.Use before the server starts. Middleware
// wraps the whole dispatcher, so it also observes requests that end in a
// 404 or 405 response.
//
// # CORS Middleware
//
// CORSMiddleware implements the CORS protocol per the Fetch Standard. It
// validates the Origin header (RFC 6454), handles preflight OPTIONS
// requests, and sets the appropriate response headers. The allowed methods
// advertised for a path are discovered from the server's route table when
// not configured explicitly.
//
//	srv := httpd.New()
//	mw, err := middleware.CORSMiddleware(srv, middleware.CORSConfig{
//	    AllowedOrigins:   []string{"https://example.com"},
//	    AllowCredentials: true,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv.Use(mw)
//
// # Real IP Middleware
//
// RealIPMiddleware rewrites r.RemoteAddr from X-Forwarded-For, X-Real-IP,
// or the RFC 7239 Forwarded header when the request arrives from a trusted
// proxy. A trusted proxy list (IPs and CIDRs) restricts which peers may set
// these headers, preventing spoofing from untrusted clients. When
// TrustedProxies is empty, DefaultTrustedProxies (RFC 1918, RFC 4193, and
// loopback ranges) is used.
//
//	mw, err := middleware.RealIPMiddleware(middleware.RealIPConfig{
//	    TrustedProxies:  []string{"10.0.0.0/8", "172.16.0.0/12"},
//	    EnableForwarded: true,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv.Use(mw)
//
// # Basic Auth Middleware
//
// BasicAuthMiddleware implements HTTP Basic Authentication per RFC 7617.
// Credentials come from a dynamic callback or a static map; static
// comparison runs in constant time over SHA-256 digests.
//
//	mw, err := middleware.BasicAuthMiddleware(middleware.BasicAuthConfig{
//	    Realm: "metrics",
//	    Credentials: map[string]string{
//	        "admin": "secret",
//	    },
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv.Use(mw)
//
// # Compression Middleware
//
// CompressionMiddleware negotiates gzip or deflate response encoding from
// Accept-Encoding. Bodies are buffered up to MinLength before the encoding
// decision, so small responses and inherently compressed content types go
// out untouched.
//
//	mw, err := middleware.CompressionMiddleware(middleware.CompressionConfig{
//	    MinLength: 1024,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv.Use(mw)
//
// # Rate Limit Middleware
//
// RateLimitMiddleware applies a token bucket per client. The RateLimiter
// owns a background cleanup goroutine dropping idle client entries; stop it
// on shutdown.
//
//	limiter, err := middleware.NewRateLimiter(middleware.RateLimitConfig{
//	    RPS:   50,
//	    Burst: 100,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer limiter.Stop()
//
//	mw, err := middleware.RateLimitMiddleware(limiter)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv.Use(mw)
//
// # Metrics Middleware
//
// MetricsMiddleware records Prometheus metrics for every request, labelled
// with the matched route template so cardinality stays bounded. The route
// source is the server the middleware is installed on.
//
//	mw, err := middleware.MetricsMiddleware(srv, middleware.MetricsConfig{
//	    Namespace: "myapp",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv.Use(mw)
package middleware
