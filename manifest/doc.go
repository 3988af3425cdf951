// Package manifest parses declarative YAML server manifests: the listener
// configuration plus the routes, each naming the handler that serves it.
//
// A manifest looks like:
//
//	server:
//	  addr: ":8080"
//	  readTimeout: "30s"
//	  writeTimeout: "30s"
//	  h2c: true
//	routes:
//	  - path: /users
//	    methods: [GET, POST]
//	    handler: users.list
//	  - path: /users/:id
//	    methods: [GET]
//	    handler: users.get
//	  - path: /static/*
//	    methods: [GET, HEAD]
//	    handler: static
//
// # Environment Variables
//
// Values may reference environment variables with ${VAR} or, with a
// fallback, ${VAR:-default}; "$$" escapes a literal dollar sign:
//
//	server:
//	  addr: "${LISTEN_ADDR:-:8080}"
//	  tls:
//	    certFile: "${TLS_CERT}"
//	    keyFile: "${TLS_KEY}"
//
// # Strict Decoding
//
// Decoding is strict: a key that is not part of the manifest schema fails
// Parse, so typos surface at load time rather than being silently ignored.
//
// # Durations
//
// Duration fields take Go duration strings such as "300ms", "30s" or
// "1h30m".
package manifest
