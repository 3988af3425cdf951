// Package routetable implements the route registry and miss-resolution
// engine behind the httpd server facility.
//
// A Table accumulates route declarations while the facility is being
// configured, is frozen exactly once when the server starts, and afterwards
// answers two questions from any number of goroutines without locking:
//
//   - Lookup: which handler serves this method and path?
//   - Resolve: for a request no handler serves, is the correct response
//     404 Not Found (RFC 9110 Section 15.5.5) or 405 Method Not Allowed
//     (RFC 9110 Section 15.5.6) — and with which Allow set?
//
// # Templates
//
// Route templates are plain paths with two markers:
//
//	/users           static, matches exactly "/users"
//	/users/:id       ":id" matches any one non-empty segment
//	/static/*        a final "*" matches one or more trailing segments
//
// Templates and request paths are both normalized before use: the query
// component is stripped, trailing slashes are removed, and the empty path
// becomes "/". Nothing else is rewritten — no percent-decoding, no case
// folding, no dot-segment cleaning — so "/a//b" and "/A/b" are distinct
// paths that match exactly as registered.
//
// # Classification
//
// Every declaration is classified once, at registration time. Static paths
// go into an exact index mapping path → accumulated method set, so
// re-registering "/items" for POST after GET widens one entry rather than
// adding a second route. Dynamic templates are compiled into segment-wise
// matchers and appended to a bucket keyed by their first literal segment;
// templates whose first segment is itself a parameter or wildcard share a
// single fallback bucket.
//
// # Miss resolution
//
// On a dispatcher miss, Resolve checks the exact index first — an exact path
// takes precedence over any pattern that would also match — then scans the
// path's first-segment bucket in registration order, then the shared bucket.
// A match means the path exists under other methods: 405, with the entry's
// methods as the Allow set. No match anywhere is a 404. Bucketing by head
// segment keeps the scan proportional to the routes sharing a top-level
// prefix rather than to every dynamic route in the table; the worst case
// (every dynamic route under one prefix) degrades to a linear scan on the
// miss path only.
//
// # Freezing
//
// Freeze is the one-way Open → Frozen transition. All registration happens
// on one goroutine before it; the flag is atomic, so a late Register call
// reliably observes the frozen state and fails with ErrFrozen instead of
// mutating a structure concurrent readers are scanning. After Freeze the
// table performs no writes at all.
//
// # Known limitation
//
// When two dynamic templates with overlapping shapes both match a path
// (for example "/a/:x" and "/a/:y"), the first-registered one wins — both
// for dispatch and for the Allow set reported on a miss. Identical
// templates registered separately behave the same way. Registration order
// is the only disambiguation rule.
package routetable
