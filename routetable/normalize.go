package routetable

import "strings"

// Template markers. A segment beginning with ":" captures exactly one path
// segment; a segment that is exactly "*" captures one or more trailing
// segments and may only appear in the final position.
const (
	paramPrefix     = ":"
	wildcardSegment = "*"
)

// Normalize returns the canonical form of a raw request path or route
// template: everything from the first "?" is dropped, all trailing slashes
// are removed, and the result always begins with "/". The empty string
// normalizes to "/".
//
// Normalize is total and idempotent over any input. Unlike path.Clean it
// performs no dot-segment removal, and it never percent-decodes or case
// folds: paths are matched exactly as registered (RFC 3986 Section 3.3
// treats segments as opaque; case and encoding equivalence are deliberately
// not applied here).
func Normalize(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[:i]
	}
	raw = strings.TrimRight(raw, "/")
	if raw == "" {
		return "/"
	}
	if raw[0] != '/' {
		raw = "/" + raw
	}
	return raw
}

// splitSegments splits a normalized path into its "/"-separated segments
// after the leading slash. Interior empty segments are preserved, so "/a//b"
// and "/a/b" stay distinct. The root path has no segments.
func splitSegments(path string) []string {
	if path == "" || path == "/" {
		return nil
	}
	return strings.Split(strings.TrimPrefix(path, "/"), "/")
}

// Kind partitions route templates by how they match: a static template
// matches a single exact path, a dynamic template carries parameter or
// wildcard segments and matches a family of paths.
type Kind int

const (
	KindStatic Kind = iota
	KindDynamic
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	if k == KindDynamic {
		return "dynamic"
	}
	return "static"
}

// Classify reports whether a normalized template is static or dynamic. A
// template is dynamic if any segment begins with the parameter marker ":"
// or is exactly the wildcard segment "*"; everything else is static text.
func Classify(path string) Kind {
	for _, seg := range splitSegments(path) {
		if seg == wildcardSegment || strings.HasPrefix(seg, paramPrefix) {
			return KindDynamic
		}
	}
	return KindStatic
}
