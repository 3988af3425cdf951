package routetable

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
)

// ErrFrozen is returned by Register once Freeze has been called. A frozen
// table is immutable for the rest of its life; registration after server
// start is a programming error surfaced immediately, never ignored.
var ErrFrozen = errors.New("routetable: table is frozen")

// ErrNoMethods is returned when a declaration carries an empty method set.
var ErrNoMethods = errors.New("routetable: route declares no methods")

// Params holds the path parameters extracted from a dynamic route match,
// keyed by parameter name. A trailing wildcard's remainder is stored under
// "*".
type Params map[string]string

// Outcome tags a Resolution.
type Outcome int

const (
	// OutcomeNotFound means no registered route matches the path under any
	// method: 404 Not Found per RFC 9110 Section 15.5.5.
	OutcomeNotFound Outcome = iota

	// OutcomeMethodNotAllowed means the path is registered, but under other
	// methods: 405 Method Not Allowed per RFC 9110 Section 15.5.6.
	OutcomeMethodNotAllowed
)

// String implements fmt.Stringer.
func (o Outcome) String() string {
	if o == OutcomeMethodNotAllowed {
		return "method not allowed"
	}
	return "not found"
}

// Resolution classifies a dispatcher miss. Both outcomes are ordinary
// values, never errors: they are results the dispatcher renders, not
// failures to propagate.
type Resolution struct {
	Outcome Outcome

	// Allowed lists the methods registered for the matched path, in
	// registration order. Set only for OutcomeMethodNotAllowed; it feeds
	// the Allow header required on 405 responses by RFC 9110
	// Section 10.2.1.
	Allowed []string
}

// Declaration is the read-only record of one registered route, in the form
// the host application declared it (after normalization).
type Declaration struct {
	// Template is the normalized path template.
	Template string

	// Methods holds the declaration's upper-cased method tokens, first
	// occurrence order, duplicates removed.
	Methods []string

	// Kind records the static/dynamic classification decided at
	// registration time.
	Kind Kind
}

// staticEntry accumulates every declaration sharing one static path: the
// ordered method set drives the Allow header, the per-method handlers drive
// dispatch.
type staticEntry struct {
	methods  []string
	handlers map[string]http.Handler
}

// dynamicEntry is one dynamic declaration: a compiled matcher plus the
// declaration's methods and handler. Identical templates registered twice
// stay separate entries; the first matching entry wins, both for dispatch
// tie-breaks and for the Allow set reported on a miss.
type dynamicEntry struct {
	template string
	matcher  *patternMatcher
	methods  []string
	handler  http.Handler
}

// Table is the route registry: mutable while the facility is being
// configured, frozen exactly once at server start, and afterwards a
// read-only structure serving dispatch lookups and miss resolution from any
// number of goroutines without locking.
//
//	t := routetable.New()
//	t.Register("/items", []string{http.MethodGet}, listItems)
//	t.Register("/items/:id", []string{http.MethodGet}, getItem)
//	t.Freeze()
//	res := t.Resolve("/items")
//
// All Register calls must happen on one goroutine before Freeze; Freeze is
// the publication barrier after which Lookup, Resolve, AllowedMethods and
// Routes are safe for concurrent use.
type Table struct {
	// frozen is the one-way Open → Frozen lifecycle flag. Late
	// registration attempts observe it atomically and fail fast instead of
	// racing a mutation into a structure concurrent readers are scanning.
	frozen atomic.Bool

	// exact maps each static path to its accumulated methods and handlers.
	// Miss resolution consults it before any pattern: an exact path is
	// more specific than whatever else might match.
	exact map[string]*staticEntry

	// buckets groups dynamic routes by the literal text of their first
	// template segment, narrowing the scan on a miss. Entries keep
	// registration order, the tie-break for overlapping patterns.
	buckets map[string][]*dynamicEntry

	// shared holds dynamic routes whose first segment is itself a
	// parameter or wildcard and therefore cannot be keyed by literal text.
	// Scanned after the literal bucket.
	shared []*dynamicEntry

	decls []Declaration
}

// New returns an empty, open table.
func New() *Table {
	return &Table{
		exact:   make(map[string]*staticEntry),
		buckets: make(map[string][]*dynamicEntry),
	}
}

// Register records one route declaration: a path template, the methods it
// serves, and the handler dispatched on a hit. The template is normalized
// and classified here; methods are upper-cased and de-duplicated preserving
// first occurrence order.
//
// Registering an existing static path merges the new methods into its entry;
// a method already bound keeps its first handler. Dynamic declarations are
// appended to their first-segment bucket in registration order.
//
// Register fails with ErrFrozen after Freeze, with ErrNoMethods for an empty
// method set, and with ErrWildcardPosition for a non-final "*" segment.
func (t *Table) Register(template string, methods []string, handler http.Handler) error {
	if t.frozen.Load() {
		return fmt.Errorf("register %q: %w", template, ErrFrozen)
	}
	if len(methods) == 0 {
		return fmt.Errorf("register %q: %w", template, ErrNoMethods)
	}

	path := Normalize(template)
	set := make([]string, 0, len(methods))
	for _, m := range methods {
		set = appendMethod(set, strings.ToUpper(m))
	}

	kind := Classify(path)
	if kind == KindStatic {
		t.registerStatic(path, set, handler)
	} else if err := t.registerDynamic(path, set, handler); err != nil {
		return fmt.Errorf("register %q: %w", template, err)
	}

	t.decls = append(t.decls, Declaration{Template: path, Methods: set, Kind: kind})
	return nil
}

func (t *Table) registerStatic(path string, methods []string, handler http.Handler) {
	e, ok := t.exact[path]
	if !ok {
		e = &staticEntry{handlers: make(map[string]http.Handler, len(methods))}
		t.exact[path] = e
	}
	for _, m := range methods {
		e.methods = appendMethod(e.methods, m)
		if _, bound := e.handlers[m]; !bound {
			e.handlers[m] = handler
		}
	}
}

func (t *Table) registerDynamic(path string, methods []string, handler http.Handler) error {
	matcher, err := compilePattern(path)
	if err != nil {
		return err
	}
	entry := &dynamicEntry{template: path, matcher: matcher, methods: methods, handler: handler}

	// A dynamic template has at least one segment (root is static).
	head := splitSegments(path)[0]
	if head == wildcardSegment || strings.HasPrefix(head, paramPrefix) {
		t.shared = append(t.shared, entry)
		return nil
	}
	t.buckets[head] = append(t.buckets[head], entry)
	return nil
}

// Freeze makes the table immutable: the one-way Open → Frozen transition,
// performed exactly once when the owning server starts. After Freeze
// returns, Register fails with ErrFrozen and the read side is safe for
// concurrent use. Policing a second freeze belongs to the server lifecycle,
// not the table.
func (t *Table) Freeze() {
	t.frozen.Store(true)
}

// Frozen reports whether Freeze has been called.
func (t *Table) Frozen() bool {
	return t.frozen.Load()
}

// Lookup returns the handler serving the given method and path, with the
// parameters captured from a dynamic match. The exact index wins when it
// holds the method; otherwise buckets are scanned in registration order,
// literal-head entries before shared-head entries, and the first entry whose
// pattern and method both match is dispatched.
func (t *Table) Lookup(method, rawPath string) (http.Handler, Params, bool) {
	method = strings.ToUpper(method)
	path := Normalize(rawPath)

	if e, ok := t.exact[path]; ok {
		if h, ok := e.handlers[method]; ok {
			return h, nil, true
		}
	}

	segs := splitSegments(path)
	if len(segs) > 0 {
		for _, e := range t.buckets[segs[0]] {
			if containsMethod(e.methods, method) && e.matcher.match(segs) {
				return e.handler, e.matcher.extract(segs), true
			}
		}
	}
	for _, e := range t.shared {
		if containsMethod(e.methods, method) && e.matcher.match(segs) {
			return e.handler, e.matcher.extract(segs), true
		}
	}
	return nil, nil, false
}

// Resolve classifies a dispatcher miss for the given raw path. The exact
// index is consulted first and takes precedence over patterns even when a
// pattern would also match; then the path's first-segment bucket is scanned
// in registration order, then the shared bucket. The first match decides the
// Allow set. Nothing matching anywhere is a plain 404.
//
// Resolution depends only on the path: the registered method set is reported
// as-is, whatever method the caller is rendering a response for.
func (t *Table) Resolve(rawPath string) Resolution {
	if methods := t.allowed(rawPath); methods != nil {
		return Resolution{Outcome: OutcomeMethodNotAllowed, Allowed: methods}
	}
	return Resolution{Outcome: OutcomeNotFound}
}

// AllowedMethods returns the registration-ordered methods registered for the
// first route matching the path, or nil when no route matches. This is the
// table behind both the 405 Allow header and CORS preflight method listing.
func (t *Table) AllowedMethods(rawPath string) []string {
	return t.allowed(rawPath)
}

func (t *Table) allowed(rawPath string) []string {
	path := Normalize(rawPath)

	if e, ok := t.exact[path]; ok {
		return cloneMethods(e.methods)
	}

	segs := splitSegments(path)
	if len(segs) > 0 {
		for _, e := range t.buckets[segs[0]] {
			if e.matcher.match(segs) {
				return cloneMethods(e.methods)
			}
		}
	}
	for _, e := range t.shared {
		if e.matcher.match(segs) {
			return cloneMethods(e.methods)
		}
	}
	return nil
}

// Match returns the normalized template of the first route matching the
// path, or "" and false when nothing matches. It follows the same
// precedence as miss resolution: the exact index, then the path's
// first-segment bucket in registration order, then the shared bucket.
func (t *Table) Match(rawPath string) (string, bool) {
	path := Normalize(rawPath)

	if _, ok := t.exact[path]; ok {
		return path, true
	}

	segs := splitSegments(path)
	if len(segs) > 0 {
		for _, e := range t.buckets[segs[0]] {
			if e.matcher.match(segs) {
				return e.template, true
			}
		}
	}
	for _, e := range t.shared {
		if e.matcher.match(segs) {
			return e.template, true
		}
	}
	return "", false
}

// Routes returns a snapshot of every declaration in registration order.
func (t *Table) Routes() []Declaration {
	out := make([]Declaration, len(t.decls))
	for i, d := range t.decls {
		out[i] = Declaration{Template: d.Template, Methods: cloneMethods(d.Methods), Kind: d.Kind}
	}
	return out
}

// Len returns the number of recorded declarations.
func (t *Table) Len() int {
	return len(t.decls)
}

// appendMethod appends m unless already present, preserving first occurrence
// order.
func appendMethod(set []string, m string) []string {
	for _, existing := range set {
		if existing == m {
			return set
		}
	}
	return append(set, m)
}

func containsMethod(set []string, m string) bool {
	for _, existing := range set {
		if existing == m {
			return true
		}
	}
	return false
}

func cloneMethods(set []string) []string {
	out := make([]string, len(set))
	copy(out, set)
	return out
}
