package routetable

import (
	"errors"
	"strings"
)

// ErrWildcardPosition is returned when a template places the wildcard
// segment "*" anywhere but the final position. Only a trailing wildcard has
// defined matching semantics.
var ErrWildcardPosition = errors.New("routetable: wildcard must be the final template segment")

type segmentKind int

const (
	segLiteral segmentKind = iota
	segParam
)

// templateSegment is one fixed-position segment of a compiled template:
// either literal text that must match exactly, or a named parameter that
// matches any single non-empty segment.
type templateSegment struct {
	kind  segmentKind
	value string
}

// patternMatcher tests whether a concrete normalized path satisfies a
// dynamic template, comparing segment by segment. Matching is regex-free:
// template compilation happens once at registration and matching is a single
// pass over the candidate's segments.
type patternMatcher struct {
	template string
	segments []templateSegment
	// wildcard is set when the template's final segment is "*", which
	// consumes one or more trailing candidate segments.
	wildcard bool
	// nparams counts named parameters, sizing the capture map.
	nparams int
}

// compilePattern compiles a normalized dynamic template. Compilation is pure
// and deterministic: the same template always yields a matcher with the same
// acceptance behavior.
func compilePattern(template string) (*patternMatcher, error) {
	segs := splitSegments(template)
	m := &patternMatcher{template: template}
	for i, seg := range segs {
		switch {
		case seg == wildcardSegment:
			if i != len(segs)-1 {
				return nil, ErrWildcardPosition
			}
			m.wildcard = true
		case strings.HasPrefix(seg, paramPrefix):
			m.segments = append(m.segments, templateSegment{kind: segParam, value: seg[len(paramPrefix):]})
			m.nparams++
		default:
			m.segments = append(m.segments, templateSegment{kind: segLiteral, value: seg})
		}
	}
	return m, nil
}

// match reports whether the candidate segments satisfy the template.
// Literal segments must be equal, parameter segments require any non-empty
// content, and segment counts must agree exactly unless the template ends in
// a wildcard, which requires at least one trailing segment beyond the fixed
// ones ("/static/*" matches "/static/a/b" but not "/static").
func (m *patternMatcher) match(candidate []string) bool {
	if m.wildcard {
		if len(candidate) <= len(m.segments) {
			return false
		}
	} else if len(candidate) != len(m.segments) {
		return false
	}
	for i, seg := range m.segments {
		switch seg.kind {
		case segParam:
			if candidate[i] == "" {
				return false
			}
		default:
			if candidate[i] != seg.value {
				return false
			}
		}
	}
	return true
}

// extract returns the parameters captured from a candidate that match has
// already accepted: each ":name" segment under its name, and the joined
// wildcard remainder under "*". Returns nil when the template captures
// nothing.
func (m *patternMatcher) extract(candidate []string) Params {
	if m.nparams == 0 && !m.wildcard {
		return nil
	}
	params := make(Params, m.nparams+1)
	for i, seg := range m.segments {
		if seg.kind == segParam {
			params[seg.value] = candidate[i]
		}
	}
	if m.wildcard {
		params[wildcardSegment] = strings.Join(candidate[len(m.segments):], "/")
	}
	return params
}
