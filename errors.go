package httpd

import "errors"

// ErrAlreadyStarted is returned by every registration call — routes,
// middleware, hooks, static mounts — once Start has been invoked. The route
// table is frozen at start; a late registration is a programming error
// surfaced immediately rather than raced into a structure concurrent
// readers are scanning.
var ErrAlreadyStarted = errors.New("httpd: server already started")

// ErrDuplicateStart is returned when Start is invoked a second time. A
// server starts exactly once and is discarded together with its route table.
var ErrDuplicateStart = errors.New("httpd: duplicate server start")

// ErrNilHandler is returned when a route, miss handler or manifest entry is
// registered with a nil handler.
var ErrNilHandler = errors.New("httpd: nil handler")

// ErrUnknownHandler is returned by FromManifest when a manifest route names
// a handler absent from the handler map.
var ErrUnknownHandler = errors.New("httpd: unknown manifest handler")

// ErrEmptyBody is returned by BindJSON when the request carries no body at
// all — a nil or http.NoBody Body, or a body holding no JSON value.
var ErrEmptyBody = errors.New("httpd: empty request body")

// ErrTrailingData is returned by BindJSON when the body holds anything
// beyond its first JSON value.
var ErrTrailingData = errors.New("httpd: trailing data after JSON value")
