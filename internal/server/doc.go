// Package server provides HTTP routing, middleware and a gracefully stopping server for the report.
//
// The [Router] interface defines routing with middleware support. [ChiRouter] implements it over
// go-chi; [DefaultMiddleware] installs chi's RequestID, RealIP and Recoverer around a
// charmbracelet request logger.
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and
// adds routes, so a handler can register several path patterns at once.
//
// [Server] wraps [http.Server]: it serves until its context is cancelled, then shuts down with a
// short timeout.
package server
