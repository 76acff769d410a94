// Package httpmiddleware provides the HTTP middleware chain for the API
// server: panic recovery, request identification, CORS, rate limiting,
// request logging and OpenTelemetry instrumentation.
package httpmiddleware

import "net/http"

// Middleware decorates an http.Handler.
type Middleware func(http.Handler) http.Handler

// Wrap applies the middlewares to h so that the first middleware in the
// list is the outermost one.
func Wrap(h http.Handler, mw ...Middleware) http.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}
