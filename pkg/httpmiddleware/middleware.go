// Package httpmiddleware provides net/http middleware shared by the API
// server: panic recovery, request ids, logging, tracing, CORS and rate
// limiting.
package httpmiddleware

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Wrap applies middlewares to h so that the first one listed runs first.
func Wrap(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// writeProblem responds with an RFC 9457 problem whose type is about:blank
// and whose title is the status text.
func writeProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ObjStart()
	e.FieldStart("type")
	e.Str("about:blank")
	e.FieldStart("title")
	e.Str(http.StatusText(status))
	e.FieldStart("status")
	e.Int(status)
	e.FieldStart("detail")
	e.Str(detail)
	e.FieldStart("instance")
	e.Str(r.URL.Path)
	e.FieldStart("timestamp")
	e.Str(time.Now().UTC().Format(time.RFC3339Nano))
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
