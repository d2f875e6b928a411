// Package middle contains middleware for the inspection service.
package middle

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/dekarrin/llmctl/server/auth"
	"github.com/dekarrin/llmctl/server/result"
)

type mwFunc http.HandlerFunc

func (sf mwFunc) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	sf(w, req)
}

// Middleware is a function that takes a handler and returns a new handler
// which wraps the given one and provides some additional functionality.
type Middleware func(next http.Handler) http.Handler

// AuthKey is a key in the context of a request populated by RequireAuth.
type AuthKey int64

const AuthLoggedIn AuthKey = iota

// RequireAuth returns middleware that rejects any request without a valid
// operator bearer token, checked against the single-operator auth.Operator
// rather than a user repository:
// there is exactly one account, so there is no OptionalAuth variant and no
// AuthUser context key to populate.
func RequireAuth(op *auth.Operator, unauthedDelay time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		return mwFunc(func(w http.ResponseWriter, req *http.Request) {
			tok, err := getBearerToken(req)
			if err == nil {
				err = op.Validate(tok)
			}
			if err != nil {
				r := result.Unauthorized("", err.Error())
				time.Sleep(unauthedDelay)
				r.WriteResponse(w)
				r.Log(req)
				return
			}

			ctx := context.WithValue(req.Context(), AuthLoggedIn, true)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	}
}

func getBearerToken(req *http.Request) (string, error) {
	h := req.Header.Get("Authorization")
	if h == "" {
		return "", fmt.Errorf("no Authorization header present")
	}
	const prefix = "Bearer "
	if len(h) <= len(prefix) || h[:len(prefix)] != prefix {
		return "", fmt.Errorf("Authorization header is not a Bearer token")
	}
	return h[len(prefix):], nil
}

// DontPanic returns a Middleware that performs a panic check as it exits. If
// the function is panicking, it will write out an HTTP response with a
// generic message to the client and add it to the log.
func DontPanic() Middleware {
	return func(next http.Handler) http.Handler {
		return mwFunc(func(w http.ResponseWriter, r *http.Request) {
			defer panicTo500(w, r)
			next.ServeHTTP(w, r)
		})
	}
}

func panicTo500(w http.ResponseWriter, req *http.Request) (panicVal interface{}) {
	if panicErr := recover(); panicErr != nil {
		r := result.TextErr(
			http.StatusInternalServerError,
			"An internal server error occurred",
			fmt.Sprintf("panic: %v\nSTACK TRACE: %s", panicErr, string(debug.Stack())),
		)
		r.WriteResponse(w)
		r.Log(req)
		return true
	}
	return false
}
