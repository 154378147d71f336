package testutil

import (
	"net/http"

	id "storefront/pkg/domain"
	"storefront/pkg/requestcontext"
)

// WithActor adds an authenticated actor to the request context, the same
// way RequireAuth does after validating a token.
func WithActor(req *http.Request, userID id.UserID, role id.Role) *http.Request {
	return req.WithContext(requestcontext.WithActor(req.Context(), userID, role))
}

// ActorMiddleware stands in for RequireAuth in handler tests. actor is read
// on every request so a suite can switch roles between subtests.
func ActorMiddleware(actor func() (id.UserID, id.Role)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, role := actor()
			next.ServeHTTP(w, WithActor(r, userID, role))
		})
	}
}
