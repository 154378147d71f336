// Package requesttime pins one "now" per request so audit entries, order
// history and timestamps written during the request agree.
package requesttime

import (
	"net/http"
	"time"

	"storefront/pkg/requestcontext"
)

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
