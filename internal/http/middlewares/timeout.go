package middlewares

import (
	"context"
	"net/http"
	"time"
)

// WithTimeout fija el deadline del request. Storage y firma lo heredan via ctx;
// al vencer, el error sube como server_error desde el controller.
func WithTimeout(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
