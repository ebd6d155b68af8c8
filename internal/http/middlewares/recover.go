package middlewares

import (
	"fmt"
	"net/http"

	"github.com/catalystwells/grantd/internal/observability/logger"
)

// WithRecover captura panics y devuelve un server_error 500 en lugar de crashear.
// El token endpoint tiene su propio recover; este cubre el resto de las rutas.
func WithRecover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.From(r.Context()).Error("panic recovered",
						logger.Op("recover"),
						logger.Any("panic", rec),
					)
					writeError(w, http.StatusInternalServerError, "server_error", fmt.Sprint(rec))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
