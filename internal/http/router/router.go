// Package router arma el árbol de rutas chi del servicio.
package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	httpx "github.com/catalystwells/grantd/internal/http"
	"github.com/catalystwells/grantd/internal/http/controllers/health"
	ctrl "github.com/catalystwells/grantd/internal/http/controllers/oauth"
	mw "github.com/catalystwells/grantd/internal/http/middlewares"
	"github.com/catalystwells/grantd/internal/rate"
)

// Deps contiene lo que necesita el router.
type Deps struct {
	OAuth  *ctrl.Controllers
	Health *health.HealthController

	// Metrics es el handler de /metrics. nil => la ruta no se registra.
	Metrics http.Handler

	// RateLimiter es opcional: por IP sobre el token endpoint.
	RateLimiter rate.Limiter

	// TrustedProxies habilita X-Forwarded-For desde esos peers. nil => solo RemoteAddr.
	TrustedProxies *mw.TrustedProxies

	RequestTimeout time.Duration
}

// New devuelve el handler raíz.
func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(
		mw.WithClientIP(d.TrustedProxies),
		mw.WithRequestID(),
		mw.WithLogging(),
		mw.WithRecover(),
		httpx.WithMetrics,
	)

	r.Get("/healthz", d.Health.Live)
	r.Get("/readyz", d.Health.Ready)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}
	r.Get("/.well-known/jwks.json", d.OAuth.JWKS.JWKS)

	tokenMW := []mw.Middleware{mw.WithTimeout(d.RequestTimeout)}
	if d.RateLimiter != nil {
		tokenMW = append(tokenMW, mw.WithRateLimit(mw.RateLimitConfig{
			Limiter: d.RateLimiter,
			KeyFunc: mw.IPOnlyRateKey,
		}))
	}

	// Un solo handler para los dos alias: comparten cupo. Todos los métodos llegan
	// al controller, que responde 405 a lo que no sea POST.
	token := mw.Chain(http.HandlerFunc(d.OAuth.Token.Token), tokenMW...)
	r.Handle("/oauth/token", token)
	r.Handle("/api/oauth/token", token)

	return r
}
