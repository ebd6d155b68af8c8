package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Grant-related Prometheus metrics. These live in a standalone package so that
// analytics, services and the HTTP layer can share them without import cycles.

var (
	GrantEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grantd_grant_events_total",
		Help: "Grants emitidos con éxito por tipo (exchange|refresh|client_credentials)",
	}, []string{"kind"})

	GrantErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grantd_grant_errors_total",
		Help: "Errores OAuth devueltos por grant_type y error",
	}, []string{"grant_type", "error"})

	CodeReplaysTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "grantd_code_replays_total",
		Help: "Authorization codes presentados más de una vez",
	})

	CascadeRevokedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grantd_cascade_revoked_total",
		Help: "Filas revocadas por cascada tras replay de code",
	}, []string{"table"}) // refresh|access

	AnalyticsDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "grantd_analytics_dropped_total",
		Help: "Eventos de analytics descartados por buffer lleno o sink cerrado",
	})

	RateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "grantd_rate_limited_total",
		Help: "Requests rechazadas con 429",
	})
)

// RegisterGrants registers the grant metrics on the given registry (or default if nil).
func RegisterGrants(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		GrantEventsTotal, GrantErrorsTotal, CodeReplaysTotal,
		CascadeRevokedTotal, AnalyticsDroppedTotal, RateLimitedTotal,
	} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
