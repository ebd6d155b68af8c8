// Package analytics registra contadores best-effort por grant emitido.
// Nada de lo que pase acá puede hacer fallar un grant: Record nunca bloquea
// y los errores del backend se loguean y se descartan.
package analytics

import (
	"context"

	"github.com/catalystwells/grantd/internal/domain/repository"
	"github.com/catalystwells/grantd/internal/metrics"
)

// Kind identifica el tipo de evento.
type Kind string

const (
	KindExchange          Kind = "exchange"
	KindRefresh           Kind = "refresh"
	KindClientCredentials Kind = "client_credentials"
)

// Event es un grant exitoso de una aplicación.
type Event struct {
	AppID string
	Kind  Kind
}

// Sink recibe eventos. Record no bloquea ni devuelve error.
type Sink interface {
	Record(Event)
}

// Nop descarta todo.
type Nop struct{}

func (Nop) Record(Event) {}

// Backend procesa un evento de forma síncrona (lo llama el worker del AsyncSink).
type Backend interface {
	Handle(ctx context.Context, e Event) error
}

// BackendFunc adapta una función a Backend.
type BackendFunc func(ctx context.Context, e Event) error

func (f BackendFunc) Handle(ctx context.Context, e Event) error { return f(ctx, e) }

// StoreBackend incrementa los contadores por aplicación en el store.
// client_credentials no tiene columna propia y se ignora.
type StoreBackend struct {
	Repo repository.AnalyticsRepository
}

func (b StoreBackend) Handle(ctx context.Context, e Event) error {
	switch e.Kind {
	case KindExchange:
		return b.Repo.IncrementTokenExchanges(ctx, e.AppID)
	case KindRefresh:
		return b.Repo.IncrementTokenRefreshes(ctx, e.AppID)
	}
	return nil
}

// PrometheusBackend suma grantd_grant_events_total{kind}.
type PrometheusBackend struct{}

func (PrometheusBackend) Handle(_ context.Context, e Event) error {
	metrics.GrantEventsTotal.WithLabelValues(string(e.Kind)).Inc()
	return nil
}

// Multi reparte el evento a todos los backends; devuelve el primer error
// pero siempre intenta con todos.
type Multi []Backend

func (m Multi) Handle(ctx context.Context, e Event) error {
	var first error
	for _, b := range m {
		if err := b.Handle(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}
