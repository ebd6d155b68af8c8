// Package cached decora repositorios con un cache read-through.
package cached

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/catalystwells/grantd/internal/cache"
	"github.com/catalystwells/grantd/internal/domain/repository"
	"github.com/catalystwells/grantd/internal/observability/logger"
)

// DefaultAppTTL es el TTL por defecto de una Application cacheada.
const DefaultAppTTL = 30 * time.Second

// Applications cachea FindByClientID. Los not-found nunca se cachean,
// y la ventana de gracia del secret previo la evalúa el caller con su reloj.
type Applications struct {
	next  repository.ApplicationRepository
	cache cache.Client
	ttl   time.Duration

	// sf colapsa misses concurrentes del mismo client_id
	sf singleflight.Group
}

var _ repository.ApplicationRepository = (*Applications)(nil)

// NewApplications envuelve next. ttl <= 0 usa DefaultAppTTL.
func NewApplications(next repository.ApplicationRepository, c cache.Client, ttl time.Duration) *Applications {
	if ttl <= 0 {
		ttl = DefaultAppTTL
	}
	return &Applications{next: next, cache: c, ttl: ttl}
}

func appKey(clientID string) string { return "app:" + clientID }

func (a *Applications) FindByClientID(ctx context.Context, clientID string) (*repository.Application, error) {
	log := logger.From(ctx).With(logger.Component("cached.applications"))

	if raw, err := a.cache.Get(ctx, appKey(clientID)); err == nil {
		var app repository.Application
		if jerr := json.Unmarshal([]byte(raw), &app); jerr == nil {
			return &app, nil
		}
		// entrada corrupta: se descarta y se va a la base
		_ = a.cache.Delete(ctx, appKey(clientID))
	} else if !cache.IsNotFound(err) {
		log.Warn("cache get failed, falling back to store", logger.Err(err))
	}

	v, err, _ := a.sf.Do(clientID, func() (any, error) {
		app, err := a.next.FindByClientID(ctx, clientID)
		if err != nil {
			return nil, err
		}
		if b, jerr := json.Marshal(app); jerr == nil {
			if serr := a.cache.Set(ctx, appKey(clientID), string(b), a.ttl); serr != nil {
				log.Warn("cache set failed", logger.Err(serr))
			}
		}
		return app, nil
	})
	if err != nil {
		return nil, err
	}

	// copia: los callers concurrentes del singleflight comparten el puntero
	app := *v.(*repository.Application)
	return &app, nil
}

// Invalidate borra la entrada cacheada de clientID (tras rotar el secret, por ejemplo).
func (a *Applications) Invalidate(ctx context.Context, clientID string) error {
	return a.cache.Delete(ctx, appKey(clientID))
}
