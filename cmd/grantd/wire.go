package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/catalystwells/grantd/internal/analytics"
	"github.com/catalystwells/grantd/internal/cache"
	"github.com/catalystwells/grantd/internal/config"
	"github.com/catalystwells/grantd/internal/domain/repository"
	httpx "github.com/catalystwells/grantd/internal/http"
	"github.com/catalystwells/grantd/internal/http/controllers/health"
	ctrl "github.com/catalystwells/grantd/internal/http/controllers/oauth"
	mw "github.com/catalystwells/grantd/internal/http/middlewares"
	"github.com/catalystwells/grantd/internal/http/router"
	svc "github.com/catalystwells/grantd/internal/http/services/oauth"
	jwtx "github.com/catalystwells/grantd/internal/jwt"
	"github.com/catalystwells/grantd/internal/observability/logger"
	"github.com/catalystwells/grantd/internal/rate"
	tokens "github.com/catalystwells/grantd/internal/security/token"
	"github.com/catalystwells/grantd/internal/store/cached"
	"github.com/catalystwells/grantd/internal/store/memory"
	"github.com/catalystwells/grantd/internal/store/pg"
)

// grantStore es lo que tienen en común pg.Store y memory.Store.
type grantStore interface {
	repository.ApplicationRepository
	repository.GrantRepository
	repository.ProfileRepository
	repository.AnalyticsRepository
	Ping(ctx context.Context) error
}

type deps struct {
	handler http.Handler
	issuer  *jwtx.Issuer
	sink    *analytics.AsyncSink
	closers []func()
}

// close libera en orden inverso al de creación.
func (d *deps) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}

func buildDeps(ctx context.Context, cfg *config.Config) (_ *deps, err error) {
	log := logger.Named("wire")
	d := &deps{}
	defer func() {
		if err != nil {
			d.close()
		}
	}()

	proxies, err := mw.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("server.trusted_proxies: %w", err)
	}

	// ─── Store ───
	var (
		st   grantStore
		pool func() *pgxpool.Pool
	)
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		pgs, err := openPostgres(ctx, cfg)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, pgs.Close)
		st, pool = pgs, pgs.Pool
	case config.DriverMemory:
		ms := memory.New()
		if cfg.Storage.SeedFile != "" {
			if err := ms.LoadSeedFile(cfg.Storage.SeedFile); err != nil {
				return nil, err
			}
			log.Info("memory store seeded", logger.String("file", cfg.Storage.SeedFile))
		}
		log.Warn("using in-memory store: grants do not survive a restart")
		st = ms
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	// ─── Cache (+ Redis compartido con el rate limiter) ───
	var (
		cc  cache.Client
		rdb *redis.Client
	)
	switch cfg.Cache.Kind {
	case config.CacheRedis:
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		cc = cache.NewRedisFromClient(rdb, cfg.Cache.Redis.Prefix)
	default:
		cc = cache.NewMemory(cfg.Cache.Redis.Prefix)
	}
	d.closers = append(d.closers, func() { _ = cc.Close() })

	apps := cached.NewApplications(st, cc, cfg.Cache.AppTTL)

	// ─── Issuer ───
	iss, err := buildIssuer(cfg)
	if err != nil {
		return nil, err
	}
	d.issuer = iss

	// ─── Analytics ───
	d.sink = analytics.NewAsyncSink(
		analytics.Multi{analytics.StoreBackend{Repo: st}, analytics.PrometheusBackend{}},
		analytics.AsyncOptions{
			BufferSize:     cfg.Analytics.Buffer,
			DeliverTimeout: cfg.Analytics.DeliverTimeout,
		},
	)

	services := svc.NewServices(svc.Deps{
		Apps:                apps,
		Grants:              st,
		Profiles:            st,
		Issuer:              iss,
		Analytics:           d.sink,
		AccessTTL:           cfg.OAuth.AccessTTL,
		RefreshTTL:          cfg.OAuth.RefreshTTL,
		RotateRefreshTokens: cfg.OAuth.RotateRefreshTokens,
	})

	// ─── Rate limit ───
	var limiter rate.Limiter
	if cfg.Rate.Enabled {
		if rdb != nil {
			limiter = rate.NewRedisLimiter(rdb, cfg.Cache.Redis.Prefix+":rl:", cfg.Rate.TokenLimit, cfg.Rate.TokenWindow)
		} else {
			limiter = rate.NewMemoryLimiter(cfg.Rate.TokenLimit, cfg.Rate.TokenWindow)
		}
	}

	metricsHandler, err := httpx.RegisterMetrics(httpx.MetricsConfig{Pool: pool})
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	d.handler = router.New(router.Deps{
		OAuth: ctrl.NewControllers(services, iss),
		Health: health.NewHealthController(map[string]health.Pinger{
			"store": st,
			"cache": cc,
		}),
		Metrics:        metricsHandler,
		RateLimiter:    limiter,
		RequestTimeout: cfg.Server.RequestTimeout,
		TrustedProxies: proxies,
	})
	return d, nil
}

func openPostgres(ctx context.Context, cfg *config.Config) (*pg.Store, error) {
	return pg.New(ctx, cfg.Storage.DSN, pg.Options{
		MaxConns:        cfg.Storage.Postgres.MaxConns,
		MinConns:        cfg.Storage.Postgres.MinConns,
		ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
	})
}

// buildIssuer elige HS256 o EdDSA. Sin secreto/seed (solo fuera de prod,
// Validate lo impide en prod) se genera una clave efímera.
func buildIssuer(cfg *config.Config) (*jwtx.Issuer, error) {
	log := logger.Named("wire")

	switch cfg.JWT.Alg {
	case config.AlgEdDSA:
		var (
			ks  *jwtx.KeySet
			err error
		)
		if cfg.JWT.Ed25519Seed != "" {
			ks, err = jwtx.NewEd25519FromSeed(cfg.JWT.KID, cfg.JWT.Ed25519Seed)
		} else {
			log.Warn("JWT_ED25519_SEED not set, generating ephemeral signing key")
			ks, err = jwtx.NewDevEd25519(cfg.JWT.KID)
		}
		if err != nil {
			return nil, err
		}
		return jwtx.NewEdDSAIssuer(cfg.JWT.Issuer, ks)

	case config.AlgHS256:
		secret := cfg.JWT.Secret
		if secret == "" {
			log.Warn("JWT_SECRET not set, generating ephemeral signing secret")
			s, err := tokens.GenerateOpaqueToken("", 32)
			if err != nil {
				return nil, err
			}
			secret = s
		}
		return jwtx.NewHS256Issuer(cfg.JWT.Issuer, []byte(secret))

	default:
		return nil, fmt.Errorf("%w: %s", jwtx.ErrUnsupportedAlg, cfg.JWT.Alg)
	}
}
