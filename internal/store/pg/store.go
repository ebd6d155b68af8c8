// Package pg implementa los repositorios OAuth sobre PostgreSQL con pgxpool.
package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/catalystwells/grantd/internal/domain/repository"
)

// Options ajusta el pool. Zero values => defaults.
type Options struct {
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
}

// Store agrupa todos los repositorios sobre un único pool.
type Store struct{ pool *pgxpool.Pool }

var (
	_ repository.ApplicationRepository = (*Store)(nil)
	_ repository.GrantRepository       = (*Store)(nil)
	_ repository.ProfileRepository     = (*Store)(nil)
	_ repository.AnalyticsRepository   = (*Store)(nil)
)

// New abre el pool y verifica la conexión.
func New(ctx context.Context, dsn string, opts Options) (*Store, error) {
	if dsn == "" {
		return nil, repository.ErrNoDatabase
	}
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pg: parse DSN: %w", err)
	}
	pcfg.MaxConns = 10
	if opts.MaxConns > 0 {
		pcfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		pcfg.MinConns = opts.MinConns
	}
	if opts.ConnMaxLifetime > 0 {
		pcfg.MaxConnLifetime = opts.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("pg: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg: ping failed: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Pool expone el pool interno (migraciones, metrics).
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Ping is used by /readyz.
func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Close cierra el pool (idempotente).
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}
