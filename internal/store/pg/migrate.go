package pg

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/catalystwells/grantd/internal/observability/logger"
)

func migrationLockID() int64 {
	h := sha256.Sum256([]byte("grantd_migration"))
	return int64(binary.BigEndian.Uint64(h[:8]))
}

// Migrate aplica los *_up.sql de fsys (orden lexicográfico) bajo pg_advisory_lock.
// Los scripts ya registrados en schema_migrations se saltean. Devuelve cuántos aplicó.
func (s *Store) Migrate(ctx context.Context, fsys fs.FS, dir string) (int, error) {
	log := logger.From(ctx).With(logger.Component("migrate"))

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("pg: acquire conn: %w", err)
	}
	defer conn.Release()

	lockCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if _, err := conn.Exec(lockCtx, `SELECT pg_advisory_lock($1)`, migrationLockID()); err != nil {
		return 0, fmt.Errorf("pg: migration lock: %w", err)
	}
	defer func() {
		if _, err := conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, migrationLockID()); err != nil {
			log.Warn("failed to release migration lock", logger.Err(err))
		}
	}()

	if _, err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
		    name       TEXT PRIMARY KEY,
		    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		return 0, fmt.Errorf("pg: create schema_migrations: %w", err)
	}

	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return 0, err
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(strings.ToLower(e.Name()), "_up.sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	applied := 0
	for _, name := range files {
		var done bool
		if err := conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE name = $1)`, name).Scan(&done); err != nil {
			return applied, fmt.Errorf("pg: check %s: %w", name, err)
		}
		if done {
			continue
		}
		b, err := fs.ReadFile(fsys, dir+"/"+name)
		if err != nil {
			return applied, err
		}
		if _, err := conn.Exec(ctx, string(b)); err != nil {
			return applied, fmt.Errorf("exec %s: %w", name, err)
		}
		if _, err := conn.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name); err != nil {
			return applied, fmt.Errorf("pg: record %s: %w", name, err)
		}
		log.Info("migration applied", logger.String("file", name))
		applied++
	}
	return applied, nil
}
