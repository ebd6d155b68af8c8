package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/catalystwells/grantd/internal/domain/repository"
)

const appColumns = `a.id, a.client_id, COALESCE(a.client_secret_hash, ''), a.previous_client_secret_hash,
	a.previous_secret_expires_at, COALESCE(a.allowed_scopes, '{}'), a.status`

func appScanTargets(a *repository.Application) []any {
	return []any{
		&a.ID, &a.ClientID, &a.ClientSecretHash, &a.PreviousClientSecretHash,
		&a.PreviousSecretExpiresAt, &a.AllowedScopes, &a.Status,
	}
}

func (s *Store) FindByClientID(ctx context.Context, clientID string) (*repository.Application, error) {
	q := `SELECT ` + appColumns + ` FROM developer_applications a WHERE a.client_id = $1`
	var app repository.Application
	err := s.pool.QueryRow(ctx, q, clientID).Scan(appScanTargets(&app)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pg: find application: %w", err)
	}
	return &app, nil
}
