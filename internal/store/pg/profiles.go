package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/catalystwells/grantd/internal/domain/repository"
)

func (s *Store) GetUserProfile(ctx context.Context, userID string) (*repository.UserProfile, error) {
	var p repository.UserProfile
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, COALESCE(email, ''), COALESCE(full_name, ''), COALESCE(avatar_url, '')
		  FROM profiles
		 WHERE user_id = $1`, userID,
	).Scan(&p.UserID, &p.Email, &p.FullName, &p.AvatarURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pg: get profile: %w", err)
	}
	return &p, nil
}

func (s *Store) IncrementTokenExchanges(ctx context.Context, appID string) error {
	_, err := s.pool.Exec(ctx, `UPDATE developer_applications SET token_exchanges = token_exchanges + 1 WHERE id = $1`, appID)
	return err
}

func (s *Store) IncrementTokenRefreshes(ctx context.Context, appID string) error {
	_, err := s.pool.Exec(ctx, `UPDATE developer_applications SET token_refreshes = token_refreshes + 1 WHERE id = $1`, appID)
	return err
}
