package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/catalystwells/grantd/internal/domain/repository"
)

// ─── Authorization codes ───

func (s *Store) GetAuthorizationCode(ctx context.Context, code string) (*repository.AuthorizationCode, error) {
	q := `
		SELECT c.code, c.user_id, c.application_id, COALESCE(c.scopes, '{}'), c.redirect_uri,
		       c.code_challenge, COALESCE(c.code_challenge_method, 'plain'), c.expires_at, c.used_at,
		       ` + appColumns + `
		  FROM oauth_authorization_codes c
		  JOIN developer_applications a ON a.id = c.application_id
		 WHERE c.code = $1`

	var (
		ac  repository.AuthorizationCode
		app repository.Application
	)
	targets := append([]any{
		&ac.Code, &ac.UserID, &ac.ApplicationID, &ac.Scopes, &ac.RedirectURI,
		&ac.CodeChallenge, &ac.CodeChallengeMethod, &ac.ExpiresAt, &ac.UsedAt,
	}, appScanTargets(&app)...)

	err := s.pool.QueryRow(ctx, q, code).Scan(targets...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pg: get authorization code: %w", err)
	}
	ac.Application = &app
	return &ac, nil
}

func (s *Store) DeleteAuthorizationCode(ctx context.Context, code string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM oauth_authorization_codes WHERE code = $1`, code); err != nil {
		return fmt.Errorf("pg: delete authorization code: %w", err)
	}
	return nil
}

// RedeemAuthorizationCode: UPDATE condicionado + los dos INSERT en una tx.
// El UPDATE toma el lock de la fila del code; un replay concurrente que intente
// canjear o cascadear espera al commit y ve los tokens ya persistidos.
func (s *Store) RedeemAuthorizationCode(ctx context.Context, in repository.RedeemCodeInput) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("pg: begin redeem: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE oauth_authorization_codes
		   SET used_at = $2
		 WHERE code = $1
		   AND used_at IS NULL`, in.Code, in.UsedAt)
	if err != nil {
		return false, fmt.Errorf("pg: claim authorization code: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}

	if _, err := insertRefreshToken(ctx, tx, in.Refresh); err != nil {
		return false, err
	}
	if _, err := insertAccessTokenRecord(ctx, tx, in.Access); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("pg: commit redeem: %w", err)
	}
	return true, nil
}

func (s *Store) RevokeByAuthorizationCode(ctx context.Context, code string) (repository.RevocationResult, error) {
	var res repository.RevocationResult

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("pg: begin cascade: %w", err)
	}
	defer tx.Rollback(ctx)

	// Espera a cualquier redeem/rotación en curso sobre el mismo code
	if err := lockAuthorizationCode(ctx, tx, code); err != nil {
		return res, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE oauth_refresh_tokens SET is_revoked = true
		 WHERE authorization_code = $1 AND is_revoked = false`, code)
	if err != nil {
		return res, fmt.Errorf("pg: cascade refresh tokens: %w", err)
	}
	res.RefreshTokens = tag.RowsAffected()

	tag, err = tx.Exec(ctx, `
		UPDATE oauth_access_tokens SET is_revoked = true
		 WHERE authorization_code = $1 AND is_revoked = false`, code)
	if err != nil {
		return res, fmt.Errorf("pg: cascade access tokens: %w", err)
	}
	res.AccessTokens = tag.RowsAffected()

	if err := tx.Commit(ctx); err != nil {
		return repository.RevocationResult{}, fmt.Errorf("pg: commit cascade: %w", err)
	}
	return res, nil
}

// lockAuthorizationCode toma FOR UPDATE sobre la fila del code. Si ya no existe
// no hay nada que serializar.
func lockAuthorizationCode(ctx context.Context, tx pgx.Tx, code string) error {
	var one int
	err := tx.QueryRow(ctx, `SELECT 1 FROM oauth_authorization_codes WHERE code = $1 FOR UPDATE`, code).Scan(&one)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("pg: lock authorization code: %w", err)
	}
	return nil
}

// ─── Refresh tokens ───

func (s *Store) CreateRefreshToken(ctx context.Context, in repository.CreateRefreshTokenInput) (string, error) {
	return insertRefreshToken(ctx, s.pool, in)
}

func (s *Store) GetActiveRefreshToken(ctx context.Context, tokenHash string) (*repository.RefreshToken, error) {
	q := `
		SELECT r.id, r.token_hash, r.application_id, r.user_id, COALESCE(r.scopes, '{}'),
		       r.authorization_code, r.expires_at, r.is_revoked, r.created_at,
		       ` + appColumns + `
		  FROM oauth_refresh_tokens r
		  JOIN developer_applications a ON a.id = r.application_id
		 WHERE r.token_hash = $1
		   AND r.is_revoked = false`

	var (
		rt  repository.RefreshToken
		app repository.Application
	)
	targets := append([]any{
		&rt.ID, &rt.TokenHash, &rt.ApplicationID, &rt.UserID, &rt.Scopes,
		&rt.AuthorizationCode, &rt.ExpiresAt, &rt.IsRevoked, &rt.CreatedAt,
	}, appScanTargets(&app)...)

	err := s.pool.QueryRow(ctx, q, tokenHash).Scan(targets...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pg: get refresh token: %w", err)
	}
	rt.Application = &app
	return &rt, nil
}

func (s *Store) RevokeRefreshToken(ctx context.Context, tokenHash string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE oauth_refresh_tokens SET is_revoked = true
		 WHERE token_hash = $1 AND is_revoked = false`, tokenHash)
	if err != nil {
		return false, fmt.Errorf("pg: revoke refresh token: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// RotateRefreshToken: revocación condicionada + INSERT en una tx. Si el token
// desciende de un code, primero se toma el lock del code para no intercalarse
// con una cascada.
func (s *Store) RotateRefreshToken(ctx context.Context, oldHash string, next repository.CreateRefreshTokenInput) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("pg: begin rotate: %w", err)
	}
	defer tx.Rollback(ctx)

	if next.AuthorizationCode != nil {
		if err := lockAuthorizationCode(ctx, tx, *next.AuthorizationCode); err != nil {
			return false, err
		}
	}

	tag, err := tx.Exec(ctx, `
		UPDATE oauth_refresh_tokens SET is_revoked = true
		 WHERE token_hash = $1 AND is_revoked = false`, oldHash)
	if err != nil {
		return false, fmt.Errorf("pg: revoke rotated refresh token: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}

	if _, err := insertRefreshToken(ctx, tx, next); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("pg: commit rotate: %w", err)
	}
	return true, nil
}

// ─── Access token audit ───

func (s *Store) CreateAccessTokenRecord(ctx context.Context, in repository.CreateAccessTokenRecordInput) (string, error) {
	return insertAccessTokenRecord(ctx, s.pool, in)
}

// querier lo cumplen *pgxpool.Pool y pgx.Tx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertRefreshToken(ctx context.Context, q querier, in repository.CreateRefreshTokenInput) (string, error) {
	var id string
	err := q.QueryRow(ctx, `
		INSERT INTO oauth_refresh_tokens
		    (token_hash, application_id, user_id, scopes, authorization_code, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		in.TokenHash, in.ApplicationID, in.UserID, in.Scopes, in.AuthorizationCode, in.ExpiresAt,
	).Scan(&id)
	if isUniqueViolation(err) {
		return "", repository.ErrConflict
	}
	if err != nil {
		return "", fmt.Errorf("pg: insert refresh token: %w", err)
	}
	return id, nil
}

func insertAccessTokenRecord(ctx context.Context, q querier, in repository.CreateAccessTokenRecordInput) (string, error) {
	var id string
	err := q.QueryRow(ctx, `
		INSERT INTO oauth_access_tokens
		    (token_hash, application_id, user_id, scopes, authorization_code, expires_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6)
		RETURNING id`,
		in.TokenHash, in.ApplicationID, in.UserID, in.Scopes, in.AuthorizationCode, in.ExpiresAt,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("pg: insert access token record: %w", err)
	}
	return id, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
