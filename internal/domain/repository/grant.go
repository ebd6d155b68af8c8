package repository

import (
	"context"
	"time"
)

// AuthorizationCode is the one-time artifact produced by the consent flow.
// UsedAt == nil means the code was never exchanged.
type AuthorizationCode struct {
	Code                string     `yaml:"code"`
	UserID              string     `yaml:"user_id"`
	ApplicationID       string     `yaml:"application_id"`
	Scopes              []string   `yaml:"scopes"`
	RedirectURI         string     `yaml:"redirect_uri"`
	CodeChallenge       *string    `yaml:"code_challenge"`
	CodeChallengeMethod string     `yaml:"code_challenge_method"`
	ExpiresAt           time.Time  `yaml:"expires_at"`
	UsedAt              *time.Time `yaml:"used_at"`

	// Application is joined on read.
	Application *Application `yaml:"-"`
}

// HasChallenge reports whether the code was bound to a PKCE challenge.
func (c *AuthorizationCode) HasChallenge() bool {
	return c.CodeChallenge != nil && *c.CodeChallenge != ""
}

// RefreshToken representa un refresh token persistido (solo el hash).
type RefreshToken struct {
	ID            string
	TokenHash     string
	ApplicationID string
	UserID        string
	Scopes        []string
	// AuthorizationCode es el code que originó la cadena (se hereda al rotar).
	AuthorizationCode *string
	ExpiresAt         time.Time
	IsRevoked         bool
	CreatedAt         time.Time

	// Application is joined on read.
	Application *Application
}

// AccessTokenRecord es la sombra de auditoría de un access token firmado.
// No se consulta para autorizar requests: la firma y el exp del JWT son la única autoridad.
type AccessTokenRecord struct {
	ID                string
	TokenHash         string
	ApplicationID     string
	UserID            string
	Scopes            []string
	AuthorizationCode *string
	ExpiresAt         time.Time
	IsRevoked         bool
	CreatedAt         time.Time
}

// CreateRefreshTokenInput contiene los datos para crear un refresh token.
type CreateRefreshTokenInput struct {
	TokenHash         string
	ApplicationID     string
	UserID            string
	Scopes            []string
	AuthorizationCode *string
	ExpiresAt         time.Time
}

// CreateAccessTokenRecordInput contiene los datos del registro de auditoría.
type CreateAccessTokenRecordInput struct {
	TokenHash         string
	ApplicationID     string
	UserID            string
	Scopes            []string
	AuthorizationCode *string
	ExpiresAt         time.Time
}

// RedeemCodeInput es lo que se persiste al canjear un code: el claim y los dos
// tokens emitidos van juntos o no va nada.
type RedeemCodeInput struct {
	Code    string
	UsedAt  time.Time
	Refresh CreateRefreshTokenInput
	Access  CreateAccessTokenRecordInput
}

// RevocationResult reports how many rows a cascade touched.
type RevocationResult struct {
	RefreshTokens int64
	AccessTokens  int64
}

// GrantRepository persiste codes, refresh tokens y registros de access tokens.
type GrantRepository interface {
	// GetAuthorizationCode trae el code con su Application. ErrNotFound si no existe.
	GetAuthorizationCode(ctx context.Context, code string) (*AuthorizationCode, error)

	// DeleteAuthorizationCode borra el code (expirado). Idempotente.
	DeleteAuthorizationCode(ctx context.Context, code string) error

	// RedeemAuthorizationCode sets used_at only if it is still NULL and stores the
	// issued refresh token and access-token record in the same transaction.
	// Exactly one concurrent caller gets true; everyone else gets false and nothing is stored.
	RedeemAuthorizationCode(ctx context.Context, in RedeemCodeInput) (bool, error)

	// RevokeByAuthorizationCode marks every refresh token and access-token record
	// derived from code as revoked, in a single transaction. It serializes with
	// RedeemAuthorizationCode and RotateRefreshToken on the same code.
	RevokeByAuthorizationCode(ctx context.Context, code string) (RevocationResult, error)

	// CreateRefreshToken retorna el ID creado.
	CreateRefreshToken(ctx context.Context, in CreateRefreshTokenInput) (string, error)

	// GetActiveRefreshToken busca por hash con is_revoked = false, joined con su Application.
	// ErrNotFound si no existe o está revocado.
	GetActiveRefreshToken(ctx context.Context, tokenHash string) (*RefreshToken, error)

	// RevokeRefreshToken marca is_revoked = true si seguía activo.
	// false cuando ya estaba revocado o no existe.
	RevokeRefreshToken(ctx context.Context, tokenHash string) (bool, error)

	// RotateRefreshToken revoca oldHash (solo si seguía activo) y crea next, atómicamente.
	// false cuando otro request ya lo revocó; en ese caso no se crea nada.
	RotateRefreshToken(ctx context.Context, oldHash string, next CreateRefreshTokenInput) (bool, error)

	// CreateAccessTokenRecord retorna el ID creado.
	CreateAccessTokenRecord(ctx context.Context, in CreateAccessTokenRecordInput) (string, error)
}
