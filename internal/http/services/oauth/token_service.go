// Package oauth contiene los services del token endpoint OAuth2.
package oauth

import (
	"context"
	"errors"
)

// TokenService handles OAuth2 token endpoint logic.
type TokenService interface {
	// ExchangeAuthorizationCode handles grant_type=authorization_code (PKCE o client secret)
	ExchangeAuthorizationCode(ctx context.Context, req AuthCodeRequest) (*TokenResponse, error)

	// ExchangeRefreshToken handles grant_type=refresh_token (scope narrowing, rotación opcional)
	ExchangeRefreshToken(ctx context.Context, req RefreshTokenRequest) (*TokenResponse, error)

	// ExchangeClientCredentials handles grant_type=client_credentials (M2M)
	ExchangeClientCredentials(ctx context.Context, req ClientCredentialsRequest) (*TokenResponse, error)
}

// Grant types soportados.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantRefreshToken      = "refresh_token"
	GrantClientCredentials = "client_credentials"
)

// AuthCodeRequest contains parameters for authorization_code grant.
type AuthCodeRequest struct {
	Code         string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	CodeVerifier string
}

// RefreshTokenRequest contains parameters for refresh_token grant.
type RefreshTokenRequest struct {
	RefreshToken string
	ClientID     string
	ClientSecret string
	Scope        string
}

// ClientCredentialsRequest contains parameters for client_credentials grant.
type ClientCredentialsRequest struct {
	ClientID     string
	ClientSecret string
	Scope        string
}

// TokenResponse is the standard OAuth2 token response. scope is always present.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope"`
	IDToken      string `json:"id_token,omitempty"`
}

// Token endpoint errors (OAuth2 standard).
var (
	ErrTokenInvalidRequest       = errors.New("invalid_request")
	ErrTokenInvalidClient        = errors.New("invalid_client")
	ErrTokenInvalidGrant         = errors.New("invalid_grant")
	ErrTokenInvalidScope         = errors.New("invalid_scope")
	ErrTokenUnauthorizedClient   = errors.New("unauthorized_client")
	ErrTokenUnsupportedGrantType = errors.New("unsupported_grant_type")
	ErrTokenServerError          = errors.New("server_error")
)

// GrantError es un error OAuth con descripción legible. Kind es uno de los ErrToken*.
type GrantError struct {
	Kind        error
	Description string
}

func (e *GrantError) Error() string {
	if e.Description == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Description
}

func (e *GrantError) Unwrap() error { return e.Kind }

func grantErr(kind error, desc string) error {
	return &GrantError{Kind: kind, Description: desc}
}

// AsGrantError extrae el *GrantError de err. ok=false si err no es un error OAuth.
func AsGrantError(err error) (*GrantError, bool) {
	var ge *GrantError
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}
