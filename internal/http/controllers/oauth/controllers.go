package oauth

import (
	svc "github.com/catalystwells/grantd/internal/http/services/oauth"
	jwtx "github.com/catalystwells/grantd/internal/jwt"
)

// Controllers agrupa los controllers del dominio OAuth.
type Controllers struct {
	Token *TokenController
	JWKS  *JWKSController
}

// NewControllers crea el agregador de controllers OAuth.
func NewControllers(s svc.Services, iss *jwtx.Issuer) *Controllers {
	return &Controllers{
		Token: NewTokenController(s.Token),
		JWKS:  NewJWKSController(iss),
	}
}
