package oauth

import (
	"net/http"

	jwtx "github.com/catalystwells/grantd/internal/jwt"
)

// JWKSController publica la clave pública de firma (solo EdDSA).
type JWKSController struct {
	issuer *jwtx.Issuer
}

func NewJWKSController(iss *jwtx.Issuer) *JWKSController {
	return &JWKSController{issuer: iss}
}

// JWKS handles GET /.well-known/jwks.json. Con HS256 no hay nada que publicar: 404.
func (c *JWKSController) JWKS(w http.ResponseWriter, r *http.Request) {
	body, ok := c.issuer.JWKSJSON()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
