package jwt

import (
	"fmt"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// Keyfunc resolves the verification key for tokens minted by this issuer.
func (i *Issuer) Keyfunc() jwtv5.Keyfunc {
	return func(t *jwtv5.Token) (any, error) {
		switch i.alg {
		case AlgHS256:
			return i.secret, nil
		case AlgEdDSA:
			if kid, _ := t.Header["kid"].(string); kid != "" && kid != i.keys.KID {
				return nil, fmt.Errorf("jwt: unknown kid %q", kid)
			}
			return i.keys.Pub, nil
		default:
			return nil, ErrUnsupportedAlg
		}
	}
}

// Parse verifica firma, algoritmo, exp e iss, y devuelve los claims.
func (i *Issuer) Parse(raw string) (jwtv5.MapClaims, error) {
	claims := jwtv5.MapClaims{}
	_, err := jwtv5.ParseWithClaims(raw, claims, i.Keyfunc(),
		jwtv5.WithValidMethods([]string{i.alg}),
		jwtv5.WithIssuer(i.Iss),
		jwtv5.WithTimeFunc(i.now),
		jwtv5.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
