package jwt

import (
	"errors"
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// Algorithms supported by the issuer.
const (
	AlgHS256 = "HS256"
	AlgEdDSA = "EdDSA"
)

var (
	ErrNoSigningKey   = errors.New("jwt: signing key not configured")
	ErrUnsupportedAlg = errors.New("jwt: unsupported algorithm")
)

// Issuer firma tokens con una única clave activa (HS256 secret o Ed25519).
type Issuer struct {
	Iss string

	// Now permite fijar el reloj en tests. nil => time.Now.
	Now func() time.Time

	alg    string
	secret []byte
	keys   *KeySet
}

// NewHS256Issuer builds an issuer that signs with a shared secret.
func NewHS256Issuer(iss string, secret []byte) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, ErrNoSigningKey
	}
	return &Issuer{Iss: iss, alg: AlgHS256, secret: secret}, nil
}

// NewEdDSAIssuer builds an issuer that signs with an Ed25519 key set and publishes a JWKS.
func NewEdDSAIssuer(iss string, ks *KeySet) (*Issuer, error) {
	if ks == nil || len(ks.Priv) == 0 {
		return nil, ErrNoSigningKey
	}
	return &Issuer{Iss: iss, alg: AlgEdDSA, keys: ks}, nil
}

// Alg returns the JOSE algorithm name.
func (i *Issuer) Alg() string { return i.alg }

func (i *Issuer) now() time.Time {
	if i.Now != nil {
		return i.Now()
	}
	return time.Now()
}

// Sign firma claims con vida ttl. Completa iss/iat/exp; si el caller ya puso
// "iat" (int64) se respeta y exp se calcula desde ahí.
func (i *Issuer) Sign(claims map[string]any, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		return "", time.Time{}, fmt.Errorf("jwt: non-positive ttl %s", ttl)
	}
	iat := i.now().Unix()
	if v, ok := claims["iat"].(int64); ok {
		iat = v
	}
	exp := time.Unix(iat, 0).Add(ttl).UTC()

	mc := jwtv5.MapClaims{"iss": i.Iss}
	for k, v := range claims {
		mc[k] = v
	}
	mc["iat"] = iat
	mc["exp"] = exp.Unix()

	var (
		tk  *jwtv5.Token
		key any
	)
	switch i.alg {
	case AlgHS256:
		tk = jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, mc)
		key = i.secret
	case AlgEdDSA:
		tk = jwtv5.NewWithClaims(jwtv5.SigningMethodEdDSA, mc)
		tk.Header["kid"] = i.keys.KID
		key = i.keys.Priv
	default:
		return "", time.Time{}, ErrUnsupportedAlg
	}
	tk.Header["typ"] = "JWT"

	signed, err := tk.SignedString(key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwt: sign: %w", err)
	}
	return signed, exp, nil
}

// JWKSJSON devuelve el JWKS público. ok=false para HS256 (no hay clave pública que publicar).
func (i *Issuer) JWKSJSON() ([]byte, bool) {
	if i.alg != AlgEdDSA || i.keys == nil {
		return nil, false
	}
	return i.keys.JWKSJSON(), true
}
