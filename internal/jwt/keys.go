package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// KeySet mantiene una sola clave Ed25519 activa.
type KeySet struct {
	Priv ed25519.PrivateKey
	Pub  ed25519.PublicKey
	KID  string
}

// NewDevEd25519 genera una clave en memoria. Los tokens no sobreviven un restart.
func NewDevEd25519(kid string) (*KeySet, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &KeySet{Priv: priv, Pub: pub, KID: kid}, nil
}

// NewEd25519FromSeed derives the key pair from a base64 (std) encoded 32-byte seed.
func NewEd25519FromSeed(kid, seedB64 string) (*KeySet, error) {
	seed, err := base64.StdEncoding.DecodeString(seedB64)
	if err != nil {
		return nil, fmt.Errorf("jwt: decode ed25519 seed: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("jwt: ed25519 seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &KeySet{Priv: priv, Pub: priv.Public().(ed25519.PublicKey), KID: kid}, nil
}

type jwk struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	X   string `json:"x"`
}

type jwks struct {
	Keys []jwk `json:"keys"`
}

// JWKSJSON devuelve el JWKS (solo la pública).
func (k *KeySet) JWKSJSON() []byte {
	b, _ := json.Marshal(jwks{Keys: []jwk{{
		Kty: "OKP",
		Crv: "Ed25519",
		Kid: k.KID,
		Alg: AlgEdDSA,
		Use: "sig",
		X:   base64.RawURLEncoding.EncodeToString(k.Pub),
	}}})
	return b
}
