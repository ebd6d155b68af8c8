package jwt

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHS256_SignParse(t *testing.T) {
	iss, err := NewHS256Issuer("catalystwells", []byte("test-secret"))
	require.NoError(t, err)

	tok, exp, err := iss.Sign(map[string]any{"sub": "user-1", "scopes": []string{"a", "b"}}, time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 2*time.Second)

	claims, err := iss.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims["sub"])
	assert.Equal(t, "catalystwells", claims["iss"])
	assert.Equal(t, []any{"a", "b"}, claims["scopes"])
}

func TestHS256_WrongSecretRejected(t *testing.T) {
	a, _ := NewHS256Issuer("x", []byte("one"))
	b, _ := NewHS256Issuer("x", []byte("two"))

	tok, _, err := a.Sign(map[string]any{"sub": "u"}, time.Minute)
	require.NoError(t, err)
	_, err = b.Parse(tok)
	assert.Error(t, err)
}

func TestSign_RespectsCallerIAT(t *testing.T) {
	fixed := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	iss, _ := NewHS256Issuer("x", []byte("k"))
	iss.Now = func() time.Time { return fixed }

	tok, exp, err := iss.Sign(map[string]any{"iat": fixed.Unix()}, 3600*time.Second)
	require.NoError(t, err)
	assert.True(t, fixed.Add(time.Hour).Equal(exp))

	claims, err := iss.Parse(tok)
	require.NoError(t, err)
	assert.EqualValues(t, fixed.Add(time.Hour).Unix(), claims["exp"])
}

func TestParse_Expired(t *testing.T) {
	now := time.Now()
	iss, _ := NewHS256Issuer("x", []byte("k"))
	iss.Now = func() time.Time { return now }
	tok, _, err := iss.Sign(map[string]any{}, time.Minute)
	require.NoError(t, err)

	iss.Now = func() time.Time { return now.Add(2 * time.Minute) }
	_, err = iss.Parse(tok)
	assert.Error(t, err)
}

func TestEdDSA_SignParseAndJWKS(t *testing.T) {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i)
	}
	ks, err := NewEd25519FromSeed("k1", base64.StdEncoding.EncodeToString(seed))
	require.NoError(t, err)
	iss, err := NewEdDSAIssuer("catalystwells", ks)
	require.NoError(t, err)

	tok, _, err := iss.Sign(map[string]any{"sub": "app:1"}, time.Minute)
	require.NoError(t, err)
	claims, err := iss.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "app:1", claims["sub"])

	raw, ok := iss.JWKSJSON()
	require.True(t, ok)
	var doc struct {
		Keys []map[string]string `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	require.Len(t, doc.Keys, 1)
	assert.Equal(t, "k1", doc.Keys[0]["kid"])
	assert.Equal(t, "Ed25519", doc.Keys[0]["crv"])
}

func TestNewIssuer_RequiresKey(t *testing.T) {
	_, err := NewHS256Issuer("x", nil)
	assert.ErrorIs(t, err, ErrNoSigningKey)
	_, err = NewEdDSAIssuer("x", nil)
	assert.ErrorIs(t, err, ErrNoSigningKey)

	_, err = NewEd25519FromSeed("k", base64.StdEncoding.EncodeToString([]byte("short")))
	assert.Error(t, err)
}

func TestJWKS_UnavailableForHS256(t *testing.T) {
	iss, _ := NewHS256Issuer("x", []byte("k"))
	_, ok := iss.JWKSJSON()
	assert.False(t, ok)
}
