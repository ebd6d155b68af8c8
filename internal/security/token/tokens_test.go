package tokens

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashToken_KnownVector(t *testing.T) {
	// sha256("abc")
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", HashToken("abc"))
}

func TestGenerateOpaqueToken(t *testing.T) {
	a, err := GenerateOpaqueToken(RefreshTokenPrefix, 32)
	require.NoError(t, err)
	b, err := GenerateOpaqueToken(RefreshTokenPrefix, 32)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(a, RefreshTokenPrefix))
	assert.Len(t, a, len(RefreshTokenPrefix)+64)
	assert.NotEqual(t, a, b)
}

func TestSecretMatches(t *testing.T) {
	h := HashToken("s3cret")
	assert.True(t, SecretMatches("s3cret", h))
	assert.False(t, SecretMatches("s3cret!", h))
	assert.False(t, SecretMatches("", h))
	assert.False(t, SecretMatches("s3cret", ""))
}

func TestVerifyCodeChallenge_S256(t *testing.T) {
	// RFC 7636 appendix B
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	challenge := "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"

	require.True(t, VerifyCodeChallenge(verifier, challenge, ChallengeS256))

	// any single-byte mutation of the verifier must fail
	for i := 0; i < len(verifier); i++ {
		b := []byte(verifier)
		b[i] ^= 0x01
		assert.False(t, VerifyCodeChallenge(string(b), challenge, ChallengeS256), "mutation at %d", i)
	}
}

func TestVerifyCodeChallenge_Plain(t *testing.T) {
	assert.True(t, VerifyCodeChallenge("verifier-123", "verifier-123", ChallengePlain))
	assert.True(t, VerifyCodeChallenge("verifier-123", "verifier-123", ""))
	assert.False(t, VerifyCodeChallenge("verifier-123", "verifier-124", ChallengePlain))
}

func TestVerifyCodeChallenge_UnknownMethod(t *testing.T) {
	assert.False(t, VerifyCodeChallenge("v", "v", "s256"))
	assert.False(t, VerifyCodeChallenge("v", "v", "S512"))
}
