package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalystwells/grantd/internal/domain/repository"
)

func seeded(t *testing.T) *Store {
	t.Helper()
	s := New()
	s.PutApplication(repository.Application{ID: "app-1", ClientID: "client-1", Status: "approved"})
	s.PutAuthorizationCode(repository.AuthorizationCode{
		Code:          "abc123",
		UserID:        "user-1",
		ApplicationID: "app-1",
		Scopes:        []string{"openid"},
		ExpiresAt:     time.Now().Add(time.Minute),
	})
	return s
}

func redeemInput(code, refreshHash string) repository.RedeemCodeInput {
	c := code
	return repository.RedeemCodeInput{
		Code:    code,
		UsedAt:  time.Now(),
		Refresh: repository.CreateRefreshTokenInput{TokenHash: refreshHash, ApplicationID: "app-1", AuthorizationCode: &c},
		Access:  repository.CreateAccessTokenRecordInput{TokenHash: "at-" + refreshHash, ApplicationID: "app-1", AuthorizationCode: &c},
	}
}

func TestRedeemAuthorizationCode_ExactlyOneWinner(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := s.RedeemAuthorizationCode(ctx, redeemInput("abc123", fmt.Sprintf("rt-%d", i)))
			assert.NoError(t, err)
			if ok {
				atomic.AddInt32(&wins, 1)
			}
		}(i)
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins)

	c, ok := s.AuthorizationCode("abc123")
	require.True(t, ok)
	assert.NotNil(t, c.UsedAt)

	// solo el ganador persistió tokens
	assert.Len(t, s.RefreshTokens(), 1)
	assert.Len(t, s.AccessTokenRecords(), 1)
}

func TestRedeemAuthorizationCode_Missing(t *testing.T) {
	ok, err := New().RedeemAuthorizationCode(context.Background(), redeemInput("nope", "rt-1"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedeemAuthorizationCode_DuplicateHashLeavesCodeUnclaimed(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	_, err := s.CreateRefreshToken(ctx, repository.CreateRefreshTokenInput{TokenHash: "taken", ApplicationID: "app-1"})
	require.NoError(t, err)

	_, err = s.RedeemAuthorizationCode(ctx, redeemInput("abc123", "taken"))
	assert.ErrorIs(t, err, repository.ErrConflict)

	c, _ := s.AuthorizationCode("abc123")
	assert.Nil(t, c.UsedAt)
	assert.Empty(t, s.AccessTokenRecords())
}

func TestRevokeRefreshToken_OnlyOnce(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	_, err := s.CreateRefreshToken(ctx, repository.CreateRefreshTokenInput{TokenHash: "h1", ApplicationID: "app-1"})
	require.NoError(t, err)

	ok, err := s.RevokeRefreshToken(ctx, "h1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.RevokeRefreshToken(ctx, "h1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.RevokeRefreshToken(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRotateRefreshToken_SingleSuccessor(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	code := "abc123"
	_, err := s.CreateRefreshToken(ctx, repository.CreateRefreshTokenInput{TokenHash: "old", ApplicationID: "app-1", AuthorizationCode: &code})
	require.NoError(t, err)

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := s.RotateRefreshToken(ctx, "old", repository.CreateRefreshTokenInput{
				TokenHash: fmt.Sprintf("next-%d", i), ApplicationID: "app-1", AuthorizationCode: &code,
			})
			assert.NoError(t, err)
			if ok {
				atomic.AddInt32(&wins, 1)
			}
		}(i)
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins)

	var active int
	for _, rt := range s.RefreshTokens() {
		if !rt.IsRevoked {
			active++
			require.NotNil(t, rt.AuthorizationCode)
			assert.Equal(t, code, *rt.AuthorizationCode)
		}
	}
	assert.Equal(t, 1, active)
}

func TestGetAuthorizationCode_JoinsApplication(t *testing.T) {
	s := seeded(t)
	c, err := s.GetAuthorizationCode(context.Background(), "abc123")
	require.NoError(t, err)
	require.NotNil(t, c.Application)
	assert.Equal(t, "client-1", c.Application.ClientID)

	// callers cannot mutate stored state
	c.Scopes[0] = "mutated"
	again, _ := s.GetAuthorizationCode(context.Background(), "abc123")
	assert.Equal(t, "openid", again.Scopes[0])
}

func TestRevokeByAuthorizationCode(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	code := "abc123"
	other := "zzz"

	_, err := s.CreateRefreshToken(ctx, repository.CreateRefreshTokenInput{TokenHash: "h1", ApplicationID: "app-1", AuthorizationCode: &code})
	require.NoError(t, err)
	_, err = s.CreateRefreshToken(ctx, repository.CreateRefreshTokenInput{TokenHash: "h2", ApplicationID: "app-1", AuthorizationCode: &other})
	require.NoError(t, err)
	_, err = s.CreateAccessTokenRecord(ctx, repository.CreateAccessTokenRecordInput{TokenHash: "a1", ApplicationID: "app-1", AuthorizationCode: &code})
	require.NoError(t, err)

	res, err := s.RevokeByAuthorizationCode(ctx, code)
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.RefreshTokens)
	assert.EqualValues(t, 1, res.AccessTokens)

	_, err = s.GetActiveRefreshToken(ctx, "h1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = s.GetActiveRefreshToken(ctx, "h2")
	assert.NoError(t, err)
}

func TestCreateRefreshToken_DuplicateHash(t *testing.T) {
	s := seeded(t)
	in := repository.CreateRefreshTokenInput{TokenHash: "dup", ApplicationID: "app-1"}
	_, err := s.CreateRefreshToken(context.Background(), in)
	require.NoError(t, err)
	_, err = s.CreateRefreshToken(context.Background(), in)
	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestLoadSeed(t *testing.T) {
	raw := []byte(`
applications:
  - id: app-9
    client_id: reports-bot
    client_secret_hash: deadbeef
    allowed_scopes: [reports.read, user.profile.read]
    status: approved
authorization_codes:
  - code: seed-code
    user_id: u-1
    application_id: app-9
    scopes: [openid, profile]
    redirect_uri: https://app.example.com/cb
    code_challenge: E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM
    code_challenge_method: S256
    expires_at: 2099-01-01T00:00:00Z
profiles:
  - user_id: u-1
    email: u1@example.com
    full_name: User One
`)
	s := New()
	require.NoError(t, s.LoadSeed(raw))

	app, err := s.FindByClientID(context.Background(), "reports-bot")
	require.NoError(t, err)
	assert.Equal(t, []string{"reports.read", "user.profile.read"}, app.AllowedScopes)

	c, err := s.GetAuthorizationCode(context.Background(), "seed-code")
	require.NoError(t, err)
	assert.True(t, c.HasChallenge())
	assert.Equal(t, "S256", c.CodeChallengeMethod)

	p, err := s.GetUserProfile(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, "User One", p.FullName)
}

func TestLoadSeed_RejectsAppWithoutClientID(t *testing.T) {
	err := New().LoadSeed([]byte("applications:\n  - id: x\n"))
	assert.Error(t, err)
}

func TestLoadSeed_RejectsInvalidScopeName(t *testing.T) {
	err := New().LoadSeed([]byte("applications:\n  - id: x\n    client_id: c\n    allowed_scopes: [\"Reports;drop\"]\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid scope")
}
