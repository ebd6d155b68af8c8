package pg

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalystwells/grantd/internal/domain/repository"
	migrations "github.com/catalystwells/grantd/migrations/postgres"
)

func TestNew_RequiresDSN(t *testing.T) {
	_, err := New(context.Background(), "", Options{})
	assert.ErrorIs(t, err, repository.ErrNoDatabase)
}

// Integration tests run only when GRANTD_TEST_PG_DSN points at a disposable database.
func testStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("GRANTD_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("GRANTD_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	s, err := New(ctx, dsn, Options{})
	require.NoError(t, err)
	t.Cleanup(s.Close)

	_, err = s.Migrate(ctx, migrations.FS, migrations.Dir)
	require.NoError(t, err)
	return s
}

func seedApp(t *testing.T, s *Store) (appID, clientID string) {
	t.Helper()
	appID = uuid.NewString()
	clientID = "client-" + appID[:8]
	_, err := s.pool.Exec(context.Background(), `
		INSERT INTO developer_applications (id, client_id, client_secret_hash, allowed_scopes, status)
		VALUES ($1, $2, 'hash', '{reports.read}', 'approved')`, appID, clientID)
	require.NoError(t, err)
	return appID, clientID
}

func seedCode(t *testing.T, s *Store, appID string) string {
	t.Helper()
	code := "code-" + uuid.NewString()
	_, err := s.pool.Exec(context.Background(), `
		INSERT INTO oauth_authorization_codes (code, user_id, application_id, scopes, redirect_uri, expires_at)
		VALUES ($1, 'user-1', $2, '{openid,profile}', 'https://app.example.com/cb', now() + interval '5 minutes')`,
		code, appID)
	require.NoError(t, err)
	return code
}

func redeemInput(code, appID string) repository.RedeemCodeInput {
	c := code
	hash := uuid.NewString()
	return repository.RedeemCodeInput{
		Code:   code,
		UsedAt: time.Now(),
		Refresh: repository.CreateRefreshTokenInput{
			TokenHash: "rt-" + hash, ApplicationID: appID, UserID: "user-1",
			AuthorizationCode: &c, ExpiresAt: time.Now().Add(time.Hour),
		},
		Access: repository.CreateAccessTokenRecordInput{
			TokenHash: "at-" + hash, ApplicationID: appID, UserID: "user-1",
			AuthorizationCode: &c, ExpiresAt: time.Now().Add(time.Hour),
		},
	}
}

func countRefresh(t *testing.T, s *Store, code string, revoked bool) int {
	t.Helper()
	var n int
	err := s.pool.QueryRow(context.Background(),
		`SELECT count(*) FROM oauth_refresh_tokens WHERE authorization_code = $1 AND is_revoked = $2`,
		code, revoked).Scan(&n)
	require.NoError(t, err)
	return n
}

func TestPG_RedeemAuthorizationCode_Atomic(t *testing.T) {
	s := testStore(t)
	appID, _ := seedApp(t, s)
	code := seedCode(t, s, appID)

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.RedeemAuthorizationCode(context.Background(), redeemInput(code, appID))
			assert.NoError(t, err)
			if ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins)
	assert.Equal(t, 1, countRefresh(t, s, code, false))
}

func TestPG_RotateRefreshToken_SingleSuccessor(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	appID, _ := seedApp(t, s)
	code := seedCode(t, s, appID)
	in := redeemInput(code, appID)
	ok, err := s.RedeemAuthorizationCode(ctx, in)
	require.NoError(t, err)
	require.True(t, ok)

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.RotateRefreshToken(ctx, in.Refresh.TokenHash, repository.CreateRefreshTokenInput{
				TokenHash: "rt-" + uuid.NewString(), ApplicationID: appID, UserID: "user-1",
				AuthorizationCode: &code, ExpiresAt: time.Now().Add(time.Hour),
			})
			assert.NoError(t, err)
			if ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins)
	assert.Equal(t, 1, countRefresh(t, s, code, false))

	ok, err = s.RevokeRefreshToken(ctx, in.Refresh.TokenHash)
	require.NoError(t, err)
	assert.False(t, ok, "already revoked by rotation")
}

func TestPG_CodeJoinAndCascade(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	appID, clientID := seedApp(t, s)
	code := seedCode(t, s, appID)

	ac, err := s.GetAuthorizationCode(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, clientID, ac.Application.ClientID)
	assert.Equal(t, []string{"openid", "profile"}, ac.Scopes)
	assert.Equal(t, "plain", ac.CodeChallengeMethod)

	hash := "rt-" + uuid.NewString()
	_, err = s.CreateRefreshToken(ctx, repository.CreateRefreshTokenInput{
		TokenHash: hash, ApplicationID: appID, UserID: "user-1",
		Scopes: ac.Scopes, AuthorizationCode: &code, ExpiresAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	_, err = s.CreateAccessTokenRecord(ctx, repository.CreateAccessTokenRecordInput{
		TokenHash: "at-" + uuid.NewString(), ApplicationID: appID, UserID: "user-1",
		Scopes: ac.Scopes, AuthorizationCode: &code, ExpiresAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	res, err := s.RevokeByAuthorizationCode(ctx, code)
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.RefreshTokens)
	assert.EqualValues(t, 1, res.AccessTokens)

	_, err = s.GetActiveRefreshToken(ctx, hash)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPG_FindByClientID_NotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.FindByClientID(context.Background(), "missing-"+uuid.NewString())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
