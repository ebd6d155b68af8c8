package cached

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalystwells/grantd/internal/cache"
	"github.com/catalystwells/grantd/internal/domain/repository"
)

type countingRepo struct {
	calls atomic.Int32
	apps  map[string]*repository.Application
	delay time.Duration
}

func (r *countingRepo) FindByClientID(_ context.Context, clientID string) (*repository.Application, error) {
	r.calls.Add(1)
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	app, ok := r.apps[clientID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *app
	return &cp, nil
}

func newRepo() *countingRepo {
	prev := "oldhash"
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	return &countingRepo{apps: map[string]*repository.Application{
		"client-a": {
			ID: "app-a", ClientID: "client-a", ClientSecretHash: "hash",
			PreviousClientSecretHash: &prev, PreviousSecretExpiresAt: &exp,
			AllowedScopes: []string{"reports.read"}, Status: repository.AppStatusApproved,
		},
	}}
}

func TestApplications_HitAfterMiss(t *testing.T) {
	ctx := context.Background()
	repo := newRepo()
	a := NewApplications(repo, cache.NewMemory("t"), time.Minute)

	first, err := a.FindByClientID(ctx, "client-a")
	require.NoError(t, err)
	second, err := a.FindByClientID(ctx, "client-a")
	require.NoError(t, err)

	assert.EqualValues(t, 1, repo.calls.Load())
	assert.Equal(t, first.ClientSecretHash, second.ClientSecretHash)
	require.NotNil(t, second.PreviousSecretExpiresAt)
	assert.True(t, first.PreviousSecretExpiresAt.Equal(*second.PreviousSecretExpiresAt))
	assert.Equal(t, []string{"reports.read"}, second.AllowedScopes)
}

func TestApplications_NotFoundIsNotCached(t *testing.T) {
	ctx := context.Background()
	repo := newRepo()
	a := NewApplications(repo, cache.NewMemory("t"), time.Minute)

	_, err := a.FindByClientID(ctx, "nope")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = a.FindByClientID(ctx, "nope")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.EqualValues(t, 2, repo.calls.Load())
}

func TestApplications_ConcurrentMissesCollapse(t *testing.T) {
	repo := newRepo()
	repo.delay = 50 * time.Millisecond
	a := NewApplications(repo, cache.NewMemory("t"), time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app, err := a.FindByClientID(context.Background(), "client-a")
			assert.NoError(t, err)
			assert.Equal(t, "app-a", app.ID)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, repo.calls.Load(), int32(2))
}

func TestApplications_Invalidate(t *testing.T) {
	ctx := context.Background()
	repo := newRepo()
	a := NewApplications(repo, cache.NewMemory("t"), time.Minute)

	_, err := a.FindByClientID(ctx, "client-a")
	require.NoError(t, err)
	require.NoError(t, a.Invalidate(ctx, "client-a"))
	_, err = a.FindByClientID(ctx, "client-a")
	require.NoError(t, err)
	assert.EqualValues(t, 2, repo.calls.Load())
}
