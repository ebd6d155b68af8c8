// Package memory is an in-process implementation of every repository contract.
// It backs dev mode (--store memory) and the service/controller tests, and keeps
// the same atomicity guarantees as the pg driver under a single mutex.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/catalystwells/grantd/internal/domain/repository"
)

// Store guarda todo en maps protegidos por un mutex.
type Store struct {
	mu sync.Mutex

	apps       map[string]repository.Application // by id
	byClientID map[string]string                 // client_id -> id
	codes      map[string]repository.AuthorizationCode
	refresh    map[string]repository.RefreshToken // by token hash
	access     map[string]repository.AccessTokenRecord
	profiles   map[string]repository.UserProfile

	exchanges map[string]int64
	refreshes map[string]int64
}

// New crea un store vacío.
func New() *Store {
	return &Store{
		apps:       map[string]repository.Application{},
		byClientID: map[string]string{},
		codes:      map[string]repository.AuthorizationCode{},
		refresh:    map[string]repository.RefreshToken{},
		access:     map[string]repository.AccessTokenRecord{},
		profiles:   map[string]repository.UserProfile{},
		exchanges:  map[string]int64{},
		refreshes:  map[string]int64{},
	}
}

var (
	_ repository.ApplicationRepository = (*Store)(nil)
	_ repository.GrantRepository       = (*Store)(nil)
	_ repository.ProfileRepository     = (*Store)(nil)
	_ repository.AnalyticsRepository   = (*Store)(nil)
)

// Ping satisface el readiness check; la memoria siempre está lista.
func (s *Store) Ping(context.Context) error { return nil }

// ─── Seeding ───

// PutApplication inserts or replaces an application.
func (s *Store) PutApplication(app repository.Application) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	if old, ok := s.apps[app.ID]; ok {
		delete(s.byClientID, old.ClientID)
	}
	s.apps[app.ID] = cloneApp(app)
	s.byClientID[app.ClientID] = app.ID
}

// PutAuthorizationCode inserts or replaces a code. The upstream consent flow owns code creation;
// this exists for seeding and tests.
func (s *Store) PutAuthorizationCode(code repository.AuthorizationCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code.Application = nil
	code.Scopes = slices.Clone(code.Scopes)
	s.codes[code.Code] = code
}

// PutProfile inserts or replaces a user profile.
func (s *Store) PutProfile(p repository.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.UserID] = p
}

// ─── ApplicationRepository ───

func (s *Store) FindByClientID(_ context.Context, clientID string) (*repository.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byClientID[clientID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	app := cloneApp(s.apps[id])
	return &app, nil
}

// ─── GrantRepository ───

func (s *Store) GetAuthorizationCode(_ context.Context, code string) (*repository.AuthorizationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[code]
	if !ok {
		return nil, repository.ErrNotFound
	}
	app, ok := s.apps[c.ApplicationID]
	if !ok {
		// inner join semantics
		return nil, repository.ErrNotFound
	}
	out := c
	out.Scopes = slices.Clone(c.Scopes)
	a := cloneApp(app)
	out.Application = &a
	return &out, nil
}

func (s *Store) DeleteAuthorizationCode(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.codes, code)
	return nil
}

// RedeemAuthorizationCode claims the code and stores both tokens under one lock,
// so a concurrent cascade sees either nothing or everything.
func (s *Store) RedeemAuthorizationCode(_ context.Context, in repository.RedeemCodeInput) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[in.Code]
	if !ok || c.UsedAt != nil {
		return false, nil
	}
	if _, dup := s.refresh[in.Refresh.TokenHash]; dup {
		return false, repository.ErrConflict
	}
	t := in.UsedAt
	c.UsedAt = &t
	s.codes[in.Code] = c
	s.insertRefresh(in.Refresh)
	s.insertAccess(in.Access)
	return true, nil
}

func (s *Store) RevokeByAuthorizationCode(_ context.Context, code string) (repository.RevocationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res repository.RevocationResult
	for h, rt := range s.refresh {
		if rt.AuthorizationCode != nil && *rt.AuthorizationCode == code && !rt.IsRevoked {
			rt.IsRevoked = true
			s.refresh[h] = rt
			res.RefreshTokens++
		}
	}
	for id, at := range s.access {
		if at.AuthorizationCode != nil && *at.AuthorizationCode == code && !at.IsRevoked {
			at.IsRevoked = true
			s.access[id] = at
			res.AccessTokens++
		}
	}
	return res, nil
}

func (s *Store) CreateRefreshToken(_ context.Context, in repository.CreateRefreshTokenInput) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.refresh[in.TokenHash]; dup {
		return "", repository.ErrConflict
	}
	return s.insertRefresh(in), nil
}

func (s *Store) GetActiveRefreshToken(_ context.Context, tokenHash string) (*repository.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rt, ok := s.refresh[tokenHash]
	if !ok || rt.IsRevoked {
		return nil, repository.ErrNotFound
	}
	app, ok := s.apps[rt.ApplicationID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := rt
	out.Scopes = slices.Clone(rt.Scopes)
	a := cloneApp(app)
	out.Application = &a
	return &out, nil
}

func (s *Store) RevokeRefreshToken(_ context.Context, tokenHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revokeRefresh(tokenHash), nil
}

func (s *Store) RotateRefreshToken(_ context.Context, oldHash string, next repository.CreateRefreshTokenInput) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.refresh[next.TokenHash]; dup {
		return false, repository.ErrConflict
	}
	if !s.revokeRefresh(oldHash) {
		return false, nil
	}
	s.insertRefresh(next)
	return true, nil
}

func (s *Store) CreateAccessTokenRecord(_ context.Context, in repository.CreateAccessTokenRecordInput) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertAccess(in), nil
}

// insertRefresh, insertAccess y revokeRefresh asumen s.mu tomado.

func (s *Store) insertRefresh(in repository.CreateRefreshTokenInput) string {
	id := uuid.NewString()
	s.refresh[in.TokenHash] = repository.RefreshToken{
		ID:                id,
		TokenHash:         in.TokenHash,
		ApplicationID:     in.ApplicationID,
		UserID:            in.UserID,
		Scopes:            slices.Clone(in.Scopes),
		AuthorizationCode: cloneStr(in.AuthorizationCode),
		ExpiresAt:         in.ExpiresAt,
		CreatedAt:         time.Now().UTC(),
	}
	return id
}

func (s *Store) insertAccess(in repository.CreateAccessTokenRecordInput) string {
	id := uuid.NewString()
	s.access[id] = repository.AccessTokenRecord{
		ID:                id,
		TokenHash:         in.TokenHash,
		ApplicationID:     in.ApplicationID,
		UserID:            in.UserID,
		Scopes:            slices.Clone(in.Scopes),
		AuthorizationCode: cloneStr(in.AuthorizationCode),
		ExpiresAt:         in.ExpiresAt,
		CreatedAt:         time.Now().UTC(),
	}
	return id
}

func (s *Store) revokeRefresh(tokenHash string) bool {
	rt, ok := s.refresh[tokenHash]
	if !ok || rt.IsRevoked {
		return false
	}
	rt.IsRevoked = true
	s.refresh[tokenHash] = rt
	return true
}

// ─── ProfileRepository ───

func (s *Store) GetUserProfile(_ context.Context, userID string) (*repository.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

// ─── AnalyticsRepository ───

func (s *Store) IncrementTokenExchanges(_ context.Context, appID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exchanges[appID]++
	return nil
}

func (s *Store) IncrementTokenRefreshes(_ context.Context, appID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshes[appID]++
	return nil
}

// ─── Inspection (tests, admin debug) ───

// AuthorizationCode returns the stored code without the application join.
func (s *Store) AuthorizationCode(code string) (repository.AuthorizationCode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[code]
	return c, ok
}

// RefreshTokens returns a snapshot of every stored refresh token, revoked or not.
func (s *Store) RefreshTokens() []repository.RefreshToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]repository.RefreshToken, 0, len(s.refresh))
	for _, rt := range s.refresh {
		out = append(out, rt)
	}
	return out
}

// RefreshTokenByHash returns a stored refresh token regardless of revocation.
func (s *Store) RefreshTokenByHash(hash string) (repository.RefreshToken, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rt, ok := s.refresh[hash]
	return rt, ok
}

// AccessTokenRecords returns a snapshot of the audit records.
func (s *Store) AccessTokenRecords() []repository.AccessTokenRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]repository.AccessTokenRecord, 0, len(s.access))
	for _, at := range s.access {
		out = append(out, at)
	}
	return out
}

// Counters returns (exchanges, refreshes) for an application.
func (s *Store) Counters(appID string) (int64, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exchanges[appID], s.refreshes[appID]
}

func cloneApp(a repository.Application) repository.Application {
	a.AllowedScopes = slices.Clone(a.AllowedScopes)
	a.PreviousClientSecretHash = cloneStr(a.PreviousClientSecretHash)
	if a.PreviousSecretExpiresAt != nil {
		t := *a.PreviousSecretExpiresAt
		a.PreviousSecretExpiresAt = &t
	}
	return a
}

func cloneStr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
