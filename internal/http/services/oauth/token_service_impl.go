package oauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/catalystwells/grantd/internal/analytics"
	"github.com/catalystwells/grantd/internal/domain/repository"
	jwtx "github.com/catalystwells/grantd/internal/jwt"
	"github.com/catalystwells/grantd/internal/metrics"
	"github.com/catalystwells/grantd/internal/observability/logger"
	tokens "github.com/catalystwells/grantd/internal/security/token"
)

const (
	defaultAccessTTL  = time.Hour
	defaultRefreshTTL = 30 * 24 * time.Hour

	refreshTokenBytes = 32
	scopeOpenID       = "openid"
	userScopePrefix   = "user."
)

// TokenDeps contains dependencies for token service.
type TokenDeps struct {
	Apps     repository.ApplicationRepository
	Grants   repository.GrantRepository
	Profiles repository.ProfileRepository
	Issuer   *jwtx.Issuer
	Sink     analytics.Sink

	// Clock devuelve "ahora". nil => time.Now.
	Clock func() time.Time

	AccessTTL  time.Duration // default 1h
	RefreshTTL time.Duration // default 30 días

	// RotateRefreshTokens: cada refresh revoca el token presentado y emite uno nuevo.
	RotateRefreshTokens bool
}

// tokenService implements TokenService.
type tokenService struct {
	apps     repository.ApplicationRepository
	grants   repository.GrantRepository
	profiles repository.ProfileRepository
	issuer   *jwtx.Issuer
	sink     analytics.Sink
	clock    func() time.Time

	accessTTL  time.Duration
	refreshTTL time.Duration
	rotate     bool
}

// NewTokenService creates a new TokenService.
func NewTokenService(d TokenDeps) TokenService {
	s := &tokenService{
		apps:       d.Apps,
		grants:     d.Grants,
		profiles:   d.Profiles,
		issuer:     d.Issuer,
		sink:       d.Sink,
		clock:      d.Clock,
		accessTTL:  d.AccessTTL,
		refreshTTL: d.RefreshTTL,
		rotate:     d.RotateRefreshTokens,
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.sink == nil {
		s.sink = analytics.Nop{}
	}
	if s.accessTTL <= 0 {
		s.accessTTL = defaultAccessTTL
	}
	if s.refreshTTL <= 0 {
		s.refreshTTL = defaultRefreshTTL
	}
	return s
}

// ExchangeAuthorizationCode handles grant_type=authorization_code.
func (s *tokenService) ExchangeAuthorizationCode(ctx context.Context, req AuthCodeRequest) (*TokenResponse, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.token.authcode"), logger.ClientID(req.ClientID))

	if req.Code == "" || req.ClientID == "" {
		return nil, grantErr(ErrTokenInvalidRequest, "Missing required parameters")
	}

	ac, err := s.grants.GetAuthorizationCode(ctx, req.Code)
	if err != nil {
		if repository.IsNotFound(err) {
			log.Warn("authorization code not found")
			return nil, grantErr(ErrTokenInvalidGrant, "Invalid authorization code")
		}
		return nil, err
	}
	app := ac.Application
	now := s.clock()

	// Expiración dura: el code se borra y no vuelve
	if now.After(ac.ExpiresAt) {
		if err := s.grants.DeleteAuthorizationCode(ctx, ac.Code); err != nil {
			return nil, err
		}
		log.Info("authorization code expired, deleted")
		return nil, grantErr(ErrTokenInvalidGrant, "Authorization code has expired")
	}

	if ac.UsedAt != nil {
		return nil, s.revokeReplayedCode(ctx, log, ac)
	}

	if app == nil || app.ClientID != req.ClientID {
		log.Warn("client_id does not match code's application")
		return nil, grantErr(ErrTokenInvalidClient, "Client ID mismatch")
	}

	if req.RedirectURI != "" && req.RedirectURI != ac.RedirectURI {
		log.Warn("redirect_uri mismatch")
		return nil, grantErr(ErrTokenInvalidGrant, "Redirect URI mismatch")
	}

	// Prueba de credencial: PKCE si el code tiene challenge, si no client secret (si vino)
	switch {
	case ac.HasChallenge():
		if req.CodeVerifier == "" {
			return nil, grantErr(ErrTokenInvalidRequest, "Code verifier required for PKCE")
		}
		if !tokens.VerifyCodeChallenge(req.CodeVerifier, *ac.CodeChallenge, ac.CodeChallengeMethod) {
			log.Warn("PKCE verification failed", logger.String("method", ac.CodeChallengeMethod))
			return nil, grantErr(ErrTokenInvalidGrant, "Code verifier verification failed")
		}
	case req.ClientSecret != "":
		if !secretMatchesWithGrace(app, req.ClientSecret, now) {
			log.Warn("client secret mismatch")
			return nil, grantErr(ErrTokenInvalidClient, "Invalid client credentials")
		}
	}

	scopes := ac.Scopes
	accessToken, exp, err := s.issuer.Sign(s.accessClaims(ac.UserID, app, scopes, now), s.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refreshToken, err := tokens.GenerateOpaqueToken(tokens.RefreshTokenPrefix, refreshTokenBytes)
	if err != nil {
		return nil, err
	}

	// Claim + persistencia en una sola operación: una cascada concurrente ve todo o nada
	code := ac.Code
	redeemed, err := s.grants.RedeemAuthorizationCode(ctx, repository.RedeemCodeInput{
		Code:   ac.Code,
		UsedAt: now,
		Refresh: repository.CreateRefreshTokenInput{
			TokenHash:         tokens.HashToken(refreshToken),
			ApplicationID:     app.ID,
			UserID:            ac.UserID,
			Scopes:            scopes,
			AuthorizationCode: &code,
			ExpiresAt:         now.Add(s.refreshTTL),
		},
		Access: repository.CreateAccessTokenRecordInput{
			TokenHash:         tokens.HashToken(accessToken),
			ApplicationID:     app.ID,
			UserID:            ac.UserID,
			Scopes:            scopes,
			AuthorizationCode: &code,
			ExpiresAt:         exp,
		},
	})
	if err != nil {
		return nil, err
	}
	if !redeemed {
		// Otro request ganó la carrera: mismo tratamiento que un replay
		return nil, s.revokeReplayedCode(ctx, log, ac)
	}

	s.sink.Record(analytics.Event{AppID: app.ID, Kind: analytics.KindExchange})

	resp := &TokenResponse{
		AccessToken:  accessToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTTL.Seconds()),
		RefreshToken: refreshToken,
		Scope:        strings.Join(scopes, " "),
	}

	if containsScope(scopes, scopeOpenID) {
		idToken, _, err := s.issuer.Sign(s.idTokenClaims(ctx, log, ac.UserID, app, now), s.accessTTL)
		if err != nil {
			return nil, fmt.Errorf("sign id_token: %w", err)
		}
		resp.IDToken = idToken
	}

	log.Info("authorization code exchanged", logger.AppID(app.ID), logger.UserID(ac.UserID), logger.Scopes(scopes))
	return resp, nil
}

// revokeReplayedCode corre la cascada: todo lo emitido desde el code muere.
// La respuesta es invalid_grant salvo que la cascada misma falle.
func (s *tokenService) revokeReplayedCode(ctx context.Context, log *zap.Logger, ac *repository.AuthorizationCode) error {
	metrics.CodeReplaysTotal.Inc()

	res, err := s.grants.RevokeByAuthorizationCode(ctx, ac.Code)
	if err != nil {
		log.Error("cascade revocation failed for replayed code", logger.AppID(ac.ApplicationID), logger.Err(err))
		return fmt.Errorf("cascade revocation: %w", err)
	}
	metrics.CascadeRevokedTotal.WithLabelValues("refresh").Add(float64(res.RefreshTokens))
	metrics.CascadeRevokedTotal.WithLabelValues("access").Add(float64(res.AccessTokens))

	log.Warn("authorization code replay detected, cascade revoked",
		logger.AppID(ac.ApplicationID),
		logger.UserID(ac.UserID),
		logger.Int64("refresh_revoked", res.RefreshTokens),
		logger.Int64("access_revoked", res.AccessTokens),
	)
	return grantErr(ErrTokenInvalidGrant, "Authorization code has already been used")
}

// ExchangeRefreshToken handles grant_type=refresh_token.
func (s *tokenService) ExchangeRefreshToken(ctx context.Context, req RefreshTokenRequest) (*TokenResponse, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.token.refresh"), logger.ClientID(req.ClientID))

	if req.RefreshToken == "" || req.ClientID == "" {
		return nil, grantErr(ErrTokenInvalidRequest, "Missing required parameters")
	}

	hash := tokens.HashToken(req.RefreshToken)
	rt, err := s.grants.GetActiveRefreshToken(ctx, hash)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, grantErr(ErrTokenInvalidGrant, "Invalid or expired refresh token")
		}
		return nil, err
	}
	app := rt.Application
	now := s.clock()

	if now.After(rt.ExpiresAt) {
		if _, err := s.grants.RevokeRefreshToken(ctx, hash); err != nil {
			return nil, err
		}
		log.Info("refresh token expired, revoked")
		return nil, grantErr(ErrTokenInvalidGrant, "Refresh token has expired")
	}

	if app == nil || app.ClientID != req.ClientID {
		log.Warn("client_id does not match refresh token's application")
		return nil, grantErr(ErrTokenInvalidClient, "Client ID mismatch")
	}

	// Sin ventana de gracia acá: solo el secret actual
	if req.ClientSecret != "" && !tokens.SecretMatches(req.ClientSecret, app.ClientSecretHash) {
		log.Warn("client secret mismatch")
		return nil, grantErr(ErrTokenInvalidClient, "Invalid client credentials")
	}

	scopes := rt.Scopes
	if requested := splitScopes(req.Scope); len(requested) > 0 {
		for _, sc := range requested {
			if !containsScope(rt.Scopes, sc) {
				log.Warn("scope not in original grant", logger.String("scope", sc))
				return nil, grantErr(ErrTokenInvalidScope, "Cannot request scopes not in original grant")
			}
		}
		scopes = requested
	}

	accessToken, exp, err := s.issuer.Sign(s.accessClaims(rt.UserID, app, scopes, now), s.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refreshToken := req.RefreshToken
	if s.rotate {
		refreshToken, err = tokens.GenerateOpaqueToken(tokens.RefreshTokenPrefix, refreshTokenBytes)
		if err != nil {
			return nil, err
		}
		rotated, err := s.grants.RotateRefreshToken(ctx, hash, repository.CreateRefreshTokenInput{
			TokenHash:         tokens.HashToken(refreshToken),
			ApplicationID:     app.ID,
			UserID:            rt.UserID,
			Scopes:            scopes,
			AuthorizationCode: rt.AuthorizationCode,
			ExpiresAt:         now.Add(s.refreshTTL),
		})
		if err != nil {
			return nil, err
		}
		if !rotated {
			// Otro refresh (o una cascada) lo revocó entre el lookup y acá
			log.Warn("refresh token already rotated or revoked")
			return nil, grantErr(ErrTokenInvalidGrant, "Invalid or expired refresh token")
		}
	}

	if _, err := s.grants.CreateAccessTokenRecord(ctx, repository.CreateAccessTokenRecordInput{
		TokenHash:         tokens.HashToken(accessToken),
		ApplicationID:     app.ID,
		UserID:            rt.UserID,
		Scopes:            scopes,
		AuthorizationCode: rt.AuthorizationCode,
		ExpiresAt:         exp,
	}); err != nil {
		return nil, err
	}

	s.sink.Record(analytics.Event{AppID: app.ID, Kind: analytics.KindRefresh})

	log.Info("refresh token exchanged", logger.AppID(app.ID), logger.UserID(rt.UserID),
		logger.Scopes(scopes), logger.Bool("rotated", s.rotate))

	return &TokenResponse{
		AccessToken:  accessToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTTL.Seconds()),
		RefreshToken: refreshToken,
		Scope:        strings.Join(scopes, " "),
	}, nil
}

// ExchangeClientCredentials handles grant_type=client_credentials.
func (s *tokenService) ExchangeClientCredentials(ctx context.Context, req ClientCredentialsRequest) (*TokenResponse, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.token.client_credentials"), logger.ClientID(req.ClientID))

	if req.ClientID == "" || req.ClientSecret == "" {
		return nil, grantErr(ErrTokenInvalidRequest, "Missing client credentials")
	}

	app, err := s.apps.FindByClientID(ctx, req.ClientID)
	if err != nil {
		if repository.IsNotFound(err) {
			log.Warn("unknown client_id")
			return nil, grantErr(ErrTokenInvalidClient, "Unknown client_id")
		}
		return nil, err
	}

	if !tokens.SecretMatches(req.ClientSecret, app.ClientSecretHash) {
		log.Warn("client secret mismatch")
		return nil, grantErr(ErrTokenInvalidClient, "Invalid client credentials")
	}

	if !app.IsApproved() {
		log.Warn("application not approved", logger.String("status", app.Status))
		return nil, grantErr(ErrTokenUnauthorizedClient, "Application is not approved")
	}

	// Solo scopes de la app: nunca user.*, aunque estén permitidos
	granted := []string{}
	for _, sc := range splitScopes(req.Scope) {
		if app.AllowsScope(sc) && !strings.HasPrefix(sc, userScopePrefix) {
			granted = append(granted, sc)
		}
	}

	now := s.clock()
	claims := map[string]any{
		"sub":        "app:" + app.ID,
		"aud":        app.ClientID,
		"app_id":     app.ID,
		"scopes":     granted,
		"iat":        now.Unix(),
		"jti":        uuid.NewString(),
		"grant_type": GrantClientCredentials,
	}
	accessToken, _, err := s.issuer.Sign(claims, s.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	s.sink.Record(analytics.Event{AppID: app.ID, Kind: analytics.KindClientCredentials})

	log.Info("client credentials granted", logger.AppID(app.ID), logger.Scopes(granted))
	return &TokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.accessTTL.Seconds()),
		Scope:       strings.Join(granted, " "),
	}, nil
}

// ─── Helpers ───

func (s *tokenService) accessClaims(userID string, app *repository.Application, scopes []string, now time.Time) map[string]any {
	return map[string]any{
		"sub":    userID,
		"aud":    app.ClientID,
		"app_id": app.ID,
		"scopes": scopes,
		"iat":    now.Unix(),
		"jti":    uuid.NewString(),
	}
}

// idTokenClaims arma el id_token. El perfil es best-effort: si falla, van solo los claims base.
func (s *tokenService) idTokenClaims(ctx context.Context, log *zap.Logger, userID string, app *repository.Application, now time.Time) map[string]any {
	claims := map[string]any{
		"sub": userID,
		"aud": app.ClientID,
		"iat": now.Unix(),
	}
	if s.profiles == nil {
		return claims
	}
	p, err := s.profiles.GetUserProfile(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			log.Warn("profile lookup failed, id_token without profile claims", logger.UserID(userID), logger.Err(err))
		}
		return claims
	}
	setIfNotEmpty(claims, "email", p.Email)
	setIfNotEmpty(claims, "name", p.FullName)
	setIfNotEmpty(claims, "picture", p.AvatarURL)
	return claims
}

// secretMatchesWithGrace prueba el secret actual y, si la ventana sigue abierta, el anterior.
func secretMatchesWithGrace(app *repository.Application, secret string, now time.Time) bool {
	if tokens.SecretMatches(secret, app.ClientSecretHash) {
		return true
	}
	return app.PreviousSecretActive(now) && tokens.SecretMatches(secret, *app.PreviousClientSecretHash)
}

// splitScopes separa por whitespace, sin vacíos ni duplicados, preservando orden.
func splitScopes(raw string) []string {
	fields := strings.Fields(raw)
	out := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

func containsScope(scopes []string, want string) bool {
	for _, s := range scopes {
		if s == want {
			return true
		}
	}
	return false
}

func setIfNotEmpty(m map[string]any, k, v string) {
	if v != "" {
		m[k] = v
	}
}
