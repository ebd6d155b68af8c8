package oauth

import (
	"time"

	"github.com/catalystwells/grantd/internal/analytics"
	"github.com/catalystwells/grantd/internal/domain/repository"
	jwtx "github.com/catalystwells/grantd/internal/jwt"
)

// Deps contiene las dependencias para crear los services OAuth.
type Deps struct {
	Apps      repository.ApplicationRepository
	Grants    repository.GrantRepository
	Profiles  repository.ProfileRepository
	Issuer    *jwtx.Issuer
	Analytics analytics.Sink
	Clock     func() time.Time

	AccessTTL           time.Duration
	RefreshTTL          time.Duration
	RotateRefreshTokens bool
}

// Services agrupa todos los services del dominio OAuth.
type Services struct {
	Token TokenService
}

// NewServices crea el agregador de services OAuth.
func NewServices(d Deps) Services {
	return Services{
		Token: NewTokenService(TokenDeps{
			Apps:                d.Apps,
			Grants:              d.Grants,
			Profiles:            d.Profiles,
			Issuer:              d.Issuer,
			Sink:                d.Analytics,
			Clock:               d.Clock,
			AccessTTL:           d.AccessTTL,
			RefreshTTL:          d.RefreshTTL,
			RotateRefreshTokens: d.RotateRefreshTokens,
		}),
	}
}
