package repository

import "context"

// UserProfile carries the claims that go into an id_token.
type UserProfile struct {
	UserID    string `yaml:"user_id"`
	Email     string `yaml:"email"`
	FullName  string `yaml:"full_name"`
	AvatarURL string `yaml:"avatar_url"`
}

// ProfileRepository es best-effort: un error nunca debe fallar un grant.
type ProfileRepository interface {
	GetUserProfile(ctx context.Context, userID string) (*UserProfile, error)
}

// AnalyticsRepository guarda contadores por aplicación.
type AnalyticsRepository interface {
	IncrementTokenExchanges(ctx context.Context, appID string) error
	IncrementTokenRefreshes(ctx context.Context, appID string) error
}
