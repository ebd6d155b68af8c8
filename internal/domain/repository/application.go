package repository

import (
	"context"
	"slices"
	"time"
)

// AppStatusApproved is the only status under which client_credentials may be issued.
const AppStatusApproved = "approved"

// Application es un cliente OAuth registrado por un desarrollador.
type Application struct {
	ID                       string     `json:"id" yaml:"id"`
	ClientID                 string     `json:"client_id" yaml:"client_id"`
	ClientSecretHash         string     `json:"client_secret_hash" yaml:"client_secret_hash"`
	PreviousClientSecretHash *string    `json:"previous_client_secret_hash,omitempty" yaml:"previous_client_secret_hash"`
	PreviousSecretExpiresAt  *time.Time `json:"previous_secret_expires_at,omitempty" yaml:"previous_secret_expires_at"`
	AllowedScopes            []string   `json:"allowed_scopes" yaml:"allowed_scopes"`
	Status                   string     `json:"status" yaml:"status"`
}

// IsApproved reports whether the application may act on its own behalf.
func (a *Application) IsApproved() bool { return a.Status == AppStatusApproved }

// AllowsScope reports whether scope is in the application's allowed set.
func (a *Application) AllowsScope(scope string) bool {
	return slices.Contains(a.AllowedScopes, scope)
}

// PreviousSecretActive reports whether the rotated-out secret is still inside its grace window at now.
func (a *Application) PreviousSecretActive(now time.Time) bool {
	if a.PreviousClientSecretHash == nil || *a.PreviousClientSecretHash == "" || a.PreviousSecretExpiresAt == nil {
		return false
	}
	return now.Before(*a.PreviousSecretExpiresAt)
}

// ApplicationRepository resuelve clientes por client_id.
type ApplicationRepository interface {
	// FindByClientID retorna ErrNotFound si no existe.
	FindByClientID(ctx context.Context, clientID string) (*Application, error)
}
