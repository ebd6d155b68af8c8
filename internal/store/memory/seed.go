package memory

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/catalystwells/grantd/internal/domain/repository"
	"github.com/catalystwells/grantd/internal/validation"
)

// Seed es el formato del archivo YAML para poblar el store en modo dev.
type Seed struct {
	Applications []repository.Application       `yaml:"applications"`
	Codes        []repository.AuthorizationCode `yaml:"authorization_codes"`
	Profiles     []repository.UserProfile       `yaml:"profiles"`
}

// LoadSeedFile lee y aplica un archivo de seed.
func (s *Store) LoadSeedFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("memory: read seed: %w", err)
	}
	return s.LoadSeed(b)
}

// LoadSeed aplica un seed YAML ya leído.
func (s *Store) LoadSeed(raw []byte) error {
	var seed Seed
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return fmt.Errorf("memory: parse seed: %w", err)
	}
	for _, a := range seed.Applications {
		if a.ClientID == "" {
			return fmt.Errorf("memory: seed application %q without client_id", a.ID)
		}
		if bad := validation.InvalidScopes(a.AllowedScopes); len(bad) > 0 {
			return fmt.Errorf("memory: seed application %q has invalid scope(s) %v", a.ClientID, bad)
		}
		s.PutApplication(a)
	}
	for _, c := range seed.Codes {
		if c.Code == "" || c.ApplicationID == "" {
			return fmt.Errorf("memory: seed code requires code and application_id")
		}
		s.PutAuthorizationCode(c)
	}
	for _, p := range seed.Profiles {
		s.PutProfile(p)
	}
	return nil
}
