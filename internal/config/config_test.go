package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")

	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", c.Server.Addr)
	assert.Equal(t, 10*time.Second, c.Server.RequestTimeout)
	assert.Equal(t, "catalystwells", c.JWT.Issuer)
	assert.Equal(t, AlgHS256, c.JWT.Alg)
	assert.Equal(t, time.Hour, c.OAuth.AccessTTL)
	assert.Equal(t, 720*time.Hour, c.OAuth.RefreshTTL)
	assert.Equal(t, 30*time.Second, c.Cache.AppTTL)
	assert.False(t, c.OAuth.RotateRefreshTokens)
	assert.Empty(t, c.Server.TrustedProxies)
}

func TestLoad_TrustedProxiesFromEnv(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("SERVER_TRUSTED_PROXIES", " 10.0.0.0/8, ,192.0.2.10 ")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.10"}, c.Server.TrustedProxies)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	p := writeYAML(t, `
storage:
  driver: memory
  seed_file: seed.yaml
jwt:
  issuer: from-yaml
  secret: s3cret
oauth:
  access_ttl: 15m
`)
	t.Setenv("JWT_ISSUER", "from-env")
	t.Setenv("OAUTH_REFRESH_TTL", "86400")
	t.Setenv("ROTATE_REFRESH_TOKENS", "true")

	c, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, "from-env", c.JWT.Issuer)
	assert.Equal(t, 15*time.Minute, c.OAuth.AccessTTL)
	assert.Equal(t, 24*time.Hour, c.OAuth.RefreshTTL)
	assert.True(t, c.OAuth.RotateRefreshTokens)
	assert.Equal(t, filepath.Join(filepath.Dir(p), "seed.yaml"), c.Storage.SeedFile)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"unknown driver", map[string]string{"STORAGE_DRIVER": "mongo"}, "unknown storage driver"},
		{"postgres without dsn", map[string]string{"STORAGE_DRIVER": "postgres"}, "storage.dsn"},
		{"unknown alg", map[string]string{"STORAGE_DRIVER": "memory", "JWT_ALG": "RS256"}, "unknown jwt alg"},
		{"unknown cache", map[string]string{"STORAGE_DRIVER": "memory", "CACHE_KIND": "memcached"}, "unknown cache kind"},
		{"hs256 prod without secret", map[string]string{"STORAGE_DRIVER": "memory", "APP_ENV": "prod"}, "jwt.secret"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestValidate_NonPositiveTTL(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	c, err := Load("")
	require.NoError(t, err)

	c.OAuth.AccessTTL = -time.Second
	err = c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oauth.access_ttl")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
