package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Valores aceptados por Validate.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	CacheMemory = "memory"
	CacheRedis  = "redis"

	AlgHS256 = "HS256"
	AlgEdDSA = "EdDSA"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env      string `yaml:"app_env"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"app"`

	Server struct {
		Addr            string        `yaml:"addr"`
		RequestTimeout  time.Duration `yaml:"request_timeout"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		IdleTimeout     time.Duration `yaml:"idle_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		// TrustedProxies: CIDRs o IPs cuyo X-Forwarded-For se respeta.
		TrustedProxies []string `yaml:"trusted_proxies"`
	} `yaml:"server"`

	Storage struct {
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		SeedFile string `yaml:"seed_file"` // solo driver memory
		Postgres struct {
			MaxConns        int32         `yaml:"max_conns"`
			MinConns        int32         `yaml:"min_conns"`
			ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
		// AppTTL: cuánto vive un client_id resuelto en cache.
		AppTTL time.Duration `yaml:"app_ttl"`
	} `yaml:"cache"`

	JWT struct {
		Issuer      string `yaml:"issuer"`
		Alg         string `yaml:"alg"`
		Secret      string `yaml:"secret"`
		Ed25519Seed string `yaml:"ed25519_seed"` // base64 std, 32 bytes
		KID         string `yaml:"kid"`
	} `yaml:"jwt"`

	OAuth struct {
		AccessTTL           time.Duration `yaml:"access_ttl"`
		RefreshTTL          time.Duration `yaml:"refresh_ttl"`
		RotateRefreshTokens bool          `yaml:"rotate_refresh_tokens"`
	} `yaml:"oauth"`

	Rate struct {
		Enabled     bool          `yaml:"enabled"`
		TokenLimit  int           `yaml:"token_limit"`
		TokenWindow time.Duration `yaml:"token_window"`
	} `yaml:"rate"`

	Analytics struct {
		Buffer         int           `yaml:"buffer"`
		DeliverTimeout time.Duration `yaml:"deliver_timeout"`
	} `yaml:"analytics"`
}

// Load lee el YAML (si path no es vacío), aplica defaults, pisa con env y valida.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	c.applyEnvOverrides()
	c.applyDefaults()

	// seed relativo al directorio del YAML
	if p := strings.TrimSpace(c.Storage.SeedFile); p != "" && path != "" && !filepath.IsAbs(p) {
		c.Storage.SeedFile = filepath.Clean(filepath.Join(filepath.Dir(path), p))
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = 10 * time.Second
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverPostgres
	}
	if c.Storage.Postgres.MaxConns == 0 {
		c.Storage.Postgres.MaxConns = 20
	}

	if c.Cache.Kind == "" {
		c.Cache.Kind = CacheMemory
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "grantd"
	}
	if c.Cache.AppTTL == 0 {
		c.Cache.AppTTL = 30 * time.Second
	}

	if c.JWT.Issuer == "" {
		c.JWT.Issuer = "catalystwells"
	}
	if c.JWT.Alg == "" {
		c.JWT.Alg = AlgHS256
	}
	if c.JWT.KID == "" {
		c.JWT.KID = "grantd-1"
	}

	if c.OAuth.AccessTTL == 0 {
		c.OAuth.AccessTTL = time.Hour
	}
	if c.OAuth.RefreshTTL == 0 {
		c.OAuth.RefreshTTL = 720 * time.Hour // 30d
	}

	if c.Rate.TokenLimit == 0 {
		c.Rate.TokenLimit = 60
	}
	if c.Rate.TokenWindow == 0 {
		c.Rate.TokenWindow = time.Minute
	}

	if c.Analytics.Buffer == 0 {
		c.Analytics.Buffer = 1024
	}
	if c.Analytics.DeliverTimeout == 0 {
		c.Analytics.DeliverTimeout = 5 * time.Second
	}
}

// splitList parte "a, b,,c" en [a b c].
func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

// getEnvDur acepta "90s"/"1h" o un entero pelado en segundos ("3600").
func getEnvDur(key string) (time.Duration, bool) {
	s, ok := getEnvStr(key)
	if !ok {
		return 0, false
	}
	s = strings.TrimSpace(s)
	if d, err := time.ParseDuration(s); err == nil {
		return d, true
	}
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, true
	}
	return 0, false
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.App.LogLevel = v
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvDur("SERVER_REQUEST_TIMEOUT"); ok {
		c.Server.RequestTimeout = v
	}
	if v, ok := getEnvStr("SERVER_TRUSTED_PROXIES"); ok {
		c.Server.TrustedProxies = splitList(v)
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = strings.ToLower(v)
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvStr("STORAGE_SEED_FILE"); ok {
		c.Storage.SeedFile = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = strings.ToLower(v)
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}
	if v, ok := getEnvDur("CACHE_APP_TTL"); ok {
		c.Cache.AppTTL = v
	}

	// JWT
	if v, ok := getEnvStr("JWT_ISSUER"); ok {
		c.JWT.Issuer = v
	}
	if v, ok := getEnvStr("JWT_ALG"); ok {
		c.JWT.Alg = v
	}
	if v, ok := getEnvStr("JWT_SECRET"); ok {
		c.JWT.Secret = v
	}
	if v, ok := getEnvStr("JWT_ED25519_SEED"); ok {
		c.JWT.Ed25519Seed = v
	}
	if v, ok := getEnvStr("JWT_KID"); ok {
		c.JWT.KID = v
	}

	// OAUTH
	if v, ok := getEnvDur("OAUTH_ACCESS_TTL"); ok {
		c.OAuth.AccessTTL = v
	}
	if v, ok := getEnvDur("OAUTH_REFRESH_TTL"); ok {
		c.OAuth.RefreshTTL = v
	}
	if v, ok := getEnvBool("ROTATE_REFRESH_TOKENS"); ok {
		c.OAuth.RotateRefreshTokens = v
	}

	// RATE
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvInt("RATE_TOKEN_LIMIT"); ok {
		c.Rate.TokenLimit = v
	}
	if v, ok := getEnvDur("RATE_TOKEN_WINDOW"); ok {
		c.Rate.TokenWindow = v
	}

	// ANALYTICS
	if v, ok := getEnvInt("ANALYTICS_BUFFER"); ok {
		c.Analytics.Buffer = v
	}
}

// IsProd reporta si APP_ENV=prod.
func (c *Config) IsProd() bool { return strings.EqualFold(c.App.Env, "prod") }

// Validate rechaza combinaciones con las que el servicio no puede arrancar.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Driver {
	case DriverPostgres:
		if strings.TrimSpace(c.Storage.DSN) == "" {
			errs = append(errs, errors.New("storage.dsn is required for driver postgres"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}

	switch c.Cache.Kind {
	case CacheMemory, CacheRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown cache kind %q", c.Cache.Kind))
	}

	switch c.JWT.Alg {
	case AlgHS256:
		if c.JWT.Secret == "" && c.IsProd() {
			errs = append(errs, errors.New("jwt.secret is required for HS256 in prod"))
		}
	case AlgEdDSA:
		if c.JWT.Ed25519Seed == "" && c.IsProd() {
			errs = append(errs, errors.New("jwt.ed25519_seed is required for EdDSA in prod"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown jwt alg %q", c.JWT.Alg))
	}

	if c.OAuth.AccessTTL <= 0 {
		errs = append(errs, errors.New("oauth.access_ttl must be positive"))
	}
	if c.OAuth.RefreshTTL <= 0 {
		errs = append(errs, errors.New("oauth.refresh_ttl must be positive"))
	}
	if c.Cache.AppTTL < 0 {
		errs = append(errs, errors.New("cache.app_ttl must not be negative"))
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, errors.New("server.request_timeout must be positive"))
	}
	if c.Rate.Enabled && (c.Rate.TokenLimit <= 0 || c.Rate.TokenWindow <= 0) {
		errs = append(errs, errors.New("rate.token_limit and rate.token_window must be positive when rate is enabled"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
