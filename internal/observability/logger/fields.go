package logger

import (
	"time"

	"go.uber.org/zap"
)

// Field es un alias de zap.Field para que los callers no importen zap.
type Field = zap.Field

// ─── HTTP ───

func RequestID(v string) zap.Field { return zap.String("request_id", v) }

func Method(v string) zap.Field { return zap.String("method", v) }

func Path(v string) zap.Field { return zap.String("path", v) }

func Status(v int) zap.Field { return zap.Int("status", v) }

func DurationMs(v time.Duration) zap.Field { return zap.Int64("duration_ms", v.Milliseconds()) }

func Bytes(v int) zap.Field { return zap.Int("bytes", v) }

func ClientIP(v string) zap.Field { return zap.String("client_ip", v) }

// ─── OAuth ───

// ClientID is the public OAuth client identifier (never the secret).
func ClientID(v string) zap.Field { return zap.String("client_id", v) }

// AppID is the internal application id behind a client_id.
func AppID(v string) zap.Field { return zap.String("app_id", v) }

func UserID(v string) zap.Field { return zap.String("user_id", v) }

func GrantType(v string) zap.Field { return zap.String("grant_type", v) }

// Scopes logs a granted or requested scope set.
func Scopes(v []string) zap.Field { return zap.Strings("scopes", v) }

// ─── Sistema ───

func Component(v string) zap.Field { return zap.String("component", v) }

// Op identifica la operación (ej. "oauth.token.authcode").
func Op(v string) zap.Field { return zap.String("op", v) }

// Layer: controller, service, repository.
func Layer(v string) zap.Field { return zap.String("layer", v) }

func Err(err error) zap.Field { return zap.Error(err) }

func Count(v int) zap.Field { return zap.Int("count", v) }

func String(key, v string) zap.Field { return zap.String(key, v) }

func Int(key string, v int) zap.Field { return zap.Int(key, v) }

func Int64(key string, v int64) zap.Field { return zap.Int64(key, v) }

func Bool(key string, v bool) zap.Field { return zap.Bool(key, v) }

func Any(key string, v any) zap.Field { return zap.Any(key, v) }
