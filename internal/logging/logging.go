package logging

import (
	"net/url"
	"strings"

	"github.com/prepvault/storefront/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Query parameters that carry credentials and must never reach a log line.
var sensitiveParams = []string{"token", "access_token", "accessToken", "refreshToken", "refresh_token", "code", "state"}

func New(serverCfg config.ServerConfig, logCfg config.LogConfig) (*zap.Logger, error) {
	var cfg zap.Config
	if serverCfg.IsProduction() {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	level := zapcore.InfoLevel
	if logCfg.Verbose {
		level = zapcore.DebugLevel
	} else if err := level.UnmarshalText([]byte(logCfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	return cfg.Build()
}

// Secret logs only a short prefix of value.
func Secret(key, value string) zap.Field {
	return zap.String(key, Mask(value))
}

func Mask(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 8 {
		return "***"
	}
	return value[:4] + "***"
}

// RedactQuery strips credential-bearing query parameters from a request URI.
func RedactQuery(u *url.URL) string {
	if u == nil {
		return ""
	}
	if u.RawQuery == "" {
		return u.Path
	}
	q := u.Query()
	for _, key := range sensitiveParams {
		if q.Has(key) {
			q.Set(key, "REDACTED")
		}
	}
	return u.Path + "?" + q.Encode()
}

// Email keeps the domain and the first character of the local part.
func Email(key, value string) zap.Field {
	at := strings.LastIndex(value, "@")
	if at <= 0 {
		return zap.String(key, Mask(value))
	}
	return zap.String(key, value[:1]+"***"+value[at:])
}
