// Package config loads server configuration from the environment.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	Port               string
	LogLevel           string
	SessionDSN         string
	SessionTTL         time.Duration
	SessionSecret      string
	TokenTTL           time.Duration
	CORSAllowedOrigins []string
	IngestDelay        time.Duration
	IngestTimeout      time.Duration
	MaxUploadBytes     int64
	UploadRate         string
	MetricsNamespace   string
	StaticPath         string

	// TrustedProxy makes the server take client addresses from
	// X-Forwarded-For and X-Real-IP. Enable it only behind a reverse proxy
	// that overwrites those headers.
	TrustedProxy bool

	// EphemeralSecret is set when SESSION_SECRET was not configured and a
	// random one was generated; tokens will not survive a restart.
	EphemeralSecret bool
}

// Load reads configuration from environment variables and an optional .env
// file. Unset or blank variables take their defaults; malformed ones are
// reported together in the returned error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	r := &envReader{k: k}

	cfg := &Config{
		Port:               r.str("PORT", "8080"),
		LogLevel:           r.str("LOG_LEVEL", "info"),
		SessionDSN:         r.str("SESSION_DSN", ":memory:"),
		SessionTTL:         r.duration("SESSION_TTL", 2*time.Hour),
		SessionSecret:      r.str("SESSION_SECRET", ""),
		TokenTTL:           r.duration("TOKEN_TTL", 24*time.Hour),
		CORSAllowedOrigins: r.list("CORS_ALLOWED_ORIGINS", "*"),
		IngestDelay:        r.duration("INGEST_DELAY", 2*time.Second),
		IngestTimeout:      r.duration("INGEST_TIMEOUT", 30*time.Second),
		MaxUploadBytes:     r.positiveInt("MAX_UPLOAD_BYTES", 10<<20),
		UploadRate:         r.str("UPLOAD_RATE", "10-M"),
		MetricsNamespace:   r.str("METRICS_NAMESPACE", "splittab"),
		StaticPath:         r.str("STATIC_PATH", ""),
		TrustedProxy:       r.boolean("TRUSTED_PROXY"),
	}
	if err := errors.Join(r.errs...); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if strings.EqualFold(cfg.UploadRate, "off") {
		cfg.UploadRate = ""
	}

	if cfg.SessionSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
		cfg.SessionSecret = secret
		cfg.EphemeralSecret = true
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// envReader reads typed values out of koanf, collecting parse failures.
type envReader struct {
	k    *koanf.Koanf
	errs []error
}

func (r *envReader) raw(key string) string {
	return strings.TrimSpace(r.k.String(key))
}

func (r *envReader) str(key, def string) string {
	if v := r.raw(key); v != "" {
		return v
	}
	return def
}

func (r *envReader) duration(key string, def time.Duration) time.Duration {
	v := r.raw(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		r.errs = append(r.errs, fmt.Errorf("%s: %q is not a duration", key, v))
		return def
	}
	return d
}

func (r *envReader) positiveInt(key string, def int64) int64 {
	v := r.raw(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		r.errs = append(r.errs, fmt.Errorf("%s: %q is not a positive integer", key, v))
		return def
	}
	return n
}

func (r *envReader) boolean(key string) bool {
	v := r.raw(key)
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %q is not a boolean", key, v))
	}
	return b
}

// list splits a comma-separated value, dropping blank entries.
func (r *envReader) list(key, def string) []string {
	var out []string
	for _, part := range strings.Split(r.str(key, def), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return []string{def}
	}
	return out
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
