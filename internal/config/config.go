// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads authtokens configuration from defaults, a YAML
// file, environment fallbacks, and command-line flags, in that order of
// increasing precedence.
package config

import (
	"os"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/authtokens/internal/auth"
	"github.com/holomush/authtokens/internal/auth/bearer"
	"github.com/holomush/authtokens/internal/jobs"
)

// Config is the complete authtokens configuration.
type Config struct {
	Log               LogConfig               `koanf:"log" yaml:"log" json:"log"`
	Database          DatabaseConfig          `koanf:"database" yaml:"database" json:"database"`
	Bearer            BearerConfig            `koanf:"bearer" yaml:"bearer" json:"bearer"`
	Refresh           RefreshConfig           `koanf:"refresh" yaml:"refresh" json:"refresh"`
	PasswordReset     PasswordResetConfig     `koanf:"password_reset" yaml:"password_reset" json:"password_reset"`
	EmailVerification EmailVerificationConfig `koanf:"email_verification" yaml:"email_verification" json:"email_verification"`
	Cleanup           CleanupConfig           `koanf:"cleanup" yaml:"cleanup" json:"cleanup"`
	Notify            NotifyConfig            `koanf:"notify" yaml:"notify" json:"notify"`
	RateLimit         RateLimitConfig         `koanf:"ratelimit" yaml:"ratelimit" json:"ratelimit"`
	Observability     ObservabilityConfig     `koanf:"observability" yaml:"observability" json:"observability"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format" yaml:"format" json:"format" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" yaml:"level" json:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// DatabaseConfig configures the PostgreSQL pool.
type DatabaseConfig struct {
	URL      string `koanf:"url" yaml:"url" json:"url" jsonschema:"description=PostgreSQL URL; DATABASE_URL when unset"`
	MaxConns int32  `koanf:"max_conns" yaml:"max_conns" json:"max_conns" jsonschema:"minimum=1"`
}

// BearerConfig configures access tokens. Either Secret (HS256) or
// PrivateKeyFile (RS256/EdDSA) provides the signing key.
type BearerConfig struct {
	Issuer         string        `koanf:"issuer" yaml:"issuer" json:"issuer"`
	Audience       string        `koanf:"audience" yaml:"audience" json:"audience"`
	AccessTTL      time.Duration `koanf:"access_ttl" yaml:"access_ttl" json:"access_ttl" jsonschema:"type=string"`
	Leeway         time.Duration `koanf:"leeway" yaml:"leeway" json:"leeway" jsonschema:"type=string"`
	Secret         string        `koanf:"secret" yaml:"secret" json:"secret" jsonschema:"description=HS256 secret; AUTHTOKENS_JWT_SECRET when unset"`
	PrivateKeyFile string        `koanf:"private_key_file" yaml:"private_key_file" json:"private_key_file"`
	PublicKeyFile  string        `koanf:"public_key_file" yaml:"public_key_file" json:"public_key_file"`
}

// RefreshConfig configures refresh sessions.
type RefreshConfig struct {
	TTL                   time.Duration `koanf:"ttl" yaml:"ttl" json:"ttl" jsonschema:"type=string"`
	MaxSessionsPerAccount int           `koanf:"max_sessions_per_account" yaml:"max_sessions_per_account" json:"max_sessions_per_account" jsonschema:"description=0 disables the cap"`
	PersistPlaintext      bool          `koanf:"persist_plaintext" yaml:"persist_plaintext" json:"persist_plaintext"`
}

// PasswordResetConfig configures password reset mail.
type PasswordResetConfig struct {
	TTL                time.Duration `koanf:"ttl" yaml:"ttl" json:"ttl" jsonschema:"type=string"`
	FrontendURL        string        `koanf:"frontend_url" yaml:"frontend_url" json:"frontend_url"`
	MinRequestDuration time.Duration `koanf:"min_request_duration" yaml:"min_request_duration" json:"min_request_duration" jsonschema:"type=string"`
}

// EmailVerificationConfig configures verification mail and redirects.
type EmailVerificationConfig struct {
	TTL              time.Duration `koanf:"ttl" yaml:"ttl" json:"ttl" jsonschema:"type=string"`
	BackendVerifyURL string        `koanf:"backend_verify_url" yaml:"backend_verify_url" json:"backend_verify_url"`
	SuccessURL       string        `koanf:"success_url" yaml:"success_url" json:"success_url"`
	ErrorURL         string        `koanf:"error_url" yaml:"error_url" json:"error_url"`
}

// CleanupConfig configures the cleanup schedule.
type CleanupConfig struct {
	Schedule string `koanf:"schedule" yaml:"schedule" json:"schedule" jsonschema:"description=Six-field cron spec (seconds first)"`
}

// Notifier drivers.
const (
	NotifyDriverLog  = "log"
	NotifyDriverAMQP = "amqp"
)

// NotifyConfig configures mail delivery.
type NotifyConfig struct {
	Driver     string `koanf:"driver" yaml:"driver" json:"driver" jsonschema:"enum=log,enum=amqp"`
	AMQPURL    string `koanf:"amqp_url" yaml:"amqp_url" json:"amqp_url"`
	Queue      string `koanf:"queue" yaml:"queue" json:"queue"`
	BufferSize int    `koanf:"buffer_size" yaml:"buffer_size" json:"buffer_size" jsonschema:"minimum=1"`
	MaxRetries uint64 `koanf:"max_retries" yaml:"max_retries" json:"max_retries"`
}

// RateLimitConfig configures mail request throttling. An empty RedisAddr
// disables it.
type RateLimitConfig struct {
	RedisAddr   string        `koanf:"redis_addr" yaml:"redis_addr" json:"redis_addr"`
	Window      time.Duration `koanf:"window" yaml:"window" json:"window" jsonschema:"type=string"`
	MaxRequests int64         `koanf:"max_requests" yaml:"max_requests" json:"max_requests" jsonschema:"minimum=1"`
}

// ObservabilityConfig configures the metrics and health server. An empty
// address disables it.
type ObservabilityConfig struct {
	MetricsAddr string `koanf:"metrics_addr" yaml:"metrics_addr" json:"metrics_addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log:      LogConfig{Format: "json", Level: "info"},
		Database: DatabaseConfig{MaxConns: 10},
		Bearer: BearerConfig{
			Issuer:    "authtokens",
			Audience:  "api",
			AccessTTL: bearer.DefaultTTL,
			Leeway:    bearer.DefaultLeeway,
		},
		Refresh: RefreshConfig{
			TTL:                   auth.DefaultRefreshTTL,
			MaxSessionsPerAccount: auth.DefaultMaxSessionsPerAccount,
		},
		PasswordReset: PasswordResetConfig{
			TTL:                auth.DefaultPasswordResetTTL,
			FrontendURL:        auth.DefaultFrontendURL,
			MinRequestDuration: 300 * time.Millisecond,
		},
		EmailVerification: EmailVerificationConfig{
			TTL:        auth.DefaultEmailVerificationTTL,
			SuccessURL: auth.DefaultVerifiedURL,
			ErrorURL:   auth.DefaultVerifyErrorURL,
		},
		Cleanup: CleanupConfig{Schedule: "0 0 * * * *"},
		Notify: NotifyConfig{
			Driver:     NotifyDriverLog,
			Queue:      "email_jobs",
			BufferSize: 256,
			MaxRetries: 3,
		},
		RateLimit: RateLimitConfig{
			Window:      15 * time.Minute,
			MaxRequests: 5,
		},
		Observability: ObservabilityConfig{MetricsAddr: "127.0.0.1:9100"},
	}
}

// Validate checks invariants that do not depend on external resources.
func (c *Config) Validate() error {
	invalid := func(key, reason string) error {
		return oops.Code("CONFIG_INVALID").With("key", key).Errorf("%s %s", key, reason)
	}

	switch {
	case c.Log.Format != "json" && c.Log.Format != "text":
		return invalid("log.format", "must be json or text")
	case c.Bearer.AccessTTL <= 0:
		return invalid("bearer.access_ttl", "must be positive")
	case c.Bearer.Secret == "" && c.Bearer.PrivateKeyFile == "":
		return invalid("bearer.secret", "or bearer.private_key_file is required")
	case c.Refresh.TTL <= 0:
		return invalid("refresh.ttl", "must be positive")
	case c.Refresh.MaxSessionsPerAccount < 0:
		return invalid("refresh.max_sessions_per_account", "must not be negative")
	case c.PasswordReset.TTL <= 0:
		return invalid("password_reset.ttl", "must be positive")
	case c.PasswordReset.FrontendURL == "":
		return invalid("password_reset.frontend_url", "is required")
	case c.EmailVerification.TTL <= 0:
		return invalid("email_verification.ttl", "must be positive")
	case c.EmailVerification.SuccessURL == "" || c.EmailVerification.ErrorURL == "":
		return invalid("email_verification", "success_url and error_url are required")
	case c.Cleanup.Schedule == "":
		return invalid("cleanup.schedule", "is required")
	case jobs.ValidateSpec(c.Cleanup.Schedule) != nil:
		return invalid("cleanup.schedule", "is not a valid cron spec")
	case c.Notify.Driver != NotifyDriverLog && c.Notify.Driver != NotifyDriverAMQP:
		return invalid("notify.driver", "must be log or amqp")
	case c.Notify.Driver == NotifyDriverAMQP && c.Notify.AMQPURL == "":
		return invalid("notify.amqp_url", "is required for the amqp driver")
	case c.Notify.BufferSize <= 0:
		return invalid("notify.buffer_size", "must be positive")
	case c.RateLimit.RedisAddr != "" && (c.RateLimit.Window <= 0 || c.RateLimit.MaxRequests <= 0):
		return invalid("ratelimit", "window and max_requests must be positive")
	}
	return nil
}

// RequireDatabase fails unless a database URL is configured.
func (c *Config) RequireDatabase() error {
	if c.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").
			With("key", "database.url").
			Errorf("database.url or DATABASE_URL is required")
	}
	return nil
}

// BearerKeys builds the signing keys. A private key file takes precedence
// over the shared secret.
func (c *Config) BearerKeys() (*bearer.Keys, error) {
	if c.Bearer.PrivateKeyFile == "" {
		return bearer.NewHMACKeys(c.Bearer.Secret)
	}
	priv, err := os.ReadFile(c.Bearer.PrivateKeyFile)
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("key", "bearer.private_key_file").Wrap(err)
	}
	var pub []byte
	if c.Bearer.PublicKeyFile != "" {
		if pub, err = os.ReadFile(c.Bearer.PublicKeyFile); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("key", "bearer.public_key_file").Wrap(err)
		}
	}
	return bearer.NewAsymmetricKeys(priv, pub)
}

// Redacted returns a copy with secrets masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "[REDACTED]"
	}
	out.Bearer.Secret = mask(out.Bearer.Secret)
	out.Database.URL = redactURL(out.Database.URL)
	out.Notify.AMQPURL = redactURL(out.Notify.AMQPURL)
	return &out
}
