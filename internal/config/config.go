// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

var configFile = altsrc.StringSourcer("config.toml")

// EncryptionKeySize is the required size of the decoded encryption key.
const EncryptionKeySize = 32

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	Server   ServerConfig
	Log      LogConfig
	Database DatabaseConfig
	TLS      TLSConfig
	Auth     AuthConfig
	Redis    RedisConfig
	SMTP     SMTPConfig
}

type TLSConfig struct {
	CertFile string // Path to certificate file
	KeyFile  string // Path to private key file
}

// Enabled reports whether both certificate and key are configured.
func (c TLSConfig) Enabled() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

type ServerConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host        string
	Port        int
	BaseURL     string
	MaxBodySize int // in MB
	CORSOrigins []string
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

type DatabaseConfig struct {
	DSN string
}

type AuthConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Pepper        string        // appended to every password before hashing
	EncryptionKey string        // 32-byte hex string for AES-256
	JWTSecret     string        // HMAC signing secret for tokens
	Issuer        string        // shown in authenticator apps
	SessionTTL    time.Duration // validity of full session tokens
	StepUpTTL     time.Duration // validity of step-up tokens
	BcryptCost    int
}

// EncryptionKeyBytes decodes the hex encryption key.
func (c AuthConfig) EncryptionKeyBytes() ([]byte, error) {
	key, err := hex.DecodeString(c.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("encryption key is not valid hex: %w", err)
	}
	if len(key) != EncryptionKeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", EncryptionKeySize, len(key))
	}
	return key, nil
}

type RedisConfig struct {
	URL string // empty disables redis
}

type SMTPConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	TLS      bool
}

// Enabled reports whether notification mail can be sent.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.From != ""
}

var (
	ErrMissingPepper    = errors.New("auth pepper is required")
	ErrMissingJWTSecret = errors.New("jwt secret is required")
	ErrInvalidTTL       = errors.New("token lifetimes must be positive")
)

// Validate checks that all secrets required for serving requests are present.
func (c *Config) Validate() error {
	if c.Auth.Pepper == "" {
		return ErrMissingPepper
	}
	if c.Auth.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	if _, err := c.Auth.EncryptionKeyBytes(); err != nil {
		return err
	}
	if c.Auth.SessionTTL <= 0 || c.Auth.StepUpTTL <= 0 {
		return ErrInvalidTTL
	}
	return nil
}

func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:        cmd.String("host"),
			Port:        int(cmd.Int("port")),
			BaseURL:     cmd.String("base-url"),
			MaxBodySize: int(cmd.Int("max-body-size")),
			CORSOrigins: splitList(cmd.String("cors-origins")),
		},
		Log: LogConfig{
			Level:  cmd.String("log-level"),
			Format: cmd.String("log-format"),
		},
		Database: DatabaseConfig{
			DSN: cmd.String("database-dsn"),
		},
		TLS: TLSConfig{
			CertFile: cmd.String("tls-cert-file"),
			KeyFile:  cmd.String("tls-key-file"),
		},
		Auth: AuthConfig{
			Pepper:        cmd.String("pepper"),
			EncryptionKey: cmd.String("encryption-key"),
			JWTSecret:     cmd.String("jwt-secret"),
			Issuer:        cmd.String("totp-issuer"),
			SessionTTL:    cmd.Duration("session-ttl"),
			StepUpTTL:     cmd.Duration("step-up-ttl"),
			BcryptCost:    int(cmd.Int("bcrypt-cost")),
		},
		Redis: RedisConfig{
			URL: cmd.String("redis-url"),
		},
		SMTP: SMTPConfig{
			Host:     cmd.String("smtp-host"),
			Port:     int(cmd.Int("smtp-port")),
			Username: cmd.String("smtp-username"),
			Password: cmd.String("smtp-password"),
			From:     cmd.String("smtp-from"),
			FromName: cmd.String("smtp-from-name"),
			TLS:      cmd.Bool("smtp-tls"),
		},
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = buildBaseURL(cfg)
	}

	return cfg
}

func buildBaseURL(cfg *Config) string {
	host := cfg.Server.Host
	port := cfg.Server.Port

	scheme := "http"
	if cfg.TLS.Enabled() {
		scheme = "https"
	}

	// Hide default ports in URL
	if (scheme == "http" && port == 80) || (scheme == "https" && port == 443) {
		return fmt.Sprintf("%s://%s", scheme, host)
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, port)
}

// splitList splits a comma separated value and drops empty entries.
func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// DatabaseFlags returns the flags needed to reach the database only.
// The admin subcommands use these.
func DatabaseFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "database-dsn",
			Value:   "./data/storefront.db",
			Usage:   "Database DSN (file path for SQLite, postgres:// URL for PostgreSQL)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DATABASE_DSN"), toml.TOML("database.dsn", configFile)),
		},
	}
}

func Flags() []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost",
			Usage:   "Host to bind to",
			Sources: cli.NewValueSourceChain(cli.EnvVar("HOST"), toml.TOML("server.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   5000,
			Usage:   "Port to listen on",
			Sources: cli.NewValueSourceChain(cli.EnvVar("PORT"), toml.TOML("server.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Base URL for the application",
			Sources: cli.NewValueSourceChain(cli.EnvVar("BASE_URL"), toml.TOML("server.base_url", configFile)),
		},
		&cli.IntFlag{
			Name:    "max-body-size",
			Value:   1,
			Usage:   "Maximum request body size in MB",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MAX_BODY_SIZE"), toml.TOML("server.max_body_size", configFile)),
		},
		&cli.StringFlag{
			Name:    "cors-origins",
			Value:   "*",
			Usage:   "Comma separated list of allowed CORS origins",
			Sources: cli.NewValueSourceChain(cli.EnvVar("CORS_ORIGINS"), toml.TOML("server.cors_origins", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_LEVEL"), toml.TOML("log.level", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format (text, json)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_FORMAT"), toml.TOML("log.format", configFile)),
		},
		&cli.StringFlag{
			Name:    "tls-cert-file",
			Usage:   "Path to TLS certificate file",
			Sources: cli.NewValueSourceChain(cli.EnvVar("TLS_CERT_FILE"), toml.TOML("tls.cert_file", configFile)),
		},
		&cli.StringFlag{
			Name:    "tls-key-file",
			Usage:   "Path to TLS private key file",
			Sources: cli.NewValueSourceChain(cli.EnvVar("TLS_KEY_FILE"), toml.TOML("tls.key_file", configFile)),
		},
		// Auth flags
		&cli.StringFlag{
			Name:    "pepper",
			Usage:   "Secret appended to passwords before hashing",
			Sources: cli.NewValueSourceChain(cli.EnvVar("PEPPER"), toml.TOML("auth.pepper", configFile)),
		},
		&cli.StringFlag{
			Name:    "encryption-key",
			Usage:   "Key for encrypting 2FA secrets and recovery codes (32-byte hex)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("ENCRYPTION_KEY"), toml.TOML("auth.encryption_key", configFile)),
		},
		&cli.StringFlag{
			Name:    "jwt-secret",
			Usage:   "Secret used to sign session and step-up tokens",
			Sources: cli.NewValueSourceChain(cli.EnvVar("JWT_SECRET"), toml.TOML("auth.jwt_secret", configFile)),
		},
		&cli.StringFlag{
			Name:    "totp-issuer",
			Value:   "EpicKick",
			Usage:   "Issuer name shown in authenticator apps",
			Sources: cli.NewValueSourceChain(cli.EnvVar("TOTP_ISSUER"), toml.TOML("auth.totp_issuer", configFile)),
		},
		&cli.DurationFlag{
			Name:    "session-ttl",
			Value:   time.Hour,
			Usage:   "Lifetime of session tokens",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SESSION_TTL"), toml.TOML("auth.session_ttl", configFile)),
		},
		&cli.DurationFlag{
			Name:    "step-up-ttl",
			Value:   5 * time.Minute,
			Usage:   "Lifetime of step-up tokens issued while a one-time code is pending",
			Sources: cli.NewValueSourceChain(cli.EnvVar("STEP_UP_TTL"), toml.TOML("auth.step_up_ttl", configFile)),
		},
		&cli.IntFlag{
			Name:    "bcrypt-cost",
			Value:   10,
			Usage:   "bcrypt cost factor for password hashes",
			Sources: cli.NewValueSourceChain(cli.EnvVar("BCRYPT_COST"), toml.TOML("auth.bcrypt_cost", configFile)),
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "Redis URL for single-use step-up tokens (database is used if empty)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("REDIS_URL"), toml.TOML("redis.url", configFile)),
		},
		// SMTP flags
		&cli.StringFlag{
			Name:    "smtp-host",
			Usage:   "SMTP host for security notifications (disabled if empty)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_HOST"), toml.TOML("smtp.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Value:   587,
			Usage:   "SMTP port",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_PORT"), toml.TOML("smtp.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Usage:   "SMTP username",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_USERNAME"), toml.TOML("smtp.username", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Usage:   "SMTP password",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_PASSWORD"), toml.TOML("smtp.password", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-from",
			Usage:   "Sender address for notifications",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_FROM"), toml.TOML("smtp.from", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-from-name",
			Value:   "EpicKick",
			Usage:   "Sender display name",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_FROM_NAME"), toml.TOML("smtp.from_name", configFile)),
		},
		&cli.BoolFlag{
			Name:    "smtp-tls",
			Value:   true,
			Usage:   "Require TLS for SMTP",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_TLS"), toml.TOML("smtp.tls", configFile)),
		},
	}
	return append(flags, DatabaseFlags()...)
}
