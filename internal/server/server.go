// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/oliverandrich/storefront/internal/config"
	"codeberg.org/oliverandrich/storefront/internal/database"
	"codeberg.org/oliverandrich/storefront/internal/handlers"
	"codeberg.org/oliverandrich/storefront/internal/i18n"
	"codeberg.org/oliverandrich/storefront/internal/repository"
	"codeberg.org/oliverandrich/storefront/internal/services/auth"
	"codeberg.org/oliverandrich/storefront/internal/services/cipher"
	"codeberg.org/oliverandrich/storefront/internal/services/email"
	"codeberg.org/oliverandrich/storefront/internal/services/otp"
	"codeberg.org/oliverandrich/storefront/internal/services/replay"
	"codeberg.org/oliverandrich/storefront/internal/services/token"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
	"github.com/vinovest/sqlx"
)

// Server holds the wired application.
type Server struct {
	cfg   *config.Config
	echo  *echo.Echo
	db    *sqlx.DB
	redis *redis.Client
}

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
	)

	srv, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := srv.Close(); closeErr != nil {
			slog.Error("failed to close server resources", "error", closeErr)
		}
	}()

	return srv.startWithGracefulShutdown()
}

// New opens the database, builds all services and registers the routes.
// The configuration must already be valid.
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	// Database
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	srv := &Server{cfg: cfg, db: db}

	// i18n
	if initErr := i18n.Init(); initErr != nil {
		_ = srv.Close()
		return nil, fmt.Errorf("failed to init i18n: %w", initErr)
	}

	svc, err := srv.newAuthService(ctx)
	if err != nil {
		_ = srv.Close()
		return nil, err
	}

	// Echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handlers.ErrorHandler

	setupMiddleware(e, cfg)
	setupRoutes(e, handlers.New(svc), svc)

	srv.echo = e
	return srv, nil
}

func (s *Server) newAuthService(ctx context.Context) (*auth.Service, error) {
	key, err := s.cfg.Auth.EncryptionKeyBytes()
	if err != nil {
		return nil, err
	}
	c, err := cipher.New(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	repo := repository.New(s.db)
	var opts []auth.Option

	if s.cfg.Redis.URL != "" {
		client, err := replay.Dial(ctx, s.cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		s.redis = client
		opts = append(opts, auth.WithReplayGuard(replay.NewRedisGuard(client)))
		slog.Info("step-up replay guard", "backend", "redis")
	}

	if s.cfg.SMTP.Enabled() {
		mailer, err := email.NewService(&s.cfg.SMTP, s.cfg.Server.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create email service: %w", err)
		}
		opts = append(opts, auth.WithNotifier(mailer))
		slog.Info("security notifications enabled", "smtp_host", s.cfg.SMTP.Host)
	}

	return auth.NewService(repo, &s.cfg.Auth, c, token.NewIssuer(&s.cfg.Auth), otp.New(s.cfg.Auth.Issuer), opts...), nil
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Close releases the database and redis connections.
func (s *Server) Close() error {
	var errs []error
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	return errors.Join(errs...)
}

func (s *Server) startWithGracefulShutdown() error {
	var tlsConfig *tls.Config
	if s.cfg.TLS.Enabled() {
		var err error
		tlsConfig, err = loadTLSConfig(s.cfg.TLS)
		if err != nil {
			return fmt.Errorf("TLS setup failed: %w", err)
		}
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	errChan := make(chan error, 1)

	go func() {
		slog.Info("Server running", "url", s.cfg.Server.BaseURL)
		var err error
		if tlsConfig != nil {
			err = startTLSServer(s.echo, addr, tlsConfig)
		} else {
			err = s.echo.Start(addr)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Wait for interrupt signal or error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}

// startTLSServer starts the Echo server with a custom TLS configuration.
func startTLSServer(e *echo.Echo, addr string, tlsConfig *tls.Config) error {
	lc := &net.ListenConfig{}
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return err
	}
	e.TLSListener = tls.NewListener(ln, tlsConfig)
	e.TLSServer.TLSConfig = tlsConfig
	return e.TLSServer.Serve(e.TLSListener)
}
