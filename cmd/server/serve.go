package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/mmynk/lifeboard/internal/app"
	"github.com/mmynk/lifeboard/pkg/logging"
)

// ServeCmd runs the HTTP server.
type ServeCmd struct {
	Listen        string        `help:"HTTP listen address." default:":8080" env:"LIFEBOARD_LISTEN"`
	JWTSecret     string        `help:"Secret for signing session tokens." required:"" env:"JWT_SECRET"`
	TokenTTL      time.Duration `help:"Session token lifetime." default:"24h" env:"LIFEBOARD_TOKEN_TTL"`
	AdminCode     string        `help:"Code that grants the admin role at signup. Empty disables it." env:"LIFEBOARD_ADMIN_CODE"`
	SecureCookies bool          `help:"Mark session cookies Secure." env:"LIFEBOARD_SECURE_COOKIES"`
	CORSOrigins   []string      `help:"Allowed CORS origins for browser clients." env:"LIFEBOARD_CORS_ORIGINS"`
	StaticPath    string        `help:"Directory of the web app. Empty serves no app." default:"../frontend/static" env:"STATIC_PATH"`

	Store StoreFlags `embed:"" prefix:"store-"`
}

func (c *ServeCmd) Validate() error {
	if len(c.JWTSecret) < 32 {
		return errors.New("jwt secret must be at least 32 bytes")
	}
	return nil
}

func (c *ServeCmd) Run(globals *Globals) error {
	logger := logging.Setup()
	if globals.Debug {
		logger = logging.SetupWithLevel(slog.LevelDebug)
	}
	logger.Info("Starting server", "version", globals.Version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := c.Store.Open(ctx, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	handler, err := app.NewServer(store, app.ServerConfig{
		JWTSecret:     c.JWTSecret,
		TokenTTL:      c.TokenTTL,
		AdminCode:     c.AdminCode,
		SecureCookies: c.SecureCookies,
		CORSOrigins:   c.CORSOrigins,
		StaticDir:     c.StaticPath,
	}, reg, logger)
	if err != nil {
		return fmt.Errorf("failed to build server: %w", err)
	}

	srv := &http.Server{
		Addr:              c.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Connect server starting", "address", c.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
