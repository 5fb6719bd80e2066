// Package app wires the server and client halves of lifeboard together.
package app

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"connectrpc.com/connect"
	connectcors "connectrpc.com/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/lifeboard/internal/auth"
	"github.com/mmynk/lifeboard/internal/guard"
	"github.com/mmynk/lifeboard/internal/middleware"
	"github.com/mmynk/lifeboard/internal/policy"
	"github.com/mmynk/lifeboard/internal/service"
	"github.com/mmynk/lifeboard/internal/storage"
	"github.com/mmynk/lifeboard/internal/telemetry"
	"github.com/mmynk/lifeboard/internal/web"
)

// ServerConfig configures NewServer.
type ServerConfig struct {
	JWTSecret     string
	TokenTTL      time.Duration
	AdminCode     string
	SecureCookies bool
	CORSOrigins   []string
	// StaticDir holds the single-page app. Empty serves no app.
	StaticDir string
	// Routes defaults to the embedded route table.
	Routes *guard.Routes
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

// NewServer returns the complete HTTP handler: Connect services, sign-in
// pages, metrics and the guarded app, with CORS and h2c.
func NewServer(store storage.Store, cfg ServerConfig, reg *prometheus.Registry, logger *slog.Logger) (http.Handler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	routes := cfg.Routes
	if routes == nil {
		var err error
		if routes, err = guard.DefaultRoutes(); err != nil {
			return nil, err
		}
	}

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)
	authenticator := auth.NewPasswordAuthenticator(store)
	if cfg.BcryptCost != 0 {
		authenticator.WithCost(cfg.BcryptCost)
	}
	rpcMetrics := telemetry.NewRPCMetrics(reg)

	common := []connect.Interceptor{middleware.LoggingInterceptor(logger), rpcMetrics.Interceptor()}
	required := connect.WithInterceptors(append(common, middleware.RequireAuth(jwtManager))...)
	optional := connect.WithInterceptors(append(common, middleware.OptionalAuth(jwtManager))...)

	mux := http.NewServeMux()
	mux.Handle(service.NewDataServiceHandler(service.NewDataService(policy.New(store, logger), logger), required))
	mux.Handle(service.NewRoleServiceHandler(service.NewRoleService(store, logger), required))
	mux.Handle(service.NewAuthServiceHandler(service.NewAuthService(authenticator, jwtManager, store,
		service.AuthConfig{AdminCode: cfg.AdminCode, SecureCookies: cfg.SecureCookies}, logger), optional))

	mux.Handle(guard.LoginPath, web.NewLoginHandler(authenticator, jwtManager, cfg.SecureCookies, logger))
	mux.Handle("/logout", web.LogoutHandler(cfg.SecureCookies))
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	app := http.NotFoundHandler()
	if cfg.StaticDir != "" {
		static, err := web.Static(cfg.StaticDir, logger)
		if err != nil {
			return nil, err
		}
		app = static
	}
	gate := guard.New(routes, logger)
	mux.Handle("/", gate.Middleware(guard.RequestIdentity(jwtManager, store))(app))

	handler := loggingMiddleware(logger, withCORS(cfg.CORSOrigins, mux))
	// h2c serves HTTP/2 without TLS for Connect clients.
	return h2c.NewHandler(handler, &http2.Server{}), nil
}

// withCORS adds CORS support for browser Connect clients.
func withCORS(allowedOrigins []string, h http.Handler) http.Handler {
	if len(allowedOrigins) == 0 {
		return h
	}
	middleware := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   connectcors.AllowedMethods(),
		AllowedHeaders:   append(connectcors.AllowedHeaders(), "Authorization"),
		ExposedHeaders:   connectcors.ExposedHeaders(),
		AllowCredentials: true,
	})
	return middleware.Handler(h)
}

// loggingMiddleware logs all incoming requests
func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		logger.Debug("Request received",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"user_agent", r.UserAgent(),
		)

		next.ServeHTTP(w, r)

		logger.Debug("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
