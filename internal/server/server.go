// Package server is the composition root: it opens the database, wires
// repositories into services and services into handlers, mounts the routes
// and runs the HTTP server with graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/snippets-api/internal/auth"
	"github.com/sakif/snippets-api/internal/config"
	"github.com/sakif/snippets-api/internal/executor"
	"github.com/sakif/snippets-api/internal/handler"
	"github.com/sakif/snippets-api/internal/middleware"
	sqliteRepo "github.com/sakif/snippets-api/internal/repository/sqlite"
	"github.com/sakif/snippets-api/internal/serializer"
	"github.com/sakif/snippets-api/internal/service"
)

const shutdownTimeout = 30 * time.Second

// Server owns the router and the database connection.
type Server struct {
	router  *chi.Mux
	config  *config.Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	metrics *middleware.Metrics
}

// New opens the database and builds the router.
//
// exec may be nil, in which case POST /snippets/{id}/run answers 503.
//
// DEPENDENCY CHAIN:
//
//	sqlite.DB → SnippetService / UserService / AuthService → handlers → routes
//
// Services receive the repository interfaces, handlers receive services.
// The handler never touches the database and the service never touches HTTP.
func New(cfg *config.Config, logger *slog.Logger, exec executor.Executor) (*Server, error) {
	if cfg.DBPath != sqliteRepo.MemoryPath {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		db:      db,
		metrics: middleware.NewMetrics(),
	}

	if err := s.setupRoutes(exec); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures middleware and routes.
//
// ROUTES (trailing slashes optional):
//
//	GET    /healthz                    liveness + database ping
//	GET    /metrics                    Prometheus exposition
//	GET    /snippets/                  list snippets
//	POST   /snippets/                  create snippet            (auth)
//	GET    /snippets/choices           language and style choices
//	GET    /snippets/{id}/             retrieve snippet
//	PUT    /snippets/{id}/             update snippet            (owner)
//	PATCH  /snippets/{id}/             partial update            (owner)
//	DELETE /snippets/{id}/             delete snippet            (owner)
//	POST   /snippets/{id}/run          execute snippet           (auth)
//	GET    /users/                     list users
//	GET    /users/{id}/                retrieve user
//	POST   /auth/register              create account
//	POST   /auth/login                 password login
//	POST   /auth/logout                clear token cookie
//	GET    /auth/me                    current user              (auth)
//	GET    /auth/github/login          GitHub OAuth redirect     (if configured)
//	GET    /auth/github/callback       GitHub OAuth callback     (if configured)
//
// MIDDLEWARE ORDER:
// OptionalAuth runs before the logger and metrics so both see the caller;
// Recoverer runs inside them so a panic is still logged and counted as a 500.
func (s *Server) setupRoutes(exec executor.Executor) error {
	tokens, err := auth.NewTokenService(s.config.JWTSecret, s.config.TokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	validator := serializer.New()
	authService := service.NewAuthService(s.db, tokens, auth.NewPasswordService(), validator, s.logger)
	snippetService := service.NewSnippetService(s.db, validator, s.logger)
	userService := service.NewUserService(s.db, s.logger)

	var github *auth.GitHubProvider
	if s.config.GitHub.Enabled() {
		github = auth.NewGitHubProvider(s.config.GitHub.ClientID, s.config.GitHub.ClientSecret, s.config.GitHub.CallbackURL)
	}

	authenticator := auth.NewAuthenticator(tokens, authService, s.logger)
	snippetHandler := handler.NewSnippetHandler(snippetService, s.logger)
	userHandler := handler.NewUserHandler(userService, s.logger)
	authHandler := handler.NewAuthHandler(authService, github, s.config.SecureCookies, s.logger)
	executeHandler := handler.NewExecuteHandler(exec, snippetService, s.logger)
	healthHandler := handler.NewHealthHandler(s.db, s.logger)

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.StripSlashes)
	s.router.Use(authenticator.OptionalAuth)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(s.metrics.Middleware)
	s.router.Use(chimiddleware.Recoverer)

	s.router.Get("/healthz", healthHandler.HandleHealth)
	s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	s.router.Route("/snippets", func(r chi.Router) {
		r.Get("/", snippetHandler.HandleList)
		r.Post("/", snippetHandler.HandleCreate)
		r.Get("/choices", snippetHandler.HandleChoices)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", snippetHandler.HandleGet)
			r.Put("/", snippetHandler.HandleUpdate)
			r.Patch("/", snippetHandler.HandlePartialUpdate)
			r.Delete("/", snippetHandler.HandleDelete)
			r.Post("/run", executeHandler.HandleRun)
		})
	})

	s.router.Route("/users", func(r chi.Router) {
		r.Get("/", userHandler.HandleList)
		r.Get("/{id}", userHandler.HandleGet)
	})

	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)
		r.With(authenticator.RequireAuth).Get("/me", authHandler.HandleMe)

		if github != nil {
			r.Get("/github/login", authHandler.HandleGitHubLogin)
			r.Get("/github/callback", authHandler.HandleGitHubCallback)
		}
	})

	return nil
}

// Handler returns the fully wired router. Used by tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database.
func (s *Server) Close() error {
	return s.db.Close()
}

// Start serves HTTP until SIGINT or SIGTERM, then drains in-flight requests
// for up to 30 seconds and closes the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:              s.config.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Runs wait for a pooled container plus the execution timeout.
		WriteTimeout: 30*time.Second + s.config.Executor.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
			slog.Bool("github", s.config.GitHub.Enabled()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
