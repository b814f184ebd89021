package handler_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/snippets-api/internal/auth"
	"github.com/sakif/snippets-api/internal/executor"
	"github.com/sakif/snippets-api/internal/handler"
	sqliteRepo "github.com/sakif/snippets-api/internal/repository/sqlite"
	"github.com/sakif/snippets-api/internal/serializer"
	"github.com/sakif/snippets-api/internal/service"
)

// testEnv is a router over real services and an in-memory database.
type testEnv struct {
	router http.Handler
	auth   *service.AuthService
	tokens *auth.TokenService
}

// envOptions tweak the wiring for a single test.
type envOptions struct {
	exec   executor.Executor
	github *auth.GitHubProvider
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := sqliteRepo.New(sqliteRepo.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("handler-test-secret-0123456789", time.Hour)
	require.NoError(t, err)

	validator := serializer.New()
	authService := service.NewAuthService(db, tokens, auth.NewPasswordServiceWithCost(bcrypt.MinCost), validator, logger)
	snippetService := service.NewSnippetService(db, validator, logger)
	userService := service.NewUserService(db, logger)

	authenticator := auth.NewAuthenticator(tokens, authService, logger)
	snippets := handler.NewSnippetHandler(snippetService, logger)
	users := handler.NewUserHandler(userService, logger)
	authHandler := handler.NewAuthHandler(authService, opts.github, false, logger)
	run := handler.NewExecuteHandler(opts.exec, snippetService, logger)
	health := handler.NewHealthHandler(db, logger)

	r := chi.NewRouter()
	r.Use(authenticator.OptionalAuth)
	r.Get("/healthz", health.HandleHealth)
	r.Route("/snippets", func(r chi.Router) {
		r.Get("/", snippets.HandleList)
		r.Post("/", snippets.HandleCreate)
		r.Get("/choices", snippets.HandleChoices)
		r.Get("/{id}", snippets.HandleGet)
		r.Put("/{id}", snippets.HandleUpdate)
		r.Patch("/{id}", snippets.HandlePartialUpdate)
		r.Delete("/{id}", snippets.HandleDelete)
		r.Post("/{id}/run", run.HandleRun)
	})
	r.Route("/users", func(r chi.Router) {
		r.Get("/", users.HandleList)
		r.Get("/{id}", users.HandleGet)
	})
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)
		r.With(authenticator.RequireAuth).Get("/me", authHandler.HandleMe)
		r.Get("/github/login", authHandler.HandleGitHubLogin)
		r.Get("/github/callback", authHandler.HandleGitHubCallback)
	})

	return &testEnv{router: r, auth: authService, tokens: tokens}
}

type requestOption func(*http.Request)

func withBearer(token string) requestOption {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func withBasic(username, password string) requestOption {
	return func(r *http.Request) { r.SetBasicAuth(username, password) }
}

func withCookie(c *http.Cookie) requestOption {
	return func(r *http.Request) { r.AddCookie(c) }
}

func (e *testEnv) do(t *testing.T, method, path, body string, opts ...requestOption) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

// signup registers username and returns its id and a bearer token.
func (e *testEnv) signup(t *testing.T, username string) (id, token string) {
	t.Helper()
	user, err := e.auth.Register(context.Background(), serializer.RegisterInput{Username: username, Password: "password123"})
	require.NoError(t, err)
	token, err = e.tokens.Generate(user.ID)
	require.NoError(t, err)
	return user.ID, token
}

// snippetJSON mirrors the public snippet record.
type snippetJSON struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Code     string `json:"code"`
	LineNos  bool   `json:"linenos"`
	Language string `json:"language"`
	Style    string `json:"style"`
	Owner    string `json:"owner"`
}

func (e *testEnv) createSnippet(t *testing.T, token, body string) snippetJSON {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/snippets/", body, withBearer(token))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[snippetJSON](t, rr)
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}
