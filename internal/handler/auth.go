package handler

import (
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/snippets-api/internal/apperror"
	"github.com/sakif/snippets-api/internal/auth"
	"github.com/sakif/snippets-api/internal/serializer"
	"github.com/sakif/snippets-api/internal/service"
)

const (
	stateCookieName = "oauth_state"
	stateCookieAge  = 600 // seconds
)

// LoginResponse is returned by the password and GitHub login flows.
// The token is also set as the HttpOnly cookie for browser clients.
type LoginResponse struct {
	Token string                `json:"token"`
	User  serializer.UserRecord `json:"user"`
}

// AuthHandler manages registration, password and GitHub login, and logout.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister        → create a password account
//   - HandleLogin           → check credentials, issue a JWT (body + cookie)
//   - HandleLogout          → clear the JWT cookie
//   - HandleMe              → the caller's own user record
//   - HandleGitHubLogin     → redirect the browser to GitHub's authorization page
//   - HandleGitHubCallback  → exchange the code, upsert the user, issue a JWT
//
// github is nil when no OAuth credentials are configured; the GitHub routes
// are then not mounted.
type AuthHandler struct {
	auth          *service.AuthService
	github        *auth.GitHubProvider
	secureCookies bool
	logger        *slog.Logger
}

// NewAuthHandler creates an AuthHandler. secureCookies marks cookies HTTPS-only.
func NewAuthHandler(
	authService *service.AuthService,
	github *auth.GitHubProvider,
	secureCookies bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		auth:          authService,
		github:        github,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

// HandleRegister creates an account.
//
// HTTP: POST /auth/register {"username": "...", "password": "..."} → 201 user record
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in serializer.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.auth.Register(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, serializer.UserRecord{
		ID:       user.ID,
		Username: user.Username,
		Snippets: []string{},
	})
}

// HandleLogin checks a username and password.
//
// HTTP: POST /auth/login {"username": "...", "password": "..."} → 200 {"token", "user"}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in serializer.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.auth.Login(r.Context(), in.Username, in.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	h.respondWithToken(w, r, result)
}

// respondWithToken sets the token cookie and writes the LoginResponse.
func (h *AuthHandler) respondWithToken(w http.ResponseWriter, r *http.Request, result *service.AuthResult) {
	user, err := h.auth.GetUserByID(r.Context(), result.User.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	auth.SetTokenCookie(w, result.Token, h.auth.TokenTTL(), h.secureCookies)
	writeJSON(w, http.StatusOK, LoginResponse{
		Token: result.Token,
		User:  serializer.User(*user),
	})
}

// HandleLogout clears the JWT cookie.
//
// HTTP: POST /auth/logout
//
// Tokens are stateless, so a copied bearer token stays valid until it expires.
// Logout only removes the browser's cookie.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearTokenCookie(w, h.secureCookies)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the authenticated caller's user record.
//
// HTTP: GET /auth/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	user, err := h.auth.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, serializer.User(*user))
}

// HandleGitHubLogin redirects the browser to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// A random state value is stored in a short-lived cookie and checked again by
// HandleGitHubCallback, which proves the callback belongs to a login this
// server started.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		writeError(w, apperror.Unavailable("GitHub login is not configured"))
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   stateCookieAge,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a GitHub user profile
//  3. Upsert the user
//  4. Answer like HandleLogin: token cookie plus {"token", "user"}
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		writeError(w, apperror.Unavailable("GitHub login is not configured"))
		return
	}

	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: invalid state")
		writeError(w, apperror.ValidationFailed("state", "Invalid OAuth state."))
		return
	}

	// The state is single-use.
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		writeError(w, apperror.Unauthorized("GitHub authorization was denied"))
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, apperror.ValidationFailed("code", "Missing OAuth code."))
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		writeError(w, apperror.Unauthorized("GitHub authentication failed"))
		return
	}

	result, err := h.auth.LoginOrRegisterGitHub(r.Context(), ghUser)
	if err != nil {
		writeError(w, err)
		return
	}

	h.respondWithToken(w, r, result)
}
