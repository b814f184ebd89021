package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// CookieName is the HttpOnly cookie that carries the access token for browsers.
const CookieName = "token"

// ErrNoCredentials means the request carried no Authorization header and no token cookie.
var ErrNoCredentials = errors.New("auth: no credentials")

// contextKey is unexported so no other package can read or overwrite the caller id.
type contextKey string

const userIDKey contextKey = "userID"

// CredentialVerifier checks a username and password and returns the user id.
// The service layer implements it; the middleware only parses the header.
type CredentialVerifier interface {
	VerifyPassword(ctx context.Context, username, password string) (string, error)
}

// Authenticator resolves the caller of a request from a bearer token, Basic
// credentials or the token cookie.
type Authenticator struct {
	tokens   *TokenService
	verifier CredentialVerifier
	logger   *slog.Logger
}

// NewAuthenticator creates an Authenticator. verifier may be nil, in which
// case Basic credentials are never accepted.
func NewAuthenticator(tokens *TokenService, verifier CredentialVerifier, logger *slog.Logger) *Authenticator {
	return &Authenticator{tokens: tokens, verifier: verifier, logger: logger}
}

// Authenticate returns the id of the user who sent r.
//
// The Authorization header wins over the cookie: a request with an invalid
// bearer token is not rescued by a valid cookie.
func (a *Authenticator) Authenticate(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, value, _ := strings.Cut(header, " ")
		switch {
		case strings.EqualFold(scheme, "Bearer"):
			return a.tokens.Validate(strings.TrimSpace(value))
		case strings.EqualFold(scheme, "Basic"):
			username, password, ok := r.BasicAuth()
			if !ok {
				return "", errors.New("auth: malformed basic credentials")
			}
			if a.verifier == nil {
				return "", errors.New("auth: basic credentials not accepted")
			}
			return a.verifier.VerifyPassword(r.Context(), username, password)
		default:
			return "", errors.New("auth: unsupported authorization scheme")
		}
	}

	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return a.tokens.Validate(cookie.Value)
	}

	return "", ErrNoCredentials
}

// OptionalAuth stores the caller id in the request context when the request
// authenticates, and passes anonymous or badly authenticated requests through
// unchanged. Permission policies decide what an anonymous caller may do.
func (a *Authenticator) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := a.Authenticate(r)
		switch {
		case err == nil && userID != "":
			r = r.WithContext(WithUserID(r.Context(), userID))
		case err != nil && !errors.Is(err, ErrNoCredentials):
			a.logger.Debug("ignoring invalid credentials",
				slog.String("path", r.URL.Path),
				slog.String("error", err.Error()),
			)
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth answers 401 unless the request authenticates.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserIDFromContext(r.Context())
		if !ok {
			id, err := a.Authenticate(r)
			if err != nil || id == "" {
				writeUnauthorized(w)
				return
			}
			userID = id
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

// WithUserID returns a copy of ctx carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns the authenticated caller, or ("", false) for anonymous requests.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// SetTokenCookie stores token in the HttpOnly cookie for ttl.
// SameSite=Lax keeps the cookie off cross-site POSTs.
func SetTokenCookie(w http.ResponseWriter, token string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearTokenCookie tells the browser to drop the token cookie.
func ClearTokenCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Basic realm="api"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"message": "authentication credentials were not provided",
	})
}
