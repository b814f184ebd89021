package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/snippets-api/internal/apperror"
	"github.com/sakif/snippets-api/internal/auth"
	"github.com/sakif/snippets-api/internal/model"
	"github.com/sakif/snippets-api/internal/repository"
	"github.com/sakif/snippets-api/internal/serializer"
)

const msgBadCredentials = "invalid username or password"

// compile-time check: Basic authentication in the middleware verifies through AuthService.
var _ auth.CredentialVerifier = (*AuthService)(nil)

// AuthService registers users, checks passwords and issues tokens.
//
//	AuthHandler (HTTP) → AuthService → UserRepository (DB)
//	                                 ↘ TokenService (JWT), PasswordService (bcrypt)
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	validator *serializer.Validator
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	validator *serializer.Validator,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		validator: validator,
		logger:    logger,
	}
}

// AuthResult bundles the user and the issued JWT so the handler can set the
// cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// TokenTTL is the lifetime of issued tokens, used for the cookie Max-Age.
func (s *AuthService) TokenTTL() time.Duration {
	return s.tokens.TTL()
}

// Register creates a password account. A taken username yields apperror.ErrConflict.
func (s *AuthService) Register(ctx context.Context, in serializer.RegisterInput) (*model.User, error) {
	if err := s.validator.ValidateCredentials(in); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", err.Error())
	}

	user := &model.User{Username: in.Username, PasswordHash: hash}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.ConflictField("username", "A user with that username already exists.")
		}
		return nil, fmt.Errorf("service/auth: creating user %q: %w", in.Username, err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// Login checks a username and password and issues a token.
// Unknown usernames and wrong passwords fail the same way.
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	userID, err := s.VerifyPassword(ctx, username, password)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", userID, err)
	}

	return s.issue(user)
}

// VerifyPassword returns the id of the user whose credentials these are,
// or apperror.ErrUnauthorized.
func (s *AuthService) VerifyPassword(ctx context.Context, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", apperror.Unauthorized(msgBadCredentials)
	}

	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.passwords.BurnTime(password)
			return "", apperror.Unauthorized(msgBadCredentials)
		}
		return "", fmt.Errorf("service/auth: looking up %q: %w", username, err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			s.logger.Info("password login failed", slog.String("username", username))
			return "", apperror.Unauthorized(msgBadCredentials)
		}
		return "", fmt.Errorf("service/auth: verifying password: %w", err)
	}

	return user.ID, nil
}

// LoginOrRegisterGitHub links a GitHub identity to an account, creating the
// account on first login, and issues a token for it.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, errors.New("service/auth: GitHub user must not be nil")
	}

	githubID := ghUser.ID
	user := &model.User{Username: ghUser.Login, GitHubID: &githubID}
	if err := s.users.UpsertGitHubUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: upserting user (githubID=%d): %w", ghUser.ID, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)

	return s.issue(user)
}

// GetUserByID returns the caller's public record for /auth/me.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.UserWithSnippets, error) {
	if id == "" {
		return nil, apperror.Unauthorized("authentication credentials were not provided")
	}

	user, err := s.users.GetUserWithSnippets(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}
	return user, nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}
