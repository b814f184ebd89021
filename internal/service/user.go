package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/snippets-api/internal/apperror"
	"github.com/sakif/snippets-api/internal/model"
	"github.com/sakif/snippets-api/internal/repository"
)

// UserService exposes users read-only, each with the ids of the snippets they own.
type UserService struct {
	repo   repository.UserRepository
	logger *slog.Logger
}

func NewUserService(repo repository.UserRepository, logger *slog.Logger) *UserService {
	return &UserService{repo: repo, logger: logger}
}

// List returns users in creation order. limit <= 0 returns all of them.
func (s *UserService) List(ctx context.Context, limit, offset int) ([]model.UserWithSnippets, error) {
	if offset < 0 {
		offset = 0
	}

	users, err := s.repo.ListUsers(ctx, repository.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		s.logger.Error("failed to list users", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

// Get returns apperror.ErrNotFound for an unknown id.
func (s *UserService) Get(ctx context.Context, id string) (*model.UserWithSnippets, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "user ID is required")
	}
	return s.repo.GetUserWithSnippets(ctx, id)
}
