// Package service holds the business rules of the API.
//
// Handlers parse HTTP and call a service with plain values; services
// validate, enforce ownership and call a repository. Nothing in here imports
// net/http types for I/O, so the same rules apply to any caller.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/snippets-api/internal/apperror"
	"github.com/sakif/snippets-api/internal/model"
	"github.com/sakif/snippets-api/internal/permission"
	"github.com/sakif/snippets-api/internal/repository"
	"github.com/sakif/snippets-api/internal/serializer"
)

// objectPolicies guard every change to an existing snippet.
var objectPolicies = []permission.Policy{
	permission.IsAuthenticatedOrReadOnly{},
	permission.IsOwnerOrReadOnly{},
}

// SnippetService handles business logic for code snippets.
type SnippetService struct {
	repo      repository.SnippetRepository
	validator *serializer.Validator
	logger    *slog.Logger
}

func NewSnippetService(repo repository.SnippetRepository, validator *serializer.Validator, logger *slog.Logger) *SnippetService {
	return &SnippetService{
		repo:      repo,
		validator: validator,
		logger:    logger,
	}
}

// Create validates in and stores a new snippet owned by ownerID.
// Omitted fields take their defaults: empty title, linenos off, python, friendly.
func (s *SnippetService) Create(ctx context.Context, ownerID string, in serializer.SnippetInput) (*model.Snippet, error) {
	if ownerID == "" {
		return nil, apperror.Unauthorized("authentication credentials were not provided")
	}

	snippet := &model.Snippet{
		Language: model.DefaultLanguage,
		Style:    model.DefaultStyle,
		OwnerID:  ownerID,
	}
	if err := s.validator.ApplySnippet(snippet, in, false); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, snippet); err != nil {
		s.logger.Error("failed to create snippet",
			slog.String("owner", ownerID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating snippet: %w", err)
	}

	s.logger.Info("snippet created",
		slog.String("id", snippet.ID),
		slog.String("owner", snippet.Owner),
		slog.String("language", snippet.Language),
	)

	return snippet, nil
}

// GetByID returns apperror.ErrNotFound if the snippet doesn't exist.
func (s *SnippetService) GetByID(ctx context.Context, id string) (*model.Snippet, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "snippet ID is required")
	}
	return s.repo.GetByID(ctx, id)
}

// List returns snippets oldest first. limit <= 0 returns all of them.
func (s *SnippetService) List(ctx context.Context, limit, offset int) ([]model.Snippet, error) {
	if offset < 0 {
		offset = 0
	}

	snippets, err := s.repo.List(ctx, repository.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		s.logger.Error("failed to list snippets", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing snippets: %w", err)
	}
	return snippets, nil
}

// Update applies in to the snippet id on behalf of callerID.
//
// Checks run in this order: the snippet must exist (404), the caller must own
// it (401 anonymous, 403 otherwise), then the merged values must validate (400).
// partial selects PATCH semantics, where code may be omitted.
func (s *SnippetService) Update(ctx context.Context, id, callerID string, in serializer.SnippetInput, partial bool) (*model.Snippet, error) {
	method := http.MethodPut
	if partial {
		method = http.MethodPatch
	}

	snippet, err := s.authorize(ctx, id, callerID, method)
	if err != nil {
		return nil, err
	}

	if err := s.validator.ApplySnippet(snippet, in, partial); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, snippet); err != nil {
		s.logger.Error("failed to update snippet",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating snippet: %w", err)
	}

	s.logger.Info("snippet updated",
		slog.String("id", snippet.ID),
		slog.Bool("partial", partial),
	)

	return snippet, nil
}

// Delete removes the snippet id if callerID owns it.
func (s *SnippetService) Delete(ctx context.Context, id, callerID string) error {
	if _, err := s.authorize(ctx, id, callerID, http.MethodDelete); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("snippet deleted",
		slog.String("id", id),
		slog.String("by", callerID),
	)
	return nil
}

// authorize loads the snippet and applies the ownership rule for method.
func (s *SnippetService) authorize(ctx context.Context, id, callerID, method string) (*model.Snippet, error) {
	snippet, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	req := permission.Request{Method: method, CallerID: callerID}
	if err := permission.CheckObject(req, snippet, objectPolicies...); err != nil {
		s.logger.Warn("snippet change denied",
			slog.String("id", id),
			slog.String("method", method),
			slog.String("caller", callerID),
		)
		return nil, err
	}
	return snippet, nil
}
