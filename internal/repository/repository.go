// Package repository declares the storage interfaces the service layer depends on.
// Implementations live in sub-packages (see repository/sqlite).
package repository

import (
	"context"

	"github.com/sakif/snippets-api/internal/model"
)

// ListOptions pages a list query. Limit <= 0 means "no limit".
type ListOptions struct {
	Limit  int
	Offset int
}

// SnippetRepository stores snippets. Every read fills in Owner (the owner's username).
type SnippetRepository interface {
	Create(ctx context.Context, snippet *model.Snippet) error
	GetByID(ctx context.Context, id string) (*model.Snippet, error)
	List(ctx context.Context, opts ListOptions) ([]model.Snippet, error)
	Update(ctx context.Context, snippet *model.Snippet) error
	Delete(ctx context.Context, id string) error
}

// UserRepository stores user accounts and answers the owner → snippets question.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	UpsertGitHubUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	ListUsers(ctx context.Context, opts ListOptions) ([]model.UserWithSnippets, error)
	GetUserWithSnippets(ctx context.Context, id string) (*model.UserWithSnippets, error)
}
