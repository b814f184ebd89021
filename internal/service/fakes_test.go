package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/sakif/snippets-api/internal/apperror"
	"github.com/sakif/snippets-api/internal/model"
	"github.com/sakif/snippets-api/internal/repository"
)

// In-memory fakes for the repository interfaces. They keep insertion order,
// like the SQL implementation's ORDER BY created_at, so list tests are stable.

type fakeSnippetRepo struct {
	users    *fakeUserRepo // resolves Owner the way the SQL JOIN does
	order    []string
	snippets map[string]model.Snippet
	nextID   int

	// set to a non-nil error to simulate a database failure
	createErr error
	listErr   error
}

func newFakeSnippetRepo(users *fakeUserRepo) *fakeSnippetRepo {
	return &fakeSnippetRepo{users: users, snippets: make(map[string]model.Snippet)}
}

func (f *fakeSnippetRepo) Create(_ context.Context, s *model.Snippet) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	s.ID = fmt.Sprintf("snippet-%d", f.nextID)
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	if u, ok := f.users.users[s.OwnerID]; ok {
		s.Owner = u.Username
	}
	f.snippets[s.ID] = *s
	f.order = append(f.order, s.ID)
	return nil
}

func (f *fakeSnippetRepo) GetByID(_ context.Context, id string) (*model.Snippet, error) {
	s, ok := f.snippets[id]
	if !ok {
		return nil, apperror.NotFound("snippet", id)
	}
	return &s, nil
}

func (f *fakeSnippetRepo) List(_ context.Context, opts repository.ListOptions) ([]model.Snippet, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	all := make([]model.Snippet, 0, len(f.order))
	for _, id := range f.order {
		all = append(all, f.snippets[id])
	}
	return page(all, opts), nil
}

func (f *fakeSnippetRepo) Update(_ context.Context, s *model.Snippet) error {
	if _, ok := f.snippets[s.ID]; !ok {
		return apperror.NotFound("snippet", s.ID)
	}
	s.UpdatedAt = time.Now()
	f.snippets[s.ID] = *s
	return nil
}

func (f *fakeSnippetRepo) Delete(_ context.Context, id string) error {
	if _, ok := f.snippets[id]; !ok {
		return apperror.NotFound("snippet", id)
	}
	delete(f.snippets, id)
	for i, v := range f.order {
		if v == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return nil
}

type fakeUserRepo struct {
	snippets *fakeSnippetRepo // set after construction; answers "which snippets does X own"
	order    []string
	users    map[string]*model.User
	nextID   int

	upsertErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

// newFakeRepos returns a snippet and a user fake that see each other's rows.
func newFakeRepos() (*fakeSnippetRepo, *fakeUserRepo) {
	users := newFakeUserRepo()
	snippets := newFakeSnippetRepo(users)
	users.snippets = snippets
	return snippets, users
}

func (f *fakeUserRepo) CreateUser(_ context.Context, u *model.User) error {
	for _, existing := range f.users {
		if existing.Username == u.Username {
			return apperror.Conflict("user", u.Username)
		}
	}
	f.nextID++
	u.ID = fmt.Sprintf("user-%d", f.nextID)
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	stored := *u
	f.users[u.ID] = &stored
	f.order = append(f.order, u.ID)
	return nil
}

func (f *fakeUserRepo) UpsertGitHubUser(ctx context.Context, u *model.User) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	for _, existing := range f.users {
		if existing.GitHubID != nil && u.GitHubID != nil && *existing.GitHubID == *u.GitHubID {
			*u = *existing
			return nil
		}
	}
	return f.CreateUser(ctx, u)
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", username)
}

func (f *fakeUserRepo) ListUsers(ctx context.Context, opts repository.ListOptions) ([]model.UserWithSnippets, error) {
	all := make([]model.UserWithSnippets, 0, len(f.order))
	for _, id := range f.order {
		u, err := f.GetUserWithSnippets(ctx, id)
		if err != nil {
			return nil, err
		}
		all = append(all, *u)
	}
	return page(all, opts), nil
}

func (f *fakeUserRepo) GetUserWithSnippets(_ context.Context, id string) (*model.UserWithSnippets, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	result := &model.UserWithSnippets{User: *u, SnippetIDs: []string{}}
	if f.snippets != nil {
		for _, sid := range f.snippets.order {
			if f.snippets.snippets[sid].OwnerID == id {
				result.SnippetIDs = append(result.SnippetIDs, sid)
			}
		}
	}
	return result, nil
}

// page applies ListOptions the way LIMIT/OFFSET does.
func page[T any](all []T, opts repository.ListOptions) []T {
	if opts.Offset >= len(all) {
		return []T{}
	}
	all = all[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(all) {
		all = all[:opts.Limit]
	}
	return all
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
