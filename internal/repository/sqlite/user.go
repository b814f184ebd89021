package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/xid"
	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/snippets-api/internal/apperror"
	"github.com/sakif/snippets-api/internal/model"
	"github.com/sakif/snippets-api/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, username, password_hash, github_id, created_at, updated_at`

func scanUser(row rowScanner, u *model.User) error {
	var githubID sql.NullInt64
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &githubID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return err
	}
	if githubID.Valid {
		id := githubID.Int64
		u.GitHubID = &id
	}
	return nil
}

// isUniqueViolation reports whether err is SQLite's UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr *moderncsqlite.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

// CreateUser inserts a new user. A taken username yields apperror.ErrConflict.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, github_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Username,
		user.PasswordHash,
		user.GitHubID,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Username)
		}
		return fmt.Errorf("sqlite: inserting user %q: %w", user.Username, err)
	}

	return nil
}

// UpsertGitHubUser finds or creates the account linked to user.GitHubID.
//
// An existing account keeps its internal ID and username (renaming could
// collide with another account); only updated_at moves. A new account takes
// the GitHub login as username, or "<login>-<githubID>" when that username
// already belongs to someone else.
func (db *DB) UpsertGitHubUser(ctx context.Context, user *model.User) error {
	if user.GitHubID == nil {
		return fmt.Errorf("sqlite: upserting GitHub user %q: missing github id", user.Username)
	}
	githubID := *user.GitHubID

	existing, err := db.getUserBy(ctx, "github_id", githubID)
	switch {
	case err == nil:
		existing.UpdatedAt = time.Now().UTC()
		if _, err := db.conn.ExecContext(ctx,
			`UPDATE users SET updated_at = ? WHERE id = ?`, existing.UpdatedAt, existing.ID,
		); err != nil {
			return fmt.Errorf("sqlite: touching user %s: %w", existing.ID, err)
		}
		*user = *existing
		return nil
	case !errors.Is(err, apperror.ErrNotFound):
		return err
	}

	err = db.CreateUser(ctx, user)
	if errors.Is(err, apperror.ErrConflict) {
		user.Username = user.Username + "-" + strconv.FormatInt(githubID, 10)
		err = db.CreateUser(ctx, user)
	}
	if err != nil {
		return fmt.Errorf("sqlite: inserting GitHub user (githubID=%d): %w", githubID, err)
	}
	return nil
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUserBy(ctx, "id", id)
}

// GetUserByUsername retrieves a user by username (case-sensitive).
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return db.getUserBy(ctx, "username", username)
}

// getUserBy looks a user up by one unique column. column is always a
// constant from this file, never user input.
func (db *DB) getUserBy(ctx context.Context, column string, value any) (*model.User, error) {
	var u model.User
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+column+` = ?`, value)
	if err := scanUser(row, &u); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", fmt.Sprint(value))
		}
		return nil, fmt.Errorf("sqlite: getting user by %s: %w", column, err)
	}
	return &u, nil
}

// ListUsers returns users oldest first, each with the ids of the snippets they own.
//
// Two queries instead of one per user: the page of users, then every snippet
// id owned by anyone on that page, grouped in Go.
func (db *DB) ListUsers(ctx context.Context, opts repository.ListOptions) ([]model.UserWithSnippets, error) {
	limit, offset := limitClause(opts.Limit, opts.Offset)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at, id LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}
	defer rows.Close()

	users := make([]model.UserWithSnippets, 0)
	for rows.Next() {
		var u model.UserWithSnippets
		if err := scanUser(rows, &u.User); err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		u.SnippetIDs = []string{}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}

	if len(users) == 0 {
		return users, nil
	}

	index := make(map[string]int, len(users))
	for i, u := range users {
		index[u.ID] = i
	}

	// The page is selected again as a subquery rather than bound as one
	// placeholder per user: an unpaged listing can exceed SQLite's limit on
	// host parameters.
	snippetRows, err := db.conn.QueryContext(ctx,
		`SELECT id, owner_id FROM snippets
		 WHERE owner_id IN (
			SELECT id FROM users ORDER BY created_at, id LIMIT ? OFFSET ?
		 )
		 ORDER BY created_at, id`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing owned snippets: %w", err)
	}
	defer snippetRows.Close()

	for snippetRows.Next() {
		var snippetID, ownerID string
		if err := snippetRows.Scan(&snippetID, &ownerID); err != nil {
			return nil, fmt.Errorf("sqlite: scanning owned snippet: %w", err)
		}
		i, ok := index[ownerID]
		if !ok {
			// Owner registered between the two queries.
			continue
		}
		users[i].SnippetIDs = append(users[i].SnippetIDs, snippetID)
	}
	if err := snippetRows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating owned snippets: %w", err)
	}

	return users, nil
}

// GetUserWithSnippets retrieves one user and the ids of the snippets they own.
func (db *DB) GetUserWithSnippets(ctx context.Context, id string) (*model.UserWithSnippets, error) {
	user, err := db.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id FROM snippets WHERE owner_id = ? ORDER BY created_at, id`, id)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing snippets of user %s: %w", id, err)
	}
	defer rows.Close()

	result := &model.UserWithSnippets{User: *user, SnippetIDs: []string{}}
	for rows.Next() {
		var snippetID string
		if err := rows.Scan(&snippetID); err != nil {
			return nil, fmt.Errorf("sqlite: scanning snippet id: %w", err)
		}
		result.SnippetIDs = append(result.SnippetIDs, snippetID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating snippet ids: %w", err)
	}

	return result, nil
}
