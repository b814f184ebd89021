package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/snippets-api/internal/apperror"
	"github.com/sakif/snippets-api/internal/model"
	"github.com/sakif/snippets-api/internal/repository"
)

// COMPILE-TIME INTERFACE CHECK:
// If *DB stops implementing repository.SnippetRepository, this line fails to compile.
var _ repository.SnippetRepository = (*DB)(nil)

// snippetColumns is shared by every SELECT so scanSnippet always sees the same order.
// The JOIN resolves owner_id to the username rendered as "owner".
const snippetColumns = `s.id, s.title, s.code, s.linenos, s.language, s.style,
	s.owner_id, u.username, s.created_at, s.updated_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnippet(row rowScanner, s *model.Snippet) error {
	return row.Scan(
		&s.ID, &s.Title, &s.Code, &s.LineNos, &s.Language, &s.Style,
		&s.OwnerID, &s.Owner, &s.CreatedAt, &s.UpdatedAt,
	)
}

// Create inserts a new snippet. ID and timestamps are generated here and
// written back into the caller's struct (pointer argument).
//
// ID GENERATION WITH xid:
// xid ids are 20 URL-safe chars and sort by creation time, e.g. "cv37rs3pp9olc6atsptg".
//
// The owner's username is looked up after the insert so the returned record
// is identical to what a later GetByID would produce.
func (db *DB) Create(ctx context.Context, snippet *model.Snippet) error {
	snippet.ID = xid.New().String()

	now := time.Now().UTC()
	snippet.CreatedAt = now
	snippet.UpdatedAt = now

	// The insert and the owner lookup share a transaction so a failed lookup
	// leaves no row behind. The insert goes first: it takes the write lock
	// (waiting out busy_timeout) before the transaction has read anything.
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning snippet insert: %w", err)
	}
	defer tx.Rollback()

	// PARAMETERIZED QUERIES: never build SQL with fmt.Sprintf and user input.
	_, err = tx.ExecContext(ctx,
		`INSERT INTO snippets (id, title, code, linenos, language, style, owner_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snippet.ID,
		snippet.Title,
		snippet.Code,
		snippet.LineNos,
		snippet.Language,
		snippet.Style,
		snippet.OwnerID,
		snippet.CreatedAt,
		snippet.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating snippet: %w", err)
	}

	err = tx.QueryRowContext(ctx,
		`SELECT username FROM users WHERE id = ?`, snippet.OwnerID,
	).Scan(&snippet.Owner)
	if err != nil {
		return fmt.Errorf("sqlite: resolving owner of snippet %s: %w", snippet.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing snippet %s: %w", snippet.ID, err)
	}
	return nil
}

// GetByID retrieves a single snippet by its ID.
//
// sql.ErrNoRows is translated into the domain's NotFound error so the
// handler can answer 404 without knowing anything about SQL.
func (db *DB) GetByID(ctx context.Context, id string) (*model.Snippet, error) {
	var snippet model.Snippet

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+snippetColumns+`
		 FROM snippets s
		 JOIN users u ON u.id = s.owner_id
		 WHERE s.id = ?`,
		id,
	)
	if err := scanSnippet(row, &snippet); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("snippet", id)
		}
		return nil, fmt.Errorf("sqlite: getting snippet %s: %w", id, err)
	}

	return &snippet, nil
}

// List returns snippets oldest first. opts.Limit <= 0 returns every row.
//
// defer rows.Close() is critical: sql.Rows holds a pooled connection until closed.
// rows.Err() after the loop catches failures that happened mid-iteration.
func (db *DB) List(ctx context.Context, opts repository.ListOptions) ([]model.Snippet, error) {
	limit, offset := limitClause(opts.Limit, opts.Offset)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+snippetColumns+`
		 FROM snippets s
		 JOIN users u ON u.id = s.owner_id
		 ORDER BY s.created_at, s.id
		 LIMIT ? OFFSET ?`,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing snippets: %w", err)
	}
	defer rows.Close()

	snippets := make([]model.Snippet, 0)
	for rows.Next() {
		var s model.Snippet
		if err := scanSnippet(rows, &s); err != nil {
			return nil, fmt.Errorf("sqlite: scanning snippet row: %w", err)
		}
		snippets = append(snippets, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating snippets: %w", err)
	}

	return snippets, nil
}

// Update overwrites the mutable fields of an existing snippet.
// id, owner_id and created_at are immutable; updated_at is always set to now.
//
// RowsAffected() == 0 means the WHERE clause matched nothing → NotFound.
// One query instead of SELECT + UPDATE.
func (db *DB) Update(ctx context.Context, snippet *model.Snippet) error {
	snippet.UpdatedAt = time.Now().UTC()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE snippets
		 SET title = ?, code = ?, linenos = ?, language = ?, style = ?, updated_at = ?
		 WHERE id = ?`,
		snippet.Title,
		snippet.Code,
		snippet.LineNos,
		snippet.Language,
		snippet.Style,
		snippet.UpdatedAt,
		snippet.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating snippet %s: %w", snippet.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("snippet", snippet.ID)
	}

	return nil
}

// Delete removes a snippet by its ID. Same RowsAffected pattern as Update.
func (db *DB) Delete(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM snippets WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting snippet %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("snippet", id)
	}

	return nil
}
