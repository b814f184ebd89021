package model

import "time"

// User represents an account that can own snippets.
//
// Accounts come from two places: username/password registration, and GitHub
// OAuth. A user created through GitHub has no password hash; a registered
// user has no GitHubID. Neither field ever leaves the server.
//
// WHY *int64 FOR GitHubID?
// The column is UNIQUE but optional. NULL values do not collide in a SQLite
// UNIQUE index, whereas a zero value would, so password-only users store NULL.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	GitHubID     *int64    `json:"-"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

// UserWithSnippets is a user together with the ids of the snippets they own,
// in creation order. SnippetIDs is never nil so it encodes as [] rather than null.
type UserWithSnippets struct {
	User
	SnippetIDs []string
}
