// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data, composed rather than inherited.
package model

import "time"

// Default values applied when a create request omits the field.
const (
	DefaultLanguage = "python"
	DefaultStyle    = "friendly"
)

// Snippet represents a saved code snippet.
//
// The JSON shape is the public record: {id, title, code, linenos, language, style, owner}.
// Owner is the owner's username (read-only on the wire); OwnerID is the foreign key
// used for permission checks and is never serialized.
type Snippet struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Code      string    `json:"code"`
	LineNos   bool      `json:"linenos"`
	Language  string    `json:"language"`
	Style     string    `json:"style"`
	Owner     string    `json:"owner"`
	OwnerID   string    `json:"-"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// OwnerKey returns the id of the user allowed to modify the snippet.
func (s Snippet) OwnerKey() string {
	return s.OwnerID
}
