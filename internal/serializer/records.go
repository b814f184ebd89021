package serializer

import "github.com/sakif/snippets-api/internal/model"

// UserRecord is the public shape of a user: {id, username, snippets}.
type UserRecord struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Snippets []string `json:"snippets"`
}

// ChoicesRecord lists the accepted language and style values.
type ChoicesRecord struct {
	Languages []string `json:"languages"`
	Styles    []string `json:"styles"`
}

// User renders u. Snippets is always a JSON array, never null.
func User(u model.UserWithSnippets) UserRecord {
	ids := u.SnippetIDs
	if ids == nil {
		ids = []string{}
	}
	return UserRecord{ID: u.ID, Username: u.Username, Snippets: ids}
}

func Users(users []model.UserWithSnippets) []UserRecord {
	records := make([]UserRecord, 0, len(users))
	for _, u := range users {
		records = append(records, User(u))
	}
	return records
}

// Snippets never returns nil, so an empty list encodes as [].
func Snippets(snippets []model.Snippet) []model.Snippet {
	if snippets == nil {
		return []model.Snippet{}
	}
	return snippets
}

func Choices() ChoicesRecord {
	return ChoicesRecord{Languages: model.Languages, Styles: model.Styles}
}
