package handler_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/snippets-api/internal/serializer"
)

func TestUserHandler_ListIncludesOwnedSnippets(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	aliceID, alice := env.signup(t, "alice")
	bobID, bob := env.signup(t, "bob")
	carolID, _ := env.signup(t, "carol")

	a1 := env.createSnippet(t, alice, `{"code":"1"}`)
	b1 := env.createSnippet(t, bob, `{"code":"2"}`)
	a2 := env.createSnippet(t, alice, `{"code":"3"}`)

	rr := env.do(t, http.MethodGet, "/users/", "")
	require.Equal(t, http.StatusOK, rr.Code)

	assert.Equal(t, []serializer.UserRecord{
		{ID: aliceID, Username: "alice", Snippets: []string{a1.ID, a2.ID}},
		{ID: bobID, Username: "bob", Snippets: []string{b1.ID}},
		{ID: carolID, Username: "carol", Snippets: []string{}},
	}, decode[[]serializer.UserRecord](t, rr))

	// carol owns nothing and still gets an array, not null.
	assert.Contains(t, rr.Body.String(), `"snippets":[]`)
}

func TestUserHandler_ListPaging(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.signup(t, "u1")
	env.signup(t, "u2")
	env.signup(t, "u3")

	rr := env.do(t, http.MethodGet, "/users/?limit=1&offset=1", "")
	require.Equal(t, http.StatusOK, rr.Code)

	users := decode[[]serializer.UserRecord](t, rr)
	require.Len(t, users, 1)
	assert.Equal(t, "u2", users[0].Username)
}

func TestUserHandler_Get(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	aliceID, alice := env.signup(t, "alice")
	created := env.createSnippet(t, alice, `{"code":"x"}`)

	rr := env.do(t, http.MethodGet, "/users/"+aliceID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, serializer.UserRecord{ID: aliceID, Username: "alice", Snippets: []string{created.ID}},
		decode[serializer.UserRecord](t, rr))

	// Credentials never leave the server.
	assert.NotContains(t, rr.Body.String(), "password")

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/users/nobody", "").Code)
}

func TestUserHandler_DeletedSnippetLeavesOwnerList(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	aliceID, alice := env.signup(t, "alice")
	created := env.createSnippet(t, alice, `{"code":"x"}`)

	require.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, itemPath(created.ID), "", withBearer(alice)).Code)

	rr := env.do(t, http.MethodGet, "/users/"+aliceID, "")
	assert.Empty(t, decode[serializer.UserRecord](t, rr).Snippets)
}
