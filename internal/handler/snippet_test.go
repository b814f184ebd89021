package handler_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/snippets-api/internal/handler"
	"github.com/sakif/snippets-api/internal/serializer"
)

func TestSnippetHandler_CreateAndRetrieve(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	_, token := env.signup(t, "alice")

	created := env.createSnippet(t, token, `{"title":"Hello","code":"print('hi')","linenos":true,"language":"go","style":"monokai"}`)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, snippetJSON{
		ID:       created.ID,
		Title:    "Hello",
		Code:     "print('hi')",
		LineNos:  true,
		Language: "go",
		Style:    "monokai",
		Owner:    "alice",
	}, created)

	rr := env.do(t, http.MethodGet, "/snippets/"+created.ID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, created, decode[snippetJSON](t, rr))
}

func TestSnippetHandler_TitleWithAngleBracketsRoundTrips(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	_, token := env.signup(t, "alice")

	created := env.createSnippet(t, token, `{"title":"Map<String, Integer>","code":"Map<String, Integer> m = new HashMap<>();","language":"java"}`)
	assert.Equal(t, "Map<String, Integer>", created.Title)

	rr := env.do(t, http.MethodGet, "/snippets/"+created.ID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[snippetJSON](t, rr)
	assert.Equal(t, "Map<String, Integer>", got.Title)
	assert.Equal(t, "Map<String, Integer> m = new HashMap<>();", got.Code)
}

func TestSnippetHandler_CreateDefaultsAndReadOnlyFields(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	_, token := env.signup(t, "alice")

	created := env.createSnippet(t, token, `{"id":"chosen-by-client","owner":"mallory","code":"x = 1"}`)

	assert.NotEqual(t, "chosen-by-client", created.ID)
	assert.Equal(t, "alice", created.Owner)
	assert.Equal(t, "", created.Title)
	assert.False(t, created.LineNos)
	assert.Equal(t, "python", created.Language)
	assert.Equal(t, "friendly", created.Style)
}

func TestSnippetHandler_CreateAuthentication(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.signup(t, "alice")

	t.Run("anonymous", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/snippets/", `{"code":"x"}`)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, `Basic realm="api"`, rr.Header().Get("WWW-Authenticate"))
	})

	t.Run("basic credentials", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/snippets/", `{"code":"x"}`, withBasic("alice", "password123"))
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		assert.Equal(t, "alice", decode[snippetJSON](t, rr).Owner)
	})

	t.Run("wrong basic password", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/snippets/", `{"code":"x"}`, withBasic("alice", "nope"))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("garbage bearer token", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/snippets/", `{"code":"x"}`, withBearer("not-a-jwt"))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestSnippetHandler_CreateValidation(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	_, token := env.signup(t, "alice")

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"unknown language", `{"code":"x","language":"cobol2"}`, "language"},
		{"unknown style", `{"code":"x","style":"neon"}`, "style"},
		{"missing code", `{"title":"no body"}`, "code"},
		{"empty body", ``, "code"},
		{"blank code", `{"code":""}`, "code"},
		{"title too long", fmt.Sprintf(`{"code":"x","title":"%0101d"}`, 0), "title"},
		{"wrong type", `{"code":"x","linenos":"yes"}`, "linenos"},
		{"null title", `{"code":"x","title":null}`, "title"},
		{"null language", `{"code":"x","language":null}`, "language"},
		{"malformed json", `{"code":`, "body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, "/snippets/", tt.body, withBearer(token))

			require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			resp := decode[handler.ErrorResponse](t, rr)
			assert.Equal(t, "validation_error", resp.Error)
			assert.Contains(t, resp.Fields, tt.field)
		})
	}

	// Nothing invalid was stored.
	rr := env.do(t, http.MethodGet, "/snippets/", "")
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestSnippetHandler_List(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	_, alice := env.signup(t, "alice")
	_, bob := env.signup(t, "bob")

	rr := env.do(t, http.MethodGet, "/snippets/", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())

	first := env.createSnippet(t, alice, `{"code":"1"}`)
	second := env.createSnippet(t, bob, `{"code":"2"}`)
	third := env.createSnippet(t, alice, `{"code":"3"}`)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"all oldest first", "", []string{first.ID, second.ID, third.ID}},
		{"limit", "?limit=2", []string{first.ID, second.ID}},
		{"limit and offset", "?limit=2&offset=1", []string{second.ID, third.ID}},
		{"offset only", "?offset=2", []string{third.ID}},
		{"offset past end", "?offset=10", []string{}},
		{"negative offset", "?limit=1&offset=-3", []string{first.ID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodGet, "/snippets/"+tt.query, "")
			require.Equal(t, http.StatusOK, rr.Code)

			got := []string{}
			for _, s := range decode[[]snippetJSON](t, rr) {
				got = append(got, s.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}

	rr = env.do(t, http.MethodGet, "/snippets/?limit=ten", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decode[handler.ErrorResponse](t, rr).Fields, "limit")
}

func TestSnippetHandler_GetNotFound(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	rr := env.do(t, http.MethodGet, "/snippets/does-not-exist", "")

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "not_found", decode[handler.ErrorResponse](t, rr).Error)
}

func TestSnippetHandler_Update(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	_, alice := env.signup(t, "alice")
	_, bob := env.signup(t, "bob")

	tests := []struct {
		name       string
		method     string
		path       func(id string) string
		body       string
		opts       []requestOption
		wantStatus int
	}{
		{"owner put", http.MethodPut, itemPath, `{"code":"new","language":"rust"}`, []requestOption{withBearer(alice)}, http.StatusOK},
		{"owner patch without code", http.MethodPatch, itemPath, `{"style":"vim"}`, []requestOption{withBearer(alice)}, http.StatusOK},
		{"owner put without code", http.MethodPut, itemPath, `{"style":"vim"}`, []requestOption{withBearer(alice)}, http.StatusBadRequest},
		{"owner put invalid language", http.MethodPut, itemPath, `{"code":"x","language":"klingon"}`, []requestOption{withBearer(alice)}, http.StatusBadRequest},
		{"non-owner put", http.MethodPut, itemPath, `{"code":"hijack"}`, []requestOption{withBearer(bob)}, http.StatusForbidden},
		{"non-owner patch", http.MethodPatch, itemPath, `{"title":"hijack"}`, []requestOption{withBearer(bob)}, http.StatusForbidden},
		{"anonymous put", http.MethodPut, itemPath, `{"code":"hijack"}`, nil, http.StatusUnauthorized},
		{"unknown id", http.MethodPut, func(string) string { return "/snippets/missing" }, `{"code":"x"}`, []requestOption{withBearer(bob)}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			created := env.createSnippet(t, alice, `{"code":"original","title":"keep","linenos":true}`)

			rr := env.do(t, tt.method, tt.path(created.ID), tt.body, tt.opts...)
			require.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())

			stored := decode[snippetJSON](t, env.do(t, http.MethodGet, itemPath(created.ID), ""))
			if tt.wantStatus != http.StatusOK {
				assert.Equal(t, created, stored, "a rejected update must not change the snippet")
				return
			}
			assert.Equal(t, decode[snippetJSON](t, rr), stored)
			assert.Equal(t, "keep", stored.Title, "omitted fields keep their values")
			assert.True(t, stored.LineNos)
			assert.Equal(t, "alice", stored.Owner)
		})
	}
}

func TestSnippetHandler_Delete(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	_, alice := env.signup(t, "alice")
	_, bob := env.signup(t, "bob")
	created := env.createSnippet(t, alice, `{"code":"bye"}`)

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodDelete, itemPath(created.ID), "").Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodDelete, itemPath(created.ID), "", withBearer(bob)).Code)

	rr := env.do(t, http.MethodDelete, itemPath(created.ID), "", withBearer(alice))
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, itemPath(created.ID), "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, itemPath(created.ID), "", withBearer(alice)).Code)
}

func TestSnippetHandler_Choices(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	rr := env.do(t, http.MethodGet, "/snippets/choices", "")

	require.Equal(t, http.StatusOK, rr.Code)
	choices := decode[serializer.ChoicesRecord](t, rr)
	assert.Contains(t, choices.Languages, "python")
	assert.Contains(t, choices.Styles, "friendly")
	assert.IsIncreasing(t, choices.Languages)
}

func itemPath(id string) string { return "/snippets/" + id }
