package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/snippets-api/internal/auth"
	"github.com/sakif/snippets-api/internal/permission"
	"github.com/sakif/snippets-api/internal/serializer"
	"github.com/sakif/snippets-api/internal/service"
)

// Permission policies per endpoint. The item list carries the object-level
// owner rule too; the snippet service evaluates it once the record is loaded.
var (
	snippetListPolicies = []permission.Policy{permission.IsAuthenticatedOrReadOnly{}}
	snippetItemPolicies = []permission.Policy{permission.IsAuthenticatedOrReadOnly{}, permission.IsOwnerOrReadOnly{}}
)

// SnippetHandler serves the snippet collection and item endpoints.
//
// HTTP:
//
//	GET    /snippets/          list (optional ?limit=&offset=)
//	POST   /snippets/          create, owner = caller
//	GET    /snippets/choices   accepted languages and styles
//	GET    /snippets/{id}/     retrieve
//	PUT    /snippets/{id}/     update, code required
//	PATCH  /snippets/{id}/     partial update
//	DELETE /snippets/{id}/     delete
type SnippetHandler struct {
	snippets *service.SnippetService
	logger   *slog.Logger
}

// NewSnippetHandler creates a new SnippetHandler.
func NewSnippetHandler(snippets *service.SnippetService, logger *slog.Logger) *SnippetHandler {
	return &SnippetHandler{snippets: snippets, logger: logger}
}

// allow runs the request-level part of policies for the caller of r.
func allow(r *http.Request, policies []permission.Policy) (string, error) {
	callerID, _ := auth.UserIDFromContext(r.Context())
	return callerID, permission.Check(permission.FromHTTP(r, callerID), policies...)
}

// HandleList returns every snippet, oldest first.
func (h *SnippetHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if _, err := allow(r, snippetListPolicies); err != nil {
		writeError(w, err)
		return
	}

	limit, offset, err := pageParams(r)
	if err != nil {
		writeError(w, err)
		return
	}

	snippets, err := h.snippets.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, serializer.Snippets(snippets))
}

// HandleCreate stores a new snippet owned by the caller and answers 201.
func (h *SnippetHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	callerID, err := allow(r, snippetListPolicies)
	if err != nil {
		writeError(w, err)
		return
	}

	var in serializer.SnippetInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	snippet, err := h.snippets.Create(r.Context(), callerID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snippet)
}

// HandleGet returns one snippet or 404.
func (h *SnippetHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if _, err := allow(r, snippetItemPolicies); err != nil {
		writeError(w, err)
		return
	}

	snippet, err := h.snippets.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snippet)
}

// HandleUpdate serves PUT: code is required, omitted optional fields keep their values.
func (h *SnippetHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, false)
}

// HandlePartialUpdate serves PATCH: every field is optional.
func (h *SnippetHandler) HandlePartialUpdate(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, true)
}

func (h *SnippetHandler) update(w http.ResponseWriter, r *http.Request, partial bool) {
	callerID, err := allow(r, snippetItemPolicies)
	if err != nil {
		writeError(w, err)
		return
	}

	var in serializer.SnippetInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	snippet, err := h.snippets.Update(r.Context(), chi.URLParam(r, "id"), callerID, in, partial)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snippet)
}

// HandleDelete removes a snippet and answers 204 with no body.
func (h *SnippetHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	callerID, err := allow(r, snippetItemPolicies)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.snippets.Delete(r.Context(), chi.URLParam(r, "id"), callerID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleChoices lists the accepted language and style values.
func (h *SnippetHandler) HandleChoices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, serializer.Choices())
}
