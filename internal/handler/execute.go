package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/snippets-api/internal/apperror"
	"github.com/sakif/snippets-api/internal/executor"
	"github.com/sakif/snippets-api/internal/permission"
	"github.com/sakif/snippets-api/internal/service"
)

var runPolicies = []permission.Policy{permission.IsAuthenticated{}}

// ExecuteHandler runs stored snippets in the sandbox.
// exec may be nil when Docker is unavailable; every run then answers 503.
type ExecuteHandler struct {
	exec     executor.Executor
	snippets *service.SnippetService
	logger   *slog.Logger
}

// NewExecuteHandler creates a new ExecuteHandler.
func NewExecuteHandler(exec executor.Executor, snippets *service.SnippetService, logger *slog.Logger) *ExecuteHandler {
	return &ExecuteHandler{
		exec:     exec,
		snippets: snippets,
		logger:   logger,
	}
}

// HandleRun executes a snippet and returns its output.
//
// HTTP: POST /snippets/{id}/run → {"stdout", "stderr", "exitCode", "duration"}
//
// Any authenticated caller may run any snippet, since every snippet is
// publicly readable. A non-zero exit code is still a 200: the run itself
// succeeded.
func (h *ExecuteHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	if _, err := allow(r, runPolicies); err != nil {
		writeError(w, err)
		return
	}
	if h.exec == nil {
		writeError(w, apperror.Unavailable("code execution is not available"))
		return
	}

	snippet, err := h.snippets.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	supported := h.exec.Languages()
	if !slices.Contains(supported, snippet.Language) {
		writeError(w, apperror.ValidationFailed("language", fmt.Sprintf(
			"%q cannot be run. Runnable languages: %s.", snippet.Language, strings.Join(supported, ", "),
		)))
		return
	}

	h.logger.Info("executing snippet",
		slog.String("id", snippet.ID),
		slog.String("language", snippet.Language),
	)

	result, err := h.exec.Execute(r.Context(), executor.ExecutionRequest{
		Language: snippet.Language,
		Code:     snippet.Code,
	})
	if err != nil {
		if errors.Is(err, executor.ErrUnsupportedLanguage) {
			writeError(w, apperror.ValidationFailed("language", err.Error()))
			return
		}
		h.logger.Error("code execution failed",
			slog.String("id", snippet.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, apperror.Unavailable("code execution failed"))
		return
	}

	writeJSON(w, http.StatusOK, result)
}
