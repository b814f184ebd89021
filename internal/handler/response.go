package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON and writeError, so every error body
// has the same shape:
//
//	{"error": "validation_error", "message": "...", "fields": {"code": ["This field is required."]}}
//
// "fields" is only present for field-level failures (400 and 409).

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"

	"github.com/sakif/snippets-api/internal/apperror"
)

// maxBodyBytes bounds request bodies. The largest legal body is a snippet
// with 100 000 characters of code; even at six bytes per escaped character
// that stays under 1 MiB.
const maxBodyBytes = 1 << 20

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string              `json:"error"`            // Machine-readable error type (e.g., "not_found")
	Message string              `json:"message"`          // Human-readable description
	Fields  map[string][]string `json:"fields,omitempty"` // Field-level messages keyed by JSON field name
}

// writeJSON sends data as JSON with the given status code.
// Headers and status must be written before the body.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to an HTTP status and sends it.
//
// The service layer never knows about status codes; this switch is the only
// place where apperror sentinels become 4xx/5xx. Errors that are not an
// *apperror.AppError are logged and hidden behind a generic 500 so SQL or
// file paths never reach a client.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		slog.Error("unhandled error", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
		return
	}

	status := http.StatusInternalServerError
	errorType := "internal_error"
	var fields map[string][]string

	switch {
	case errors.Is(err, apperror.ErrValidation):
		status = http.StatusBadRequest
		errorType = "validation_error"
		fields = appErr.Fields
	case errors.Is(err, apperror.ErrUnauthorized):
		status = http.StatusUnauthorized
		errorType = "unauthorized"
		w.Header().Set("WWW-Authenticate", `Basic realm="api"`)
	case errors.Is(err, apperror.ErrForbidden):
		status = http.StatusForbidden
		errorType = "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		status = http.StatusNotFound
		errorType = "not_found"
	case errors.Is(err, apperror.ErrConflict):
		status = http.StatusConflict
		errorType = "conflict"
		fields = appErr.Fields
	case errors.Is(err, apperror.ErrUnavailable):
		status = http.StatusServiceUnavailable
		errorType = "unavailable"
	}

	if status == http.StatusInternalServerError {
		slog.Error("application error without status mapping", slog.String("error", err.Error()))
	}

	writeJSON(w, status, ErrorResponse{
		Error:   errorType,
		Message: appErr.Message,
		Fields:  fields,
	})
}

// decodeJSON reads the request body into dst.
//
// An empty body leaves dst untouched, so a bodiless POST reports the missing
// required fields rather than a parse error. Unknown fields (such as a
// client-supplied "id" or "owner") are ignored because they are read-only.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}

	var typeErr *json.UnmarshalTypeError
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &typeErr) && typeErr.Field != "":
		return apperror.ValidationFailed(typeErr.Field, typeMessage(typeErr.Type))
	case errors.As(err, &maxErr):
		return apperror.ValidationFailed("body", fmt.Sprintf("Request body must not exceed %d bytes.", maxErr.Limit))
	default:
		return apperror.ValidationFailed("body", "JSON parse error: "+err.Error())
	}
}

func typeMessage(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Bool:
		return "Must be a valid boolean."
	case reflect.String:
		return "Not a valid string."
	default:
		return "Incorrect type."
	}
}

// pageParams reads the optional limit and offset query parameters.
// Missing values are 0, which the services treat as "everything" and "from the start".
func pageParams(r *http.Request) (limit, offset int, err error) {
	q := r.URL.Query()
	if limit, err = intParam(q.Get("limit"), "limit"); err != nil {
		return 0, 0, err
	}
	if offset, err = intParam(q.Get("offset"), "offset"); err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

func intParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.ValidationFailed(name, "A valid integer is required.")
	}
	return n, nil
}
