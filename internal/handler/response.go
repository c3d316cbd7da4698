package handler

// RESPONSE ENVELOPE:
// Every response from the API has the same shape, success or failure:
//
//	{"status": 201, "message": "article created", "data": [ {...} ]}
//	{"status": 404, "message": "article not found with id x", "data": []}
//
// data is always an array, empty when there is nothing to return.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/authors-haven/internal/apperror"
	"github.com/sakif/authors-haven/internal/guard"
)

// Envelope is the body of every JSON response.
type Envelope[T any] struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    []T    `json:"data"`
}

// Respond writes status with message and data in the envelope.
func Respond[T any](w http.ResponseWriter, status int, message string, data ...T) {
	if data == nil {
		data = []T{}
	}
	WriteJSON(w, status, Envelope[T]{Status: status, Message: message, Data: data})
}

// WriteJSON sends v as JSON. Headers and status go out before the body.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			// Headers are already sent, so all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// StatusFor maps an error to its HTTP status. Errors outside the apperror
// taxonomy are 500.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, apperror.ErrValidation),
		errors.Is(err, apperror.ErrInvalidCredentials),
		errors.Is(err, apperror.ErrTokenInvalid),
		errors.Is(err, apperror.ErrTokenExpired):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrConflict),
		errors.Is(err, apperror.ErrTokenAlreadyUsed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WriteError answers with the envelope for err. Internal details of
// unexpected errors are logged, never sent.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)

	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		Respond[any](w, http.StatusInternalServerError, "An internal error occurred")
		return
	}

	message := http.StatusText(status)
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		message = appErr.Message
	}
	Respond[any](w, status, message)
}

// Guarded runs chain before fn. When a guard halts, its error is written
// and fn never runs.
func Guarded(chain guard.Chain, fn guard.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := chain.Run(r, guard.Context{})
		if err != nil {
			WriteError(w, r, err)
			return
		}
		fn(w, r, c)
	}
}
