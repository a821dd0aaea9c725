package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/vaadforum/vaad/internal/forum"
	"github.com/vaadforum/vaad/internal/pages"
	"github.com/vaadforum/vaad/internal/session"
	"github.com/vaadforum/vaad/internal/store"
)

// validationError marks a bad request from the client.
type validationError struct {
	msg string
}

func (e validationError) Error() string { return e.msg }

func invalid(msg string) error {
	return validationError{msg: msg}
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.Any("err", err))
	}
}

// decodeJSON reads and decodes JSON from the request body with size limit.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return invalid("request body is required")
	}
	decoder := json.NewDecoder(io.LimitReader(r.Body, 1<<20)) // 1MB limit
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return invalid("request body is required")
		}
		return invalid("invalid JSON: " + err.Error())
	}
	if err := decoder.Decode(new(struct{})); err != io.EOF {
		return invalid("request body must contain a single JSON object")
	}
	return nil
}

// encodeJSON encodes data to JSON string.
func encodeJSON(data any) (string, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

func errorResponse(message string) map[string]string {
	return map[string]string{"error": message}
}

// statusFor maps service errors onto HTTP status codes. Anything unknown
// came from the backend.
func statusFor(err error) int {
	var ve validationError
	switch {
	case errors.As(err, &ve),
		errors.Is(err, forum.ErrReasonRequired),
		errors.Is(err, session.ErrMissingFields),
		errors.Is(err, pages.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNotAuthenticated),
		errors.Is(err, session.ErrUserNotFound),
		errors.Is(err, session.ErrInvalidPassword):
		return http.StatusUnauthorized
	case errors.Is(err, forum.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, store.ErrNotFound), errors.Is(err, os.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, forum.ErrAlreadyDeleted),
		errors.Is(err, forum.ErrNothingToUndo),
		errors.Is(err, session.ErrUsernameTaken),
		errors.Is(err, session.ErrEmailTaken):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

// respondError answers a JSON API request with the status err maps to.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusBadGateway {
		s.logger.ErrorContext(r.Context(), "backend request failed",
			slog.String("path", r.URL.Path),
			slog.Any("err", err),
		)
		msg = "backend unavailable"
	}
	respondJSON(w, status, errorResponse(msg))
}

// failPage answers an HTML request with the status err maps to.
func (s *Server) failPage(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusBadGateway {
		s.logger.ErrorContext(r.Context(), "backend request failed",
			slog.String("path", r.URL.Path),
			slog.Any("err", err),
		)
	}
	http.Error(w, http.StatusText(status), status)
}

func pathID(r *http.Request, name string) (int, error) {
	id, err := strconv.Atoi(r.PathValue(name))
	if err != nil {
		return 0, invalid("invalid " + name)
	}
	return id, nil
}
