package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/nikhilbhutani/pdfmate/internal/apperr"
	"github.com/nikhilbhutani/pdfmate/internal/auth"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.Unauthorized:
		return http.StatusUnauthorized
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.Conflict:
		return http.StatusConflict
	case apperr.QuotaExceeded:
		return http.StatusForbidden
	case apperr.Invalid:
		return http.StatusBadRequest
	case apperr.External:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err onto a status and a message safe to show callers.
// Unclassified errors are logged and reported as "internal error".
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)

	msg := "internal error"
	var appErr *apperr.Error
	if kind != apperr.Internal && errors.As(err, &appErr) {
		msg = appErr.Msg
		if msg == "" {
			msg = kind.String()
		}
	}
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return apperr.New(apperr.Invalid, "invalid request body")
	}
	return nil
}

// callerID returns the authenticated caller. Routes are mounted behind the
// JWT middleware, so a missing caller is a wiring bug reported as 401.
func callerID(r *http.Request) (string, error) {
	c := auth.CallerFromContext(r.Context())
	if c == nil {
		return "", apperr.New(apperr.Unauthorized, "unauthorized")
	}
	return c.ID, nil
}
