package handlers

import (
	"log/slog"
	"net/http"

	"github.com/nikhilbhutani/pdfmate/internal/apperr"
	"github.com/nikhilbhutani/pdfmate/internal/auth"
	"github.com/nikhilbhutani/pdfmate/internal/store"
)

type AuthHandler struct {
	users store.Users
}

func NewAuthHandler(users store.Users) *AuthHandler {
	return &AuthHandler{users: users}
}

// Callback provisions the caller's user record on first sign-in.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	c := auth.CallerFromContext(r.Context())
	if c == nil || c.Email == "" {
		writeError(w, r, apperr.New(apperr.Unauthorized, "token has no email"))
		return
	}

	created, err := h.users.Ensure(r.Context(), c.ID, c.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if created {
		slog.Info("user provisioned", "user_id", c.ID)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true, "created": created})
}
