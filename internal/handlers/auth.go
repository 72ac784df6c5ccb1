package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/maneesh/filevault/internal/auth"
	"github.com/maneesh/filevault/internal/models"
)

// CredentialStore is the slice of the metadata store login needs.
type CredentialStore interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// AuthHandler serves login and logout.
type AuthHandler struct {
	db       CredentialStore
	sessions *auth.SessionManager
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(db CredentialStore, sessions *auth.SessionManager) *AuthHandler {
	return &AuthHandler{db: db, sessions: sessions}
}

// Connect handles GET /connect: Basic credentials in, bearer token out.
func (h *AuthHandler) Connect(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "auth.connect")
	defer span.End()

	email, password, ok := r.BasicAuth()
	if !ok || email == "" || password == "" {
		writeError(w, models.ErrUnauthorized)
		return
	}

	user, err := h.db.GetUserByEmail(ctx, email)
	if err != nil {
		writeError(w, err)
		return
	}
	if user == nil || !auth.VerifyPassword(password, user.PasswordHash) {
		writeError(w, models.ErrUnauthorized)
		return
	}

	token, err := h.sessions.Create(ctx, user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// Disconnect handles GET /disconnect, revoking the presented session.
func (h *AuthHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "auth.disconnect")
	defer span.End()

	token := r.Header.Get(auth.TokenHeader)
	if token == "" {
		writeError(w, models.ErrUnauthorized)
		return
	}

	if _, err := h.sessions.Resolve(ctx, token); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			writeError(w, models.ErrUnauthorized)
			return
		}
		writeError(w, err)
		return
	}

	if err := h.sessions.Revoke(ctx, token); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
