package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/maneesh/filevault/internal/models"
)

// TokenHeader is the request header carrying the session token.
const TokenHeader = "X-Token"

// UserGetter is the slice of the metadata store needed to confirm a
// resolved identity still exists. Implemented by storage.MySQLClient.
type UserGetter interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// AccessControl resolves the acting identity from a request and enforces
// ownership and visibility rules on file entities.
type AccessControl struct {
	sessions *SessionManager
	users    UserGetter
}

// NewAccessControl creates an access controller.
func NewAccessControl(sessions *SessionManager, users UserGetter) *AccessControl {
	return &AccessControl{sessions: sessions, users: users}
}

// Authenticate extracts the session token from the request and returns the
// acting user id. It fails with ErrUnauthorized when the header is absent,
// the token does not resolve, or the resolved user no longer exists.
func (ac *AccessControl) Authenticate(ctx context.Context, r *http.Request) (string, error) {
	token := r.Header.Get(TokenHeader)
	if token == "" {
		return "", models.ErrUnauthorized
	}

	userID, err := ac.sessions.Resolve(ctx, token)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", models.ErrUnauthorized
		}
		return "", err
	}

	user, err := ac.users.GetUserByID(ctx, userID)
	if err != nil {
		return "", models.ErrStorage
	}
	if user == nil {
		return "", models.ErrUnauthorized
	}
	return user.ID, nil
}

// Identify is the soft variant of Authenticate for endpoints that serve
// public content: it returns the acting user id, or "" when the request
// carries no resolvable identity.
func (ac *AccessControl) Identify(ctx context.Context, r *http.Request) string {
	userID, err := ac.Authenticate(ctx, r)
	if err != nil {
		return ""
	}
	return userID
}

// CanRead reports whether the given identity may read the file: the file is
// public, or the identity is present and owns it. Pure function, no side
// effects.
func CanRead(file *models.File, userID string) bool {
	if file.IsPublic {
		return true
	}
	return userID != "" && userID == file.UserID
}

// AuthorizeOwner fails with ErrUnauthorized unless userID owns the file.
func AuthorizeOwner(file *models.File, userID string) error {
	if file.UserID != userID {
		return models.ErrUnauthorized
	}
	return nil
}
