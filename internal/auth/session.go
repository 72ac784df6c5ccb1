// Package auth implements the ephemeral-token session model and the
// ownership/visibility rules enforced on file entities.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/maneesh/filevault/internal/models"
)

// sessionPrefix namespaces session keys in the key-value store.
const sessionPrefix = "auth_"

// SessionTTL is the fixed lifetime of a session; expiry is enforced by the
// store itself.
const SessionTTL = 24 * time.Hour

// KeyValue is the ephemeral key-expiry store capability backing sessions.
// Implemented by storage.RedisClient.
type KeyValue interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Del(ctx context.Context, key string) error
}

// SessionManager issues, resolves and revokes bearer tokens. All state lives
// in the key-value store; nothing is cached in-process.
type SessionManager struct {
	kv KeyValue
}

// NewSessionManager creates a session manager over a key-value store.
func NewSessionManager(kv KeyValue) *SessionManager {
	return &SessionManager{kv: kv}
}

// Create generates a fresh token bound to userID for SessionTTL.
func (sm *SessionManager) Create(ctx context.Context, userID string) (string, error) {
	token, err := NewToken()
	if err != nil {
		return "", err
	}
	if err := sm.kv.Set(ctx, sessionPrefix+token, userID, SessionTTL); err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrStorage, err)
	}
	return token, nil
}

// Resolve returns the user id bound to the token, or ErrNotFound when the
// token is unknown or expired.
func (sm *SessionManager) Resolve(ctx context.Context, token string) (string, error) {
	userID, found, err := sm.kv.Get(ctx, sessionPrefix+token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrStorage, err)
	}
	if !found {
		return "", models.ErrNotFound
	}
	return userID, nil
}

// Revoke deletes the session. Revoking an unknown token is not an error.
func (sm *SessionManager) Revoke(ctx context.Context, token string) error {
	if err := sm.kv.Del(ctx, sessionPrefix+token); err != nil {
		return fmt.Errorf("%w: %v", models.ErrStorage, err)
	}
	return nil
}
