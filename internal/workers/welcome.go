package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/maneesh/filevault/internal/models"
	"github.com/maneesh/filevault/internal/queue"
)

// UserGetter is the slice of the metadata store the welcome worker needs.
// Implemented by storage.MySQLClient.
type UserGetter interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// WelcomeWorker greets newly registered users. Registration enqueues a job
// per user; the worker resolves the account and logs the greeting.
type WelcomeWorker struct {
	users UserGetter
}

// NewWelcomeWorker creates a welcome worker.
func NewWelcomeWorker(users UserGetter) *WelcomeWorker {
	return &WelcomeWorker{users: users}
}

// Process handles one delivered welcome job.
func (ww *WelcomeWorker) Process(ctx context.Context, payload []byte) error {
	var job queue.WelcomeJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return fmt.Errorf("malformed job payload: %w", err)
	}
	if job.UserID == "" {
		return errors.New("missing userId")
	}
	if _, err := uuid.Parse(job.UserID); err != nil {
		return errors.New("user not found")
	}

	user, err := ww.users.GetUserByID(ctx, job.UserID)
	if err != nil {
		return fmt.Errorf("failed to load user %s: %w", job.UserID, err)
	}
	if user == nil {
		return errors.New("user not found")
	}

	log.Printf("Welcome %s!", user.Email)
	return nil
}
