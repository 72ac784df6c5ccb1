package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/maneesh/filevault/internal/auth"
	"github.com/maneesh/filevault/internal/files"
	"github.com/maneesh/filevault/internal/models"
	"github.com/maneesh/filevault/internal/queue"
	"go.opentelemetry.io/otel/attribute"
)

// UserStore is the slice of the metadata store the users endpoints need.
type UserStore interface {
	InsertUser(ctx context.Context, user *models.User) (bool, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// UsersHandler serves registration and the current-user endpoint.
type UsersHandler struct {
	db     UserStore
	queue  files.JobQueue
	access *auth.AccessControl
}

// NewUsersHandler creates a users handler.
func NewUsersHandler(db UserStore, q files.JobQueue, access *auth.AccessControl) *UsersHandler {
	return &UsersHandler{db: db, queue: q, access: access}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Register handles POST /users.
func (h *UsersHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "users.register")
	defer span.End()

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, models.Validationf("Invalid request body"))
		return
	}
	if req.Email == "" {
		writeError(w, models.Validationf("Missing email"))
		return
	}
	if req.Password == "" {
		writeError(w, models.Validationf("Missing password"))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Email:        req.Email,
		PasswordHash: hash,
	}

	ok, err := h.db.InsertUser(ctx, user)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, models.Validationf("Already exist"))
		return
	}

	span.SetAttributes(attribute.String("user_id", user.ID))

	// The greeting is best-effort; a queue failure never fails registration.
	job := queue.WelcomeJob{UserID: user.ID}
	if err := h.queue.Enqueue(ctx, queue.TopicWelcome, job); err != nil {
		log.Printf("Failed to enqueue welcome job for user %s: %v", user.ID, err)
	}

	writeJSON(w, http.StatusCreated, userResponse{ID: user.ID, Email: user.Email})
}

// Me handles GET /users/me.
func (h *UsersHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "users.me")
	defer span.End()

	userID, err := h.access.Authenticate(ctx, r)
	if err != nil {
		writeError(w, err)
		return
	}

	user, err := h.db.GetUserByID(ctx, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if user == nil {
		writeError(w, models.ErrUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, userResponse{ID: user.ID, Email: user.Email})
}
