package handlers

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/maneesh/filevault/internal/auth"
	"github.com/maneesh/filevault/internal/files"
	"github.com/maneesh/filevault/internal/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// FilesHandler serves upload, metadata, listing, visibility and content
// endpoints.
type FilesHandler struct {
	repo     *files.Repository
	pipeline *files.UploadPipeline
	access   *auth.AccessControl
}

// NewFilesHandler creates a files handler.
func NewFilesHandler(repo *files.Repository, pipeline *files.UploadPipeline, access *auth.AccessControl) *FilesHandler {
	return &FilesHandler{repo: repo, pipeline: pipeline, access: access}
}

// Upload handles POST /files.
func (h *FilesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "files.upload")
	defer span.End()

	userID, err := h.access.Authenticate(ctx, r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req files.UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, models.Validationf("Invalid request body"))
		return
	}

	stored, err := h.pipeline.Upload(ctx, userID, &req)
	if err != nil {
		writeError(w, err)
		return
	}

	span.SetAttributes(
		attribute.String("file_id", stored.ID),
		attribute.String("file_type", string(stored.Type)),
	)

	writeJSON(w, http.StatusCreated, stored)
}

// Show handles GET /files/{id}, returning owner-scoped metadata.
func (h *FilesHandler) Show(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "files.show")
	defer span.End()

	userID, err := h.access.Authenticate(ctx, r)
	if err != nil {
		writeError(w, err)
		return
	}

	file, err := h.repo.FindForOwner(ctx, mux.Vars(r)["id"], userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, file)
}

// Index handles GET /files?parentId=&page=, listing a page of children. An
// unknown or non-folder parent yields an empty list, never an error.
func (h *FilesHandler) Index(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "files.index")
	defer span.End()

	if _, err := h.access.Authenticate(ctx, r); err != nil {
		writeError(w, err)
		return
	}

	parentID := models.ParentRef(r.URL.Query().Get("parentId"))
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 0 {
		page = 0
	}

	span.SetAttributes(
		attribute.String("parent_id", parentID.String()),
		attribute.Int("page", page),
	)

	if !parentID.IsRoot() {
		parent, err := h.repo.FindByID(ctx, parentID.Ref())
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			writeError(w, err)
			return
		}
		if parent == nil || parent.Type != models.TypeFolder {
			writeJSON(w, http.StatusOK, []*models.File{})
			return
		}
	}

	children, err := h.repo.FindChildren(ctx, parentID, page)
	if err != nil {
		writeError(w, err)
		return
	}
	if children == nil {
		children = []*models.File{}
	}

	writeJSON(w, http.StatusOK, children)
}

// Publish handles PUT /files/{id}/publish.
func (h *FilesHandler) Publish(w http.ResponseWriter, r *http.Request) {
	h.setVisibility(w, r, true)
}

// Unpublish handles PUT /files/{id}/unpublish.
func (h *FilesHandler) Unpublish(w http.ResponseWriter, r *http.Request) {
	h.setVisibility(w, r, false)
}

func (h *FilesHandler) setVisibility(w http.ResponseWriter, r *http.Request, public bool) {
	ctx, span := tracer.Start(r.Context(), "files.set_visibility",
		trace.WithAttributes(attribute.Bool("is_public", public)),
	)
	defer span.End()

	userID, err := h.access.Authenticate(ctx, r)
	if err != nil {
		writeError(w, err)
		return
	}

	file, err := h.repo.SetVisibility(ctx, mux.Vars(r)["id"], userID, public)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, file)
}

// Data handles GET /files/{id}/data?size=, returning content bytes. Reads
// are allowed for the owner or anyone when the file is public; everything
// else is a 404 so existence never leaks.
func (h *FilesHandler) Data(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "files.data")
	defer span.End()

	userID := h.access.Identify(ctx, r)

	file, err := h.repo.FindByID(ctx, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}

	if !auth.CanRead(file, userID) {
		writeError(w, models.ErrNotFound)
		return
	}

	if file.Type == models.TypeFolder {
		writeError(w, models.Validationf("A folder doesn't have content"))
		return
	}

	width, _ := strconv.Atoi(r.URL.Query().Get("size"))

	data, err := h.repo.Content(ctx, file, width)
	if err != nil {
		writeError(w, err)
		return
	}

	contentType := mime.TypeByExtension(filepath.Ext(file.Name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
