package files

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"

	"github.com/maneesh/filevault/internal/models"
	"github.com/maneesh/filevault/internal/queue"
)

// JobQueue is the producer side of the asynchronous task channel.
// Implemented by queue.RedisQueue.
type JobQueue interface {
	Enqueue(ctx context.Context, topic string, payload any) error
}

// UploadRequest is the payload of an upload. Data carries the content bytes
// base64-encoded and is required for non-folder types.
type UploadRequest struct {
	Name     string          `json:"name"`
	Type     models.FileType `json:"type"`
	ParentID models.ParentID `json:"parentId"`
	IsPublic bool            `json:"isPublic"`
	Data     string          `json:"data"`
}

// UploadPipeline validates and orchestrates creation of a file entity:
// validate, resolve parent, persist blob, persist metadata, enqueue
// post-processing. The blob is written before the metadata so a crash in
// between leaves an orphaned blob, never metadata pointing at nothing.
type UploadPipeline struct {
	repo  *Repository
	queue JobQueue
}

// NewUploadPipeline creates an upload pipeline.
func NewUploadPipeline(repo *Repository, q JobQueue) *UploadPipeline {
	return &UploadPipeline{repo: repo, queue: q}
}

// Upload runs the pipeline for one request on behalf of userID and returns
// the persisted entity. Rejections are ValidationErrors carrying the first
// failing check, in order: name, type, data, parent.
func (up *UploadPipeline) Upload(ctx context.Context, userID string, req *UploadRequest) (*models.File, error) {
	if req.Name == "" {
		return nil, models.Validationf("Missing name")
	}
	if !req.Type.Valid() {
		return nil, models.Validationf("Missing or invalid type")
	}
	if req.Data == "" && req.Type != models.TypeFolder {
		return nil, models.Validationf("Missing data")
	}

	if err := up.resolveParent(ctx, req.ParentID); err != nil {
		return nil, err
	}

	file := &models.File{
		UserID:   userID,
		Name:     req.Name,
		Type:     req.Type,
		IsPublic: req.IsPublic,
		ParentID: req.ParentID,
	}

	// Folders carry no content; everything else gets its blob written first.
	if req.Type != models.TypeFolder {
		data, err := base64.StdEncoding.DecodeString(req.Data)
		if err != nil {
			return nil, models.Validationf("Invalid data encoding")
		}
		key, err := up.repo.SaveBlob(ctx, data)
		if err != nil {
			return nil, models.Validationf("%v", err)
		}
		file.BlobKey = key
	}

	stored, err := up.repo.Create(ctx, file)
	if err != nil {
		return nil, err
	}

	// Thumbnailing is best-effort enhancement: the blob and metadata are
	// already durable, so an enqueue failure must not fail the upload.
	if stored.Type == models.TypeImage {
		job := queue.ThumbnailJob{FileID: stored.ID, UserID: stored.UserID}
		if err := up.queue.Enqueue(ctx, queue.TopicThumbnails, job); err != nil {
			log.Printf("Failed to enqueue thumbnail job for file %s: %v", stored.ID, err)
		}
	}

	return stored, nil
}

// resolveParent checks that a non-root parent references an existing folder.
func (up *UploadPipeline) resolveParent(ctx context.Context, parentID models.ParentID) error {
	if parentID.IsRoot() {
		return nil
	}
	if !validID(parentID.Ref()) {
		return models.Validationf("Parent not found")
	}
	parent, err := up.repo.meta.GetFile(ctx, parentID.Ref())
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrStorage, err)
	}
	if parent == nil {
		return models.Validationf("Parent not found")
	}
	if parent.Type != models.TypeFolder {
		return models.Validationf("Parent is not a folder")
	}
	return nil
}
