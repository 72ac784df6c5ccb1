// Package workers implements the background job consumers: thumbnail
// generation for uploaded images and the welcome greeting for new users.
package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/maneesh/filevault/internal/models"
	"github.com/maneesh/filevault/internal/queue"
)

// ThumbnailWidths are the fixed target widths of generated derivatives.
var ThumbnailWidths = [3]int{500, 250, 100}

// FileGetter is the slice of the metadata store the worker needs.
// Implemented by storage.MySQLClient.
type FileGetter interface {
	GetFileForOwner(ctx context.Context, id, userID string) (*models.File, error)
}

// BlobStore is the content store capability the worker reads originals from
// and writes derivatives to. Implemented by storage.MinioClient.
type BlobStore interface {
	PutBlob(ctx context.Context, key string, data []byte) error
	GetBlob(ctx context.Context, key string) ([]byte, error)
}

// ThumbnailWorker consumes thumbnail jobs one at a time and produces
// resized derivative blobs. Jobs are idempotent: regenerating a width
// overwrites the same derivative key.
type ThumbnailWorker struct {
	files FileGetter
	blobs BlobStore
}

// NewThumbnailWorker creates a thumbnail worker.
func NewThumbnailWorker(files FileGetter, blobs BlobStore) *ThumbnailWorker {
	return &ThumbnailWorker{files: files, blobs: blobs}
}

// Process handles one delivered thumbnail job. Malformed ids and missing
// files fail the job permanently; per-width generation failures are logged
// and swallowed so one width never blocks the others.
func (tw *ThumbnailWorker) Process(ctx context.Context, payload []byte) error {
	var job queue.ThumbnailJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return fmt.Errorf("malformed job payload: %w", err)
	}
	if job.UserID == "" {
		return errors.New("missing userId")
	}
	if job.FileID == "" {
		return errors.New("missing fileId")
	}
	if _, err := uuid.Parse(job.FileID); err != nil {
		return errors.New("file not found")
	}
	if _, err := uuid.Parse(job.UserID); err != nil {
		return errors.New("file not found")
	}

	file, err := tw.files.GetFileForOwner(ctx, job.FileID, job.UserID)
	if err != nil {
		return fmt.Errorf("failed to load file %s: %w", job.FileID, err)
	}
	if file == nil {
		return errors.New("file not found")
	}

	data, err := tw.blobs.GetBlob(ctx, file.BlobKey)
	if err != nil {
		return fmt.Errorf("failed to read original blob: %w", err)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to decode image: %w", err)
	}

	for _, width := range ThumbnailWidths {
		if err := tw.generate(ctx, file, img, format, width); err != nil {
			log.Printf("Error generating thumbnail for file %s width %d: %v", file.ID, width, err)
		}
	}
	return nil
}

// generate resizes the decoded image to one target width, preserving aspect
// ratio, and stores it next to the original keyed by the width suffix.
func (tw *ThumbnailWorker) generate(ctx context.Context, file *models.File, img image.Image, format string, width int) error {
	encFormat, err := imaging.FormatFromExtension(format)
	if err != nil {
		encFormat = imaging.JPEG
	}

	thumb := imaging.Resize(img, width, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, encFormat); err != nil {
		return fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	key := models.DerivativeKey(file.BlobKey, width)
	if err := tw.blobs.PutBlob(ctx, key, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to store thumbnail: %w", err)
	}
	return nil
}
