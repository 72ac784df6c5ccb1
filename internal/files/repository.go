// Package files implements file metadata CRUD, hierarchy queries, blob
// persistence and the upload pipeline.
package files

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/maneesh/filevault/internal/models"
	"github.com/maneesh/filevault/internal/storage"
)

// PageSize is the fixed number of children returned per page.
const PageSize = 20

// MetadataStore is the persistent collection capability holding file rows.
// Implemented by storage.MySQLClient.
type MetadataStore interface {
	InsertFile(ctx context.Context, file *models.File) error
	GetFile(ctx context.Context, id string) (*models.File, error)
	GetFileForOwner(ctx context.Context, id, userID string) (*models.File, error)
	ListChildren(ctx context.Context, parentID models.ParentID, offset, limit int) ([]*models.File, error)
	SetFileVisibility(ctx context.Context, id, userID string, public bool) (*models.File, error)
}

// BlobStore is the byte-addressed content store capability. Implemented by
// storage.MinioClient.
type BlobStore interface {
	PutBlob(ctx context.Context, key string, data []byte) error
	GetBlob(ctx context.Context, key string) ([]byte, error)
}

// Repository provides CRUD and hierarchy queries over file metadata plus
// blob persistence. It holds no state beyond the injected store handles.
type Repository struct {
	meta  MetadataStore
	blobs BlobStore
}

// NewRepository creates a file repository over the two stores.
func NewRepository(meta MetadataStore, blobs BlobStore) *Repository {
	return &Repository{meta: meta, blobs: blobs}
}

// validID reports whether an externally supplied identifier has the store's
// id format. Malformed ids are treated as not found and never reach the
// store.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Create inserts file metadata, assigning a fresh identifier.
func (r *Repository) Create(ctx context.Context, file *models.File) (*models.File, error) {
	file.ID = uuid.New().String()
	if err := r.meta.InsertFile(ctx, file); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStorage, err)
	}
	return file, nil
}

// FindByID retrieves a file by id; malformed or unknown ids are ErrNotFound.
func (r *Repository) FindByID(ctx context.Context, id string) (*models.File, error) {
	if !validID(id) {
		return nil, models.ErrNotFound
	}
	file, err := r.meta.GetFile(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStorage, err)
	}
	if file == nil {
		return nil, models.ErrNotFound
	}
	return file, nil
}

// FindForOwner retrieves a file scoped to its owner; any mismatch is
// ErrNotFound.
func (r *Repository) FindForOwner(ctx context.Context, id, userID string) (*models.File, error) {
	if !validID(id) || !validID(userID) {
		return nil, models.ErrNotFound
	}
	file, err := r.meta.GetFileForOwner(ctx, id, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStorage, err)
	}
	if file == nil {
		return nil, models.ErrNotFound
	}
	return file, nil
}

// FindChildren returns page (0-based) of a parent's direct children in
// insertion order, at most PageSize entries. The query restarts per call;
// no cursor is retained.
func (r *Repository) FindChildren(ctx context.Context, parentID models.ParentID, page int) ([]*models.File, error) {
	if page < 0 {
		page = 0
	}
	if !parentID.IsRoot() && !validID(parentID.Ref()) {
		return nil, nil
	}
	children, err := r.meta.ListChildren(ctx, parentID, page*PageSize, PageSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStorage, err)
	}
	return children, nil
}

// SetVisibility toggles isPublic with a conditional update scoped to
// (id, owner) and returns the updated file. A caller can never flip another
// owner's file; no matching row is ErrNotFound.
func (r *Repository) SetVisibility(ctx context.Context, id, userID string, public bool) (*models.File, error) {
	if !validID(id) {
		return nil, models.ErrNotFound
	}
	file, err := r.meta.SetFileVisibility(ctx, id, userID, public)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStorage, err)
	}
	if file == nil {
		return nil, models.ErrNotFound
	}
	return file, nil
}

// SaveBlob writes content bytes under a fresh server-generated key, never
// the client-supplied name, and returns the key.
func (r *Repository) SaveBlob(ctx context.Context, data []byte) (string, error) {
	key := uuid.New().String()
	if err := r.blobs.PutBlob(ctx, key, data); err != nil {
		return "", err
	}
	return key, nil
}

// Content returns the raw bytes of a file's blob, or of its derivative at
// the given width when width is non-zero. A missing derivative (e.g. not
// generated yet) is ErrNotFound, never a blocking wait.
func (r *Repository) Content(ctx context.Context, file *models.File, width int) ([]byte, error) {
	key := file.BlobKey
	if width != 0 {
		key = models.DerivativeKey(file.BlobKey, width)
	}
	data, err := r.blobs.GetBlob(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", models.ErrStorage, err)
	}
	return data, nil
}
