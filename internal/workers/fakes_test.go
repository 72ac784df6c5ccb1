package workers

import (
	"context"
	"errors"

	"github.com/maneesh/filevault/internal/models"
	"github.com/maneesh/filevault/internal/storage"
)

type fakeFiles struct {
	files map[string]*models.File
	err   error
}

func (f *fakeFiles) GetFileForOwner(ctx context.Context, id, userID string) (*models.File, error) {
	if f.err != nil {
		return nil, f.err
	}
	file, ok := f.files[id]
	if !ok || file.UserID != userID {
		return nil, nil
	}
	return file, nil
}

func (f *fakeFiles) InsertFile(ctx context.Context, file *models.File) error {
	if f.files == nil {
		f.files = make(map[string]*models.File)
	}
	clone := *file
	f.files[file.ID] = &clone
	return nil
}

func (f *fakeFiles) GetFile(ctx context.Context, id string) (*models.File, error) {
	return f.files[id], nil
}

func (f *fakeFiles) ListChildren(ctx context.Context, parentID models.ParentID, offset, limit int) ([]*models.File, error) {
	return nil, nil
}

func (f *fakeFiles) SetFileVisibility(ctx context.Context, id, userID string, public bool) (*models.File, error) {
	return nil, nil
}

type fakeUsers struct {
	users map[string]*models.User
	err   error
}

func (f *fakeUsers) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.users[id], nil
}

// fakeBlobs is an in-memory blob store; failKeys forces write failures for
// specific derivative keys.
type fakeBlobs struct {
	objects  map[string][]byte
	failKeys map[string]bool
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: make(map[string][]byte), failKeys: make(map[string]bool)}
}

func (f *fakeBlobs) PutBlob(ctx context.Context, key string, data []byte) error {
	if f.failKeys[key] {
		return errors.New("forced write failure")
	}
	f.objects[key] = append([]byte(nil), data...)
	return nil
}

func (f *fakeBlobs) GetBlob(ctx context.Context, key string) ([]byte, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, storage.ErrBlobNotFound
	}
	return data, nil
}
