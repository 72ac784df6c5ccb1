package files

import (
	"context"
	"fmt"

	"github.com/maneesh/filevault/internal/models"
	"github.com/maneesh/filevault/internal/storage"
)

// fakeMeta is an in-memory MetadataStore preserving insertion order.
type fakeMeta struct {
	rows    []*models.File
	nextSeq int64

	insertErr error
	getErr    error

	// op log lets tests assert write ordering across the two stores.
	ops *[]string
}

func newFakeMeta() *fakeMeta { return &fakeMeta{} }

func (f *fakeMeta) logOp(op string) {
	if f.ops != nil {
		*f.ops = append(*f.ops, op)
	}
}

func (f *fakeMeta) InsertFile(ctx context.Context, file *models.File) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.nextSeq++
	file.Seq = f.nextSeq
	clone := *file
	f.rows = append(f.rows, &clone)
	f.logOp("insert " + file.ID)
	return nil
}

func (f *fakeMeta) GetFile(ctx context.Context, id string) (*models.File, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, row := range f.rows {
		if row.ID == id {
			clone := *row
			return &clone, nil
		}
	}
	return nil, nil
}

func (f *fakeMeta) GetFileForOwner(ctx context.Context, id, userID string) (*models.File, error) {
	file, err := f.GetFile(ctx, id)
	if err != nil || file == nil || file.UserID != userID {
		return nil, err
	}
	return file, nil
}

func (f *fakeMeta) ListChildren(ctx context.Context, parentID models.ParentID, offset, limit int) ([]*models.File, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	var all []*models.File
	for _, row := range f.rows {
		if row.ParentID == parentID {
			all = append(all, row)
		}
	}
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	out := make([]*models.File, 0, end-offset)
	for _, row := range all[offset:end] {
		clone := *row
		out = append(out, &clone)
	}
	return out, nil
}

func (f *fakeMeta) SetFileVisibility(ctx context.Context, id, userID string, public bool) (*models.File, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, row := range f.rows {
		if row.ID == id && row.UserID == userID {
			row.IsPublic = public
			clone := *row
			return &clone, nil
		}
	}
	return nil, nil
}

// fakeBlobs is an in-memory BlobStore.
type fakeBlobs struct {
	objects map[string][]byte

	putErr error
	getErr error

	ops *[]string
}

func newFakeBlobs() *fakeBlobs { return &fakeBlobs{objects: make(map[string][]byte)} }

func (f *fakeBlobs) PutBlob(ctx context.Context, key string, data []byte) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.objects[key] = append([]byte(nil), data...)
	if f.ops != nil {
		*f.ops = append(*f.ops, "put "+key)
	}
	return nil
}

func (f *fakeBlobs) GetBlob(ctx context.Context, key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.objects[key]
	if !ok {
		return nil, storage.ErrBlobNotFound
	}
	return data, nil
}

// fakeQueue records enqueued jobs.
type fakeQueue struct {
	topics   []string
	payloads []any
	err      error
}

func (f *fakeQueue) Enqueue(ctx context.Context, topic string, payload any) error {
	if f.err != nil {
		return f.err
	}
	f.topics = append(f.topics, topic)
	f.payloads = append(f.payloads, payload)
	return nil
}

func testUUID(n int) string {
	return fmt.Sprintf("00000000-0000-4000-8000-%012d", n)
}
