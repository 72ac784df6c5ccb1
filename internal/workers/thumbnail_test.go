package workers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/maneesh/filevault/internal/files"
	"github.com/maneesh/filevault/internal/models"
	"github.com/maneesh/filevault/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testFileID = "00000000-0000-4000-8000-000000000001"
	testUserID = "00000000-0000-4000-8000-000000000002"
)

// testPNG renders a small solid image so the worker has real bytes to
// decode and resize.
func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func payload(t *testing.T, fileID, userID string) []byte {
	t.Helper()
	data, err := json.Marshal(queue.ThumbnailJob{FileID: fileID, UserID: userID})
	require.NoError(t, err)
	return data
}

func setupImage(t *testing.T) (*fakeFiles, *fakeBlobs) {
	t.Helper()
	blobs := newFakeBlobs()
	blobs.objects["orig-key"] = testPNG(t, 800, 600)
	ff := &fakeFiles{files: map[string]*models.File{
		testFileID: {
			ID:      testFileID,
			UserID:  testUserID,
			Name:    "cat.png",
			Type:    models.TypeImage,
			BlobKey: "orig-key",
		},
	}}
	return ff, blobs
}

func TestThumbnailAllWidths(t *testing.T) {
	ff, blobs := setupImage(t)
	worker := NewThumbnailWorker(ff, blobs)

	require.NoError(t, worker.Process(context.Background(), payload(t, testFileID, testUserID)))

	for _, width := range ThumbnailWidths {
		key := models.DerivativeKey("orig-key", width)
		data, ok := blobs.objects[key]
		require.True(t, ok, "missing derivative %s", key)

		img, _, err := image.Decode(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, width, img.Bounds().Dx())
	}
}

func TestThumbnailWidthFailureIsIndependent(t *testing.T) {
	ff, blobs := setupImage(t)
	blobs.failKeys[models.DerivativeKey("orig-key", 250)] = true
	worker := NewThumbnailWorker(ff, blobs)

	// A failed width is logged and swallowed; the job still succeeds and
	// the other widths are present.
	require.NoError(t, worker.Process(context.Background(), payload(t, testFileID, testUserID)))

	assert.Contains(t, blobs.objects, models.DerivativeKey("orig-key", 500))
	assert.NotContains(t, blobs.objects, models.DerivativeKey("orig-key", 250))
	assert.Contains(t, blobs.objects, models.DerivativeKey("orig-key", 100))
}

func TestThumbnailIdempotent(t *testing.T) {
	ff, blobs := setupImage(t)
	worker := NewThumbnailWorker(ff, blobs)

	require.NoError(t, worker.Process(context.Background(), payload(t, testFileID, testUserID)))
	first := blobs.objects[models.DerivativeKey("orig-key", 500)]

	require.NoError(t, worker.Process(context.Background(), payload(t, testFileID, testUserID)))
	second := blobs.objects[models.DerivativeKey("orig-key", 500)]

	assert.Equal(t, first, second)
	assert.Len(t, blobs.objects, 4) // original + three widths
}

func TestThumbnailJobValidation(t *testing.T) {
	ff, blobs := setupImage(t)
	worker := NewThumbnailWorker(ff, blobs)
	ctx := context.Background()

	cases := []struct {
		name    string
		payload []byte
		wantErr string
	}{
		{"not json", []byte("{"), "malformed job payload"},
		{"missing userId", payload(t, testFileID, ""), "missing userId"},
		{"missing fileId", payload(t, "", testUserID), "missing fileId"},
		{"malformed fileId", payload(t, "zzz", testUserID), "file not found"},
		{"malformed userId", payload(t, testFileID, "zzz"), "file not found"},
		{"unknown file", payload(t, "00000000-0000-4000-8000-000000000099", testUserID), "file not found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := worker.Process(ctx, tc.payload)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}

	// Owner mismatch is indistinguishable from an absent file.
	err := worker.Process(ctx, payload(t, testFileID, "00000000-0000-4000-8000-000000000099"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file not found")
}

func TestThumbnailMissingOriginalBlob(t *testing.T) {
	ff, blobs := setupImage(t)
	delete(blobs.objects, "orig-key")
	worker := NewThumbnailWorker(ff, blobs)

	err := worker.Process(context.Background(), payload(t, testFileID, testUserID))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "original blob")
}

// End-to-end: an image upload enqueues a job whose payload, run through the
// worker against the same stores, yields the three derivatives.
func TestUploadToThumbnailFlow(t *testing.T) {
	ctx := context.Background()
	ff := &fakeFiles{files: map[string]*models.File{}}
	blobs := newFakeBlobs()
	q := &captureQueue{}

	repo := files.NewRepository(ff, blobs)
	pipeline := files.NewUploadPipeline(repo, q)

	encoded := base64.StdEncoding.EncodeToString(testPNG(t, 640, 480))
	stored, err := pipeline.Upload(ctx, testUserID, &files.UploadRequest{
		Name: "cat.png",
		Type: models.TypeImage,
		Data: encoded,
	})
	require.NoError(t, err)
	require.Len(t, q.payloads, 1)

	worker := NewThumbnailWorker(ff, blobs)
	require.NoError(t, worker.Process(ctx, q.payloads[0]))

	got, err := ff.GetFile(ctx, stored.ID)
	require.NoError(t, err)
	for _, width := range ThumbnailWidths {
		assert.Contains(t, blobs.objects, models.DerivativeKey(got.BlobKey, width))
	}
}

// captureQueue records marshaled payloads the way the real queue would
// deliver them.
type captureQueue struct {
	payloads [][]byte
}

func (c *captureQueue) Enqueue(ctx context.Context, topic string, payload any) error {
	if topic != queue.TopicThumbnails {
		return fmt.Errorf("unexpected topic %q", topic)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	c.payloads = append(c.payloads, data)
	return nil
}
