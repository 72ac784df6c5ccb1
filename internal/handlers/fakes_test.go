package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gorilla/mux"
	"github.com/maneesh/filevault/internal/auth"
	"github.com/maneesh/filevault/internal/files"
	"github.com/maneesh/filevault/internal/models"
	"github.com/maneesh/filevault/internal/storage"
)

// memStore is an in-memory stand-in for the metadata store, covering every
// store interface the handlers consume.
type memStore struct {
	users map[string]*models.User // by id
	rows  []*models.File
	alive bool
}

func newMemStore() *memStore {
	return &memStore{users: make(map[string]*models.User), alive: true}
}

func (m *memStore) IsAlive(ctx context.Context) bool { return m.alive }

func (m *memStore) InsertUser(ctx context.Context, user *models.User) (bool, error) {
	for _, u := range m.users {
		if u.Email == user.Email {
			return false, nil
		}
	}
	clone := *user
	m.users[user.ID] = &clone
	return true, nil
}

func (m *memStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return m.users[id], nil
}

func (m *memStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (m *memStore) CountUsers(ctx context.Context) (int64, error) {
	return int64(len(m.users)), nil
}

func (m *memStore) CountFiles(ctx context.Context) (int64, error) {
	return int64(len(m.rows)), nil
}

func (m *memStore) InsertFile(ctx context.Context, file *models.File) error {
	file.Seq = int64(len(m.rows) + 1)
	clone := *file
	m.rows = append(m.rows, &clone)
	return nil
}

func (m *memStore) GetFile(ctx context.Context, id string) (*models.File, error) {
	for _, row := range m.rows {
		if row.ID == id {
			clone := *row
			return &clone, nil
		}
	}
	return nil, nil
}

func (m *memStore) GetFileForOwner(ctx context.Context, id, userID string) (*models.File, error) {
	file, err := m.GetFile(ctx, id)
	if err != nil || file == nil || file.UserID != userID {
		return nil, err
	}
	return file, nil
}

func (m *memStore) ListChildren(ctx context.Context, parentID models.ParentID, offset, limit int) ([]*models.File, error) {
	var all []*models.File
	for _, row := range m.rows {
		if row.ParentID == parentID {
			clone := *row
			all = append(all, &clone)
		}
	}
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (m *memStore) SetFileVisibility(ctx context.Context, id, userID string, public bool) (*models.File, error) {
	for _, row := range m.rows {
		if row.ID == id && row.UserID == userID {
			row.IsPublic = public
			clone := *row
			return &clone, nil
		}
	}
	return nil, nil
}

// memKV is an in-memory session store; TTLs are accepted and ignored.
type memKV struct {
	entries map[string]string
	alive   bool
}

func newMemKV() *memKV { return &memKV{entries: make(map[string]string), alive: true} }

func (m *memKV) IsAlive(ctx context.Context) bool { return m.alive }

func (m *memKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.entries[key] = value
	return nil
}

func (m *memKV) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok := m.entries[key]
	return v, ok, nil
}

func (m *memKV) Del(ctx context.Context, key string) error {
	delete(m.entries, key)
	return nil
}

type memBlobs struct {
	objects map[string][]byte
}

func newMemBlobs() *memBlobs { return &memBlobs{objects: make(map[string][]byte)} }

func (m *memBlobs) PutBlob(ctx context.Context, key string, data []byte) error {
	m.objects[key] = append([]byte(nil), data...)
	return nil
}

func (m *memBlobs) GetBlob(ctx context.Context, key string) ([]byte, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrBlobNotFound
	}
	return data, nil
}

type memQueue struct {
	topics   []string
	payloads []any
}

func (m *memQueue) Enqueue(ctx context.Context, topic string, payload any) error {
	m.topics = append(m.topics, topic)
	m.payloads = append(m.payloads, payload)
	return nil
}

// testApp wires the full serving path over in-memory stores and exposes the
// same routes as cmd/server.
type testApp struct {
	router *mux.Router
	store  *memStore
	kv     *memKV
	blobs  *memBlobs
	queue  *memQueue
}

func newTestApp() *testApp {
	store := newMemStore()
	kv := newMemKV()
	blobs := newMemBlobs()
	q := &memQueue{}

	sessions := auth.NewSessionManager(kv)
	access := auth.NewAccessControl(sessions, store)
	repo := files.NewRepository(store, blobs)
	pipeline := files.NewUploadPipeline(repo, q)

	appHandler := NewAppHandler(kv, store)
	usersHandler := NewUsersHandler(store, q, access)
	authHandler := NewAuthHandler(store, sessions)
	filesHandler := NewFilesHandler(repo, pipeline, access)

	router := mux.NewRouter()
	router.HandleFunc("/status", appHandler.Status).Methods("GET")
	router.HandleFunc("/stats", appHandler.Stats).Methods("GET")
	router.HandleFunc("/users", usersHandler.Register).Methods("POST")
	router.HandleFunc("/users/me", usersHandler.Me).Methods("GET")
	router.HandleFunc("/connect", authHandler.Connect).Methods("GET")
	router.HandleFunc("/disconnect", authHandler.Disconnect).Methods("GET")
	router.HandleFunc("/files", filesHandler.Upload).Methods("POST")
	router.HandleFunc("/files", filesHandler.Index).Methods("GET")
	router.HandleFunc("/files/{id}", filesHandler.Show).Methods("GET")
	router.HandleFunc("/files/{id}/publish", filesHandler.Publish).Methods("PUT")
	router.HandleFunc("/files/{id}/unpublish", filesHandler.Unpublish).Methods("PUT")
	router.HandleFunc("/files/{id}/data", filesHandler.Data).Methods("GET")

	return &testApp{router: router, store: store, kv: kv, blobs: blobs, queue: q}
}

func (a *testApp) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}
