package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// FileType classifies a stored entity.
type FileType string

const (
	TypeFolder FileType = "folder"
	TypeFile   FileType = "file"
	TypeImage  FileType = "image"
)

// Valid reports whether t is one of the three allowed types.
func (t FileType) Valid() bool {
	switch t {
	case TypeFolder, TypeFile, TypeImage:
		return true
	}
	return false
}

// ParentID identifies a file's parent folder. The zero value is the root.
// It marshals as the JSON number 0 at the root and as the folder's id string
// otherwise, and accepts 0, "0" and "" as root on input.
type ParentID struct {
	id string
}

// Root is the parent of top-level files.
var Root = ParentID{}

// ParentRef builds a ParentID referencing a folder id.
func ParentRef(id string) ParentID {
	if id == "" || id == "0" {
		return Root
	}
	return ParentID{id: id}
}

// IsRoot reports whether p is the root sentinel.
func (p ParentID) IsRoot() bool { return p.id == "" }

// Ref returns the referenced folder id; empty at the root.
func (p ParentID) Ref() string { return p.id }

func (p ParentID) String() string {
	if p.IsRoot() {
		return "0"
	}
	return p.id
}

func (p ParentID) MarshalJSON() ([]byte, error) {
	if p.IsRoot() {
		return []byte("0"), nil
	}
	return json.Marshal(p.id)
}

func (p *ParentID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty parentId")
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = ParentRef(s)
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid parentId: %s", data)
	}
	if n != 0 {
		return fmt.Errorf("invalid parentId: %d", n)
	}
	*p = Root
	return nil
}

// User is an account stored in the metadata database. PasswordHash is a
// bcrypt digest and never leaves the server.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"-"`
}

// File is a stored folder, file or image. BlobKey locates the content bytes
// in the object store and is internal-only; folders never have one. Seq is
// the insertion-order sequence used for stable child paging.
type File struct {
	ID       string   `json:"id"`
	UserID   string   `json:"userId"`
	Name     string   `json:"name"`
	Type     FileType `json:"type"`
	IsPublic bool     `json:"isPublic"`
	ParentID ParentID `json:"parentId"`
	BlobKey  string   `json:"-"`
	Seq      int64    `json:"-"`
}

// DerivativeKey returns the object key of the resized copy of a blob at the
// given target width.
func DerivativeKey(blobKey string, width int) string {
	return fmt.Sprintf("%s_%d", blobKey, width)
}
