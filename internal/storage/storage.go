package storage

import (
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/workhub/workhub/internal/apperr"
)

// BlobStore is the file-storage collaborator. Keys are opaque; callers
// keep them on the message row and resolve them back to a stream later.
type BlobStore interface {
	Save(r io.Reader, name string) (string, error)
	Open(key string) (io.ReadCloser, error)
}

// DiskStore keeps blobs in a flat directory, one file per uuid key. The
// original file name is only metadata on the message; the key alone names
// the blob on disk so hostile names never touch the filesystem.
type DiskStore struct {
	dir string
}

func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskStore{dir: dir}, nil
}

func (s *DiskStore) Save(r io.Reader, name string) (string, error) {
	key := uuid.NewString()
	f, err := os.Create(filepath.Join(s.dir, key))
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return key, nil
}

func (s *DiskStore) Open(key string) (io.ReadCloser, error) {
	if _, err := uuid.Parse(key); err != nil {
		return nil, apperr.InvalidInput("invalid storage key")
	}
	f, err := os.Open(filepath.Join(s.dir, key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.NotFound("file not found")
		}
		return nil, err
	}
	return f, nil
}
