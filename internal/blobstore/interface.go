package blobstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"chronicle/internal/models"
)

const idMaxAttempts = 8

// Driver identifies a concrete blob storage backend.
type Driver string

const (
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
)

// BlobStore persists immutable byte payloads under opaque ids.
//
// Read and remove operations on an absent id fail with models.ErrNotFound.
// Other storage failures are reported as *models.IOError.
type BlobStore interface {
	Write(ctx context.Context, name string, data []byte) (string, error)
	ReadData(ctx context.Context, id string) ([]byte, error)
	ReadMeta(ctx context.Context, id string) (models.BlobMeta, error)
	Remove(ctx context.Context, id string) error
	Driver() Driver
}

// NewID returns a fresh random blob id.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id has the shape of an issued blob id.
func ValidID(id string) bool {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return false
	}
	// uuid.Parse accepts urn and braced forms; only the canonical form is ever issued.
	return parsed.String() == id
}

// allocate draws ids until claim succeeds or reports a non-collision failure.
func allocate(claim func(id string) (bool, error)) (string, error) {
	for i := 0; i < idMaxAttempts; i++ {
		id := NewID()
		ok, err := claim(id)
		if err != nil {
			return "", err
		}
		if ok {
			return id, nil
		}
	}
	return "", models.WrapIO("allocate blob id", fmt.Errorf("unable to allocate unique blob id"))
}

func notFound(id string) error {
	return fmt.Errorf("blob %s: %w", id, models.ErrNotFound)
}
