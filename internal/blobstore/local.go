package blobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"chronicle/internal/models"
)

const (
	dataFileName = "data"
	metaFileName = "meta"
)

// LocalStore keeps each blob in its own directory: <root>/<id>/{data,meta}.
type LocalStore struct {
	root string
}

// NewLocalStore creates a filesystem blob store rooted at root.
func NewLocalStore(root string) (*LocalStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("blob root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, models.WrapIO("create blob root", err)
	}
	return &LocalStore{root: abs}, nil
}

func (s *LocalStore) Driver() Driver { return DriverFilesystem }

// Root returns the absolute storage directory.
func (s *LocalStore) Root() string { return s.root }

// Write stores data and its metadata under a freshly allocated id.
func (s *LocalStore) Write(ctx context.Context, name string, data []byte) (string, error) {
	if s == nil {
		return "", fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id, err := allocate(func(id string) (bool, error) {
		err := os.Mkdir(filepath.Join(s.root, id), 0o755)
		if errors.Is(err, os.ErrExist) {
			return false, nil
		}
		if err != nil {
			return false, models.WrapIO("create blob dir", err)
		}
		return true, nil
	})
	if err != nil {
		return "", err
	}

	dir := filepath.Join(s.root, id)
	meta, err := json.Marshal(models.BlobMeta{Name: name})
	if err != nil {
		return "", err
	}
	if err := writeFileAtomic(dir, metaFileName, meta); err != nil {
		return "", models.WrapIO("write blob meta", err)
	}
	if err := writeFileAtomic(dir, dataFileName, data); err != nil {
		return "", models.WrapIO("write blob data", err)
	}
	return id, nil
}

// ReadData returns the stored bytes for id.
func (s *LocalStore) ReadData(ctx context.Context, id string) ([]byte, error) {
	path, err := s.pathFor(ctx, id, dataFileName)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, models.WrapIO("read blob data", err)
	}
	return data, nil
}

// ReadMeta returns the metadata sidecar for id.
func (s *LocalStore) ReadMeta(ctx context.Context, id string) (models.BlobMeta, error) {
	var meta models.BlobMeta
	path, err := s.pathFor(ctx, id, metaFileName)
	if err != nil {
		return meta, err
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return meta, notFound(id)
	}
	if err != nil {
		return meta, models.WrapIO("read blob meta", err)
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return meta, models.WrapIO("decode blob meta", err)
	}
	return meta, nil
}

// Remove deletes payload and metadata. Removing an absent blob fails with ErrNotFound.
func (s *LocalStore) Remove(ctx context.Context, id string) error {
	dataPath, err := s.pathFor(ctx, id, dataFileName)
	if err != nil {
		return err
	}
	dir := filepath.Dir(dataPath)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return notFound(id)
	} else if err != nil {
		return models.WrapIO("stat blob", err)
	}

	for _, name := range []string{metaFileName, dataFileName} {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return models.WrapIO("remove blob", err)
		}
	}
	if err := os.Remove(dir); err != nil {
		return models.WrapIO("remove blob dir", err)
	}
	return nil
}

func (s *LocalStore) pathFor(ctx context.Context, id, file string) (string, error) {
	if s == nil {
		return "", fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !ValidID(id) {
		return "", notFound(id)
	}
	return filepath.Join(s.root, id, file), nil
}

func writeFileAtomic(dir, name string, data []byte) error {
	tmp, err := os.CreateTemp(dir, "."+name+"-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, filepath.Join(dir, name)); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
