package blobstore

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"chronicle/internal/models"
)

func newTestLocalStore(t *testing.T) *LocalStore {
	t.Helper()
	st, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}
	return st
}

func TestLocalStoreRoundTrip(t *testing.T) {
	st := newTestLocalStore(t)
	ctx := context.Background()

	big := make([]byte, 3<<20)
	if _, err := rand.Read(big); err != nil {
		t.Fatalf("rand: %v", err)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: []byte{}},
		{name: "text", data: []byte("hello")},
		{name: "multi-megabyte", data: big},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := st.Write(ctx, tt.name+".bin", tt.data)
			if err != nil {
				t.Fatalf("write: %v", err)
			}
			if !ValidID(id) {
				t.Fatalf("expected uuid id, got %q", id)
			}

			got, err := st.ReadData(ctx, id)
			if err != nil {
				t.Fatalf("read data: %v", err)
			}
			if !bytes.Equal(got, tt.data) {
				t.Fatalf("data mismatch: got %d bytes, want %d", len(got), len(tt.data))
			}

			meta, err := st.ReadMeta(ctx, id)
			if err != nil {
				t.Fatalf("read meta: %v", err)
			}
			if meta.Name != tt.name+".bin" {
				t.Fatalf("expected name %q, got %q", tt.name+".bin", meta.Name)
			}
		})
	}
}

func TestLocalStoreLayout(t *testing.T) {
	st := newTestLocalStore(t)
	id, err := st.Write(context.Background(), "report.pdf", []byte("%PDF"))
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(st.Root(), id, "meta"))
	if err != nil {
		t.Fatalf("read meta sidecar: %v", err)
	}
	if string(raw) != `{"name":"report.pdf"}` {
		t.Fatalf("unexpected meta sidecar %q", raw)
	}
	if _, err := os.Stat(filepath.Join(st.Root(), id, "data")); err != nil {
		t.Fatalf("expected data file: %v", err)
	}
}

func TestLocalStoreWriteNeverReusesIDs(t *testing.T) {
	st := newTestLocalStore(t)
	ctx := context.Background()
	seen := map[string]struct{}{}
	for i := 0; i < 50; i++ {
		id, err := st.Write(ctx, "same", []byte("same bytes"))
		if err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
		if _, ok := seen[id]; ok {
			t.Fatalf("id %s issued twice", id)
		}
		seen[id] = struct{}{}
	}
}

func TestLocalStoreRemove(t *testing.T) {
	st := newTestLocalStore(t)
	ctx := context.Background()

	id, err := st.Write(ctx, "doc", []byte("payload"))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := st.Remove(ctx, id); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if _, err := st.ReadData(ctx, id); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from ReadData, got %v", err)
	}
	if _, err := st.ReadMeta(ctx, id); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from ReadMeta, got %v", err)
	}
	if err := st.Remove(ctx, id); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected second remove to fail with ErrNotFound, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(st.Root(), id)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected blob dir removed, got %v", err)
	}
}

func TestLocalStoreRejectsForeignIDs(t *testing.T) {
	st := newTestLocalStore(t)
	ctx := context.Background()

	for _, id := range []string{"", "../etc/passwd", "not-a-uuid", "{6ba7b810-9dad-11d1-80b4-00c04fd430c8}"} {
		if _, err := st.ReadData(ctx, id); !errors.Is(err, models.ErrNotFound) {
			t.Fatalf("ReadData(%q): expected ErrNotFound, got %v", id, err)
		}
		if err := st.Remove(ctx, id); !errors.Is(err, models.ErrNotFound) {
			t.Fatalf("Remove(%q): expected ErrNotFound, got %v", id, err)
		}
	}
}

func TestLocalStoreUnavailableMedium(t *testing.T) {
	root := filepath.Join(t.TempDir(), "blobs")
	st, err := NewLocalStore(root)
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}
	if err := os.RemoveAll(root); err != nil {
		t.Fatalf("remove root: %v", err)
	}
	// A regular file where the root directory should be makes every write fail.
	if err := os.WriteFile(root, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}

	_, err = st.Write(context.Background(), "doc", []byte("payload"))
	if !models.IsIOError(err) {
		t.Fatalf("expected IOError, got %v", err)
	}
}

func TestOpenDrivers(t *testing.T) {
	st, err := Open(context.Background(), Options{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("open default: %v", err)
	}
	if st.Driver() != DriverFilesystem {
		t.Fatalf("expected fs driver, got %s", st.Driver())
	}
	if _, err := Open(context.Background(), Options{Driver: "tape"}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
	if _, err := Open(context.Background(), Options{Driver: "s3"}); err == nil {
		t.Fatal("expected error for s3 without bucket")
	}
}
