package blobstore

import (
	"context"
	"fmt"
	"strings"
)

// Options selects and configures a backend.
type Options struct {
	Driver string
	Dir    string
	S3     S3Config
}

// Open constructs the backend named by opts.Driver. An empty driver means filesystem.
func Open(ctx context.Context, opts Options) (BlobStore, error) {
	switch Driver(strings.ToLower(strings.TrimSpace(opts.Driver))) {
	case "", DriverFilesystem:
		return NewLocalStore(opts.Dir)
	case DriverS3:
		return NewS3Store(ctx, opts.S3)
	default:
		return nil, fmt.Errorf("unknown blob driver %q", opts.Driver)
	}
}
