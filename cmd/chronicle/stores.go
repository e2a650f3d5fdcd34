package main

import (
	"context"
	"fmt"

	"chronicle/internal/blobstore"
	"chronicle/internal/config"
	"chronicle/internal/ledger"
)

func ledgerOptions(cfg *config.Config) ledger.Options {
	return ledger.Options{
		Driver: cfg.Ledger.Driver,
		Path:   cfg.DBPath,
		DSN:    cfg.Ledger.DSN,
	}
}

func blobOptions(cfg *config.Config) blobstore.Options {
	return blobstore.Options{
		Driver: cfg.Blobs.Driver,
		Dir:    cfg.BlobDir(),
		S3: blobstore.S3Config{
			Bucket:    cfg.Blobs.S3Bucket,
			Region:    cfg.Blobs.S3Region,
			Endpoint:  cfg.Blobs.S3Endpoint,
			Prefix:    cfg.Blobs.S3Prefix,
			PathStyle: cfg.Blobs.S3PathStyle,
		},
	}
}

// openStores opens the ledger and blob store named by cfg. The caller closes the ledger.
func openStores(ctx context.Context, cfg *config.Config) (*ledger.Store, blobstore.BlobStore, error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("config not initialized")
	}
	st, err := ledger.Open(ctx, ledgerOptions(cfg))
	if err != nil {
		return nil, nil, err
	}
	bs, err := blobstore.Open(ctx, blobOptions(cfg))
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}
	return st, bs, nil
}
