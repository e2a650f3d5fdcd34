package blobstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"chronicle/internal/models"
)

// S3Config holds construction parameters for an S3-compatible backend (AWS S3 or MinIO).
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string // optional; enables a custom endpoint
	Prefix    string // optional object key prefix
	PathStyle bool
}

// S3Store keeps each blob as two objects: <prefix><id>/data and <prefix><id>/meta.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Store creates an S3 blob store using the default AWS credential chain.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewS3StoreWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewS3StoreWithClient wraps an existing client.
func NewS3StoreWithClient(client *s3.Client, bucket, prefix string) *S3Store {
	prefix = strings.TrimLeft(prefix, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Store{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3Store) Driver() Driver { return DriverS3 }

// Write stores meta and data objects under a freshly allocated id.
func (s *S3Store) Write(ctx context.Context, name string, data []byte) (string, error) {
	if s == nil || s.client == nil {
		return "", fmt.Errorf("blob store is not configured")
	}

	// S3 has no exclusive create; emulate it with a HEAD before claiming an id.
	id, err := allocate(func(id string) (bool, error) {
		exists, err := s.exists(ctx, s.key(id, metaFileName))
		if err != nil {
			return false, err
		}
		return !exists, nil
	})
	if err != nil {
		return "", err
	}

	meta, err := json.Marshal(models.BlobMeta{Name: name})
	if err != nil {
		return "", err
	}
	if err := s.put(ctx, s.key(id, metaFileName), meta, "application/json"); err != nil {
		return "", models.WrapIO("put blob meta", err)
	}
	if err := s.put(ctx, s.key(id, dataFileName), data, "application/octet-stream"); err != nil {
		return "", models.WrapIO("put blob data", err)
	}
	return id, nil
}

// ReadData returns the data object for id.
func (s *S3Store) ReadData(ctx context.Context, id string) ([]byte, error) {
	if !ValidID(id) {
		return nil, notFound(id)
	}
	data, err := s.get(ctx, s.key(id, dataFileName))
	if isS3NotFound(err) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, models.WrapIO("get blob data", err)
	}
	return data, nil
}

// ReadMeta returns the metadata object for id.
func (s *S3Store) ReadMeta(ctx context.Context, id string) (models.BlobMeta, error) {
	var meta models.BlobMeta
	if !ValidID(id) {
		return meta, notFound(id)
	}
	raw, err := s.get(ctx, s.key(id, metaFileName))
	if isS3NotFound(err) {
		return meta, notFound(id)
	}
	if err != nil {
		return meta, models.WrapIO("get blob meta", err)
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return meta, models.WrapIO("decode blob meta", err)
	}
	return meta, nil
}

// Remove deletes both objects. Removing an absent blob fails with ErrNotFound.
func (s *S3Store) Remove(ctx context.Context, id string) error {
	if !ValidID(id) {
		return notFound(id)
	}
	metaExists, err := s.exists(ctx, s.key(id, metaFileName))
	if err != nil {
		return err
	}
	dataExists, err := s.exists(ctx, s.key(id, dataFileName))
	if err != nil {
		return err
	}
	if !metaExists && !dataExists {
		return notFound(id)
	}
	for _, name := range []string{metaFileName, dataFileName} {
		key := s.key(id, name)
		if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &s.bucket, Key: &key}); err != nil {
			return models.WrapIO("delete blob", err)
		}
	}
	return nil
}

func (s *S3Store) key(id, name string) string {
	return s.prefix + id + "/" + name
}

func (s *S3Store) put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &s.bucket,
		Key:           &key,
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(contentType),
	})
	return err
}

func (s *S3Store) get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (s *S3Store) exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &s.bucket, Key: &key})
	if err == nil {
		return true, nil
	}
	if isS3NotFound(err) {
		return false, nil
	}
	return false, models.WrapIO("head blob", err)
}

func isS3NotFound(err error) bool {
	if err == nil {
		return false
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var status interface{ HTTPStatusCode() int }
	if errors.As(err, &status) {
		return status.HTTPStatusCode() == http.StatusNotFound
	}
	return false
}
