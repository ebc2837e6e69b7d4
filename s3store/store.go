// Package s3store provides an ObjectStore backed by any S3-compatible bucket
// such as Cloudflare R2, MinIO or AWS S3.
//
// Objects are stored under their digest, optionally below a key prefix. The
// content type is stored as the object's Content-Type and the original
// filename as the x-amz-meta-original-filename user metadata.
package s3store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sagarc03/hashdrop"
	"github.com/sagarc03/hashdrop/metrics"
)

const (
	backendName = "s3"

	// filenameMetaKey is sent as x-amz-meta-original-filename.
	filenameMetaKey = "original-filename"
)

// Config holds connection settings for an S3-compatible bucket.
type Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	// Prefix is prepended to every object key, e.g. "objects/".
	Prefix string `mapstructure:"prefix"`
}

// Store is a hashdrop.ObjectStore backed by an S3 bucket.
type Store struct {
	client *minio.Client
	bucket string
	prefix string
}

// New creates a Store from cfg. Path-style bucket lookup is used so that
// self-hosted endpoints without wildcard DNS work.
func New(cfg Config) (*Store, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("new s3 store: endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("new s3 store: bucket is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       cfg.UseSSL,
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("new s3 store: initialize client: %w", err)
	}

	return NewWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewWithClient creates a Store around an existing minio client.
func NewWithClient(client *minio.Client, bucket, prefix string) *Store {
	return &Store{client: client, bucket: bucket, prefix: prefix}
}

// Key returns the object key used for digest.
func (s *Store) Key(digest string) string {
	return s.prefix + digest
}

func (s *Store) Head(ctx context.Context, digest string) (hashdrop.StoredObject, error) {
	start := time.Now()

	info, err := s.client.StatObject(ctx, s.bucket, s.Key(digest), minio.StatObjectOptions{})
	if err != nil {
		err = mapError(err)
		observe("head", start, err)
		return hashdrop.StoredObject{}, fmt.Errorf("head %s: %w", digest, err)
	}

	observe("head", start, nil)
	return toStoredObject(digest, info), nil
}

func (s *Store) Get(ctx context.Context, digest string) (hashdrop.StoredObject, io.ReadCloser, error) {
	start := time.Now()

	object, err := s.client.GetObject(ctx, s.bucket, s.Key(digest), minio.GetObjectOptions{})
	if err != nil {
		err = mapError(err)
		observe("get", start, err)
		return hashdrop.StoredObject{}, nil, fmt.Errorf("get %s: %w", digest, err)
	}

	// GetObject is lazy; Stat issues the request and surfaces a missing key.
	info, err := object.Stat()
	if err != nil {
		if closeErr := object.Close(); closeErr != nil {
			slog.Warn("failed to close s3 object", "digest", digest, "err", closeErr)
		}
		err = mapError(err)
		observe("get", start, err)
		return hashdrop.StoredObject{}, nil, fmt.Errorf("get %s: %w", digest, err)
	}

	observe("get", start, nil)
	return toStoredObject(digest, info), object, nil
}

func (s *Store) Put(ctx context.Context, obj hashdrop.PutObject, content io.Reader) (hashdrop.StoredObject, error) {
	if !hashdrop.IsValidDigest(obj.Digest) {
		return hashdrop.StoredObject{}, fmt.Errorf("put: %w", hashdrop.ErrInvalidDigest)
	}

	contentType := obj.ContentType
	if contentType == "" {
		contentType = hashdrop.DefaultContentType
	}

	opts := minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=31536000, immutable",
	}
	if obj.OriginalFilename != "" {
		opts.UserMetadata = map[string]string{filenameMetaKey: url.PathEscape(obj.OriginalFilename)}
	}
	// If-None-Match: * keeps the first write of a digest.
	opts.SetMatchETagExcept("*")

	start := time.Now()

	info, err := s.client.PutObject(ctx, s.bucket, s.Key(obj.Digest), content, obj.Size, opts)
	if isPreconditionFailed(err) {
		observe("put", start, nil)
		existing, headErr := s.Head(ctx, obj.Digest)
		if headErr != nil {
			return hashdrop.StoredObject{}, fmt.Errorf("put %s: %w", obj.Digest, headErr)
		}
		return existing, nil
	}
	if err != nil {
		err = mapError(err)
		observe("put", start, err)
		return hashdrop.StoredObject{}, fmt.Errorf("put %s: %w", obj.Digest, err)
	}

	observe("put", start, nil)

	createdAt := info.LastModified
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	return hashdrop.StoredObject{
		Digest:           obj.Digest,
		Size:             info.Size,
		ContentType:      contentType,
		OriginalFilename: obj.OriginalFilename,
		CreatedAt:        createdAt.UTC(),
	}, nil
}

func toStoredObject(digest string, info minio.ObjectInfo) hashdrop.StoredObject {
	contentType := info.ContentType
	if contentType == "" {
		contentType = hashdrop.DefaultContentType
	}

	return hashdrop.StoredObject{
		Digest:           digest,
		Size:             info.Size,
		ContentType:      contentType,
		OriginalFilename: originalFilename(info),
		CreatedAt:        info.LastModified.UTC(),
	}
}

func originalFilename(info minio.ObjectInfo) string {
	for k, v := range info.UserMetadata {
		if !strings.EqualFold(k, filenameMetaKey) && !strings.EqualFold(k, "X-Amz-Meta-"+filenameMetaKey) {
			continue
		}
		name, err := url.PathUnescape(v)
		if err != nil {
			return v
		}
		return name
	}
	return ""
}

// isPreconditionFailed reports whether a conditional write found the key
// already present.
func isPreconditionFailed(err error) bool {
	if err == nil {
		return false
	}
	resp := minio.ToErrorResponse(err)
	return resp.StatusCode == http.StatusPreconditionFailed || resp.Code == "PreconditionFailed"
}

// mapError translates a missing key into hashdrop.ErrNotFound.
func mapError(err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchBucket" {
		return err
	}
	if resp.StatusCode == http.StatusNotFound || resp.Code == "NoSuchKey" {
		return hashdrop.ErrNotFound
	}
	return err
}

func observe(operation string, start time.Time, err error) {
	status := "success"
	switch {
	case err == nil:
	case errors.Is(err, hashdrop.ErrNotFound):
		status = "not_found"
	default:
		status = "error"
	}

	metrics.StoreOperationsTotal.WithLabelValues(backendName, operation, status).Inc()
	metrics.StoreOperationDuration.WithLabelValues(backendName, operation).Observe(time.Since(start).Seconds())
}
