package hashdrop

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/sagarc03/hashdrop/metrics"
)

// GatewayConfig holds configuration options for Gateway.
type GatewayConfig struct {
	MaxUploadSize int64 // Largest accepted object in bytes (default: 100 MiB)
}

// Gateway implements the upload and retrieval algorithms. It holds no
// per-request state: every capability comes from the Environment passed to
// each call, so one Gateway serves all requests concurrently.
type Gateway struct {
	maxUploadSize int64
}

func NewGateway(cfg GatewayConfig) *Gateway {
	maxSize := cfg.MaxUploadSize
	if maxSize <= 0 {
		maxSize = DefaultMaxUploadSize
	}
	return &Gateway{maxUploadSize: maxSize}
}

// MaxUploadSize returns the largest accepted object size in bytes.
func (g *Gateway) MaxUploadSize() int64 {
	return g.maxUploadSize
}

// Exists reports whether content for digest is present in the store.
func (g *Gateway) Exists(ctx context.Context, env *Environment, digest string) (bool, error) {
	_, err := g.Stat(ctx, env, digest)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Stat returns the metadata for digest without transferring content.
func (g *Gateway) Stat(ctx context.Context, env *Environment, digest string) (StoredObject, error) {
	if err := checkRequest(ctx, env, digest); err != nil {
		return StoredObject{}, fmt.Errorf("stat object: %w", err)
	}

	obj, err := env.Store.Head(ctx, digest)
	if err != nil {
		return StoredObject{}, fmt.Errorf("stat object %s: %w", digest, err)
	}
	return obj, nil
}

// Upload stores the submitted content under its server computed digest.
//
// The method performs the following steps:
//  1. Rejects missing content, filename or content type
//  2. Rejects content larger than the maximum size, using the declared size
//     when known and otherwise stopping after max+1 bytes
//  3. Computes the digest from the bytes actually received
//  4. Rejects a client claimed digest that differs from the computed one
//  5. Returns Existing=true without writing if the digest is already stored
//  6. Otherwise writes the content with its content type and filename
//
// The store is not touched until every validation passes, and at most one
// write happens per call.
func (g *Gateway) Upload(ctx context.Context, env *Environment, in UploadInput) (UploadResult, error) {
	if err := ctx.Err(); err != nil {
		return UploadResult{}, fmt.Errorf("upload: %w", err)
	}

	if env == nil || env.Store == nil {
		return UploadResult{}, fmt.Errorf("upload: %w", ErrEnvironmentMissing)
	}

	if in.Content == nil || in.Filename == "" || in.ContentType == "" {
		metrics.UploadsTotal.WithLabelValues(metrics.ResultRejected).Inc()
		return UploadResult{}, fmt.Errorf("upload: %w", ErrMissingFields)
	}

	if in.Size > g.maxUploadSize {
		metrics.UploadsTotal.WithLabelValues(metrics.ResultRejected).Inc()
		return UploadResult{}, fmt.Errorf("upload: %w: declared %d bytes, maximum is %d", ErrTooLarge, in.Size, g.maxUploadSize)
	}

	data, err := io.ReadAll(io.LimitReader(in.Content, g.maxUploadSize+1))
	if err != nil {
		metrics.UploadsTotal.WithLabelValues(metrics.ResultFailed).Inc()
		return UploadResult{}, fmt.Errorf("upload: read content: %w", err)
	}

	if int64(len(data)) > g.maxUploadSize {
		metrics.UploadsTotal.WithLabelValues(metrics.ResultRejected).Inc()
		return UploadResult{}, fmt.Errorf("upload: %w: maximum is %d bytes", ErrTooLarge, g.maxUploadSize)
	}

	digest := Digest(data)

	if in.ClaimedDigest != "" && !strings.EqualFold(in.ClaimedDigest, digest) {
		metrics.UploadsTotal.WithLabelValues(metrics.ResultRejected).Inc()
		return UploadResult{}, fmt.Errorf("upload: %w: client sent %s, server computed %s", ErrHashMismatch, in.ClaimedDigest, digest)
	}

	exists, err := g.Exists(ctx, env, digest)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues(metrics.ResultFailed).Inc()
		return UploadResult{}, fmt.Errorf("upload: %w", err)
	}

	if exists {
		metrics.UploadsTotal.WithLabelValues(metrics.ResultDeduplicated).Inc()
		slog.Debug("upload deduplicated", "digest", digest, "filename", in.Filename)
		return UploadResult{Digest: digest, Filename: in.Filename, Existing: true}, nil
	}

	obj := PutObject{
		Digest:           digest,
		Size:             int64(len(data)),
		ContentType:      in.ContentType,
		OriginalFilename: in.Filename,
	}

	if _, err := env.Store.Put(ctx, obj, bytes.NewReader(data)); err != nil {
		metrics.UploadsTotal.WithLabelValues(metrics.ResultFailed).Inc()
		return UploadResult{}, fmt.Errorf("upload %s: put failed: %w", digest, err)
	}

	metrics.UploadsTotal.WithLabelValues(metrics.ResultStored).Inc()
	metrics.UploadBytesTotal.Add(float64(len(data)))
	slog.Debug("upload stored", "digest", digest, "filename", in.Filename, "size", len(data))

	return UploadResult{Digest: digest, Filename: in.Filename, Existing: false}, nil
}

// Fetch resolves a digest for content retrieval. The serve mode of env
// decides the outcome:
//   - ModeDirect: the returned Retrieval carries the content stream
//   - ModeCDN: the returned Retrieval carries ExternalBaseURL + "/" + digest
//
// A missing object is ErrNotFound in both modes. In ModeCDN an empty
// ExternalBaseURL is ErrNotConfigured; it never falls back to streaming.
func (g *Gateway) Fetch(ctx context.Context, env *Environment, digest string) (Retrieval, error) {
	if err := checkRequest(ctx, env, digest); err != nil {
		return Retrieval{}, fmt.Errorf("fetch object: %w", err)
	}

	switch env.Mode {
	case ModeDirect:
		obj, content, err := g.Open(ctx, env, digest)
		if err != nil {
			recordRetrieval(err)
			return Retrieval{}, fmt.Errorf("fetch object: %w", err)
		}
		metrics.RetrievalsTotal.WithLabelValues("direct").Inc()
		return Retrieval{Object: obj, Content: content}, nil

	case ModeCDN:
		obj, err := env.Store.Head(ctx, digest)
		if err != nil {
			recordRetrieval(err)
			return Retrieval{}, fmt.Errorf("fetch object %s: %w", digest, err)
		}
		if env.ExternalBaseURL == "" {
			metrics.RetrievalsTotal.WithLabelValues("error").Inc()
			return Retrieval{}, fmt.Errorf("fetch object: %w: external base URL is required in cdn mode", ErrNotConfigured)
		}
		metrics.RetrievalsTotal.WithLabelValues("redirect").Inc()
		return Retrieval{Object: obj, RedirectURL: RedirectURL(env.ExternalBaseURL, digest)}, nil

	default:
		return Retrieval{}, fmt.Errorf("fetch object: %w: invalid serve mode %q", ErrNotConfigured, env.Mode)
	}
}

// Open returns the content for digest regardless of serve mode.
// The caller is responsible for closing the returned reader.
func (g *Gateway) Open(ctx context.Context, env *Environment, digest string) (StoredObject, io.ReadCloser, error) {
	if err := checkRequest(ctx, env, digest); err != nil {
		return StoredObject{}, nil, fmt.Errorf("open object: %w", err)
	}

	obj, content, err := env.Store.Get(ctx, digest)
	if err != nil {
		return StoredObject{}, nil, fmt.Errorf("open object %s: %w", digest, err)
	}
	return obj, content, nil
}

// RedirectURL joins a CDN base URL and a digest.
func RedirectURL(baseURL, digest string) string {
	return strings.TrimSuffix(baseURL, "/") + "/" + digest
}

func checkRequest(ctx context.Context, env *Environment, digest string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if env == nil || env.Store == nil {
		return ErrEnvironmentMissing
	}
	if !IsValidDigest(digest) {
		return fmt.Errorf("%w: %q", ErrInvalidDigest, digest)
	}
	return nil
}

func recordRetrieval(err error) {
	if errors.Is(err, ErrNotFound) {
		metrics.RetrievalsTotal.WithLabelValues("not_found").Inc()
		return
	}
	metrics.RetrievalsTotal.WithLabelValues("error").Inc()
}
