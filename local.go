package hashdrop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// ObjectIndex defines the interface for object metadata persistence.
// Implementations must handle concurrent access safely.
type ObjectIndex interface {
	// Get retrieves metadata for an object by digest.
	//
	// Returns ErrNotFound if the digest is not indexed.
	Get(ctx context.Context, digest string) (StoredObject, error)

	// Insert records metadata for an object. An existing entry for the same
	// digest is never replaced: the first write wins.
	//
	// Returns:
	//   - StoredObject: the entry now stored for the digest
	//   - bool: true if a new entry was created
	//   - error: any database error
	Insert(ctx context.Context, obj StoredObject) (StoredObject, bool, error)

	// List retrieves a page of entries ordered by creation time.
	List(ctx context.Context, q ListQuery) (ListResult, error)
}

// BlobStorage defines the interface for raw content storage keyed by digest.
type BlobStorage interface {
	// Open returns the content stored for digest.
	//
	// Returns ErrNotFound if no blob exists for digest.
	Open(ctx context.Context, digest string) (io.ReadSeekCloser, error)

	// Write stores content under digest. Implementations must verify that
	// the content hashes to digest and return ErrHashMismatch otherwise.
	// Writing a digest that already exists leaves the existing blob intact.
	Write(ctx context.Context, digest string, content io.Reader) (SaveResult, error)

	// Delete removes the blob for digest.
	//
	// Returns ErrNotFound if no blob exists for digest.
	Delete(ctx context.Context, digest string) error

	// List returns every blob currently in storage.
	List(ctx context.Context) ([]BlobEntry, error)
}

// LocalStoreConfig holds configuration options for LocalStore.
type LocalStoreConfig struct {
	CleanupTimeout time.Duration // Timeout for cleanup after a failed index insert (default: 30s)
}

// LocalStore is an ObjectStore backed by an ObjectIndex for metadata and a
// BlobStorage for content.
type LocalStore struct {
	index          ObjectIndex
	blobs          BlobStorage
	cleanupTimeout time.Duration
}

func NewLocalStore(index ObjectIndex, blobs BlobStorage, cfg LocalStoreConfig) *LocalStore {
	cleanupTimeout := cfg.CleanupTimeout
	if cleanupTimeout <= 0 {
		cleanupTimeout = 30 * time.Second
	}
	return &LocalStore{
		index:          index,
		blobs:          blobs,
		cleanupTimeout: cleanupTimeout,
	}
}

func (s *LocalStore) Head(ctx context.Context, digest string) (StoredObject, error) {
	if err := ctx.Err(); err != nil {
		return StoredObject{}, fmt.Errorf("head: %w", err)
	}

	obj, err := s.index.Get(ctx, digest)
	if err != nil {
		return StoredObject{}, fmt.Errorf("head: %w", err)
	}
	return obj, nil
}

func (s *LocalStore) Get(ctx context.Context, digest string) (StoredObject, io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return StoredObject{}, nil, fmt.Errorf("get: %w", err)
	}

	obj, err := s.index.Get(ctx, digest)
	if err != nil {
		return StoredObject{}, nil, fmt.Errorf("get: %w", err)
	}

	f, err := s.blobs.Open(ctx, digest)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			slog.Warn("indexed object has no blob", "digest", digest)
		}
		return StoredObject{}, nil, fmt.Errorf("get: %w", err)
	}

	return obj, f, nil
}

// Put writes the blob and then indexes it. If indexing fails and this call
// created the blob, the blob is removed using a background context with the
// configured cleanup timeout so cleanup completes even if ctx is cancelled.
func (s *LocalStore) Put(ctx context.Context, obj PutObject, content io.Reader) (StoredObject, error) {
	if err := ctx.Err(); err != nil {
		return StoredObject{}, fmt.Errorf("put: %w", err)
	}

	if !IsValidDigest(obj.Digest) {
		return StoredObject{}, fmt.Errorf("put: %w", ErrInvalidDigest)
	}

	contentType := obj.ContentType
	if contentType == "" {
		contentType = DefaultContentType
	}

	saved, err := s.blobs.Write(ctx, obj.Digest, content)
	if err != nil {
		return StoredObject{}, fmt.Errorf("put %s: write failed: %w", obj.Digest, err)
	}

	entry := StoredObject{
		Digest:           obj.Digest,
		Size:             saved.BytesWritten,
		ContentType:      contentType,
		OriginalFilename: obj.OriginalFilename,
		CreatedAt:        time.Now().UTC(),
	}

	stored, _, insertErr := s.index.Insert(ctx, entry)
	if insertErr != nil {
		if !saved.Created {
			return StoredObject{}, fmt.Errorf("put %s: index insert failed: %w", obj.Digest, insertErr)
		}

		cleanupCtx, cancel := context.WithTimeout(context.Background(), s.cleanupTimeout)
		defer cancel()

		// Another writer may have indexed the same digest in the meantime.
		if _, getErr := s.index.Get(cleanupCtx, obj.Digest); getErr == nil {
			return StoredObject{}, fmt.Errorf("put %s: index insert failed: %w", obj.Digest, insertErr)
		}

		if delErr := s.blobs.Delete(cleanupCtx, obj.Digest); delErr != nil {
			return StoredObject{}, fmt.Errorf("put %s: index insert failed (%w) and cleanup failed: %w", obj.Digest, insertErr, delErr)
		}
		return StoredObject{}, fmt.Errorf("put %s: index insert failed: %w", obj.Digest, insertErr)
	}

	return stored, nil
}

// List returns a page of indexed objects.
func (s *LocalStore) List(ctx context.Context, q ListQuery) (ListResult, error) {
	if err := ctx.Err(); err != nil {
		return ListResult{}, fmt.Errorf("list: %w", err)
	}

	result, err := s.index.List(ctx, q)
	if err != nil {
		return ListResult{}, fmt.Errorf("list: %w", err)
	}
	return result, nil
}

// Reindex synchronizes the index from blob storage. Blobs that are not yet
// indexed are inserted with DefaultContentType and no filename, since that
// metadata only ever arrives with an upload.
//
// Returns the number of entries created. The operation is not atomic: if it
// fails partway through, earlier blobs remain indexed.
func (s *LocalStore) Reindex(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("reindex: %w", err)
	}

	blobs, err := s.blobs.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("reindex: %w", err)
	}

	created := 0
	for _, b := range blobs {
		if err := ctx.Err(); err != nil {
			return created, fmt.Errorf("reindex: %w", err)
		}

		_, inserted, insertErr := s.index.Insert(ctx, StoredObject{
			Digest:      b.Digest,
			Size:        b.Size,
			ContentType: DefaultContentType,
			CreatedAt:   time.Now().UTC(),
		})
		if insertErr != nil {
			return created, fmt.Errorf("reindex '%s': %w", b.Digest, insertErr)
		}
		if inserted {
			created++
		}
	}

	return created, nil
}
