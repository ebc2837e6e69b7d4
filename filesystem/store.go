// Package filesystem provides a file system blob storage backend for hashdrop.
// Blobs are stored under a two level fan-out derived from their digest and
// written atomically through temp files. Every write is verified against the
// digest it is stored under.
package filesystem

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/sha256-simd"
	"github.com/sagarc03/hashdrop"
)

const tmpPrefix = ".t"

// Store provides file system blob storage operations.
type Store struct {
	root *os.Root
}

// NewFileStorage creates a new Store with the given root directory.
// The root provides sandboxed file operations preventing path traversal.
func NewFileStorage(root *os.Root) *Store {
	return &Store{root: root}
}

// BlobPath returns the path of the blob for digest relative to the store
// root: <d[0:2]>/<d[2:4]>/<digest>.
func BlobPath(digest string) string {
	return path.Join(digest[0:2], digest[2:4], digest)
}

// Open opens a blob for reading. Returns hashdrop.ErrNotFound if the blob does not exist.
func (s *Store) Open(ctx context.Context, digest string) (io.ReadSeekCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !hashdrop.IsValidDigest(digest) {
		return nil, hashdrop.ErrInvalidDigest
	}

	f, err := s.root.Open(BlobPath(digest))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, hashdrop.ErrNotFound
		}
		return nil, fmt.Errorf("failed to open blob: %w", err)
	}

	return f, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (n int, err error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

// Write atomically stores content under digest using a temp file and rename.
// The content is hashed while it is copied; if it does not hash to digest the
// temp file is discarded and hashdrop.ErrHashMismatch is returned. If a blob
// for digest already exists the new copy is discarded and the result reports
// Created=false. The operation respects context cancellation.
func (s *Store) Write(ctx context.Context, digest string, content io.Reader) (hashdrop.SaveResult, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return hashdrop.SaveResult{}, ctxErr
	}

	if !hashdrop.IsValidDigest(digest) {
		return hashdrop.SaveResult{}, hashdrop.ErrInvalidDigest
	}

	tmpFile := tmpFileName()
	t, createErr := s.root.Create(tmpFile)
	if createErr != nil {
		return hashdrop.SaveResult{}, fmt.Errorf("could not open temp file: %w", createErr)
	}

	success := false
	defer func() {
		if closeErr := t.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			slog.Warn("failed to close tmp file", "err", closeErr)
		}
		if !success {
			if rmErr := s.root.Remove(tmpFile); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				slog.Warn("failed to remove tmp file", "err", rmErr)
			}
		}
	}()

	h := sha256.New()
	w := io.MultiWriter(h, t)

	size, err := io.Copy(w, &ctxReader{ctx: ctx, r: content})
	if err != nil {
		return hashdrop.SaveResult{}, fmt.Errorf("could not copy blob contents: %w", err)
	}

	computed := hex.EncodeToString(h.Sum(nil))
	if computed != digest {
		return hashdrop.SaveResult{}, fmt.Errorf("%w: expected %s, got %s", hashdrop.ErrHashMismatch, digest, computed)
	}

	dest := BlobPath(digest)
	if info, statErr := s.root.Stat(dest); statErr == nil {
		return hashdrop.SaveResult{BytesWritten: info.Size(), Digest: digest, Created: false}, nil
	}

	err = t.Sync()
	if err != nil {
		return hashdrop.SaveResult{}, fmt.Errorf("could not sync written blob: %w", err)
	}

	if err := s.root.MkdirAll(path.Dir(dest), 0o755); err != nil {
		return hashdrop.SaveResult{}, fmt.Errorf("could not create fan-out directories: %w", err)
	}

	if renameErr := s.root.Rename(tmpFile, dest); renameErr != nil {
		return hashdrop.SaveResult{}, fmt.Errorf("failed to rename blob: %w", renameErr)
	}

	success = true

	return hashdrop.SaveResult{BytesWritten: size, Digest: digest, Created: true}, nil
}

// Delete removes a blob. Returns hashdrop.ErrNotFound if the blob does not exist.
func (s *Store) Delete(ctx context.Context, digest string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !hashdrop.IsValidDigest(digest) {
		return hashdrop.ErrInvalidDigest
	}

	err := s.root.Remove(BlobPath(digest))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return hashdrop.ErrNotFound
		}
		return fmt.Errorf("could not delete blob: %w", err)
	}
	return nil
}

// List recursively walks the root directory and returns every blob with its
// size. Temp files and files whose name is not a digest are skipped.
// This is intended for reindex operations.
func (s *Store) List(ctx context.Context) ([]hashdrop.BlobEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entries []hashdrop.BlobEntry

	err := s.walkDir(ctx, ".", &entries)
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}

	return entries, nil
}

func (s *Store) walkDir(ctx context.Context, dir string, entries *[]hashdrop.BlobEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dirEntries, err := fs.ReadDir(s.root.FS(), dir)
	if err != nil {
		return err
	}

	for _, entry := range dirEntries {
		if err := ctx.Err(); err != nil {
			return err
		}

		entryPath := path.Join(dir, entry.Name())

		if entry.IsDir() {
			if err := s.walkDir(ctx, entryPath, entries); err != nil {
				return err
			}
			continue
		}

		name := entry.Name()
		if strings.HasPrefix(name, tmpPrefix) || !hashdrop.IsValidDigest(name) {
			slog.Debug("skipping non-blob file", "path", entryPath)
			continue
		}

		if entryPath != BlobPath(name) {
			slog.Warn("skipping misplaced blob", "path", entryPath)
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return fmt.Errorf("walk dir: %w", err)
		}

		*entries = append(*entries, hashdrop.BlobEntry{
			Digest: name,
			Size:   info.Size(),
		})
	}

	return nil
}

func tmpFileName() string {
	return tmpPrefix + uuid.New().String()
}
