package hashdrop

import (
	"fmt"
	"io"
	"time"
)

// DefaultMaxUploadSize is the largest accepted object, 100 MiB.
const DefaultMaxUploadSize int64 = 100 * 1024 * 1024

// DefaultContentType is used when an object has no recorded content type.
const DefaultContentType = "application/octet-stream"

// DefaultListLimit is the page size used when a ListQuery has no limit.
const DefaultListLimit = 100

// StoredObject describes one piece of content at rest.
type StoredObject struct {
	Digest           string    `json:"digest"`
	Size             int64     `json:"size"`
	ContentType      string    `json:"content_type"`
	OriginalFilename string    `json:"original_filename,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// PutObject carries the key and metadata for an ObjectStore write.
type PutObject struct {
	Digest           string
	Size             int64
	ContentType      string
	OriginalFilename string
}

// UploadInput is what a client submits for upload.
type UploadInput struct {
	Content io.Reader
	// Size is the declared content length, or -1 when unknown.
	Size int64
	// ClaimedDigest is the digest computed by the client. Optional and never
	// used for addressing.
	ClaimedDigest string
	Filename      string
	ContentType   string
}

// UploadResult is the response payload for an upload. Existing is true when
// the content was already present before the request.
type UploadResult struct {
	Digest   string `json:"digest"`
	Filename string `json:"filename"`
	Existing bool   `json:"existing"`
}

// Retrieval is the outcome of Gateway.Fetch. Exactly one of Content and
// RedirectURL is set.
type Retrieval struct {
	Object      StoredObject
	Content     io.ReadCloser
	RedirectURL string
}

// IsRedirect reports whether the retrieval should be answered with a redirect.
func (r Retrieval) IsRedirect() bool {
	return r.RedirectURL != ""
}

type ListQuery struct {
	Limit  int
	Cursor string
}

type ListResult struct {
	Items      []StoredObject `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// BlobEntry is a blob found in blob storage, used for reindexing.
type BlobEntry struct {
	Digest string
	Size   int64
}

// SaveResult is returned by BlobStorage.Write.
type SaveResult struct {
	BytesWritten int64
	Digest       string
	// Created is false when a blob for the digest already existed and the
	// write was discarded.
	Created bool
}

type ServeMode string

const (
	ModeDirect ServeMode = "direct"
	ModeCDN    ServeMode = "cdn"
)

func (m ServeMode) IsValid() bool {
	switch m {
	case ModeDirect, ModeCDN:
		return true
	default:
		return false
	}
}

func ParseServeMode(s string) (ServeMode, error) {
	mode := ServeMode(s)
	if !mode.IsValid() {
		return "", fmt.Errorf("invalid serve mode: %s (valid modes: direct, cdn)", s)
	}
	return mode, nil
}
