package clientcli

import (
	"context"
	"encoding/json"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/minio/sha256-simd"

	"github.com/sagarc03/hashdrop"
)

// DefaultTimeout is the default HTTP client timeout. Uploads of large files
// over slow links may need WithTimeout.
const DefaultTimeout = 5 * time.Minute

// Client performs operations against a hashdrop server.
type Client struct {
	config     *Config
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// New creates a new Client with the given config and options.
func New(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}

	cfg = cfg.WithDefaults()
	if err := ValidateEndpoint(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("new client: %w", err)
	}

	c := &Client{
		config: &Config{
			Endpoint:      strings.TrimSuffix(cfg.Endpoint, "/"),
			MaxUploadSize: cfg.MaxUploadSize,
		},
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Check reports whether the server already holds digest. It is advisory:
// any failure is treated as "not present" so that the caller proceeds with
// the upload, which is authoritative.
func (c *Client) Check(ctx context.Context, digest string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.objectURL(digest), http.NoBody)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// Lookup asks the server for the metadata of digest. Unlike Check, errors
// are returned.
func (c *Client) Lookup(ctx context.Context, digest string) (*CheckResult, error) {
	digest = strings.ToLower(digest)
	if !hashdrop.IsValidDigest(digest) {
		return nil, fmt.Errorf("lookup: %w: %q", hashdrop.ErrInvalidDigest, digest)
	}

	u := c.config.Endpoint + "/objects/check?" + url.Values{"digest": {digest}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseServerError(resp.StatusCode, body)
	}

	var result CheckResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &result, nil
}

// Upload uploads each path in opts. It continues on error, collecting one
// result per path.
func (c *Client) Upload(ctx context.Context, opts UploadOptions) ([]UploadResult, error) {
	if len(opts.Paths) == 0 {
		return nil, fmt.Errorf("upload: %w", ErrNoPaths)
	}
	if opts.Filename != "" && len(opts.Paths) > 1 {
		return nil, fmt.Errorf("upload: %w", ErrFilenameMulti)
	}

	results := make([]UploadResult, 0, len(opts.Paths))
	for _, path := range opts.Paths {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		result, err := c.uploadSingle(ctx, path, opts)
		if err != nil {
			result = UploadResult{LocalPath: path, Err: err}
		}
		results = append(results, result)
	}

	return results, nil
}

// uploadSingle digests a file locally, skips it when the server already has
// it and otherwise sends it as a multipart form.
func (c *Client) uploadSingle(ctx context.Context, localPath string, opts UploadOptions) (UploadResult, error) {
	if localPath == "" {
		return UploadResult{}, ErrEmptyPath
	}

	file, err := os.Open(localPath) //#nosec G304 -- localPath is user-provided input
	if err != nil {
		return UploadResult{}, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return UploadResult{}, fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		return UploadResult{}, fmt.Errorf("upload %s: is a directory", localPath)
	}
	if info.Size() > c.config.MaxUploadSize {
		return UploadResult{}, fmt.Errorf("%w: %s is %d bytes, limit is %d", ErrFileTooLarge, localPath, info.Size(), c.config.MaxUploadSize)
	}

	digest, _, err := hashdrop.DigestReader(file)
	if err != nil {
		return UploadResult{}, fmt.Errorf("digest file: %w", err)
	}

	filename := opts.Filename
	if filename == "" {
		filename = filepath.Base(localPath)
	}
	contentType := opts.ContentType
	if contentType == "" {
		contentType = detectContentType(localPath)
	}

	result := UploadResult{
		LocalPath:   localPath,
		Digest:      digest,
		Filename:    filename,
		ContentType: contentType,
		Size:        info.Size(),
	}

	if !opts.SkipCheck && c.Check(ctx, digest) {
		result.Existing = true
		result.Skipped = true
		return result, nil
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return UploadResult{}, fmt.Errorf("rewind file: %w", err)
	}

	res, err := c.post(ctx, file, digest, filename, contentType)
	if err != nil {
		return UploadResult{}, err
	}
	if res.Digest != digest {
		return UploadResult{}, fmt.Errorf("%w: local %s, server %s", ErrDigestMismatch, digest, res.Digest)
	}

	result.Existing = res.Existing
	return result, nil
}

// post streams the multipart form through a pipe so the file is never held
// in memory.
func (c *Client) post(ctx context.Context, content io.Reader, digest, filename, contentType string) (serverUploadResult, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		_ = pw.CloseWithError(writeForm(mw, content, digest, filename, contentType))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint+"/objects", pr)
	if err != nil {
		_ = pr.CloseWithError(err)
		return serverUploadResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		_ = pr.CloseWithError(err)
		return serverUploadResult{}, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return serverUploadResult{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return serverUploadResult{}, parseServerError(resp.StatusCode, body)
	}

	var res serverUploadResult
	if err := json.Unmarshal(body, &res); err != nil {
		return serverUploadResult{}, fmt.Errorf("parse response: %w", err)
	}
	return res, nil
}

func writeForm(mw *multipart.Writer, content io.Reader, digest, filename, contentType string) error {
	for _, field := range [][2]string{
		{"hash", digest},
		{"filename", filename},
		{"contentType", contentType},
	} {
		if err := mw.WriteField(field[0], field[1]); err != nil {
			return err
		}
	}

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, content); err != nil {
		return err
	}
	return mw.Close()
}

// Download fetches an object by digest. Redirects issued by a cdn mode
// server are followed. The content is verified against the digest.
//
// If opts.LocalPath is "-", the content is returned via the io.ReadCloser and
// must be closed by the caller; verification then happens on Close.
// Otherwise, the content is written to the file and the io.ReadCloser is nil.
func (c *Client) Download(ctx context.Context, opts DownloadOptions) (*DownloadResult, io.ReadCloser, error) {
	if opts.Digest == "" {
		return nil, nil, fmt.Errorf("download: %w", ErrEmptyPath)
	}
	digest := strings.ToLower(opts.Digest)
	if !hashdrop.IsValidDigest(digest) {
		return nil, nil, fmt.Errorf("download: %w: %q", hashdrop.ErrInvalidDigest, opts.Digest)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.objectURL(digest), http.NoBody)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, nil, parseServerError(resp.StatusCode, body)
	}

	result := &DownloadResult{
		Digest:      digest,
		Filename:    resp.Header.Get("X-Filename"),
		ContentType: resp.Header.Get("Content-Type"),
		Size:        resp.ContentLength,
	}

	verified := &verifyingReader{body: resp.Body, digest: digest, h: sha256.New()}

	if opts.LocalPath == "-" {
		result.LocalPath = "-"
		return result, verified, nil
	}

	localPath := opts.LocalPath
	if localPath == "" {
		localPath = digest
		if name := filepath.Base(result.Filename); result.Filename != "" && name != "." && name != "/" {
			localPath = name
		}
	}
	result.LocalPath = localPath

	dir := filepath.Dir(localPath)
	if dir != "" && dir != "." {
		if mkdirErr := os.MkdirAll(dir, 0o750); mkdirErr != nil {
			_ = resp.Body.Close()
			return nil, nil, fmt.Errorf("create directory: %w", mkdirErr)
		}
	}

	file, createErr := os.Create(localPath) //#nosec G304 -- localPath is user-provided input
	if createErr != nil {
		_ = resp.Body.Close()
		return nil, nil, fmt.Errorf("create file: %w", createErr)
	}

	written, copyErr := io.Copy(file, verified)
	closeErr := verified.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		_ = file.Close()
		_ = os.Remove(localPath)
		return nil, nil, fmt.Errorf("write file: %w", copyErr)
	}

	if err := file.Close(); err != nil {
		return nil, nil, fmt.Errorf("close file: %w", err)
	}

	result.Size = written
	return result, nil, nil
}

// verifyingReader hashes everything read and fails Close when the content
// does not match the expected digest.
type verifyingReader struct {
	body   io.ReadCloser
	digest string
	h      hash.Hash
	eof    bool
}

func (v *verifyingReader) Read(p []byte) (int, error) {
	n, err := v.body.Read(p)
	if n > 0 {
		_, _ = v.h.Write(p[:n])
	}
	if errors.Is(err, io.EOF) {
		v.eof = true
	}
	return n, err
}

func (v *verifyingReader) Close() error {
	if err := v.body.Close(); err != nil {
		return err
	}
	if !v.eof {
		return nil
	}
	if got := hex.EncodeToString(v.h.Sum(nil)); got != v.digest {
		return fmt.Errorf("%w: expected %s, got %s", hashdrop.ErrHashMismatch, v.digest, got)
	}
	return nil
}

func (c *Client) objectURL(digest string) string {
	return c.config.Endpoint + "/objects?" + url.Values{"digest": {digest}}.Encode()
}

// detectContentType returns MIME type based on file extension.
func detectContentType(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return hashdrop.DefaultContentType
	}

	mimeType := mime.TypeByExtension(ext)
	if mimeType == "" {
		return hashdrop.DefaultContentType
	}

	return mimeType
}

// parseServerError builds an APIError from a server response.
func parseServerError(statusCode int, body []byte) error {
	apiErr := &APIError{StatusCode: statusCode, Body: string(body)}

	var se serverError
	if json.Unmarshal(body, &se) == nil {
		apiErr.Code = se.Error
		apiErr.Message = se.Message
	}
	return apiErr
}

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	// Code and Message are parsed from the JSON error body when present.
	Code    string
	Message string
	Body    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return "server error: " + strconv.Itoa(e.StatusCode) + " " + e.Code + " - " + e.Message
	}
	return "server error: " + strconv.Itoa(e.StatusCode) + " - " + e.Body
}

// Is reports whether target matches this error.
// It matches if target is an *APIError with the same StatusCode.
func (e *APIError) Is(target error) bool {
	var t *APIError
	ok := errors.As(target, &t)
	if !ok {
		return false
	}
	return t.StatusCode == e.StatusCode
}

// IsNotFound returns true if the error is a 404.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// Sentinel errors for common API error conditions.
// Use errors.Is() to check for these conditions.
var (
	// ErrNotFound is returned when the requested object does not exist (404).
	ErrNotFound = &APIError{StatusCode: http.StatusNotFound}

	// ErrBadRequest is returned when the server rejects the input (400),
	// for example a hash mismatch or an oversized upload.
	ErrBadRequest = &APIError{StatusCode: http.StatusBadRequest}

	// ErrServer is returned for server side failures (500), including a
	// missing platform context or an unconfigured CDN base URL.
	ErrServer = &APIError{StatusCode: http.StatusInternalServerError}
)
