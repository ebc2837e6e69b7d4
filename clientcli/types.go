package clientcli

// UploadOptions configures an upload operation.
type UploadOptions struct {
	Paths       []string
	ContentType string // optional, auto-detect if empty
	// Filename overrides the recorded filename. Only valid with a single path.
	Filename string
	// SkipCheck uploads without asking the server whether the digest exists.
	SkipCheck bool
}

// UploadResult represents the result of uploading a single file.
type UploadResult struct {
	LocalPath   string `json:"local_path"`
	Digest      string `json:"digest"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size_bytes"`
	// Existing is true when the server already held the content.
	Existing bool `json:"existing"`
	// Skipped is true when the pre-check found the content and no upload
	// request was sent.
	Skipped bool  `json:"skipped"`
	Err     error `json:"-"` // nil on success
}

// DownloadOptions configures a download operation.
type DownloadOptions struct {
	Digest    string
	LocalPath string // empty = server filename or digest, "-" = stdout
}

// DownloadResult represents the result of downloading an object.
type DownloadResult struct {
	Digest      string `json:"digest"`
	LocalPath   string `json:"local_path"`
	Filename    string `json:"filename,omitempty"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size_bytes"`
}

// CheckResult describes whether the server holds a digest.
type CheckResult struct {
	Digest      string `json:"digest"`
	Exists      bool   `json:"exists"`
	Filename    string `json:"filename,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	Size        *int64 `json:"size,omitempty"`
}

// serverUploadResult mirrors the JSON response from POST /objects.
type serverUploadResult struct {
	Digest   string `json:"digest"`
	Filename string `json:"filename"`
	Existing bool   `json:"existing"`
}

// serverError mirrors the JSON error body returned by the server.
type serverError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
