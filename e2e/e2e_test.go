package e2e_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/hashdrop"
	"github.com/sagarc03/hashdrop/clientcli"
)

// TestE2E_RoundTrip_SQLite tests upload, dedup and retrieval using SQLite.
func TestE2E_RoundTrip_SQLite(t *testing.T) {
	baseURL, cleanup := startServer(t, ServerConfig{
		Port:        getOpenPort(t),
		Mode:        "direct",
		DBType:      "sqlite",
		DBDSN:       filepath.Join(t.TempDir(), "test.db"),
		StoragePath: t.TempDir(),
	})
	defer cleanup()

	runRoundTripTests(t, baseURL)
}

// TestE2E_RoundTrip_Postgres tests upload, dedup and retrieval using PostgreSQL.
func TestE2E_RoundTrip_Postgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres e2e test in short mode")
	}

	baseURL, cleanup := startServer(t, ServerConfig{
		Port:        getOpenPort(t),
		Mode:        "direct",
		DBType:      "postgres",
		DBDSN:       getSharedPostgresDatabase(t),
		StoragePath: t.TempDir(),
	})
	defer cleanup()

	runRoundTripTests(t, baseURL)
}

// runRoundTripTests contains the shared upload and retrieval logic.
func runRoundTripTests(t *testing.T, baseURL string) {
	t.Helper()
	ctx := context.Background()

	client, err := clientcli.New(&clientcli.Config{Endpoint: baseURL})
	require.NoError(t, err)

	content := "Hello, hashdrop! " + t.Name()
	digest := hashdrop.Digest([]byte(content))
	path := writeFile(t, t.TempDir(), "hello.txt", content)

	t.Run("upload stores new content", func(t *testing.T) {
		results, err := client.Upload(ctx, clientcli.UploadOptions{Paths: []string{path}, ContentType: "text/plain"})
		require.NoError(t, err)
		require.Len(t, results, 1)
		require.NoError(t, results[0].Err)

		assert.Equal(t, digest, results[0].Digest)
		assert.False(t, results[0].Existing)
		assert.False(t, results[0].Skipped)
	})

	t.Run("second upload is skipped by the pre-check", func(t *testing.T) {
		results, err := client.Upload(ctx, clientcli.UploadOptions{Paths: []string{path}})
		require.NoError(t, err)
		require.NoError(t, results[0].Err)

		assert.True(t, results[0].Existing)
		assert.True(t, results[0].Skipped)
	})

	t.Run("forced upload reports existing", func(t *testing.T) {
		copyPath := writeFile(t, t.TempDir(), "copy.txt", content)
		results, err := client.Upload(ctx, clientcli.UploadOptions{Paths: []string{copyPath}, SkipCheck: true})
		require.NoError(t, err)
		require.NoError(t, results[0].Err)

		assert.True(t, results[0].Existing)
		assert.False(t, results[0].Skipped)
	})

	t.Run("HEAD returns metadata of the first upload", func(t *testing.T) {
		resp, err := http.Head(baseURL + "/objects?digest=" + digest)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "hello.txt", resp.Header.Get("X-Filename"))
		assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))
		assert.Equal(t, int64(len(content)), resp.ContentLength)
	})

	t.Run("GET streams immutable content", func(t *testing.T) {
		resp, err := http.Get(baseURL + "/objects?hash=" + strings.ToUpper(digest))
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "public, max-age=31536000, immutable", resp.Header.Get("Cache-Control"))

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, content, string(body))
	})

	t.Run("raw route streams content", func(t *testing.T) {
		resp, err := http.Get(baseURL + "/raw/" + digest)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, content, string(body))
	})

	t.Run("check reports presence", func(t *testing.T) {
		present, err := client.Lookup(ctx, digest)
		require.NoError(t, err)
		assert.True(t, present.Exists)
		assert.Equal(t, "hello.txt", present.Filename)

		absent, err := client.Lookup(ctx, hashdrop.Digest([]byte("never uploaded")))
		require.NoError(t, err)
		assert.False(t, absent.Exists)
	})

	t.Run("download verifies and writes the file", func(t *testing.T) {
		dest := filepath.Join(t.TempDir(), "out.txt")
		result, _, err := client.Download(ctx, clientcli.DownloadOptions{Digest: digest, LocalPath: dest})
		require.NoError(t, err)
		assert.Equal(t, int64(len(content)), result.Size)

		data, err := os.ReadFile(dest)
		require.NoError(t, err)
		assert.Equal(t, content, string(data))
	})

	t.Run("GET of absent digest returns 404", func(t *testing.T) {
		resp, err := http.Get(baseURL + "/objects?digest=" + hashdrop.Digest([]byte("absent")))
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		var body struct {
			Error string `json:"error"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "not_found", body.Error)
	})
}

// TestE2E_CDNMode_SQLite tests that cdn mode redirects object reads.
func TestE2E_CDNMode_SQLite(t *testing.T) {
	baseURL, cleanup := startServer(t, ServerConfig{
		Port:            getOpenPort(t),
		Mode:            "cdn",
		ExternalBaseURL: "https://cdn.example.com/blobs",
		DBType:          "sqlite",
		DBDSN:           filepath.Join(t.TempDir(), "test.db"),
		StoragePath:     t.TempDir(),
	})
	defer cleanup()

	client, err := clientcli.New(&clientcli.Config{Endpoint: baseURL})
	require.NoError(t, err)

	content := "served by the cdn"
	digest := hashdrop.Digest([]byte(content))
	path := writeFile(t, t.TempDir(), "cdn.txt", content)

	results, err := client.Upload(context.Background(), clientcli.UploadOptions{Paths: []string{path}})
	require.NoError(t, err)
	require.NoError(t, results[0].Err)

	noRedirect := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}

	t.Run("GET redirects to the external base", func(t *testing.T) {
		resp, err := noRedirect.Get(baseURL + "/objects?digest=" + digest)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Equal(t, "https://cdn.example.com/blobs/"+digest, resp.Header.Get("Location"))
	})

	t.Run("absent digest is 404 before redirect", func(t *testing.T) {
		resp, err := noRedirect.Get(baseURL + "/objects?digest=" + hashdrop.Digest([]byte("absent")))
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("raw route still streams", func(t *testing.T) {
		resp, err := noRedirect.Get(baseURL + "/raw/" + digest)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, content, string(body))
	})
}

// TestE2E_MaxUploadSize_SQLite tests that the server rejects oversized uploads.
func TestE2E_MaxUploadSize_SQLite(t *testing.T) {
	baseURL, cleanup := startServer(t, ServerConfig{
		Port:          getOpenPort(t),
		Mode:          "direct",
		MaxUploadSize: 1024,
		DBType:        "sqlite",
		DBDSN:         filepath.Join(t.TempDir(), "test.db"),
		StoragePath:   t.TempDir(),
	})
	defer cleanup()

	client, err := clientcli.New(&clientcli.Config{Endpoint: baseURL})
	require.NoError(t, err)

	dir := t.TempDir()
	exact := writeFile(t, dir, "exact.bin", strings.Repeat("a", 1024))
	over := writeFile(t, dir, "over.bin", strings.Repeat("b", 1025))

	results, err := client.Upload(context.Background(), clientcli.UploadOptions{Paths: []string{exact, over}})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.NoError(t, results[0].Err)

	var apiErr *clientcli.APIError
	require.True(t, errors.As(results[1].Err, &apiErr), "got %v", results[1].Err)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "too_large", apiErr.Code)
}

// TestE2E_Reindex_SQLite tests rebuilding the index after database loss.
func TestE2E_Reindex_SQLite(t *testing.T) {
	storageDir := t.TempDir()
	cfg := ServerConfig{
		Port:        getOpenPort(t),
		Mode:        "direct",
		DBType:      "sqlite",
		DBDSN:       filepath.Join(t.TempDir(), "first.db"),
		StoragePath: storageDir,
	}

	src := writeFile(t, t.TempDir(), "kept.txt", "survives index loss")
	runCommand(t, cfg, "add", src)

	// A fresh database sees the blob only after reindex.
	cfg.DBDSN = filepath.Join(t.TempDir(), "second.db")

	out := runCommand(t, cfg, "ls")
	assert.Contains(t, out, "0 object(s)")

	runCommand(t, cfg, "reindex")

	out = runCommand(t, cfg, "ls")
	assert.Contains(t, out, hashdrop.Digest([]byte("survives index loss")))
	assert.Contains(t, out, "1 object(s)")
}
