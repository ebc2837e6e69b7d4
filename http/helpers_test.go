package http_test

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"sync"
	"testing"
	"time"

	"github.com/sagarc03/hashdrop"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory ObjectStore that counts writes.
type memStore struct {
	mu      sync.Mutex
	objects map[string]hashdrop.StoredObject
	content map[string][]byte
	puts    int
}

func newMemStore() *memStore {
	return &memStore{
		objects: make(map[string]hashdrop.StoredObject),
		content: make(map[string][]byte),
	}
}

func (m *memStore) Head(_ context.Context, digest string) (hashdrop.StoredObject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.objects[digest]
	if !ok {
		return hashdrop.StoredObject{}, hashdrop.ErrNotFound
	}
	return obj, nil
}

func (m *memStore) Get(_ context.Context, digest string) (hashdrop.StoredObject, io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.objects[digest]
	if !ok {
		return hashdrop.StoredObject{}, nil, hashdrop.ErrNotFound
	}
	return obj, io.NopCloser(bytes.NewReader(m.content[digest])), nil
}

func (m *memStore) Put(_ context.Context, obj hashdrop.PutObject, content io.Reader) (hashdrop.StoredObject, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return hashdrop.StoredObject{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.puts++
	stored := hashdrop.StoredObject{
		Digest:           obj.Digest,
		Size:             int64(len(data)),
		ContentType:      obj.ContentType,
		OriginalFilename: obj.OriginalFilename,
		CreatedAt:        time.Now().UTC(),
	}
	m.objects[obj.Digest] = stored
	m.content[obj.Digest] = data
	return stored, nil
}

func (m *memStore) putCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}

// uploadForm builds a multipart body. Empty values are omitted so that
// missing field cases can be expressed.
type uploadForm struct {
	file        []byte
	omitFile    bool
	hash        string
	filename    string
	contentType string
}

func (f uploadForm) encode(t *testing.T) (*bytes.Buffer, string) {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	if !f.omitFile {
		part, err := w.CreateFormFile("file", "upload.bin")
		require.NoError(t, err)
		_, err = part.Write(f.file)
		require.NoError(t, err)
	}

	for name, value := range map[string]string{
		"hash":        f.hash,
		"filename":    f.filename,
		"contentType": f.contentType,
	} {
		if value != "" {
			require.NoError(t, w.WriteField(name, value))
		}
	}

	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}
