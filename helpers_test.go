package hashdrop_test

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/sagarc03/hashdrop"
	"github.com/stretchr/testify/mock"
)

// memStore is an in-memory ObjectStore that counts writes.
type memStore struct {
	mu      sync.Mutex
	objects map[string]hashdrop.StoredObject
	content map[string][]byte
	puts    int
	headErr error
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

	if m.headErr != nil {
		return hashdrop.StoredObject{}, m.headErr
	}
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
	if existing, ok := m.objects[obj.Digest]; ok {
		return existing, nil
	}

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

// MockObjectStore is a mock implementation of hashdrop.ObjectStore
type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) Head(ctx context.Context, digest string) (hashdrop.StoredObject, error) {
	args := m.Called(ctx, digest)
	return args.Get(0).(hashdrop.StoredObject), args.Error(1)
}

func (m *MockObjectStore) Get(ctx context.Context, digest string) (hashdrop.StoredObject, io.ReadCloser, error) {
	args := m.Called(ctx, digest)
	if args.Get(1) == nil {
		return args.Get(0).(hashdrop.StoredObject), nil, args.Error(2)
	}
	return args.Get(0).(hashdrop.StoredObject), args.Get(1).(io.ReadCloser), args.Error(2)
}

func (m *MockObjectStore) Put(ctx context.Context, obj hashdrop.PutObject, content io.Reader) (hashdrop.StoredObject, error) {
	args := m.Called(ctx, obj, content)
	return args.Get(0).(hashdrop.StoredObject), args.Error(1)
}
