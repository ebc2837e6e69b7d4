package hashdrop_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/sagarc03/hashdrop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func directEnv(store hashdrop.ObjectStore) *hashdrop.Environment {
	return &hashdrop.Environment{Store: store, Mode: hashdrop.ModeDirect}
}

func uploadInput(content string) hashdrop.UploadInput {
	return hashdrop.UploadInput{
		Content:     strings.NewReader(content),
		Size:        int64(len(content)),
		Filename:    "note.txt",
		ContentType: "text/plain",
	}
}

func TestNewGateway_Defaults(t *testing.T) {
	gw := hashdrop.NewGateway(hashdrop.GatewayConfig{})
	assert.Equal(t, int64(100*1024*1024), gw.MaxUploadSize())

	gw = hashdrop.NewGateway(hashdrop.GatewayConfig{MaxUploadSize: 42})
	assert.Equal(t, int64(42), gw.MaxUploadSize())
}

func TestGateway_Upload(t *testing.T) {
	t.Run("stores new content under its digest", func(t *testing.T) {
		gw := hashdrop.NewGateway(hashdrop.GatewayConfig{})
		store := newMemStore()
		ctx := context.Background()

		res, err := gw.Upload(ctx, directEnv(store), uploadInput("hello world"))
		require.NoError(t, err)

		assert.Equal(t, hashdrop.Digest([]byte("hello world")), res.Digest)
		assert.Equal(t, "note.txt", res.Filename)
		assert.False(t, res.Existing)
		assert.Equal(t, 1, store.putCount())

		obj, err := store.Head(ctx, res.Digest)
		require.NoError(t, err)
		assert.Equal(t, "text/plain", obj.ContentType)
		assert.Equal(t, "note.txt", obj.OriginalFilename)
		assert.Equal(t, int64(11), obj.Size)
	})

	t.Run("dedup: second upload reports existing and does not write", func(t *testing.T) {
		gw := hashdrop.NewGateway(hashdrop.GatewayConfig{})
		store := newMemStore()
		env := directEnv(store)
		ctx := context.Background()

		first, err := gw.Upload(ctx, env, uploadInput("same bytes"))
		require.NoError(t, err)
		assert.False(t, first.Existing)

		in := uploadInput("same bytes")
		in.Filename = "renamed.txt"
		second, err := gw.Upload(ctx, env, in)
		require.NoError(t, err)

		assert.True(t, second.Existing)
		assert.Equal(t, first.Digest, second.Digest)
		assert.Equal(t, "renamed.txt", second.Filename)
		assert.Equal(t, 1, store.putCount())
	})

	t.Run("matching claimed digest is accepted", func(t *testing.T) {
		gw := hashdrop.NewGateway(hashdrop.GatewayConfig{})
		store := newMemStore()

		in := uploadInput("claimed")
		in.ClaimedDigest = hashdrop.Digest([]byte("claimed"))

		res, err := gw.Upload(context.Background(), directEnv(store), in)
		require.NoError(t, err)
		assert.Equal(t, in.ClaimedDigest, res.Digest)
	})

	t.Run("uppercase claimed digest is accepted", func(t *testing.T) {
		gw := hashdrop.NewGateway(hashdrop.GatewayConfig{})
		store := newMemStore()

		in := uploadInput("claimed")
		in.ClaimedDigest = strings.ToUpper(hashdrop.Digest([]byte("claimed")))

		res, err := gw.Upload(context.Background(), directEnv(store), in)
		require.NoError(t, err)
		assert.Equal(t, hashdrop.Digest([]byte("claimed")), res.Digest)
	})

	t.Run("mismatched claimed digest fails before any store call", func(t *testing.T) {
		gw := hashdrop.NewGateway(hashdrop.GatewayConfig{})
		store := new(MockObjectStore)

		in := uploadInput("actual content")
		in.ClaimedDigest = hashdrop.Digest([]byte("other content"))

		_, err := gw.Upload(context.Background(), directEnv(store), in)
		assert.ErrorIs(t, err, hashdrop.ErrHashMismatch)

		store.AssertNotCalled(t, "Head", mock.Anything, mock.Anything)
		store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing fields", func(t *testing.T) {
		gw := hashdrop.NewGateway(hashdrop.GatewayConfig{})
		store := new(MockObjectStore)
		env := directEnv(store)

		noContent := uploadInput("x")
		noContent.Content = nil
		noFilename := uploadInput("x")
		noFilename.Filename = ""
		noContentType := uploadInput("x")
		noContentType.ContentType = ""

		for _, in := range []hashdrop.UploadInput{noContent, noFilename, noContentType} {
			_, err := gw.Upload(context.Background(), env, in)
			assert.ErrorIs(t, err, hashdrop.ErrMissingFields)
		}

		store.AssertNotCalled(t, "Head", mock.Anything, mock.Anything)
		store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing environment", func(t *testing.T) {
		gw := hashdrop.NewGateway(hashdrop.GatewayConfig{})

		_, err := gw.Upload(context.Background(), nil, uploadInput("x"))
		assert.ErrorIs(t, err, hashdrop.ErrEnvironmentMissing)

		_, err = gw.Upload(context.Background(), &hashdrop.Environment{Mode: hashdrop.ModeDirect}, uploadInput("x"))
		assert.ErrorIs(t, err, hashdrop.ErrEnvironmentMissing)
	})

	t.Run("store head error propagates without writing", func(t *testing.T) {
		gw := hashdrop.NewGateway(hashdrop.GatewayConfig{})
		store := new(MockObjectStore)
		boom := errors.New("connection reset")

		store.On("Head", mock.Anything, hashdrop.Digest([]byte("x"))).Return(hashdrop.StoredObject{}, boom)

		_, err := gw.Upload(context.Background(), directEnv(store), uploadInput("x"))
		assert.ErrorIs(t, err, boom)

		store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything)
		store.AssertExpectations(t)
	})

	t.Run("store put error propagates", func(t *testing.T) {
		gw := hashdrop.NewGateway(hashdrop.GatewayConfig{})
		store := new(MockObjectStore)
		boom := errors.New("bucket unavailable")
		digest := hashdrop.Digest([]byte("x"))

		store.On("Head", mock.Anything, digest).Return(hashdrop.StoredObject{}, hashdrop.ErrNotFound)
		store.On("Put", mock.Anything, hashdrop.PutObject{
			Digest:           digest,
			Size:             1,
			ContentType:      "text/plain",
			OriginalFilename: "note.txt",
		}, mock.Anything).Return(hashdrop.StoredObject{}, boom)

		_, err := gw.Upload(context.Background(), directEnv(store), uploadInput("x"))
		assert.ErrorIs(t, err, boom)

		store.AssertExpectations(t)
	})

	t.Run("context canceled", func(t *testing.T) {
		gw := hashdrop.NewGateway(hashdrop.GatewayConfig{})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := gw.Upload(ctx, directEnv(newMemStore()), uploadInput("x"))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestGateway_Upload_SizeBoundary(t *testing.T) {
	const limit = 64

	t.Run("exactly the maximum succeeds", func(t *testing.T) {
		gw := hashdrop.NewGateway(hashdrop.GatewayConfig{MaxUploadSize: limit})
		store := newMemStore()

		res, err := gw.Upload(context.Background(), directEnv(store), uploadInput(strings.Repeat("a", limit)))
		require.NoError(t, err)
		assert.False(t, res.Existing)
		assert.Equal(t, 1, store.putCount())
	})

	t.Run("declared size one byte over fails without reading", func(t *testing.T) {
		gw := hashdrop.NewGateway(hashdrop.GatewayConfig{MaxUploadSize: limit})
		store := newMemStore()
		content := &countingReader{r: strings.NewReader(strings.Repeat("a", limit+1))}

		_, err := gw.Upload(context.Background(), directEnv(store), hashdrop.UploadInput{
			Content:     content,
			Size:        limit + 1,
			Filename:    "big.bin",
			ContentType: "application/octet-stream",
		})
		assert.ErrorIs(t, err, hashdrop.ErrTooLarge)
		assert.Zero(t, content.n)
		assert.Zero(t, store.putCount())
	})

	t.Run("undeclared size one byte over fails before writing", func(t *testing.T) {
		gw := hashdrop.NewGateway(hashdrop.GatewayConfig{MaxUploadSize: limit})
		store := newMemStore()

		in := uploadInput(strings.Repeat("a", limit+1))
		in.Size = -1

		_, err := gw.Upload(context.Background(), directEnv(store), in)
		assert.ErrorIs(t, err, hashdrop.ErrTooLarge)
		assert.Zero(t, store.putCount())
	})

	t.Run("reader longer than declared size is still bounded", func(t *testing.T) {
		gw := hashdrop.NewGateway(hashdrop.GatewayConfig{MaxUploadSize: limit})
		store := newMemStore()

		in := uploadInput(strings.Repeat("a", limit*2))
		in.Size = 1

		_, err := gw.Upload(context.Background(), directEnv(store), in)
		assert.ErrorIs(t, err, hashdrop.ErrTooLarge)
		assert.Zero(t, store.putCount())
	})

	t.Run("empty content is accepted", func(t *testing.T) {
		gw := hashdrop.NewGateway(hashdrop.GatewayConfig{MaxUploadSize: limit})
		store := newMemStore()

		res, err := gw.Upload(context.Background(), directEnv(store), uploadInput(""))
		require.NoError(t, err)
		assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", res.Digest)
	})
}

func TestGateway_Upload_ConcurrentDuplicates(t *testing.T) {
	gw := hashdrop.NewGateway(hashdrop.GatewayConfig{})
	store := newMemStore()
	env := directEnv(store)

	var wg sync.WaitGroup
	results := make([]hashdrop.UploadResult, 16)
	errs := make([]error, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = gw.Upload(context.Background(), env, uploadInput("racing content"))
		}(i)
	}
	wg.Wait()

	want := hashdrop.Digest([]byte("racing content"))
	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, want, results[i].Digest)
	}

	obj, err := store.Head(context.Background(), want)
	require.NoError(t, err)
	assert.Equal(t, int64(len("racing content")), obj.Size)
}

func TestGateway_Exists(t *testing.T) {
	gw := hashdrop.NewGateway(hashdrop.GatewayConfig{})
	store := newMemStore()
	env := directEnv(store)
	ctx := context.Background()

	res, err := gw.Upload(ctx, env, uploadInput("present"))
	require.NoError(t, err)

	exists, err := gw.Exists(ctx, env, res.Digest)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = gw.Exists(ctx, env, hashdrop.Digest([]byte("absent")))
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = gw.Exists(ctx, env, "not-a-digest")
	assert.ErrorIs(t, err, hashdrop.ErrInvalidDigest)

	store.headErr = errors.New("timeout")
	_, err = gw.Exists(ctx, env, res.Digest)
	assert.Error(t, err)
}

func TestGateway_Fetch(t *testing.T) {
	ctx := context.Background()
	content := "fetch me"
	digest := hashdrop.Digest([]byte(content))
	absent := hashdrop.Digest([]byte("absent"))

	seed := func(t *testing.T) *memStore {
		t.Helper()
		store := newMemStore()
		_, err := hashdrop.NewGateway(hashdrop.GatewayConfig{}).Upload(ctx, directEnv(store), uploadInput(content))
		require.NoError(t, err)
		return store
	}

	t.Run("direct mode streams content", func(t *testing.T) {
		gw := hashdrop.NewGateway(hashdrop.GatewayConfig{})
		store := seed(t)

		r, err := gw.Fetch(ctx, directEnv(store), digest)
		require.NoError(t, err)
		defer func() { _ = r.Content.Close() }()

		assert.False(t, r.IsRedirect())
		assert.Equal(t, "text/plain", r.Object.ContentType)

		body, err := io.ReadAll(r.Content)
		require.NoError(t, err)
		assert.Equal(t, content, string(body))
	})

	t.Run("cdn mode redirects to base url plus digest", func(t *testing.T) {
		gw := hashdrop.NewGateway(hashdrop.GatewayConfig{})
		env := &hashdrop.Environment{Store: seed(t), Mode: hashdrop.ModeCDN, ExternalBaseURL: "https://cdn.example.com/"}

		r, err := gw.Fetch(ctx, env, digest)
		require.NoError(t, err)

		assert.True(t, r.IsRedirect())
		assert.Nil(t, r.Content)
		assert.Equal(t, "https://cdn.example.com/"+digest, r.RedirectURL)
	})

	t.Run("cdn mode does not read content", func(t *testing.T) {
		gw := hashdrop.NewGateway(hashdrop.GatewayConfig{})
		store := new(MockObjectStore)
		store.On("Head", mock.Anything, digest).Return(hashdrop.StoredObject{Digest: digest}, nil)
		env := &hashdrop.Environment{Store: store, Mode: hashdrop.ModeCDN, ExternalBaseURL: "https://cdn.example.com"}

		r, err := gw.Fetch(ctx, env, digest)
		require.NoError(t, err)
		assert.Equal(t, "https://cdn.example.com/"+digest, r.RedirectURL)

		store.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
		store.AssertExpectations(t)
	})

	t.Run("cdn mode without base url is not configured", func(t *testing.T) {
		gw := hashdrop.NewGateway(hashdrop.GatewayConfig{})
		env := &hashdrop.Environment{Store: seed(t), Mode: hashdrop.ModeCDN}

		r, err := gw.Fetch(ctx, env, digest)
		assert.ErrorIs(t, err, hashdrop.ErrNotConfigured)
		assert.Nil(t, r.Content)
	})

	t.Run("absent digest is not found in both modes", func(t *testing.T) {
		gw := hashdrop.NewGateway(hashdrop.GatewayConfig{})
		store := seed(t)

		_, err := gw.Fetch(ctx, directEnv(store), absent)
		assert.ErrorIs(t, err, hashdrop.ErrNotFound)

		_, err = gw.Fetch(ctx, &hashdrop.Environment{Store: store, Mode: hashdrop.ModeCDN, ExternalBaseURL: "https://cdn.example.com"}, absent)
		assert.ErrorIs(t, err, hashdrop.ErrNotFound)

		_, err = gw.Fetch(ctx, &hashdrop.Environment{Store: store, Mode: hashdrop.ModeCDN}, absent)
		assert.ErrorIs(t, err, hashdrop.ErrNotFound)
	})

	t.Run("invalid digest", func(t *testing.T) {
		gw := hashdrop.NewGateway(hashdrop.GatewayConfig{})

		_, err := gw.Fetch(ctx, directEnv(newMemStore()), "../../etc/passwd")
		assert.ErrorIs(t, err, hashdrop.ErrInvalidDigest)
	})

	t.Run("missing environment", func(t *testing.T) {
		gw := hashdrop.NewGateway(hashdrop.GatewayConfig{})

		_, err := gw.Fetch(ctx, nil, digest)
		assert.ErrorIs(t, err, hashdrop.ErrEnvironmentMissing)
	})
}

func TestGateway_Stat(t *testing.T) {
	gw := hashdrop.NewGateway(hashdrop.GatewayConfig{})
	store := newMemStore()
	env := directEnv(store)
	ctx := context.Background()

	res, err := gw.Upload(ctx, env, uploadInput("stat me"))
	require.NoError(t, err)

	obj, err := gw.Stat(ctx, env, res.Digest)
	require.NoError(t, err)
	assert.Equal(t, res.Digest, obj.Digest)
	assert.Equal(t, int64(7), obj.Size)
	assert.Equal(t, "note.txt", obj.OriginalFilename)

	_, err = gw.Stat(ctx, env, hashdrop.Digest([]byte("missing")))
	assert.ErrorIs(t, err, hashdrop.ErrNotFound)
}

func TestGateway_Open_IgnoresMode(t *testing.T) {
	gw := hashdrop.NewGateway(hashdrop.GatewayConfig{})
	store := newMemStore()
	ctx := context.Background()

	res, err := gw.Upload(ctx, directEnv(store), uploadInput("raw"))
	require.NoError(t, err)

	env := &hashdrop.Environment{Store: store, Mode: hashdrop.ModeCDN}
	_, content, err := gw.Open(ctx, env, res.Digest)
	require.NoError(t, err)
	defer func() { _ = content.Close() }()

	var buf bytes.Buffer
	_, err = io.Copy(&buf, content)
	require.NoError(t, err)
	assert.Equal(t, "raw", buf.String())
}

func TestRedirectURL(t *testing.T) {
	assert.Equal(t, "https://cdn.example.com/abc", hashdrop.RedirectURL("https://cdn.example.com", "abc"))
	assert.Equal(t, "https://cdn.example.com/abc", hashdrop.RedirectURL("https://cdn.example.com/", "abc"))
}

type countingReader struct {
	r io.Reader
	n int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += n
	return n, err
}
