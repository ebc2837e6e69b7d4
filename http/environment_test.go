package http_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sagarc03/hashdrop"
	hashdrophttp "github.com/sagarc03/hashdrop/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindAndResolve(t *testing.T) {
	env := &hashdrop.Environment{Store: newMemStore(), Mode: hashdrop.ModeDirect}
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	_, ok := hashdrophttp.Resolve(req)
	assert.False(t, ok)

	bound := hashdrophttp.Bind(req, env)
	got, ok := hashdrophttp.Resolve(bound)
	require.True(t, ok)
	assert.Same(t, env, got)

	_, ok = hashdrophttp.Resolve(req)
	assert.False(t, ok, "binding must not leak into the original request")
}

func TestStaticProvider(t *testing.T) {
	env := &hashdrop.Environment{Store: newMemStore(), Mode: hashdrop.ModeDirect}
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	got, err := hashdrophttp.StaticProvider{Env: env}.Environment(req)
	require.NoError(t, err)
	assert.Same(t, env, got)

	_, err = hashdrophttp.StaticProvider{}.Environment(req)
	assert.ErrorIs(t, err, hashdrop.ErrEnvironmentMissing)
}

func TestBindEnvironment(t *testing.T) {
	env := &hashdrop.Environment{Store: newMemStore(), Mode: hashdrop.ModeDirect}

	var seen *hashdrop.Environment
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = hashdrophttp.Resolve(r)
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name     string
		provider hashdrophttp.EnvironmentProvider
		want     *hashdrop.Environment
	}{
		{"static", hashdrophttp.StaticProvider{Env: env}, env},
		{"nil provider", nil, nil},
		{"provider error", hashdrophttp.ProviderFunc(func(*http.Request) (*hashdrop.Environment, error) {
			return nil, errors.New("tenant lookup failed")
		}), nil},
		{"provider returns nil", hashdrophttp.ProviderFunc(func(*http.Request) (*hashdrop.Environment, error) {
			return nil, nil
		}), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			rec := httptest.NewRecorder()

			hashdrophttp.BindEnvironment(tt.provider)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, http.StatusNoContent, rec.Code)
			assert.Equal(t, tt.want, seen)
		})
	}
}

func TestRequireEnvironment(t *testing.T) {
	reached := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	})
	wrapped := hashdrophttp.RequireEnvironment(next)

	t.Run("halts without environment", func(t *testing.T) {
		reached = false
		rec := httptest.NewRecorder()

		wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.False(t, reached)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "Platform context not found")
	})

	t.Run("passes with environment", func(t *testing.T) {
		reached = false
		rec := httptest.NewRecorder()
		env := &hashdrop.Environment{Store: newMemStore(), Mode: hashdrop.ModeDirect}

		wrapped.ServeHTTP(rec, hashdrophttp.Bind(httptest.NewRequest(http.MethodGet, "/", nil), env))

		assert.True(t, reached)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
