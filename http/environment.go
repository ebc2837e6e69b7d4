package http

import (
	"log/slog"
	"net/http"

	"github.com/sagarc03/hashdrop"
)

// EnvironmentProvider supplies the environment for one request.
type EnvironmentProvider interface {
	Environment(r *http.Request) (*hashdrop.Environment, error)
}

// ProviderFunc adapts a function to EnvironmentProvider.
type ProviderFunc func(r *http.Request) (*hashdrop.Environment, error)

func (f ProviderFunc) Environment(r *http.Request) (*hashdrop.Environment, error) {
	return f(r)
}

// StaticProvider returns the same environment for every request.
type StaticProvider struct {
	Env *hashdrop.Environment
}

func (p StaticProvider) Environment(*http.Request) (*hashdrop.Environment, error) {
	if p.Env == nil {
		return nil, hashdrop.ErrEnvironmentMissing
	}
	return p.Env, nil
}

// Bind returns a shallow copy of r whose context carries env.
func Bind(r *http.Request, env *hashdrop.Environment) *http.Request {
	return r.WithContext(hashdrop.WithEnvironment(r.Context(), env))
}

// Resolve returns the environment bound to r.
func Resolve(r *http.Request) (*hashdrop.Environment, bool) {
	env, err := hashdrop.EnvironmentFromContext(r.Context())
	if err != nil {
		return nil, false
	}
	return env, true
}

// BindEnvironment binds the environment from provider to every request before
// it reaches the next handler. A provider error leaves the request unbound so
// that RequireEnvironment rejects it.
func BindEnvironment(provider EnvironmentProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if provider == nil {
				next.ServeHTTP(w, r)
				return
			}

			env, err := provider.Environment(r)
			if err != nil || env == nil {
				slog.Warn("no environment for request", "method", r.Method, "path", r.URL.Path, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, Bind(r, env))
		})
	}
}

// RequireEnvironment halts requests that carry no environment with a 500
// "Platform context not found" response.
func RequireEnvironment(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := Resolve(r); !ok {
			HandleError(w, hashdrop.ErrEnvironmentMissing)
			return
		}
		next.ServeHTTP(w, r)
	})
}
