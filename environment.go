package hashdrop

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ObjectStore is the object store capability available to a request.
// Implementations must be safe for concurrent use.
type ObjectStore interface {
	// Head returns the metadata for digest without transferring content.
	//
	// Returns ErrNotFound if no object exists for digest.
	Head(ctx context.Context, digest string) (StoredObject, error)

	// Get returns the metadata and content for digest.
	// The caller is responsible for closing the returned reader.
	//
	// Returns ErrNotFound if no object exists for digest.
	Get(ctx context.Context, digest string) (StoredObject, io.ReadCloser, error)

	// Put stores content under obj.Digest with the given metadata.
	//
	// Implementations must tolerate duplicate writes of the same digest: the
	// bytes are identical by construction, so a second write must never
	// corrupt or replace the first.
	Put(ctx context.Context, obj PutObject, content io.Reader) (StoredObject, error)
}

// Environment is the set of capabilities available while handling one
// request. It is read-only for the lifetime of the request.
type Environment struct {
	Store ObjectStore
	Mode  ServeMode
	// ExternalBaseURL is the CDN base used to build redirects in ModeCDN.
	ExternalBaseURL string
}

// Validate checks that the environment can serve requests. A missing
// ExternalBaseURL is not an error here: it is reported per request so that
// direct and CDN serving are never conflated.
func (e *Environment) Validate() error {
	if e == nil {
		return ErrEnvironmentMissing
	}
	if e.Store == nil {
		return errors.New("validate environment: store cannot be nil")
	}
	if !e.Mode.IsValid() {
		return fmt.Errorf("validate environment: invalid mode: %s", e.Mode)
	}
	return nil
}

// environmentKey is the context key for the request environment.
type environmentKey struct{}

// WithEnvironment returns a new context with env bound to it.
func WithEnvironment(ctx context.Context, env *Environment) context.Context {
	return context.WithValue(ctx, environmentKey{}, env)
}

// EnvironmentFromContext retrieves the environment bound to ctx.
// Returns ErrEnvironmentMissing if none is bound.
func EnvironmentFromContext(ctx context.Context) (*Environment, error) {
	env, ok := ctx.Value(environmentKey{}).(*Environment)
	if !ok || env == nil {
		return nil, ErrEnvironmentMissing
	}
	return env, nil
}
