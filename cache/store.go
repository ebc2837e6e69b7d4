// Package cache provides an ObjectStore decorator that remembers positive
// Head results in an in-process LRU.
//
// Content at a digest never changes, so a cached hit never goes stale. Misses
// are not cached: an object that is absent now may be uploaded a moment later.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sagarc03/hashdrop"
	"github.com/sagarc03/hashdrop/metrics"
)

const defaultSize = 1024

// Store wraps an ObjectStore with an LRU of known objects.
type Store struct {
	delegate hashdrop.ObjectStore
	cache    *lru.Cache[string, hashdrop.StoredObject]
}

// New wraps delegate with an LRU holding up to size entries.
// A size of zero or less falls back to 1024.
func New(delegate hashdrop.ObjectStore, size int) (*Store, error) {
	if delegate == nil {
		return nil, errors.New("new cache: delegate store is required")
	}
	if size <= 0 {
		size = defaultSize
	}

	c, err := lru.New[string, hashdrop.StoredObject](size)
	if err != nil {
		return nil, fmt.Errorf("new cache: %w", err)
	}

	return &Store{delegate: delegate, cache: c}, nil
}

func (s *Store) Head(ctx context.Context, digest string) (hashdrop.StoredObject, error) {
	if obj, ok := s.cache.Get(digest); ok {
		metrics.HeadCacheTotal.WithLabelValues("hit").Inc()
		return obj, nil
	}

	metrics.HeadCacheTotal.WithLabelValues("miss").Inc()

	obj, err := s.delegate.Head(ctx, digest)
	if err != nil {
		return hashdrop.StoredObject{}, err
	}

	s.cache.Add(digest, obj)
	return obj, nil
}

func (s *Store) Get(ctx context.Context, digest string) (hashdrop.StoredObject, io.ReadCloser, error) {
	obj, content, err := s.delegate.Get(ctx, digest)
	if err != nil {
		return hashdrop.StoredObject{}, nil, err
	}

	s.cache.Add(digest, obj)
	return obj, content, nil
}

func (s *Store) Put(ctx context.Context, obj hashdrop.PutObject, content io.Reader) (hashdrop.StoredObject, error) {
	stored, err := s.delegate.Put(ctx, obj, content)
	if err != nil {
		return hashdrop.StoredObject{}, err
	}

	s.cache.Add(stored.Digest, stored)
	return stored, nil
}

// Len returns the number of cached entries.
func (s *Store) Len() int {
	return s.cache.Len()
}
