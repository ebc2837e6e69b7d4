package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/sagarc03/hashdrop"
	"github.com/sagarc03/hashdrop/cache"
	"github.com/sagarc03/hashdrop/config"
	"github.com/sagarc03/hashdrop/database"
	"github.com/sagarc03/hashdrop/filesystem"
	"github.com/sagarc03/hashdrop/s3store"
)

var errNotLocal = errors.New("command requires store.type local")

// openLocalStore opens the index database and the blob directory. The
// returned function releases both.
func openLocalStore(ctx context.Context, cfg *config.Config) (*hashdrop.LocalStore, func(), error) {
	if cfg.Store.Type != config.StoreLocal {
		return nil, nil, errNotLocal
	}

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	slog.Info("connected to database", "type", cfg.Database.Type)

	if err := os.MkdirAll(cfg.Store.Path, 0o750); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("create storage directory: %w", err)
	}

	root, err := os.OpenRoot(cfg.Store.Path)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("open storage root: %w", err)
	}

	store := hashdrop.NewLocalStore(db.GetRepo(), filesystem.NewFileStorage(root), hashdrop.LocalStoreConfig{
		CleanupTimeout: time.Duration(cfg.Store.CleanupTimeout) * time.Second,
	})

	closeFn := func() {
		if err := root.Close(); err != nil {
			slog.Warn("failed to close storage root", "err", err)
		}
		if err := db.Close(); err != nil {
			slog.Warn("failed to close database", "err", err)
		}
	}

	return store, closeFn, nil
}

// openObjectStore builds the configured ObjectStore, wrapped in the Head
// cache when enabled.
func openObjectStore(ctx context.Context, cfg *config.Config) (hashdrop.ObjectStore, func(), error) {
	var (
		store   hashdrop.ObjectStore
		closeFn = func() {}
	)

	switch cfg.Store.Type {
	case config.StoreLocal:
		local, closeLocal, err := openLocalStore(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		store, closeFn = local, closeLocal
		slog.Info("using local store", "path", cfg.Store.Path)

	case config.StoreS3:
		s3, err := s3store.New(cfg.S3)
		if err != nil {
			return nil, nil, err
		}
		store = s3
		slog.Info("using s3 store", "endpoint", cfg.S3.Endpoint, "bucket", cfg.S3.Bucket, "prefix", cfg.S3.Prefix)

	default:
		return nil, nil, fmt.Errorf("unsupported store type: %s", cfg.Store.Type)
	}

	if cfg.Store.CacheSize > 0 {
		cached, err := cache.New(store, cfg.Store.CacheSize)
		if err != nil {
			closeFn()
			return nil, nil, err
		}
		store = cached
		slog.Debug("head cache enabled", "size", cfg.Store.CacheSize)
	}

	return store, closeFn, nil
}
