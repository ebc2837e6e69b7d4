package database

import (
	"context"
	"fmt"

	"github.com/sagarc03/hashdrop"
	"github.com/sagarc03/hashdrop/database/postgres"
	"github.com/sagarc03/hashdrop/database/sqlite"
)

// Config holds the configuration for connecting to an object index backend.
type Config struct {
	// Type specifies the database type: "sqlite" or "postgres"
	Type string `mapstructure:"type" validate:"required,oneof=sqlite postgres"`
	// DSN is the data source name (connection string)
	DSN string `mapstructure:"dsn" validate:"required"`
	// Tables holds the table names used by the index
	Tables hashdrop.Tables `mapstructure:"tables"`
}

// Database is an open connection to an object index backend.
type Database interface {
	// Ping verifies the database connection is alive.
	Ping(ctx context.Context) error
	// Migrate creates the required tables and indexes if they do not exist.
	Migrate(ctx context.Context) error
	// Validate checks that the existing schema matches the expected structure.
	Validate(ctx context.Context) error
	// GetRepo returns the ObjectIndex backed by this database.
	GetRepo() hashdrop.ObjectIndex
	// Close releases the connection.
	Close() error
}

// Connect opens a connection to the configured database backend.
// It does not migrate or validate the schema; callers decide when to do so.
func Connect(ctx context.Context, cfg Config) (Database, error) {
	if err := cfg.Tables.Validate(); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	switch cfg.Type {
	case "sqlite":
		db, err := sqlite.Connect(ctx, cfg.DSN, cfg.Tables)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.DSN, cfg.Tables)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

// Open connects, migrates and validates the schema in one step, returning a
// Database ready for use.
func Open(ctx context.Context, cfg Config) (Database, error) {
	db, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Type, err)
	}

	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate %s: %w", cfg.Type, err)
	}

	if err := db.Validate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("validate %s schema: %w", cfg.Type, err)
	}

	return db, nil
}
