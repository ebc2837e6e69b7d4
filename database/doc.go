// Package database provides a unified interface for connecting to object index backends.
//
// The package supports multiple database backends (PostgreSQL and SQLite) and handles
// connection management, migrations, and schema validation.
//
// # Supported Backends
//
//   - PostgreSQL: Production-ready backend using pgx connection pool
//   - SQLite: Lightweight backend suitable for development and single-node deployments
//
// # Usage
//
//	cfg := database.Config{
//	    Type:   "sqlite",
//	    DSN:    "hashdrop.db",
//	    Tables: hashdrop.Tables{Objects: "hashdrop_objects"},
//	}
//
//	db, err := database.Open(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	index := db.GetRepo()
//
// Open automatically:
//   - Opens the database connection
//   - Runs schema migrations
//   - Validates the schema
//
// Use Connect instead to control migration and validation separately.
//
// # Index Semantics
//
// Entries are keyed by digest and never replaced. Inserting a digest that is
// already indexed leaves the first entry in place and reports it back, so
// concurrent duplicate uploads converge on one row.
//
// # Subpackages
//
//   - database/postgres: PostgreSQL implementation using pgx
//   - database/sqlite: SQLite implementation using modernc.org/sqlite
package database
