// Package postgres implements the object index using PostgreSQL
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sagarc03/hashdrop"
)

type Repo struct {
	pool      *pgxpool.Pool
	tableName string
}

func NewRepo(pool *pgxpool.Pool, tables hashdrop.Tables) (*Repo, error) {
	if err := tables.Validate(); err != nil {
		return nil, fmt.Errorf("new repo: %w", err)
	}

	return &Repo{pool: pool, tableName: tables.Objects}, nil
}

// Ping verifies database connectivity
func (r *Repo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// DropTables removes the index table. Intended for tests and teardown.
func (r *Repo) DropTables(ctx context.Context) error {
	return dropObjectsTable(ctx, r.pool, r.tableName)
}

func (r *Repo) table() string {
	return pgx.Identifier{r.tableName}.Sanitize()
}

func (r *Repo) Get(ctx context.Context, digest string) (hashdrop.StoredObject, error) {
	query := fmt.Sprintf(`
		SELECT digest, size_bytes, content_type, original_filename, created_at
		FROM %s
		WHERE digest = $1
	`, r.table())

	var o hashdrop.StoredObject
	err := r.pool.QueryRow(ctx, query, digest).Scan(
		&o.Digest, &o.Size, &o.ContentType, &o.OriginalFilename, &o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return hashdrop.StoredObject{}, hashdrop.ErrNotFound
		}
		return hashdrop.StoredObject{}, fmt.Errorf("get: %w", err)
	}

	o.CreatedAt = o.CreatedAt.UTC()
	return o, nil
}

// Insert adds obj to the index. An existing row for the same digest is left
// untouched and returned with inserted=false.
func (r *Repo) Insert(ctx context.Context, obj hashdrop.StoredObject) (hashdrop.StoredObject, bool, error) {
	createdAt := obj.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (digest, size_bytes, content_type, original_filename, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (digest) DO NOTHING
		RETURNING digest, size_bytes, content_type, original_filename, created_at
	`, r.table())

	var o hashdrop.StoredObject
	err := r.pool.QueryRow(ctx, query,
		obj.Digest, obj.Size, obj.ContentType, obj.OriginalFilename, createdAt,
	).Scan(&o.Digest, &o.Size, &o.ContentType, &o.OriginalFilename, &o.CreatedAt)
	if err == nil {
		o.CreatedAt = o.CreatedAt.UTC()
		return o, true, nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return hashdrop.StoredObject{}, false, fmt.Errorf("insert: %w", err)
	}

	existing, err := r.Get(ctx, obj.Digest)
	if err != nil {
		return hashdrop.StoredObject{}, false, fmt.Errorf("insert: read existing: %w", err)
	}
	return existing, false, nil
}

func (r *Repo) List(ctx context.Context, q hashdrop.ListQuery) (hashdrop.ListResult, error) {
	cursor, err := hashdrop.DecodeCursor(q.Cursor)
	if err != nil {
		return hashdrop.ListResult{}, fmt.Errorf("list: %w", err)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = hashdrop.DefaultListLimit
	}

	var query string
	var args []any

	if q.Cursor == "" {
		query = fmt.Sprintf(`
			SELECT digest, size_bytes, content_type, original_filename, created_at
			FROM %s
			ORDER BY created_at, digest
			LIMIT $1
		`, r.table())
		args = []any{limit + 1}
	} else {
		query = fmt.Sprintf(`
			SELECT digest, size_bytes, content_type, original_filename, created_at
			FROM %s
			WHERE (created_at, digest) > ($1, $2)
			ORDER BY created_at, digest
			LIMIT $3
		`, r.table())
		args = []any{cursor.CreatedAt, cursor.Digest, limit + 1}
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return hashdrop.ListResult{}, fmt.Errorf("list: %w", err)
	}
	defer rows.Close()

	items := make([]hashdrop.StoredObject, 0, limit)
	for rows.Next() {
		var o hashdrop.StoredObject
		if err := rows.Scan(&o.Digest, &o.Size, &o.ContentType, &o.OriginalFilename, &o.CreatedAt); err != nil {
			return hashdrop.ListResult{}, fmt.Errorf("list: scan: %w", err)
		}
		o.CreatedAt = o.CreatedAt.UTC()
		items = append(items, o)
	}

	if err := rows.Err(); err != nil {
		return hashdrop.ListResult{}, fmt.Errorf("list: rows: %w", err)
	}

	var nextCursor string
	if len(items) > limit {
		// Cursor points to the last item of the current page
		lastItem := items[limit-1]
		nextCursor = hashdrop.EncodeCursor(lastItem.CreatedAt, lastItem.Digest)
		items = items[:limit]
	}

	return hashdrop.ListResult{Items: items, NextCursor: nextCursor}, nil
}
