// Package sqlite implements the object index using SQLite
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sagarc03/hashdrop"
)

// timeFormat is fixed width so that created_at sorts lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

type repo struct {
	db        *sql.DB
	tableName string
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func (r *repo) Get(ctx context.Context, digest string) (hashdrop.StoredObject, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT digest, size_bytes, content_type, original_filename, created_at
		FROM %s
		WHERE digest = ?`, quoteIdentifier(r.tableName))

	var o hashdrop.StoredObject
	var createdAt string

	err := r.db.QueryRowContext(ctx, query, digest).Scan(
		&o.Digest, &o.Size, &o.ContentType, &o.OriginalFilename, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return hashdrop.StoredObject{}, hashdrop.ErrNotFound
		}
		return hashdrop.StoredObject{}, fmt.Errorf("get: %w", err)
	}

	o.CreatedAt, err = time.Parse(timeFormat, createdAt)
	if err != nil {
		return hashdrop.StoredObject{}, fmt.Errorf("get: parse created_at: %w", err)
	}

	return o, nil
}

func (r *repo) Insert(ctx context.Context, obj hashdrop.StoredObject) (hashdrop.StoredObject, bool, error) {
	createdAt := obj.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (digest, size_bytes, content_type, original_filename, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (digest) DO NOTHING`, quoteIdentifier(r.tableName))

	result, err := r.db.ExecContext(ctx, query,
		obj.Digest, obj.Size, obj.ContentType, obj.OriginalFilename, formatTime(createdAt),
	)
	if err != nil {
		return hashdrop.StoredObject{}, false, fmt.Errorf("insert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return hashdrop.StoredObject{}, false, fmt.Errorf("insert: rows affected: %w", err)
	}

	stored, err := r.Get(ctx, obj.Digest)
	if err != nil {
		return hashdrop.StoredObject{}, false, fmt.Errorf("insert: read back: %w", err)
	}

	return stored, rowsAffected > 0, nil
}

func (r *repo) List(ctx context.Context, q hashdrop.ListQuery) (hashdrop.ListResult, error) {
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
			LIMIT ?
		`, quoteIdentifier(r.tableName))
		args = []any{limit + 1}
	} else {
		query = fmt.Sprintf(`
			SELECT digest, size_bytes, content_type, original_filename, created_at
			FROM %s
			WHERE (created_at, digest) > (?, ?)
			ORDER BY created_at, digest
			LIMIT ?
		`, quoteIdentifier(r.tableName))
		args = []any{formatTime(cursor.CreatedAt), cursor.Digest, limit + 1}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return hashdrop.ListResult{}, fmt.Errorf("list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]hashdrop.StoredObject, 0, limit)
	for rows.Next() {
		var o hashdrop.StoredObject
		var createdAt string

		if scanErr := rows.Scan(&o.Digest, &o.Size, &o.ContentType, &o.OriginalFilename, &createdAt); scanErr != nil {
			return hashdrop.ListResult{}, fmt.Errorf("list: scan: %w", scanErr)
		}

		var parseErr error
		o.CreatedAt, parseErr = time.Parse(timeFormat, createdAt)
		if parseErr != nil {
			return hashdrop.ListResult{}, fmt.Errorf("list: parse created_at: %w", parseErr)
		}

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
