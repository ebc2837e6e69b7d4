package postgres

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sagarc03/hashdrop"
)

type column struct {
	dataType string
	nullable bool
}

// objectColumns is the layout Migrate creates, as reported by
// information_schema.columns.
var objectColumns = map[string]column{
	"digest":            {"text", false},
	"size_bytes":        {"bigint", false},
	"content_type":      {"text", false},
	"original_filename": {"text", false},
	"created_at":        {"timestamp with time zone", false},
}

// ValidateSchema checks that the objects table exists with the columns
// Migrate creates.
func ValidateSchema(ctx context.Context, pool *pgxpool.Pool, tables hashdrop.Tables) error {
	name := tables.Objects
	if !hashdrop.IsValidTableName(name) {
		return fmt.Errorf("validate schema: invalid table name: %s", name)
	}

	var exists bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM information_schema.tables
			WHERE table_schema = 'public'
			AND table_name = $1
		)`, name).Scan(&exists)
	if err != nil {
		return fmt.Errorf("validate schema %s: %w", name, err)
	}
	if !exists {
		return fmt.Errorf("validate schema: table %s does not exist", name)
	}

	rows, err := pool.Query(ctx, `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_name = $1`, name)
	if err != nil {
		return fmt.Errorf("validate schema %s: query columns: %w", name, err)
	}
	defer rows.Close()

	actual := make(map[string]column)
	for rows.Next() {
		var colName, typ, nullable string
		if err := rows.Scan(&colName, &typ, &nullable); err != nil {
			return fmt.Errorf("validate schema %s: scan column: %w", name, err)
		}
		actual[colName] = column{dataType: strings.ToLower(typ), nullable: nullable == "YES"}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("validate schema %s: %w", name, err)
	}

	return compareColumns(name, actual)
}

func compareColumns(table string, actual map[string]column) error {
	var missing, mismatched []string

	for _, name := range slices.Sorted(maps.Keys(objectColumns)) {
		want := objectColumns[name]
		got, ok := actual[name]
		switch {
		case !ok:
			missing = append(missing, name)
		case got.dataType != want.dataType:
			mismatched = append(mismatched, fmt.Sprintf("%s: expected %s, got %s", name, want.dataType, got.dataType))
		case got.nullable != want.nullable:
			mismatched = append(mismatched, fmt.Sprintf("%s: expected nullable=%v, got nullable=%v", name, want.nullable, got.nullable))
		}
	}

	if len(missing) == 0 && len(mismatched) == 0 {
		return nil
	}

	msg := fmt.Sprintf("validate schema %s:", table)
	if len(missing) > 0 {
		msg += " missing columns: " + strings.Join(missing, ", ") + ";"
	}
	if len(mismatched) > 0 {
		msg += " mismatched columns: " + strings.Join(mismatched, "; ")
	}
	return errors.New(strings.TrimSuffix(msg, ";"))
}
