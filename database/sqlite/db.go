package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/sagarc03/hashdrop"
)

type column struct {
	dataType string
	nullable bool
}

// objectColumns is the layout Migrate creates, as reported by PRAGMA table_info.
var objectColumns = map[string]column{
	"digest":            {"text", false},
	"size_bytes":        {"integer", false},
	"content_type":      {"text", false},
	"original_filename": {"text", false},
	"created_at":        {"text", false},
}

// ValidateSchema checks that the objects table exists with the columns
// Migrate creates.
func ValidateSchema(ctx context.Context, db *sql.DB, tables hashdrop.Tables) error {
	name := tables.Objects
	if !hashdrop.IsValidTableName(name) {
		return fmt.Errorf("validate schema: invalid table name: %s", name)
	}

	var found string
	err := db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("validate schema: table %s does not exist", name)
	}
	if err != nil {
		return fmt.Errorf("validate schema %s: %w", name, err)
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, quoteIdentifier(name)))
	if err != nil {
		return fmt.Errorf("validate schema %s: query columns: %w", name, err)
	}
	defer func() { _ = rows.Close() }()

	actual := make(map[string]column)
	for rows.Next() {
		var (
			cid, notNull, pk int
			colName, typ     string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &colName, &typ, &notNull, &dflt, &pk); err != nil {
			return fmt.Errorf("validate schema %s: scan column: %w", name, err)
		}
		actual[colName] = column{dataType: strings.ToLower(typ), nullable: notNull == 0}
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
