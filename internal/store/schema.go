package store

// schema.go owns the store's table layout.
//
// Datasets use an entity-attribute-value layout: one dataset row per
// imported table, one column_name row per header entry, one cell row per
// (row_idx, col_idx) position. The grid is dense: every position inside a
// dataset's declared shape has exactly one cell row, blank fields included.

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS dataset (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    name         TEXT NOT NULL,
    source_path  TEXT NOT NULL DEFAULT '',
    row_count    INTEGER NOT NULL,
    column_count INTEGER NOT NULL,
    deleted_at   TIMESTAMP,
    created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS column_name (
    dataset_id  INTEGER NOT NULL,
    col_idx     INTEGER NOT NULL,
    name        TEXT NOT NULL,
    PRIMARY KEY (dataset_id, col_idx),
    FOREIGN KEY (dataset_id) REFERENCES dataset(id)
);

CREATE TABLE IF NOT EXISTS cell (
    dataset_id  INTEGER NOT NULL,
    row_idx     INTEGER NOT NULL,
    col_idx     INTEGER NOT NULL,
    value       TEXT NOT NULL,
    PRIMARY KEY (dataset_id, row_idx, col_idx),
    FOREIGN KEY (dataset_id) REFERENCES dataset(id)
);

CREATE TABLE IF NOT EXISTS column_visibility (
    dataset_id  INTEGER NOT NULL,
    col_idx     INTEGER NOT NULL,
    visible     INTEGER NOT NULL,
    PRIMARY KEY (dataset_id, col_idx),
    FOREIGN KEY (dataset_id) REFERENCES dataset(id)
);

CREATE TABLE IF NOT EXISTS dataset_flag (
    dataset_id  INTEGER PRIMARY KEY,
    flagged     INTEGER NOT NULL DEFAULT 0,
    FOREIGN KEY (dataset_id) REFERENCES dataset(id)
);

CREATE INDEX IF NOT EXISTS idx_cell_dataset_row
    ON cell(dataset_id, row_idx);
`

// expectedColumns is the column list per table, in declaration order.
// Used to detect an incompatible pre-existing schema before touching it.
var expectedColumns = map[string][]string{
	"dataset":           {"id", "name", "source_path", "row_count", "column_count", "deleted_at", "created_at"},
	"column_name":       {"dataset_id", "col_idx", "name"},
	"cell":              {"dataset_id", "row_idx", "col_idx", "value"},
	"column_visibility": {"dataset_id", "col_idx", "visible"},
	"dataset_flag":      {"dataset_id", "flagged"},
}

// initSchema verifies any pre-existing tables and creates missing ones.
// Safe to call on every Open; an already-initialized store passes through
// unchanged.
func (s *Store) initSchema(ctx context.Context) error {
	for table, want := range expectedColumns {
		got, err := tableColumns(ctx, s.db, table)
		if err != nil {
			return fmt.Errorf("inspect table %s: %w", table, err)
		}
		if got == nil {
			continue // table absent, created below
		}
		if !columnsMatch(got, want) {
			return fmt.Errorf("table %s has columns (%s), want (%s): %w",
				table, strings.Join(got, ", "), strings.Join(want, ", "), ErrSchemaMismatch)
		}
	}

	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}
	return nil
}

// tableColumns returns the declared column names of table in order, or nil
// if the table does not exist.
func tableColumns(ctx context.Context, db *sql.DB, table string) ([]string, error) {
	var name string
	err := db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table,
	).Scan(&name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			cid        int
			colName    string
			colType    string
			notNull    int
			dfltValue  sql.NullString
			primaryKey int
		)
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &dfltValue, &primaryKey); err != nil {
			return nil, err
		}
		cols = append(cols, colName)
	}
	return cols, rows.Err()
}

func columnsMatch(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
