package core

// registry.go tracks known datasets: listing, lookup, rename, and the two
// flavors of deletion. Soft delete stamps deleted_at and hides the dataset
// from default listings; Delete removes the dataset and everything it owns
// in one transaction. Deleting an id that does not exist is a no-op
// success, so callers can retry deletes freely.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const datasetColumns = `id, name, source_path, row_count, column_count, deleted_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDataset(row rowScanner) (Dataset, error) {
	var ds Dataset
	var deletedAt sql.NullTime
	err := row.Scan(&ds.ID, &ds.Name, &ds.SourcePath, &ds.RowCount,
		&ds.ColumnCount, &deletedAt, &ds.CreatedAt)
	if err != nil {
		return Dataset{}, err
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		ds.DeletedAt = &t
	}
	return ds, nil
}

func getDataset(ctx context.Context, db *sql.DB, id int64) (Dataset, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+datasetColumns+` FROM dataset WHERE id = ?`, id)
	ds, err := scanDataset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Dataset{}, errorf(KindNotFound, "get_dataset", "dataset %d not found", id)
	}
	if err != nil {
		return Dataset{}, fmt.Errorf("get dataset %d: %w", id, err)
	}
	return ds, nil
}

func getDatasetTx(ctx context.Context, tx *sql.Tx, id int64) (Dataset, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+datasetColumns+` FROM dataset WHERE id = ?`, id)
	ds, err := scanDataset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Dataset{}, errorf(KindNotFound, "get_dataset", "dataset %d not found", id)
	}
	return ds, err
}

// List returns all datasets, most recent first. Soft-deleted datasets are
// included only when includeDeleted is set.
func (s *Service) List(ctx context.Context, includeDeleted bool) ([]Dataset, error) {
	query := `SELECT ` + datasetColumns + ` FROM dataset`
	if !includeDeleted {
		query += ` WHERE deleted_at IS NULL`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	var datasets []Dataset
	err := s.store.View(ctx, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, query)
		if err != nil {
			return fmt.Errorf("list datasets: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			ds, err := scanDataset(rows)
			if err != nil {
				return fmt.Errorf("scan dataset: %w", err)
			}
			datasets = append(datasets, ds)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, wrapStorage("list", err)
	}
	return datasets, nil
}

// Get returns one dataset by id, soft-deleted or not.
func (s *Service) Get(ctx context.Context, id int64) (Dataset, error) {
	var ds Dataset
	err := s.store.View(ctx, func(db *sql.DB) error {
		var err error
		ds, err = getDataset(ctx, db, id)
		return err
	})
	if err != nil {
		return Dataset{}, wrapStorage("get", err)
	}
	return ds, nil
}

// Delete removes a dataset and all of its cells, column names and
// visibility state in one transaction. Missing ids are a no-op success.
func (s *Service) Delete(ctx context.Context, id int64) error {
	deleted := false
	err := s.store.Update(ctx, func(tx *sql.Tx) error {
		var exists int64
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM dataset WHERE id = ?`, id).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check dataset %d: %w", id, err)
		}
		if exists == 0 {
			return nil
		}

		for _, stmt := range []string{
			`DELETE FROM cell WHERE dataset_id = ?`,
			`DELETE FROM column_name WHERE dataset_id = ?`,
			`DELETE FROM column_visibility WHERE dataset_id = ?`,
			`DELETE FROM dataset_flag WHERE dataset_id = ?`,
			`DELETE FROM dataset WHERE id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return fmt.Errorf("delete dataset %d: %w", id, err)
			}
		}
		deleted = true
		return nil
	})
	if err != nil {
		return wrapStorage("delete", err)
	}

	if deleted {
		s.events.publish(Event{Type: EventDatasetDeleted, Dataset: Dataset{ID: id}})
	}
	return nil
}

// SoftDelete hides a dataset from default listings without touching its
// data. Missing ids are a no-op success, matching Delete.
func (s *Service) SoftDelete(ctx context.Context, id int64) error {
	err := s.store.Update(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE dataset SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
			time.Now().UTC(), id)
		if err != nil {
			return fmt.Errorf("soft delete dataset %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return wrapStorage("soft_delete", err)
	}
	return nil
}

// Rename updates a dataset's display name.
func (s *Service) Rename(ctx context.Context, id int64, name string) error {
	err := s.store.Update(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE dataset SET name = ? WHERE id = ?`, name, id)
		if err != nil {
			return fmt.Errorf("rename dataset %d: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rename dataset %d: %w", id, err)
		}
		if n == 0 {
			return errorf(KindNotFound, "rename", "dataset %d not found", id)
		}
		return nil
	})
	if err != nil {
		return wrapStorage("rename", err)
	}
	return nil
}

// SetFlag marks or unmarks a dataset. The flag is a caller-defined boolean
// tag stored with the dataset; it carries no meaning inside the store.
func (s *Service) SetFlag(ctx context.Context, id int64, flagged bool) error {
	err := s.store.Update(ctx, func(tx *sql.Tx) error {
		if _, err := getDatasetTx(ctx, tx, id); err != nil {
			return err
		}
		v := 0
		if flagged {
			v = 1
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO dataset_flag (dataset_id, flagged) VALUES (?, ?)
			 ON CONFLICT(dataset_id) DO UPDATE SET flagged = excluded.flagged`,
			id, v)
		if err != nil {
			return fmt.Errorf("set flag for dataset %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return wrapStorage("set_flag", err)
	}
	return nil
}

// Flags returns the flag state of every dataset that has one set, as a
// dataset id -> flagged map.
func (s *Service) Flags(ctx context.Context) (map[int64]bool, error) {
	flags := make(map[int64]bool)
	err := s.store.View(ctx, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx,
			`SELECT dataset_id, flagged FROM dataset_flag`)
		if err != nil {
			return fmt.Errorf("query dataset flags: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var id, flagged int64
			if err := rows.Scan(&id, &flagged); err != nil {
				return fmt.Errorf("scan dataset flag: %w", err)
			}
			flags[id] = flagged != 0
		}
		return rows.Err()
	})
	if err != nil {
		return nil, wrapStorage("flags", err)
	}
	return flags, nil
}

// ColumnVisibility returns the saved visibility flags for a dataset as a
// col_idx -> visible map. Columns without a saved entry are absent.
func (s *Service) ColumnVisibility(ctx context.Context, id int64) (map[int64]bool, error) {
	visibility := make(map[int64]bool)
	err := s.store.View(ctx, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx,
			`SELECT col_idx, visible FROM column_visibility
			  WHERE dataset_id = ? ORDER BY col_idx ASC`, id)
		if err != nil {
			return fmt.Errorf("query column visibility: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var colIdx int64
			var visible int64
			if err := rows.Scan(&colIdx, &visible); err != nil {
				return fmt.Errorf("scan column visibility: %w", err)
			}
			visibility[colIdx] = visible != 0
		}
		return rows.Err()
	})
	if err != nil {
		return nil, wrapStorage("column_visibility", err)
	}
	return visibility, nil
}

// SaveColumnVisibility replaces a dataset's visibility flags in one
// transaction.
func (s *Service) SaveColumnVisibility(ctx context.Context, id int64, visibility map[int64]bool) error {
	err := s.store.Update(ctx, func(tx *sql.Tx) error {
		if _, err := getDatasetTx(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM column_visibility WHERE dataset_id = ?`, id); err != nil {
			return fmt.Errorf("clear column visibility: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO column_visibility (dataset_id, col_idx, visible) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare column visibility insert: %w", err)
		}
		defer stmt.Close()

		for colIdx, visible := range visibility {
			v := 0
			if visible {
				v = 1
			}
			if _, err := stmt.ExecContext(ctx, id, colIdx, v); err != nil {
				return fmt.Errorf("insert column visibility %d: %w", colIdx, err)
			}
		}
		return nil
	})
	if err != nil {
		return wrapStorage("save_column_visibility", err)
	}
	return nil
}
