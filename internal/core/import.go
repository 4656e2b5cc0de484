package core

// import.go is the transactional import pipeline.
//
// One import run produces one dataset and all of its column_name and cell
// rows inside a single write transaction. Any failure while consuming the
// row stream rolls the whole thing back: a partially imported dataset is
// never visible.
//
// Ragged rows are normalized against the header width: short rows are
// padded with empty trailing fields, long rows are truncated. The stored
// grid is therefore always dense and rectangular.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"
)

// ImportTimeout is the default cap on a single import operation's duration,
// used when Options.ImportTimeout is unset.
var ImportTimeout = 10 * time.Minute

// Import consumes header plus a lazy row stream and writes a new dataset in
// one atomic transaction. The returned Dataset carries the final committed
// shape. The registry event fires only after commit.
func (s *Service) Import(ctx context.Context, name, sourcePath string, header []string, rows RowSource) (Dataset, error) {
	if len(header) == 0 {
		return Dataset{}, errorf(KindParse, "import", "empty header")
	}

	var ds Dataset
	err := s.store.Update(ctx, func(tx *sql.Tx) error {
		var err error
		ds, err = importDataset(ctx, tx, name, sourcePath, header, rows)
		return err
	})
	if err != nil {
		return Dataset{}, wrapStorage("import", err)
	}

	s.events.publish(Event{Type: EventDatasetCommitted, Dataset: ds})
	return ds, nil
}

// importDataset performs the dataset, column_name and cell inserts on an
// open transaction. The caller owns commit/rollback.
func importDataset(ctx context.Context, tx *sql.Tx, name, sourcePath string, header []string, rows RowSource) (Dataset, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO dataset (name, source_path, row_count, column_count) VALUES (?, ?, 0, ?)`,
		name, sourcePath, len(header),
	)
	if err != nil {
		return Dataset{}, fmt.Errorf("insert dataset: %w", err)
	}
	datasetID, err := res.LastInsertId()
	if err != nil {
		return Dataset{}, fmt.Errorf("dataset id: %w", err)
	}

	insertHeader, err := tx.PrepareContext(ctx,
		`INSERT INTO column_name (dataset_id, col_idx, name) VALUES (?, ?, ?)`)
	if err != nil {
		return Dataset{}, fmt.Errorf("prepare header insert: %w", err)
	}
	defer insertHeader.Close()

	for colIdx, colName := range header {
		if _, err := insertHeader.ExecContext(ctx, datasetID, colIdx, colName); err != nil {
			return Dataset{}, fmt.Errorf("insert header %d: %w", colIdx, err)
		}
	}

	insertCell, err := tx.PrepareContext(ctx,
		`INSERT INTO cell (dataset_id, row_idx, col_idx, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return Dataset{}, fmt.Errorf("prepare cell insert: %w", err)
	}
	defer insertCell.Close()

	width := len(header)
	var rowCount int64
	for {
		row, err := rows.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Dataset{}, fmt.Errorf("row %d: %w", rowCount, err)
		}

		row = normalizeRow(row, width)
		for colIdx, value := range row {
			if _, err := insertCell.ExecContext(ctx, datasetID, rowCount, colIdx, value); err != nil {
				return Dataset{}, fmt.Errorf("insert cell (%d,%d): %w", rowCount, colIdx, err)
			}
		}
		rowCount++
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE dataset SET row_count = ? WHERE id = ?`, rowCount, datasetID); err != nil {
		return Dataset{}, fmt.Errorf("update row_count: %w", err)
	}

	ds, err := getDatasetTx(ctx, tx, datasetID)
	if err != nil {
		return Dataset{}, fmt.Errorf("read back dataset: %w", err)
	}
	return ds, nil
}

// normalizeRow fits row to width: missing trailing fields become empty
// strings, extra fields are dropped.
func normalizeRow(row []string, width int) []string {
	if len(row) == width {
		return row
	}
	if len(row) > width {
		return row[:width]
	}
	padded := make([]string, width)
	copy(padded, row)
	return padded
}

// ImportCSV reads CSV from r and imports it as a new dataset.
func (s *Service) ImportCSV(ctx context.Context, name, sourcePath string, r io.Reader) (Dataset, error) {
	src, err := NewCSVSource(r)
	if err != nil {
		return Dataset{}, err
	}
	return s.Import(ctx, name, sourcePath, src.Header(), src)
}
