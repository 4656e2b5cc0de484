package core

// query.go reconstructs row-major pages from the EAV cell layout.
//
// A page read touches two queries: the column names (once, ordered by
// col_idx) and the cell range for [startRow, endRow) ordered by
// (row_idx, col_idx). Reassembly verifies the dense-grid invariant as it
// goes; a missing or out-of-range cell means the store is corrupt, not that
// the row is short.

import (
	"context"
	"database/sql"
	"fmt"
	"math"
)

// QueryPage returns the pageIndex-th window of pageSize rows for a dataset.
// A page past the end of the data (including an empty dataset) is an empty
// page, not an error. pageSize zero means DefaultPageSize.
func (s *Service) QueryPage(ctx context.Context, datasetID, pageIndex, pageSize int64) (Page, error) {
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	if pageIndex < 0 || pageSize < 0 {
		return Page{}, errorf(KindParse, "query_page",
			"invalid page request: index %d size %d", pageIndex, pageSize)
	}

	var page Page
	err := s.store.View(ctx, func(db *sql.DB) error {
		var err error
		page, err = queryPage(ctx, db, datasetID, pageIndex, pageSize)
		return err
	})
	if err != nil {
		return Page{}, wrapStorage("query_page", err)
	}
	return page, nil
}

func queryPage(ctx context.Context, db *sql.DB, datasetID, pageIndex, pageSize int64) (Page, error) {
	ds, err := getDataset(ctx, db, datasetID)
	if err != nil {
		return Page{}, err
	}

	columns, err := columnNames(ctx, db, datasetID)
	if err != nil {
		return Page{}, err
	}
	if int64(len(columns)) != ds.ColumnCount {
		return Page{}, errorf(KindCorrupt, "query_page",
			"dataset %d declares %d columns, found %d", datasetID, ds.ColumnCount, len(columns))
	}

	page := Page{
		DatasetID:  datasetID,
		PageIndex:  pageIndex,
		PageSize:   pageSize,
		Columns:    columns,
		Rows:       [][]string{},
		TotalRows:  ds.RowCount,
		TotalPages: (ds.RowCount + pageSize - 1) / pageSize,
	}

	// A page index large enough to overflow startRow is past the end of
	// any dataset, so it gets the same empty-page success.
	if pageIndex > math.MaxInt64/pageSize {
		return page, nil
	}
	startRow := pageIndex * pageSize
	if startRow >= ds.RowCount {
		return page, nil
	}
	endRow := startRow + pageSize
	if endRow > ds.RowCount {
		endRow = ds.RowCount
	}

	rows, err := db.QueryContext(ctx,
		`SELECT row_idx, col_idx, value
		   FROM cell
		  WHERE dataset_id = ? AND row_idx >= ? AND row_idx < ?
		  ORDER BY row_idx ASC, col_idx ASC`,
		datasetID, startRow, endRow,
	)
	if err != nil {
		return Page{}, fmt.Errorf("query cells: %w", err)
	}
	defer rows.Close()

	width := ds.ColumnCount
	out := make([][]string, endRow-startRow)
	for i := range out {
		out[i] = make([]string, width)
	}

	// Walk the ordered cells and demand exact contiguity. Positions are
	// tracked against the expected (row, col) cursor: any gap, duplicate,
	// or out-of-range index violates the dense-grid invariant.
	wantRow, wantCol := startRow, int64(0)
	for rows.Next() {
		var rowIdx, colIdx int64
		var value string
		if err := rows.Scan(&rowIdx, &colIdx, &value); err != nil {
			return Page{}, fmt.Errorf("scan cell: %w", err)
		}
		if rowIdx != wantRow || colIdx != wantCol {
			return Page{}, errorf(KindCorrupt, "query_page",
				"dataset %d: expected cell (%d,%d), found (%d,%d)",
				datasetID, wantRow, wantCol, rowIdx, colIdx)
		}
		out[rowIdx-startRow][colIdx] = value

		wantCol++
		if wantCol == width {
			wantCol = 0
			wantRow++
		}
	}
	if err := rows.Err(); err != nil {
		return Page{}, fmt.Errorf("iterate cells: %w", err)
	}
	if wantRow != endRow || wantCol != 0 {
		return Page{}, errorf(KindCorrupt, "query_page",
			"dataset %d: cell range ended at (%d,%d), expected (%d,0)",
			datasetID, wantRow, wantCol, endRow)
	}

	page.Rows = out
	return page, nil
}

func columnNames(ctx context.Context, db *sql.DB, datasetID int64) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT name FROM column_name WHERE dataset_id = ? ORDER BY col_idx ASC`,
		datasetID,
	)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, name)
	}
	return columns, rows.Err()
}
