// Package core provides the business logic for tabular dataset storage:
// transactional CSV/XLSX import, paginated row reconstruction, and the
// dispatcher that keeps all of it off the caller's foreground path.
// This package has no UI dependencies and can be used by any frontend.
package core

import (
	"io"
	"time"
)

// DefaultPageSize is the page size used when a caller passes zero.
const DefaultPageSize = 50

// Dataset describes one imported table. The declared shape always matches
// the stored cells: column_count distinct col_idx values in [0,
// column_count) and row_count distinct row_idx values in [0, row_count),
// from the instant the import transaction commits.
type Dataset struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	SourcePath  string     `json:"sourcePath,omitempty"`
	RowCount    int64      `json:"rowCount"`
	ColumnCount int64      `json:"columnCount"`
	DeletedAt   *time.Time `json:"deletedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Page is a bounded window of a dataset's rows in original order.
// Every row has exactly ColumnCount values, aligned to Columns.
type Page struct {
	DatasetID  int64      `json:"datasetId"`
	PageIndex  int64      `json:"pageIndex"`
	PageSize   int64      `json:"pageSize"`
	Columns    []string   `json:"columns"`
	Rows       [][]string `json:"rows"`
	TotalRows  int64      `json:"totalRows"`
	TotalPages int64      `json:"totalPages"`
}

// RowSource yields data rows one at a time. Next returns io.EOF after the
// last row; any other error aborts the import that is consuming it.
type RowSource interface {
	Next() ([]string, error)
}

// sliceRows adapts an in-memory row matrix to a RowSource.
type sliceRows struct {
	rows [][]string
	pos  int
}

// Rows returns a RowSource over an in-memory matrix.
func Rows(rows [][]string) RowSource {
	return &sliceRows{rows: rows}
}

func (s *sliceRows) Next() ([]string, error) {
	if s.pos >= len(s.rows) {
		return nil, io.EOF
	}
	row := s.rows[s.pos]
	s.pos++
	return row, nil
}
