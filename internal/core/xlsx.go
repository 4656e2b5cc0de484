package core

// xlsx.go imports spreadsheet workbooks. Each selected sheet becomes its
// own dataset: the sheet's first row is the header, everything after it is
// data. Sheets import independently, so one sheet failing rolls back only
// its own dataset.

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ImportXLSX imports the named sheets from the workbook read from r. A nil
// or empty sheets slice means every sheet in the workbook. Returns one
// Dataset per imported sheet, in sheet order.
func (s *Service) ImportXLSX(ctx context.Context, name, sourcePath string, r io.Reader, sheets []string) ([]Dataset, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errorf(KindParse, "import_xlsx", "open workbook: %w", err)
	}
	defer f.Close()

	if len(sheets) == 0 {
		sheets = f.GetSheetList()
	}
	if len(sheets) == 0 {
		return nil, errorf(KindParse, "import_xlsx", "workbook has no sheets")
	}

	var datasets []Dataset
	for _, sheet := range sheets {
		ds, err := s.importSheet(ctx, f, name, sourcePath, sheet)
		if err != nil {
			return datasets, err
		}
		datasets = append(datasets, ds)
	}
	return datasets, nil
}

func (s *Service) importSheet(ctx context.Context, f *excelize.File, name, sourcePath, sheet string) (Dataset, error) {
	rows, err := f.Rows(sheet)
	if err != nil {
		return Dataset{}, errorf(KindParse, "import_xlsx", "open sheet %q: %w", sheet, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return Dataset{}, errorf(KindParse, "import_xlsx", "sheet %q is empty", sheet)
	}
	header, err := rows.Columns()
	if err != nil {
		return Dataset{}, errorf(KindParse, "import_xlsx", "read header of sheet %q: %w", sheet, err)
	}
	sanitizeRow(header)

	datasetName := name
	if len(f.GetSheetList()) > 1 {
		datasetName = fmt.Sprintf("%s (%s)", name, sheet)
	}

	return s.Import(ctx, datasetName, sourcePath, header, &xlsxRows{rows: rows, sheet: sheet})
}

// xlsxRows adapts excelize's streaming row iterator to RowSource.
type xlsxRows struct {
	rows  *excelize.Rows
	sheet string
}

func (x *xlsxRows) Next() ([]string, error) {
	if !x.rows.Next() {
		if err := x.rows.Error(); err != nil && !errors.Is(err, io.EOF) {
			return nil, errorf(KindParse, "read_row", "sheet %q: %w", x.sheet, err)
		}
		return nil, io.EOF
	}
	row, err := x.rows.Columns()
	if err != nil {
		return nil, errorf(KindParse, "read_row", "sheet %q: %w", x.sheet, err)
	}
	sanitizeRow(row)
	return row, nil
}
