package core

// reader.go provides the CSV row source used by the import pipeline.
//
// Real-world CSV files arrive with a UTF-8 BOM (Windows exports) and the
// occasional invalid byte sequence, so the raw reader is wrapped before the
// csv parser sees it:
//
//   - bomSkippingReader removes a leading 0xEF 0xBB 0xBF
//   - field values are sanitized to valid UTF-8 on the way out
//
// Ragged rows are not handled here: the parser is configured to accept any
// field count and the import pipeline applies the pad/truncate policy.

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

// CSVSource reads a header plus data rows from CSV input. It implements
// RowSource for the data rows; the header is consumed at construction.
type CSVSource struct {
	reader *csv.Reader
	header []string
}

// NewCSVSource wraps r and reads the header row. An empty input yields an
// empty header, which the import pipeline rejects.
func NewCSVSource(r io.Reader) (*CSVSource, error) {
	cr := csv.NewReader(newBOMSkippingReader(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return &CSVSource{reader: cr}, nil
	}
	if err != nil {
		return nil, errorf(KindParse, "read_header", "read csv header: %w", err)
	}

	sanitizeRow(header)
	return &CSVSource{reader: cr, header: header}, nil
}

// Header returns the header row, which may be empty for empty input.
func (c *CSVSource) Header() []string {
	return c.header
}

// Next returns the next data row, or io.EOF after the last one.
func (c *CSVSource) Next() ([]string, error) {
	row, err := c.reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return nil, errorf(KindParse, "read_row", "parse csv record: %w", err)
		}
		return nil, errorf(KindIO, "read_row", "read csv record: %w", err)
	}

	sanitizeRow(row)
	return row, nil
}

// sanitizeRow replaces invalid UTF-8 sequences and trims stray NULs so the
// store only ever holds valid text.
func sanitizeRow(row []string) {
	for i, v := range row {
		if strings.ContainsRune(v, '\x00') {
			v = strings.ReplaceAll(v, "\x00", "")
		}
		row[i] = strings.ToValidUTF8(v, "�")
	}
}

// bomSkippingReader removes a UTF-8 BOM (0xEF 0xBB 0xBF) from the start of
// the stream. Windows spreadsheet exports add one routinely.
type bomSkippingReader struct {
	reader  io.Reader
	checked bool
	pending []byte
}

func newBOMSkippingReader(r io.Reader) *bomSkippingReader {
	return &bomSkippingReader{reader: r}
}

func (b *bomSkippingReader) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true

		var buf [3]byte
		n, err := io.ReadFull(b.reader, buf[:])
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		if err != nil && err != io.EOF {
			// Keep whatever was read so a retry does not lose data.
			b.pending = append(b.pending, buf[:n]...)
			return 0, err
		}

		if n == 3 && buf[0] == 0xEF && buf[1] == 0xBB && buf[2] == 0xBF {
			// BOM found, drop it
		} else {
			b.pending = append(b.pending, buf[:n]...)
		}
	}

	if len(b.pending) > 0 {
		n := copy(p, b.pending)
		b.pending = b.pending[n:]
		return n, nil
	}

	return b.reader.Read(p)
}
