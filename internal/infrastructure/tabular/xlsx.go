package tabular

import (
	"fmt"
	"io"
	"strings"

	domain "github.com/mohammadpnp/school-import/internal/domain/school"
	"github.com/xuri/excelize/v2"
)

// xlsxReader streams the first worksheet of a workbook.
type xlsxReader struct {
	file   *excelize.File
	rows   *excelize.Rows
	header []string
}

func newXLSXReader(src io.Reader) (*xlsxReader, error) {
	f, err := excelize.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook: %v", domain.ErrInvalidFormat, err)
	}

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		_ = f.Close()
		return nil, fmt.Errorf("%w: workbook has no sheets", domain.ErrInvalidFormat)
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: read sheet %s: %v", domain.ErrInvalidFormat, sheets[0], err)
	}

	x := &xlsxReader{file: f, rows: rows}
	header, err := x.Next()
	if err != nil {
		_ = x.Close()
		if err == io.EOF {
			return nil, fmt.Errorf("%w: missing header", domain.ErrInvalidFormat)
		}
		return nil, err
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	x.header = header

	return x, nil
}

func (x *xlsxReader) Header() []string {
	return x.header
}

func (x *xlsxReader) Next() ([]string, error) {
	for x.rows.Next() {
		cells, err := x.rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("read xlsx row: %w", err)
		}
		if !blankRow(cells) {
			return cells, nil
		}
	}
	if err := x.rows.Error(); err != nil {
		return nil, fmt.Errorf("iterate xlsx rows: %w", err)
	}
	return nil, io.EOF
}

func (x *xlsxReader) Close() error {
	rowsErr := x.rows.Close()
	if err := x.file.Close(); err != nil {
		return err
	}
	return rowsErr
}
