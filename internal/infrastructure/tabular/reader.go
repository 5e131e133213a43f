// Package tabular reads uploaded spreadsheets row by row.
package tabular

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	domain "github.com/mohammadpnp/school-import/internal/domain/school"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// RowReader yields data rows after the header. Rows whose cells are all blank
// are skipped so row offsets stay stable between invocations.
type RowReader interface {
	Header() []string
	Next() ([]string, error)
	Close() error
}

// DetectFormat sniffs the first bytes of an upload, falling back to the file
// extension for plain text that the sniffer cannot classify.
func DetectFormat(fileName string, head []byte) (Format, error) {
	mt := mimetype.Detect(head)
	switch {
	case mt.Is(xlsxMIME):
		return FormatXLSX, nil
	case mt.Is("text/csv"):
		return FormatCSV, nil
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	switch {
	case ext == ".xlsx" && mt.Is("application/zip"):
		return FormatXLSX, nil
	case ext == ".csv" || ext == ".txt":
		if strings.HasPrefix(mt.String(), "text/") {
			return FormatCSV, nil
		}
	}

	return "", fmt.Errorf("%w: unsupported file %q (%s)", domain.ErrInvalidFormat, fileName, mt.String())
}

// Open reads the header of r and returns a reader positioned at the first data row.
func Open(format Format, r io.Reader) (RowReader, error) {
	switch format {
	case FormatCSV:
		return newCSVReader(r)
	case FormatXLSX:
		return newXLSXReader(r)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", domain.ErrInvalidFormat, format)
	}
}

// Skip discards n data rows. Reaching the end early is not an error.
func Skip(r RowReader, n int64) error {
	for i := int64(0); i < n; i++ {
		if _, err := r.Next(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
	return nil
}

// CountRows consumes r and returns the number of data rows.
func CountRows(r RowReader) (int64, error) {
	var n int64
	for {
		_, err := r.Next()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
	}
}

func blankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
