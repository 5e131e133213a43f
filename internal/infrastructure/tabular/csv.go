package tabular

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	domain "github.com/mohammadpnp/school-import/internal/domain/school"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

const sniffSize = 64 * 1024

type csvReader struct {
	r      *csv.Reader
	header []string
}

func newCSVReader(src io.Reader) (*csvReader, error) {
	br := bufio.NewReaderSize(src, sniffSize)
	stripUTF8BOM(br)

	head, err := br.Peek(sniffSize)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	var decoded io.Reader = br
	sample := head
	if len(head) == sniffSize {
		sample = trimPartialRune(head)
	}
	if !utf8.Valid(sample) {
		// Spreadsheet exports from Brazilian office suites are commonly Latin-1.
		decoded = transform.NewReader(br, charmap.ISO8859_1.NewDecoder())
	}

	r := csv.NewReader(decoded)
	r.Comma = sniffDelimiter(head)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: missing header", domain.ErrInvalidFormat)
		}
		return nil, fmt.Errorf("%w: read header: %v", domain.ErrInvalidFormat, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(decodeCell(header[i]))
	}

	return &csvReader{r: r, header: header}, nil
}

func (c *csvReader) Header() []string {
	return c.header
}

func (c *csvReader) Next() ([]string, error) {
	for {
		row, err := c.r.Read()
		if err != nil {
			return nil, err
		}
		if blankRow(row) {
			continue
		}
		for i := range row {
			row[i] = decodeCell(row[i])
		}
		return row, nil
	}
}

// decodeCell reads a cell that is not valid UTF-8 as ISO-8859-1. The sniff
// window only decides the encoding of the whole stream, so Latin-1 bytes
// appearing after it are fixed here.
func decodeCell(cell string) string {
	if utf8.ValidString(cell) {
		return cell
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().String(cell)
	if err != nil {
		return strings.ToValidUTF8(cell, "\uFFFD")
	}
	return decoded
}

func (c *csvReader) Close() error {
	return nil
}

func stripUTF8BOM(r *bufio.Reader) {
	b, err := r.Peek(3)
	if err == nil && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		_, _ = r.Discard(3)
	}
}

// sniffDelimiter picks ';' when the header line has more semicolons than
// commas, which is what pt-BR locales export.
func sniffDelimiter(head []byte) rune {
	line := head
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		line = head[:i]
	}
	if bytes.Count(line, []byte{';'}) > bytes.Count(line, []byte{','}) {
		return ';'
	}
	return ','
}

// trimPartialRune drops a multi-byte rune cut off by the sniff window.
func trimPartialRune(b []byte) []byte {
	for i := 0; i < utf8.UTFMax-1 && len(b) > 0; i++ {
		if utf8.Valid(b) {
			return b
		}
		b = b[:len(b)-1]
	}
	return b
}
