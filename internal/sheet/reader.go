package sheet

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// ErrUnreadable is returned when a document cannot be opened or parsed.
var ErrUnreadable = errors.New("document unreadable")

// utf8BOM is the byte order mark Excel prepends to CSV exports.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Open reads the document at path.
func Open(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	defer f.Close()

	return Read(filepath.Base(path), f)
}

// Read parses a document from r. The name selects the compression and
// tabular format by extension.
func Read(name string, r io.Reader) (*Document, error) {
	comp, inner := DetectCompression(name)
	format, ok := DetectFormat(inner)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported file type %q", ErrUnreadable, name)
	}

	dr, closeFn, err := decompress(r, comp)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	defer closeFn()

	var doc *Document
	switch format {
	case FormatXLSX:
		doc, err = readXLSX(inner, dr)
	case FormatTSV:
		doc, err = readDelimited(inner, dr, '\t')
	default:
		doc, err = readDelimited(inner, dr, ',')
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnreadable, name, err)
	}
	return doc, nil
}

// readXLSX loads every worksheet in workbook order.
func readXLSX(name string, r io.Reader) (*Document, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	names := f.GetSheetList()
	if len(names) == 0 {
		return nil, errors.New("workbook has no sheets")
	}

	sheets := make([]*Sheet, 0, len(names))
	for _, sheetName := range names {
		raw, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", sheetName, err)
		}

		rows := make([]Row, len(raw))
		for i, r := range raw {
			rows[i] = toRow(r)
		}

		first, last := 0, -1
		if dim, err := f.GetSheetDimension(sheetName); err == nil {
			first, last = dimensionColumns(dim)
		}
		sheets = append(sheets, NewSheetRange(sheetName, rows, first, last))
	}

	return NewDocument(name, sheets...), nil
}

// dimensionColumns converts a dimension reference like "B1:F20" into a
// zero-based inclusive column range. Unparseable references yield [0, -1],
// which leaves the range to be derived from the data.
func dimensionColumns(ref string) (first, last int) {
	parts := strings.Split(ref, ":")
	if len(parts) != 2 {
		return 0, -1
	}
	c1, _, err := excelize.CellNameToCoordinates(parts[0])
	if err != nil {
		return 0, -1
	}
	c2, _, err := excelize.CellNameToCoordinates(parts[1])
	if err != nil {
		return 0, -1
	}
	return c1 - 1, c2 - 1
}

// readDelimited loads a CSV or TSV stream as a single-sheet document.
func readDelimited(name string, r io.Reader, comma rune) (*Document, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var rows []Row
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse line %d: %w", len(rows)+1, err)
		}
		rows = append(rows, toRow(rec))
	}
	if len(rows) == 0 {
		return nil, errors.New("empty file")
	}

	base := strings.TrimSuffix(name, filepath.Ext(name))
	return NewDocument(name, NewSheet(base, rows)), nil
}

func toRow(values []string) Row {
	row := make(Row, len(values))
	for i, v := range values {
		if !utf8.ValidString(v) {
			v = strings.ToValidUTF8(v, "�")
		}
		row[i] = FromString(v)
	}
	return row
}
