// Package sheet provides a read-only view over parsed spreadsheet documents.
//
// A Document is an ordered list of sheets. Each Sheet is an ordered list of
// rows, and each row an ordered list of nullable cells. Row 0 is always the
// header row. A sheet also carries its used-column range; cells outside that
// range are never reported to callers.
//
// Documents are produced by [Open] (from a path) or [Read] (from a reader).
// Both detect compression (.gz, .bz2, .xz, .zst) and the inner format
// (.xlsx, .xlsm, .csv, .tsv) from the file name.
package sheet

import "strings"

// Cell is a nullable spreadsheet cell value.
// Valid is false for blank cells.
type Cell struct {
	Text  string
	Valid bool
}

// Null is the blank cell.
var Null = Cell{}

// Str returns a populated cell holding s.
func Str(s string) Cell {
	return Cell{Text: s, Valid: true}
}

// FromString converts a raw value read from a file into a cell.
// Empty strings become null.
func FromString(s string) Cell {
	if s == "" {
		return Null
	}
	return Cell{Text: s, Valid: true}
}

// String returns the cell text, or "" for a null cell.
func (c Cell) String() string {
	return c.Text
}

// Is reports whether the cell is populated and equal to s.
func (c Cell) Is(s string) bool {
	return c.Valid && c.Text == s
}

// Row is an ordered sequence of cells.
type Row []Cell

// At returns the cell at column i, or Null if the row is shorter.
func (r Row) At(i int) Cell {
	if i < 0 || i >= len(r) {
		return Null
	}
	return r[i]
}

// Sheet is one worksheet of a document.
type Sheet struct {
	Name string
	rows []Row

	first, last int
}

// NewSheet builds a sheet from rows. The used-column range is derived from
// the populated cells; an empty sheet has range [0, -1].
func NewSheet(name string, rows []Row) *Sheet {
	s := &Sheet{Name: name, rows: rows}
	s.first, s.last = usedColumns(rows)
	return s
}

// NewSheetRange builds a sheet with an explicit used-column range.
// The range is clamped to the populated columns so that a stale
// dimension record cannot widen it.
func NewSheetRange(name string, rows []Row, first, last int) *Sheet {
	s := NewSheet(name, rows)
	if first > s.first {
		s.first = first
	}
	if last >= 0 && last < s.last {
		s.last = last
	}
	return s
}

// Len returns the number of rows, header included.
func (s *Sheet) Len() int {
	return len(s.rows)
}

// Header returns row 0, or nil for an empty sheet.
func (s *Sheet) Header() Row {
	if len(s.rows) == 0 {
		return nil
	}
	return s.rows[0]
}

// Row returns row i. Out of range indices return nil.
func (s *Sheet) Row(i int) Row {
	if i < 0 || i >= len(s.rows) {
		return nil
	}
	return s.rows[i]
}

// Columns returns the inclusive used-column range.
// last < first means the sheet has no populated cells.
func (s *Sheet) Columns() (first, last int) {
	return s.first, s.last
}

// Document is an ordered collection of sheets.
type Document struct {
	Name   string
	sheets []*Sheet
}

// NewDocument builds a document from sheets in order.
func NewDocument(name string, sheets ...*Sheet) *Document {
	return &Document{Name: name, sheets: sheets}
}

// SheetCount returns the number of sheets.
func (d *Document) SheetCount() int {
	return len(d.sheets)
}

// Sheet returns the sheet at index i.
func (d *Document) Sheet(i int) (*Sheet, bool) {
	if i < 0 || i >= len(d.sheets) {
		return nil, false
	}
	return d.sheets[i], true
}

func usedColumns(rows []Row) (first, last int) {
	first, last = -1, -1
	for _, row := range rows {
		for i, c := range row {
			if !c.Valid || strings.TrimSpace(c.Text) == "" {
				continue
			}
			if first == -1 || i < first {
				first = i
			}
			if i > last {
				last = i
			}
		}
	}
	if first == -1 {
		return 0, -1
	}
	return first, last
}
