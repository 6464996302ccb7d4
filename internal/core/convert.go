package core

// convert.go turns spreadsheet cell text into typed column values.
//
// These functions handle the messy reality of user-provided sheet data:
//   - Multiple date formats (US, EU, ISO) and Excel date serial numbers
//   - Currency symbols and thousand separators in numbers
//   - Various boolean representations (yes/no, true/false, 1/0)
//   - Excel formula prefixes (="value")
//
// Parse* functions report ok=false for empty or invalid input.

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would result in dates more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

// DateLayout is the canonical format dates are written in.
const DateLayout = "2006-01-02"

var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan 2, 2006", "2 Jan 2006",
		"2006-01-02T15:04:05Z07:00",
		"20060102",
	}
)

// ParseNumeric parses a decimal number.
// Handles currency symbols, thousands separators, and accounting format (parentheses for negative).
func ParseNumeric(s string) (float64, bool) {
	s = CleanCell(s)
	if s == "" {
		return 0, false
	}

	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "€", "") // Euro
	s = strings.ReplaceAll(s, "£", "") // Pound
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if isNegative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return 0, false
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseInteger parses a whole number. Spreadsheets frequently store
// integers as floats ("12.0"), which are accepted when they have no
// fractional part.
func ParseInteger(s string) (int64, bool) {
	f, ok := ParseNumeric(s)
	if !ok || f != math.Trunc(f) || math.Abs(f) > math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// ParseDate parses a calendar date.
// Supports multiple date formats, 2-digit years with pivot, and Excel
// date serial numbers as produced by raw cell values.
func ParseDate(s string) (time.Time, bool) {
	s = CleanCell(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}

	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

// ParseBool accepts true/false, yes/no, t/f, y/n, 1/0.
func ParseBool(s string) (bool, bool) {
	switch strings.ToLower(CleanCell(s)) {
	case "true", "t", "yes", "y", "1":
		return true, true
	case "false", "f", "no", "n", "0":
		return false, true
	default:
		return false, false
	}
}

// ConvertValue converts raw cell text into the Go value stored for spec.
// Dates are returned in DateLayout form so every driver stores them alike.
func ConvertValue(spec FieldSpec, raw string) (any, error) {
	if spec.Normalizer != nil {
		raw = spec.Normalizer(raw)
	}

	switch spec.Type {
	case FieldNumeric:
		f, ok := ParseNumeric(raw)
		if !ok {
			return nil, ValidationError{Field: spec.Name, Value: raw, Message: "invalid number format"}
		}
		return f, nil
	case FieldInteger:
		n, ok := ParseInteger(raw)
		if !ok {
			return nil, ValidationError{Field: spec.Name, Value: raw, Message: "invalid integer"}
		}
		return n, nil
	case FieldDate:
		t, ok := ParseDate(raw)
		if !ok {
			return nil, ValidationError{Field: spec.Name, Value: raw, Message: "invalid date format (use YYYY-MM-DD or similar)"}
		}
		return t.Format(DateLayout), nil
	case FieldBool:
		b, ok := ParseBool(raw)
		if !ok {
			return nil, ValidationError{Field: spec.Name, Value: raw, Message: "must be yes/no, true/false, or 1/0"}
		}
		return b, nil
	default:
		return CleanCell(raw), nil
	}
}

// CleanCell removes common spreadsheet artifacts from a cell value:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.Trim(s, `"'`)
}
