package core

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/JonMunkholm/datasheet/internal/sheet"
)

// DefaultExclusionKeyword marks headers whose cells hold option-type trees.
const DefaultExclusionKeyword = "option_type"

// ColumnTag classifies one in-range column of a sheet.
type ColumnTag struct {
	Index   int    // Column index in the row
	Header  string // Trimmed header text ("" for a blank header)
	Keyword string // Matched exclusion keyword; empty for attribute columns
}

// IsExclusion reports whether the column is routed to an exception handler.
func (t ColumnTag) IsExclusion() bool {
	return t.Keyword != ""
}

// String renders the tag as "attribute" or "exclusion:<keyword>".
func (t ColumnTag) String() string {
	if t.IsExclusion() {
		return "exclusion:" + t.Keyword
	}
	return "attribute"
}

// Classifier partitions header columns into attribute and exclusion columns.
type Classifier struct {
	keywords []string
	fold     cases.Caser
}

// NewClassifier returns a classifier for the given exclusion keywords.
// Keywords are matched as case-insensitive substrings under Unicode case
// folding; blanks and duplicates are dropped. With no keywords,
// DefaultExclusionKeyword is used.
func NewClassifier(keywords ...string) *Classifier {
	seen := make(map[string]bool)
	c := &Classifier{fold: cases.Fold()}
	for _, kw := range keywords {
		kw = c.fold.String(strings.TrimSpace(kw))
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		c.keywords = append(c.keywords, kw)
	}
	if len(c.keywords) == 0 {
		c.keywords = []string{DefaultExclusionKeyword}
	}
	return c
}

// Keywords returns the registered exclusion keywords in match order.
func (c *Classifier) Keywords() []string {
	return append([]string(nil), c.keywords...)
}

// Match returns the first keyword contained in header.
func (c *Classifier) Match(header string) (string, bool) {
	h := c.fold.String(header)
	for _, kw := range c.keywords {
		if strings.Contains(h, kw) {
			return kw, true
		}
	}
	return "", false
}

// ClassifyHeaders tags every column in [first, last].
func (c *Classifier) ClassifyHeaders(header sheet.Row, first, last int) []ColumnTag {
	if last < first {
		return nil
	}
	tags := make([]ColumnTag, 0, last-first+1)
	for i := first; i <= last; i++ {
		name := headerName(header.At(i))
		tag := ColumnTag{Index: i, Header: name}
		if name != "" {
			if kw, ok := c.Match(name); ok {
				tag.Keyword = kw
			}
		}
		tags = append(tags, tag)
	}
	return tags
}

// SplitRow copies the row's populated cells into an AttributeSet keyed by
// header and an ExceptionSet of exclusion cells. The two never overlap.
// Cells under a blank header have no attribute name and are dropped.
func SplitRow(tags []ColumnTag, row sheet.Row) (Attributes, Exceptions) {
	attrs := make(Attributes)
	var exceptions Exceptions

	for _, tag := range tags {
		cell := row.At(tag.Index)
		if !cell.Valid {
			continue
		}
		if tag.IsExclusion() {
			exceptions = append(exceptions, Exception{
				Keyword: tag.Keyword,
				Header:  tag.Header,
				Raw:     cell.Text,
			})
			continue
		}
		if tag.Header == "" {
			continue
		}
		attrs[tag.Header] = cell.Text
	}

	return attrs, exceptions
}

// headerName returns the trimmed header text of a cell.
func headerName(c sheet.Cell) string {
	if !c.Valid {
		return ""
	}
	return strings.TrimSpace(c.Text)
}
