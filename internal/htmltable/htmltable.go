// Package htmltable extracts tabular data from report HTML.
//
// Study reports embed dozens of untagged <table> elements; neither the
// position nor the header text of any table is fixed. Parse returns every
// table in document order as a flat header row plus body rows, leaving role
// recognition to the caller. Multi-level headers (several <tr> rows of <th>
// cells, common on the financial summary tables) are flattened by joining
// the levels for each column with a single space, and colspan cells are
// repeated across the columns they span so header tokens line up with the
// body.
package htmltable

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Table is one <table> element in extraction order.
type Table struct {
	Index   int        // position within the document, 0-based
	Headers []string   // flattened header row
	Rows    [][]string // body rows, padded to len(Headers)
}

// Parse reads an HTML document and returns all tables in document order.
func Parse(r io.Reader) ([]Table, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}

	var tables []Table
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "table" {
			t := parseTable(n)
			t.Index = len(tables)
			tables = append(tables, t)
			// Nested tables are rare in these reports; treat the outer
			// table as authoritative and skip its subtree.
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return tables, nil
}

// tableRow is a raw row before colspan expansion.
type tableRow struct {
	cells    []string
	isHeader bool // every cell was a <th>
}

func parseTable(table *html.Node) Table {
	var rows []tableRow
	var collect func(n *html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			rows = append(rows, parseRow(n))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(table)

	// Leading all-<th> rows form the (possibly multi-level) header. When a
	// table has no <th> cells at all, its first row serves as the header.
	var headerRows [][]string
	bodyStart := 0
	for bodyStart < len(rows) && rows[bodyStart].isHeader {
		headerRows = append(headerRows, rows[bodyStart].cells)
		bodyStart++
	}
	if len(headerRows) == 0 && len(rows) > 0 {
		headerRows = [][]string{rows[0].cells}
		bodyStart = 1
	}

	headers := flattenHeaders(headerRows)

	body := make([][]string, 0, len(rows)-bodyStart)
	for _, row := range rows[bodyStart:] {
		body = append(body, padRow(row.cells, len(headers)))
	}
	return Table{Headers: headers, Rows: body}
}

func parseRow(tr *html.Node) tableRow {
	row := tableRow{isHeader: true}
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || (c.Data != "td" && c.Data != "th") {
			continue
		}
		if c.Data == "td" {
			row.isHeader = false
		}
		text := strings.Join(strings.Fields(nodeText(c)), " ")
		for i := 0; i < colspan(c); i++ {
			row.cells = append(row.cells, text)
		}
	}
	if len(row.cells) == 0 {
		row.isHeader = false
	}
	return row
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func colspan(n *html.Node) int {
	for _, attr := range n.Attr {
		if attr.Key == "colspan" {
			if v, err := strconv.Atoi(strings.TrimSpace(attr.Val)); err == nil && v > 1 {
				return v
			}
		}
	}
	return 1
}

// flattenHeaders joins multi-level header rows column-wise: the column under
// "Cost Allocated" / "to Project" becomes "Cost Allocated to Project".
// Repeated level text (a colspan parent over an identical child) is not
// duplicated.
func flattenHeaders(levels [][]string) []string {
	width := 0
	for _, level := range levels {
		if len(level) > width {
			width = len(level)
		}
	}
	headers := make([]string, width)
	for col := 0; col < width; col++ {
		var parts []string
		for _, level := range levels {
			if col >= len(level) {
				continue
			}
			text := strings.TrimSpace(level[col])
			if text == "" {
				continue
			}
			if len(parts) > 0 && parts[len(parts)-1] == text {
				continue
			}
			parts = append(parts, text)
		}
		headers[col] = strings.Join(parts, " ")
	}
	return headers
}

func padRow(cells []string, width int) []string {
	if len(cells) >= width {
		return cells
	}
	padded := make([]string, width)
	copy(padded, cells)
	return padded
}

// HeaderText returns all header tokens joined into one string, the form the
// role classifier matches against.
func (t Table) HeaderText() string {
	return strings.Join(t.Headers, " ")
}

// Col returns the index of the first header containing any of the given
// substrings (case-insensitive), or -1 when no header matches.
func (t Table) Col(substrs ...string) int {
	for i, h := range t.Headers {
		lower := strings.ToLower(h)
		for _, sub := range substrs {
			if strings.Contains(lower, strings.ToLower(sub)) {
				return i
			}
		}
	}
	return -1
}

// Cell returns the value at (row, col), or "" when either index is out of
// range. Extractors use it so ragged rows never panic.
func (t Table) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Rows[row]) {
		return ""
	}
	return strings.TrimSpace(t.Rows[row][col])
}
