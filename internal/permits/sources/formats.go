package sources

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"permit_ingest_backend/internal/permits/domain"
	"permit_ingest_backend/platform/sanitize"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Format is the wire format of a source feed.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatHTML Format = "html"
)

// rowDecoder turns a response body into raw rows. Row-level problems are
// returned as parse errors; a non-nil error means the body is unusable.
type rowDecoder func(body []byte, source domain.Source) ([]domain.RawPayload, []*domain.ParseError, error)

func decoderFor(f Format) (rowDecoder, error) {
	switch f {
	case FormatJSON:
		return decodeJSONRows, nil
	case FormatCSV:
		return decodeCSVRows, nil
	case FormatHTML:
		return decodeHTMLRows, nil
	default:
		return nil, fmt.Errorf("unsupported format %q", f)
	}
}

// decodeJSONRows reads a JSON array of objects, or an object wrapping one
// under "data" or "results".
func decodeJSONRows(body []byte, source domain.Source) ([]domain.RawPayload, []*domain.ParseError, error) {
	body = bytes.TrimSpace(body)
	var elements []json.RawMessage
	if err := json.Unmarshal(body, &elements); err != nil {
		var wrapper map[string]json.RawMessage
		if werr := json.Unmarshal(body, &wrapper); werr != nil {
			return nil, nil, fmt.Errorf("decode json body: %w", err)
		}
		inner, ok := wrapper["data"]
		if !ok {
			inner, ok = wrapper["results"]
		}
		if !ok {
			return nil, nil, errors.New("decode json body: no row array")
		}
		if err := json.Unmarshal(inner, &elements); err != nil {
			return nil, nil, fmt.Errorf("decode json rows: %w", err)
		}
	}

	rows := make([]domain.RawPayload, 0, len(elements))
	var parseErrs []*domain.ParseError
	for i, element := range elements {
		dec := json.NewDecoder(bytes.NewReader(element))
		dec.UseNumber()
		var row map[string]any
		if err := dec.Decode(&row); err != nil || row == nil {
			parseErrs = append(parseErrs, &domain.ParseError{Source: source, Row: i, Reason: "row is not a json object"})
			rows = append(rows, nil)
			continue
		}
		rows = append(rows, domain.RawPayload(row))
	}
	return rows, parseErrs, nil
}

// decodeCSVRows reads CSV text with a header row. Short rows are tolerated;
// extra cells beyond the header are ignored.
func decodeCSVRows(body []byte, source domain.Source) ([]domain.RawPayload, []*domain.ParseError, error) {
	body = bytes.TrimPrefix(body, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(body))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read csv header: %w", err)
	}
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = columnKey(h)
	}

	var rows []domain.RawPayload
	var parseErrs []*domain.ParseError
	for i := 0; ; i++ {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var csvErr *csv.ParseError
		if errors.As(err, &csvErr) {
			parseErrs = append(parseErrs, &domain.ParseError{Source: source, Row: i, Reason: csvErr.Error()})
			rows = append(rows, nil)
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read csv: %w", err)
		}
		rows = append(rows, zipRow(columns, record))
	}
	return rows, parseErrs, nil
}

// decodeHTMLRows reads the first table that has a header row.
func decodeHTMLRows(body []byte, source domain.Source) ([]domain.RawPayload, []*domain.ParseError, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("parse html: %w", err)
	}
	table := findTable(doc)
	if table == nil {
		return nil, nil, errors.New("parse html: no permit table")
	}

	var columns []string
	var rows []domain.RawPayload
	var parseErrs []*domain.ParseError
	index := 0
	walk(table, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.DataAtom != atom.Tr {
			return true
		}
		cells, isHeader := rowCells(n)
		if columns == nil {
			if isHeader {
				columns = make([]string, len(cells))
				for i, c := range cells {
					columns[i] = columnKey(c)
				}
			} else if len(cells) > 0 {
				parseErrs = append(parseErrs, &domain.ParseError{Source: source, Row: index, Reason: "row before header"})
				rows = append(rows, nil)
				index++
			}
			return false
		}
		if len(cells) == 0 {
			return false
		}
		if len(cells) != len(columns) {
			parseErrs = append(parseErrs, &domain.ParseError{Source: source, Row: index, Reason: fmt.Sprintf("expected %d cells, got %d", len(columns), len(cells))})
			rows = append(rows, nil)
		} else {
			rows = append(rows, zipRow(columns, cells))
		}
		index++
		return false
	})
	if columns == nil {
		return nil, nil, errors.New("parse html: table has no header row")
	}
	return rows, parseErrs, nil
}

func findTable(n *html.Node) *html.Node {
	var found *html.Node
	walk(n, func(c *html.Node) bool {
		if found != nil {
			return false
		}
		if c.Type == html.ElementNode && c.DataAtom == atom.Table && hasHeader(c) {
			found = c
			return false
		}
		return true
	})
	return found
}

func hasHeader(table *html.Node) bool {
	header := false
	walk(table, func(c *html.Node) bool {
		if c.Type == html.ElementNode && c.DataAtom == atom.Th {
			header = true
		}
		return !header
	})
	return header
}

// walk visits n and its descendants depth first. fn returns false to skip children.
func walk(n *html.Node, fn func(*html.Node) bool) {
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func rowCells(tr *html.Node) ([]string, bool) {
	var cells []string
	isHeader := false
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.DataAtom {
		case atom.Th:
			isHeader = true
			cells = append(cells, nodeText(c))
		case atom.Td:
			cells = append(cells, nodeText(c))
		}
	}
	return cells, isHeader
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
			b.WriteByte(' ')
		}
		return true
	})
	return sanitize.Text(b.String())
}

func zipRow(columns, values []string) domain.RawPayload {
	row := make(domain.RawPayload, len(columns))
	for i, col := range columns {
		if col == "" {
			continue
		}
		if i < len(values) {
			row[col] = strings.TrimSpace(values[i])
		}
	}
	return row
}

// columnKey turns "Permit #" or "Issue Date" into "permit" and "issue_date".
func columnKey(header string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(header)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimRight(b.String(), "_")
}
