// Package extract implements the document extraction stages: the pipe-table
// parser and the theory digest. Parsing is pure and synchronous; the digest
// optionally consults the model through the bounded invoker.
package extract

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"docsift/internal/logging"
	"docsift/internal/pipeline"
)

// TableRecord is one extracted pipe table: a header row, content rows, and
// the document line span it was read from. Every kept row has the same cell
// count as the headers; mismatched fragments are dropped during parsing.
type TableRecord struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
	Span    [2]int     `json:"span"` // inclusive start/end line, zero-based
}

// parser states for the linear scan.
const (
	stateSeeking = iota
	stateInTable
)

// isTableLine reports whether a trimmed line is part of a pipe table: at
// least two pipe characters.
func isTableLine(line string) bool {
	return strings.Count(strings.TrimSpace(line), "|") >= 2
}

// isSeparatorLine reports whether a table line is a GFM separator row: only
// dashes, colons, pipes, and whitespace.
func isSeparatorLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	for _, r := range trimmed {
		switch r {
		case '-', ':', '|', ' ', '\t':
		default:
			return false
		}
	}
	return true
}

// splitCells derives cells from a table line: trim, strip the leading and
// optional trailing pipe, split on internal pipes, trim each cell.
func splitCells(line string) []string {
	trimmed := strings.TrimSpace(line)
	trimmed = strings.TrimPrefix(trimmed, "|")
	trimmed = strings.TrimSuffix(trimmed, "|")
	parts := strings.Split(trimmed, "|")
	cells := make([]string, len(parts))
	for i, p := range parts {
		cells[i] = strings.TrimSpace(p)
	}
	return cells
}

// ParseTables scans the document for pipe tables in a single pass. Malformed
// fragments (rows whose cell count disagrees with the header row) are dropped
// with a warning and the scan continues; a table cut off by end of document
// is still emitted. Tables never overlap. Documents without pipes yield an
// empty list.
func ParseTables(doc pipeline.Document) ([]TableRecord, []string) {
	lines := doc.Lines()
	var tables []TableRecord
	var warnings []string

	state := stateSeeking
	var current TableRecord
	var start int

	flush := func(end int) {
		if len(current.Headers) > 0 && len(current.Rows) > 0 {
			current.Span = [2]int{start, end}
			tables = append(tables, current)
		} else if len(current.Headers) > 0 {
			warnings = append(warnings,
				fmt.Sprintf("table at line %d has no content rows, discarded", start+1))
		}
		current = TableRecord{}
	}

	for i, line := range lines {
		switch state {
		case stateSeeking:
			if !isTableLine(line) {
				continue
			}
			state = stateInTable
			start = i
			fallthrough
		case stateInTable:
			if !isTableLine(line) {
				flush(i - 1)
				state = stateSeeking
				continue
			}
			if isSeparatorLine(line) {
				continue
			}
			cells := splitCells(line)
			if current.Headers == nil {
				current.Headers = cells
				continue
			}
			if len(cells) != len(current.Headers) {
				warnings = append(warnings,
					fmt.Sprintf("line %d: row has %d cells, header has %d, dropped",
						i+1, len(cells), len(current.Headers)))
				continue
			}
			current.Rows = append(current.Rows, cells)
		}
	}
	if state == stateInTable {
		flush(len(lines) - 1)
	}

	return tables, warnings
}

// RenderTable writes a record back out as a canonical GFM pipe table, used
// when formatting tables into prompts. Parsing the rendered text yields the
// same headers and rows.
func RenderTable(t TableRecord) string {
	var b strings.Builder
	writeRow := func(cells []string) {
		b.WriteString("|")
		for _, c := range cells {
			b.WriteString(" ")
			b.WriteString(c)
			b.WriteString(" |")
		}
		b.WriteString("\n")
	}
	writeRow(t.Headers)
	b.WriteString("|")
	for range t.Headers {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for _, row := range t.Rows {
		writeRow(row)
	}
	return b.String()
}

// TableParser is the stage wrapper around ParseTables.
type TableParser struct{}

// NewTableParser creates the table extraction stage.
func NewTableParser() *TableParser {
	return &TableParser{}
}

// Key returns the stage's envelope key.
func (p *TableParser) Key() string {
	return "tables"
}

// Invoke extracts every table from the envelope's document. The result is ok
// even when no table was found; parse warnings are carried in diagnostics.
func (p *TableParser) Invoke(ctx context.Context, env *pipeline.Envelope) pipeline.StageResult {
	tables, warnings := ParseTables(env.Document())

	diags := map[string]string{
		"table_count": strconv.Itoa(len(tables)),
	}
	if len(warnings) > 0 {
		diags["parse_warnings"] = strings.Join(warnings, "; ")
	}

	logging.Get(logging.CategoryExtract).Debug("tables extracted",
		zap.Int("count", len(tables)),
		zap.Int("warnings", len(warnings)))

	return pipeline.StageResult{
		Kind:        pipeline.KindTableSet,
		Payload:     tables,
		Status:      pipeline.StatusOK,
		Diagnostics: diags,
	}
}
