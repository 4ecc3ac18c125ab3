package pipeline

import "strings"

// Document is an immutable ordered sequence of lines. It is the source of
// every extraction and is never mutated after construction; accessors hand
// out copies so stages cannot alias the backing slice.
type Document struct {
	lines []string
}

// NewDocument splits raw text into lines. Both LF and CRLF endings are
// accepted; line content keeps its original whitespace.
func NewDocument(text string) Document {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	return Document{lines: strings.Split(normalized, "\n")}
}

// Lines returns a copy of the document's lines.
func (d Document) Lines() []string {
	out := make([]string, len(d.lines))
	copy(out, d.lines)
	return out
}

// Prefix returns a copy of the first n lines, or all lines when the document
// is shorter.
func (d Document) Prefix(n int) []string {
	if n > len(d.lines) {
		n = len(d.lines)
	}
	if n < 0 {
		n = 0
	}
	out := make([]string, n)
	copy(out, d.lines[:n])
	return out
}

// Len returns the number of lines.
func (d Document) Len() int {
	return len(d.lines)
}

// Text reassembles the document as a single string.
func (d Document) Text() string {
	return strings.Join(d.lines, "\n")
}

// IsBlank reports whether the document contains only whitespace.
func (d Document) IsBlank() bool {
	for _, line := range d.lines {
		if strings.TrimSpace(line) != "" {
			return false
		}
	}
	return true
}
