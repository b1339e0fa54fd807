package lexer

import (
	"fmt"
	"strings"
)

// Position locates a token in the source. Line and Column are 1-based,
// Offset is a byte offset.
type Position struct {
	Line   int
	Column int
	Offset int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// SourceLine returns the line of src that p falls on, or "" if p is outside
// src.
func (p Position) SourceLine(src string) string {
	if p.Line < 1 {
		return ""
	}
	lines := strings.SplitN(src, "\n", p.Line+1)
	if p.Line > len(lines) {
		return ""
	}
	return strings.TrimRight(lines[p.Line-1], "\r")
}
