// Package csvgrid holds the in-memory grid representation used by the BOQ
// editor: a CSV codec that round-trips raw cell text, and an editor that
// protects a fixed count of leading header rows from structural edits.
//
// The codec is deliberately not encoding/csv. The editor needs byte-faithful
// cells (no RFC 4180 normalization, no bare-quote errors on user-edited
// text) and must accept quoted fields containing newlines. Server-side
// list exports still go through encoding/csv; this package only serves the
// grid editor round-trip.
package csvgrid

import "strings"

// Grid is an ordered sequence of rows of string cells.
type Grid [][]string

// parser states for Parse.
const (
	stateUnquoted = iota
	stateQuoted
	stateQuoteInQuoted // saw a quote inside a quoted field; next char decides
)

// Parse converts delimited text into a Grid using an explicit character
// scanner. Quoted fields may contain commas, doubled quotes and newlines.
// A quote appearing mid-field in unquoted context is kept verbatim rather
// than rejected. Empty input yields a zero-row Grid. An empty line yields
// a single empty cell, so every parsed row has at least one cell.
func Parse(text string) Grid {
	if text == "" {
		return Grid{}
	}
	var (
		grid  Grid
		row   []string
		cell  strings.Builder
		state = stateUnquoted
	)
	endCell := func() {
		row = append(row, cell.String())
		cell.Reset()
	}
	endRow := func() {
		endCell()
		grid = append(grid, row)
		row = nil
	}
	chars := []rune(text)
	for i := 0; i < len(chars); i++ {
		c := chars[i]
		switch state {
		case stateUnquoted:
			switch c {
			case '"':
				if cell.Len() == 0 {
					state = stateQuoted
				} else {
					cell.WriteRune(c)
				}
			case ',':
				endCell()
			case '\r':
				// swallow the CR of a CRLF pair; keep a lone CR
				if i+1 < len(chars) && chars[i+1] == '\n' {
					continue
				}
				cell.WriteRune(c)
			case '\n':
				endRow()
			default:
				cell.WriteRune(c)
			}
		case stateQuoted:
			if c == '"' {
				state = stateQuoteInQuoted
			} else {
				cell.WriteRune(c)
			}
		case stateQuoteInQuoted:
			switch c {
			case '"':
				cell.WriteRune('"')
				state = stateQuoted
			case ',':
				endCell()
				state = stateUnquoted
			case '\r':
				state = stateUnquoted
				if i+1 < len(chars) && chars[i+1] == '\n' {
					continue
				}
				cell.WriteRune(c)
			case '\n':
				endRow()
				state = stateUnquoted
			default:
				// stray text after a closing quote; keep it
				cell.WriteRune(c)
				state = stateUnquoted
			}
		}
	}
	// flush the final cell/row when input does not end with a newline
	if cell.Len() > 0 || len(row) > 0 || state != stateUnquoted {
		endRow()
	}
	return grid
}

// Encode serializes a Grid to CSV text. A cell is quoted when it contains a
// comma, a double quote or a newline; internal quotes are doubled. Rows are
// newline-joined with a trailing newline. Parse(Encode(g)) reproduces g.
func Encode(g Grid) string {
	var b strings.Builder
	for _, row := range g {
		for i, cell := range row {
			if i > 0 {
				b.WriteByte(',')
			}
			if strings.ContainsAny(cell, ",\"\r\n") {
				b.WriteByte('"')
				b.WriteString(strings.ReplaceAll(cell, `"`, `""`))
				b.WriteByte('"')
			} else {
				b.WriteString(cell)
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Clone returns a deep copy of the grid.
func (g Grid) Clone() Grid {
	out := make(Grid, len(g))
	for i, row := range g {
		out[i] = append([]string(nil), row...)
	}
	return out
}
