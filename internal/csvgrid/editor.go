package csvgrid

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange reports a cell or row index outside the grid.
	ErrOutOfRange = errors.New("index out of range")
	// ErrHeaderProtected reports an attempt to delete a header row.
	ErrHeaderProtected = errors.New("row is header-protected")
)

// Editor mutates a Grid under one invariant: rows before HeaderBoundary are
// structural headers. Their cells may be edited but the rows themselves can
// never be deleted.
type Editor struct {
	grid           Grid
	headerBoundary int
}

// NewEditor wraps a grid with the given count of protected leading rows.
// A negative boundary is treated as zero.
func NewEditor(g Grid, headerBoundary int) *Editor {
	if headerBoundary < 0 {
		headerBoundary = 0
	}
	return &Editor{grid: g, headerBoundary: headerBoundary}
}

// FromCSV parses text and wraps the result in an Editor.
func FromCSV(text string, headerBoundary int) *Editor {
	return NewEditor(Parse(text), headerBoundary)
}

// Grid returns the underlying grid.
func (e *Editor) Grid() Grid { return e.grid }

// HeaderBoundary returns the count of protected leading rows.
func (e *Editor) HeaderBoundary() int { return e.headerBoundary }

// Rows returns the row count.
func (e *Editor) Rows() int { return len(e.grid) }

// Cols returns the width of row 0, or 0 for an empty grid.
func (e *Editor) Cols() int {
	if len(e.grid) == 0 {
		return 0
	}
	return len(e.grid[0])
}

// Cell returns the cell at row, col.
func (e *Editor) Cell(row, col int) (string, error) {
	if row < 0 || row >= len(e.grid) || col < 0 || col >= len(e.grid[row]) {
		return "", fmt.Errorf("cell %d,%d: %w", row, col, ErrOutOfRange)
	}
	return e.grid[row][col], nil
}

// SetCell replaces one cell. Header rows accept cell edits; only their
// deletion is forbidden.
func (e *Editor) SetCell(row, col int, value string) error {
	if row < 0 || row >= len(e.grid) || col < 0 || col >= len(e.grid[row]) {
		return fmt.Errorf("cell %d,%d: %w", row, col, ErrOutOfRange)
	}
	e.grid[row][col] = value
	return nil
}

// AppendRow appends an empty row of the same width as row 0, or width 1
// when the grid is empty.
func (e *Editor) AppendRow() {
	width := 1
	if len(e.grid) > 0 {
		width = len(e.grid[0])
	}
	e.grid = append(e.grid, make([]string, width))
}

// DeleteRow removes the row at the given index. Rows before the header
// boundary are never removed.
func (e *Editor) DeleteRow(row int) error {
	if row < 0 || row >= len(e.grid) {
		return fmt.Errorf("row %d: %w", row, ErrOutOfRange)
	}
	if row < e.headerBoundary {
		return fmt.Errorf("row %d: %w", row, ErrHeaderProtected)
	}
	e.grid = append(e.grid[:row], e.grid[row+1:]...)
	return nil
}

// CSV serializes the grid.
func (e *Editor) CSV() string { return Encode(e.grid) }

// BulkPayload builds the workbook-export tuple for this grid.
func (e *Editor) BulkPayload(recordID, label string) Payload {
	return Payload{RecordID: recordID, Label: label, Grid: e.grid}
}
