package grid

import "fmt"

// MalformedOffsetError reports a style string without a terminated translate clause
type MalformedOffsetError struct {
	Style string
}

func (e *MalformedOffsetError) Error() string {
	return fmt.Sprintf("grid: malformed offset: no \");\" in style %q", e.Style)
}

// EmptyGridError reports that no valid tiles were discovered
type EmptyGridError struct{}

func (e *EmptyGridError) Error() string {
	return "grid: no tiles found"
}

// GridMismatchError reports a tile count that does not fill the inferred grid
type GridMismatchError struct {
	Columns int
	Rows    int
	Tiles   int
}

func (e *GridMismatchError) Error() string {
	return fmt.Sprintf("grid: %d tiles do not fill %d columns x %d rows (want %d)",
		e.Tiles, e.Columns, e.Rows, e.Columns*e.Rows)
}

// IrregularLatticeError reports a column or row that is not fully populated
type IrregularLatticeError struct {
	Axis   string // "column" or "row"
	Offset int    // x for a column, y for a row
	Count  int
	Want   int
}

func (e *IrregularLatticeError) Error() string {
	return fmt.Sprintf("grid: irregular lattice: %s at offset %d has %d tiles, want %d",
		e.Axis, e.Offset, e.Count, e.Want)
}
