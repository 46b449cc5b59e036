package grid

// The page streams tiles down each column before moving right, so discovery
// order is vertical-major: index = column*Rows + row. Compositing walks the
// grid left to right, top to bottom.

// RowMajor reorders a vertical-major list into row-major order.
func RowMajor[T any](vertical []T, t Topology) ([]T, error) {
	if len(vertical) != t.Cells() {
		return nil, &GridMismatchError{Columns: t.Columns, Rows: t.Rows, Tiles: len(vertical)}
	}

	out := make([]T, 0, len(vertical))
	for row := 0; row < t.Rows; row++ {
		for col := 0; col < t.Columns; col++ {
			out = append(out, vertical[col*t.Rows+row])
		}
	}
	return out, nil
}

// VerticalMajor is the inverse of RowMajor.
func VerticalMajor[T any](rowMajor []T, t Topology) ([]T, error) {
	if len(rowMajor) != t.Cells() {
		return nil, &GridMismatchError{Columns: t.Columns, Rows: t.Rows, Tiles: len(rowMajor)}
	}

	out := make([]T, 0, len(rowMajor))
	for col := 0; col < t.Columns; col++ {
		for row := 0; row < t.Rows; row++ {
			out = append(out, rowMajor[row*t.Columns+col])
		}
	}
	return out, nil
}
