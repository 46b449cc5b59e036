package grid

import "sort"

// Topology is the inferred shape of the tile grid
type Topology struct {
	Columns int
	Rows    int
}

// Cells returns the number of tiles the grid holds
func (t Topology) Cells() int {
	return t.Columns * t.Rows
}

// Infer counts the distinct x and y offsets. It does not care about ordering
// or spacing; Check is the consistency guard.
func Infer(offsets []Offset) (Topology, error) {
	if len(offsets) == 0 {
		return Topology{}, &EmptyGridError{}
	}

	xs := make(map[int]struct{})
	ys := make(map[int]struct{})
	for _, o := range offsets {
		xs[o.X] = struct{}{}
		ys[o.Y] = struct{}{}
	}

	t := Topology{Columns: len(xs), Rows: len(ys)}
	if t.Columns == 0 {
		return Topology{}, &EmptyGridError{}
	}
	return t, nil
}

// Check verifies that offsets exactly fill the topology: the tile count must
// equal Columns*Rows, and every column and row must be fully populated.
func (t Topology) Check(offsets []Offset) error {
	if len(offsets) != t.Cells() {
		return &GridMismatchError{Columns: t.Columns, Rows: t.Rows, Tiles: len(offsets)}
	}

	perColumn := make(map[int]int)
	perRow := make(map[int]int)
	for _, o := range offsets {
		perColumn[o.X]++
		perRow[o.Y]++
	}

	// Walk keys in order so the reported offender is deterministic.
	for _, x := range sortedKeys(perColumn) {
		if perColumn[x] != t.Rows {
			return &IrregularLatticeError{Axis: "column", Offset: x, Count: perColumn[x], Want: t.Rows}
		}
	}
	for _, y := range sortedKeys(perRow) {
		if perRow[y] != t.Columns {
			return &IrregularLatticeError{Axis: "row", Offset: y, Count: perRow[y], Want: t.Columns}
		}
	}
	return nil
}

func sortedKeys(m map[int]int) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
