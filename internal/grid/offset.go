// Package grid turns per-tile pixel translations into a row/column topology
// and reorders tiles between the page's discovery order and compositing order.
package grid

import (
	"strconv"
	"strings"
)

const (
	clauseEnd   = ");"
	clauseStart = "translate3d("
)

// Offset is the pixel position of a tile's top-left corner in the mosaic
type Offset struct {
	X int
	Y int
}

// ParseOffset extracts the (x, y) translation from a raw style string such as
// "transform: translate3d(50px, 120px, 0px);". The depth component is ignored.
//
// ok is false when the style carries no usable translation; that is not an
// error since viewer chrome has no offset. A style lacking ");" is malformed.
func ParseOffset(style string) (off Offset, ok bool, err error) {
	end := strings.Index(style, clauseEnd)
	if end < 0 {
		return Offset{}, false, &MalformedOffsetError{Style: style}
	}

	clause := style[:end]
	start := strings.LastIndex(clause, clauseStart)
	if start < 0 {
		return Offset{}, false, nil
	}
	args := strings.Split(clause[start+len(clauseStart):], ",")
	if len(args) > 2 {
		args = args[:2]
	}

	ints := scanInts(strings.Join(args, ","))
	if len(ints) < 2 {
		return Offset{}, false, nil
	}
	return Offset{X: ints[0], Y: ints[1]}, true, nil
}

// scanInts returns every run of ASCII digits in s. Anything else separates runs.
func scanInts(s string) []int {
	var out []int
	start := -1
	for i := 0; i <= len(s); i++ {
		digit := i < len(s) && s[i] >= '0' && s[i] <= '9'
		switch {
		case digit && start < 0:
			start = i
		case !digit && start >= 0:
			n, err := strconv.Atoi(s[start:i])
			if err == nil {
				out = append(out, n)
			}
			start = -1
		}
	}
	return out
}
