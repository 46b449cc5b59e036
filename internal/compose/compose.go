package compose

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
)

// Options configures mosaic composition
type Options struct {
	// Background fills cells not covered by a tile. Default: white.
	Background color.Color
}

// Layout describes where each grid cell lands on the canvas
type Layout struct {
	Columns      int
	Rows         int
	ColumnWidths []int // widest tile per column
	RowHeights   []int // tallest tile per row
	XOrigins     []int // len Columns+1, cumulative; last entry is Width
	YOrigins     []int // len Rows+1, cumulative; last entry is Height
	Width        int
	Height       int
}

// Origin returns the paste point of the cell at (row, col)
func (l Layout) Origin(row, col int) image.Point {
	return image.Pt(l.XOrigins[col], l.YOrigins[row])
}

// Plan computes the layout for row-major tiles laid out in the given number of columns
func Plan(tiles []image.Image, columns int) (Layout, error) {
	if columns <= 0 {
		return Layout{}, fmt.Errorf("compose: invalid column count %d", columns)
	}
	if len(tiles) == 0 {
		return Layout{}, fmt.Errorf("compose: no tiles")
	}
	if len(tiles)%columns != 0 {
		return Layout{}, fmt.Errorf("compose: %d tiles do not fill %d columns", len(tiles), columns)
	}

	rows := len(tiles) / columns
	l := Layout{
		Columns:      columns,
		Rows:         rows,
		ColumnWidths: make([]int, columns),
		RowHeights:   make([]int, rows),
	}

	for i, t := range tiles {
		col, row := i%columns, i/columns
		size := t.Bounds().Size()
		l.ColumnWidths[col] = max(l.ColumnWidths[col], size.X)
		l.RowHeights[row] = max(l.RowHeights[row], size.Y)
	}

	l.XOrigins = cumulative(l.ColumnWidths)
	l.YOrigins = cumulative(l.RowHeights)
	l.Width = l.XOrigins[columns]
	l.Height = l.YOrigins[rows]
	return l, nil
}

// Compose pastes row-major tiles onto a single canvas
func Compose(tiles []image.Image, columns int, opts Options) (*image.NRGBA, Layout, error) {
	layout, err := Plan(tiles, columns)
	if err != nil {
		return nil, Layout{}, err
	}
	if opts.Background == nil {
		opts.Background = color.White
	}

	canvas := imaging.New(layout.Width, layout.Height, opts.Background)
	for i, t := range tiles {
		origin := layout.Origin(i/columns, i%columns)
		bounds := t.Bounds()
		draw.Draw(canvas, bounds.Sub(bounds.Min).Add(origin), t, bounds.Min, draw.Src)
	}

	return canvas, layout, nil
}

// Fit scales img down so neither side exceeds maxDimension, keeping aspect ratio.
// Zero disables scaling.
func Fit(img image.Image, maxDimension uint) image.Image {
	if maxDimension == 0 {
		return img
	}
	size := img.Bounds().Size()
	if uint(size.X) <= maxDimension && uint(size.Y) <= maxDimension {
		return img
	}
	return resize.Thumbnail(maxDimension, maxDimension, img, resize.Lanczos3)
}

func cumulative(sizes []int) []int {
	out := make([]int, len(sizes)+1)
	for i, s := range sizes {
		out[i+1] = out[i] + s
	}
	return out
}
