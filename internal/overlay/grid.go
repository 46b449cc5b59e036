package overlay

import (
	"image"
	"image/color"

	"github.com/v0xg/artgrab/internal/compose"
)

// LineColor is the default colour of tile boundaries
var LineColor = color.NRGBA{255, 0, 255, 255}

// DrawGrid draws every cell boundary of layout onto img, including the outer
// frame. Used to eyeball seams when a mosaic looks misaligned.
func DrawGrid(img *image.NRGBA, layout compose.Layout, c color.Color) {
	if c == nil {
		c = LineColor
	}
	nc := color.NRGBAModel.Convert(c).(color.NRGBA)

	lastX := max(layout.Width-1, 0)
	lastY := max(layout.Height-1, 0)

	for _, x := range layout.XOrigins {
		x = min(x, lastX)
		drawLine(img, x, 0, x, lastY, nc)
	}
	for _, y := range layout.YOrigins {
		y = min(y, lastY)
		drawLine(img, 0, y, lastX, y, nc)
	}
}

// drawLine draws a line between two points using Bresenham's algorithm
func drawLine(img *image.NRGBA, x1, y1, x2, y2 int, c color.NRGBA) {
	dx := abs(x2 - x1)
	dy := abs(y2 - y1)
	sx := 1
	if x1 > x2 {
		sx = -1
	}
	sy := 1
	if y1 > y2 {
		sy = -1
	}
	err := dx - dy

	for {
		setPixelSafe(img, x1, y1, c)
		if x1 == x2 && y1 == y2 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

func setPixelSafe(img *image.NRGBA, x, y int, c color.NRGBA) {
	if (image.Point{x, y}).In(img.Bounds()) {
		img.SetNRGBA(x, y, c)
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
