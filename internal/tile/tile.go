package tile

import (
	"context"
	"image"

	"github.com/v0xg/artgrab/internal/grid"
)

// DefaultSkipPrefix is the number of leading image elements that belong to the
// viewer chrome rather than the artwork.
const DefaultSkipPrefix = 3

// Element is one image element on the rendered page
type Element interface {
	// Style returns the raw style attribute
	Style(ctx context.Context) (string, error)
	// Source re-reads the payload reference; empty until the page populates it
	Source(ctx context.Context) (string, error)
}

// Descriptor is an enumerated image element together with its DOM position
type Descriptor struct {
	DOMIndex int
	Element  Element
}

// Decoded is a fetched tile ready for compositing
type Decoded struct {
	Sequence int // position among valid tiles, vertical-major
	DOMIndex int
	Offset   grid.Offset
	Image    image.Image
}

// Describe wraps elements in DOM order and drops the first skip of them
func Describe(elements []Element, skip int) []Descriptor {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(elements) {
		return nil
	}

	descriptors := make([]Descriptor, 0, len(elements)-skip)
	for i := skip; i < len(elements); i++ {
		descriptors = append(descriptors, Descriptor{DOMIndex: i, Element: elements[i]})
	}
	return descriptors
}

// Images extracts the rasters of decoded tiles, preserving order
func Images(tiles []Decoded) []image.Image {
	images := make([]image.Image, len(tiles))
	for i, t := range tiles {
		images[i] = t.Image
	}
	return images
}

// Offsets extracts the offsets of decoded tiles, preserving order
func Offsets(tiles []Decoded) []grid.Offset {
	offsets := make([]grid.Offset, len(tiles))
	for i, t := range tiles {
		offsets[i] = t.Offset
	}
	return offsets
}
