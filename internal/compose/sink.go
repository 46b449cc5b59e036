package compose

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/gosimple/slug"
)

// DefaultQuality is the JPEG quality used when none is configured
const DefaultQuality = 95

// SaveOptions configures how the mosaic is encoded
type SaveOptions struct {
	JPEGQuality int
}

// DefaultFilename derives the output filename from a page title
func DefaultFilename(title string) string {
	name := slug.Make(title)
	if name == "" {
		name = "mosaic"
	}
	return name + ".jpg"
}

// Save encodes img to path, picking the format from the extension. The image
// is written to a temporary file next to path and renamed into place, so a
// failed save leaves nothing behind. Returns the size of the written file.
func Save(img image.Image, path string, opts SaveOptions) (int64, error) {
	format, err := imaging.FormatFromFilename(path)
	if err != nil {
		return 0, fmt.Errorf("save %s: %w", path, err)
	}
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = DefaultQuality
	}

	f, err := os.CreateTemp(filepath.Dir(path), ".artgrab-*"+filepath.Ext(path))
	if err != nil {
		return 0, fmt.Errorf("save %s: %w", path, err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if err := imaging.Encode(f, img, format, imaging.JPEGQuality(opts.JPEGQuality)); err != nil {
		f.Close()
		return 0, fmt.Errorf("encode %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, err
	}

	if err := os.Rename(tmp, path); err != nil {
		return 0, fmt.Errorf("save %s: %w", path, err)
	}
	return info.Size(), nil
}
