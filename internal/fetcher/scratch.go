package fetcher

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Scratch is a per-run directory holding raw tile bytes for debugging
type Scratch struct {
	dir string
}

// NewScratch creates <base>/<name>-<uuid>. The random suffix keeps
// concurrent runs against the same artwork apart.
func NewScratch(base, name string) (*Scratch, error) {
	if name == "" {
		name = "tiles"
	}
	dir := filepath.Join(base, name+"-"+uuid.Must(uuid.NewV7()).String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("scratch: create %s: %w", dir, err)
	}
	return &Scratch{dir: dir}, nil
}

// Dir returns the scratch directory
func (s *Scratch) Dir() string {
	return s.dir
}

// Path returns the file that holds tile seq
func (s *Scratch) Path(seq int) string {
	return filepath.Join(s.dir, fmt.Sprintf("%d.tile", seq))
}

// Write stores the raw bytes of tile seq
func (s *Scratch) Write(seq int, data []byte) error {
	if err := os.WriteFile(s.Path(seq), data, 0o644); err != nil {
		return fmt.Errorf("scratch: write tile %d: %w", seq, err)
	}
	return nil
}

// Remove deletes the directory and everything in it
func (s *Scratch) Remove() error {
	if s == nil {
		return nil
	}
	return os.RemoveAll(s.dir)
}
