// Package reconstruct drives one mosaic reconstruction end to end: load the
// page, collect and fetch tiles, infer the grid, composite and save.
package reconstruct

import (
	"cmp"
	"context"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/gosimple/slug"

	"github.com/v0xg/artgrab/internal/compose"
	"github.com/v0xg/artgrab/internal/fetcher"
	"github.com/v0xg/artgrab/internal/grid"
	"github.com/v0xg/artgrab/internal/overlay"
	"github.com/v0xg/artgrab/internal/tile"
)

// Session is a rendering session on one page. Tiles are fetched through the
// same session, so calls are made one at a time.
type Session interface {
	Navigate(ctx context.Context, url string) error
	Title(ctx context.Context) (string, error)
	Images(ctx context.Context) ([]tile.Element, error)
	fetcher.Retriever
	Close() error
}

// Opener starts a fresh session for each attempt
type Opener func(ctx context.Context) (Session, error)

// Options configures a reconstruction
type Options struct {
	URL string

	SettleDelay time.Duration // wait after navigation before reading tiles
	SettleStep  time.Duration // added to SettleDelay on each retry
	MaxRetries  int           // extra attempts after an undecodable tile

	SkipPrefix      int
	PollInterval    time.Duration
	MaxPollAttempts int

	OutputDir      string
	OutputFilename string // empty derives a name from the page title
	ScratchDir     string // empty disables scratch copies
	KeepScratch    bool
	JPEGQuality    int
	MaxDimension   uint
	DebugGrid      bool

	Logger *slog.Logger
}

// Result describes a written mosaic
type Result struct {
	Path     string
	Title    string
	Topology grid.Topology
	Tiles    int
	Width    int
	Height   int
	Bytes    int64
	Attempts int
}

// Engine reconstructs mosaics
type Engine struct {
	open Opener
	opts Options
	log  *slog.Logger
}

// New creates an Engine that opens sessions with open
func New(open Opener, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Engine{open: open, opts: opts, log: opts.Logger}
}

// Run reconstructs the mosaic. An undecodable tile usually means the page had
// not finished loading, so the whole run is repeated with a longer settle
// delay, up to MaxRetries times. Any other error aborts.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	settle := e.opts.SettleDelay
	for attempt := 1; ; attempt++ {
		res, err := e.attempt(ctx, settle)
		if err == nil {
			res.Attempts = attempt
			return res, nil
		}
		if !fetcher.IsRetryable(err) || attempt > e.opts.MaxRetries || ctx.Err() != nil {
			return nil, err
		}

		settle += e.opts.SettleStep
		e.log.Warn("reconstruct: retrying with longer settle delay",
			"attempt", attempt+1, "settle", settle, "error", err)
	}
}

func (e *Engine) attempt(ctx context.Context, settle time.Duration) (*Result, error) {
	session, err := e.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	defer session.Close()

	if err := session.Navigate(ctx, e.opts.URL); err != nil {
		return nil, err
	}
	if err := fetcher.Sleep(ctx, settle); err != nil {
		return nil, err
	}

	title, err := session.Title(ctx)
	if err != nil {
		return nil, err
	}
	elements, err := session.Images(ctx)
	if err != nil {
		return nil, err
	}
	descriptors := tile.Describe(elements, e.opts.SkipPrefix)
	e.log.Info("reconstruct: page loaded", "title", title,
		"images", len(elements), "candidates", len(descriptors))

	var scratch *fetcher.Scratch
	if e.opts.ScratchDir != "" {
		scratch, err = fetcher.NewScratch(e.opts.ScratchDir, slug.Make(title))
		if err != nil {
			return nil, err
		}
		if e.opts.KeepScratch {
			e.log.Info("reconstruct: keeping scratch tiles", "dir", scratch.Dir())
		} else {
			defer scratch.Remove()
		}
	}

	tiles, err := e.collect(ctx, session, descriptors, scratch)
	if err != nil {
		return nil, err
	}

	img, layout, topo, err := Assemble(tiles, compose.Options{})
	if err != nil {
		return nil, err
	}
	e.log.Info("reconstruct: composed", "columns", topo.Columns, "rows", topo.Rows,
		"width", layout.Width, "height", layout.Height)

	if e.opts.DebugGrid {
		overlay.DrawGrid(img, layout, nil)
	}
	out := compose.Fit(img, e.opts.MaxDimension)

	// Nothing is written once the caller has given up.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := e.opts.OutputFilename
	if name == "" {
		name = compose.DefaultFilename(title)
	}
	path := filepath.Join(e.opts.OutputDir, name)
	size, err := compose.Save(out, path, compose.SaveOptions{JPEGQuality: e.opts.JPEGQuality})
	if err != nil {
		return nil, err
	}

	bounds := out.Bounds()
	return &Result{
		Path:     path,
		Title:    title,
		Topology: topo,
		Tiles:    len(tiles),
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		Bytes:    size,
	}, nil
}

// collect parses every candidate's offset and fetches the ones that are tiles
func (e *Engine) collect(ctx context.Context, session Session, descriptors []tile.Descriptor, scratch *fetcher.Scratch) ([]tile.Decoded, error) {
	f := fetcher.New(session, fetcher.Options{
		PollInterval:    e.opts.PollInterval,
		MaxPollAttempts: e.opts.MaxPollAttempts,
		Scratch:         scratch,
		Logger:          e.log,
	})

	var tiles []tile.Decoded
	for _, d := range descriptors {
		style, err := d.Element.Style(ctx)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", d.DOMIndex, err)
		}
		// No style at all: nothing positions it, so it is not a tile.
		if strings.TrimSpace(style) == "" {
			continue
		}

		off, ok, err := grid.ParseOffset(style)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", d.DOMIndex, err)
		}
		if !ok {
			e.log.Debug("reconstruct: skipping image without offset", "image", d.DOMIndex)
			continue
		}

		seq := len(tiles)
		img, err := f.Fetch(ctx, seq, d.Element)
		if err != nil {
			return nil, fmt.Errorf("image %d at (%d, %d): %w", d.DOMIndex, off.X, off.Y, err)
		}
		tiles = append(tiles, tile.Decoded{Sequence: seq, DOMIndex: d.DOMIndex, Offset: off, Image: img})
		e.log.Debug("reconstruct: tile fetched", "tile", seq, "x", off.X, "y", off.Y)
	}

	return tiles, nil
}

// Assemble infers the grid from the tiles' offsets, checks it, and composites
// the tiles. Tiles may arrive in any order; Sequence is their discovery order.
func Assemble(tiles []tile.Decoded, opts compose.Options) (*image.NRGBA, compose.Layout, grid.Topology, error) {
	tiles = slices.Clone(tiles)
	slices.SortFunc(tiles, func(a, b tile.Decoded) int { return cmp.Compare(a.Sequence, b.Sequence) })

	offsets := tile.Offsets(tiles)
	topo, err := grid.Infer(offsets)
	if err != nil {
		return nil, compose.Layout{}, grid.Topology{}, err
	}
	if err := topo.Check(offsets); err != nil {
		return nil, compose.Layout{}, topo, err
	}

	ordered, err := grid.RowMajor(tiles, topo)
	if err != nil {
		return nil, compose.Layout{}, topo, err
	}
	img, layout, err := compose.Compose(tile.Images(ordered), topo.Columns, opts)
	if err != nil {
		return nil, compose.Layout{}, topo, err
	}
	return img, layout, topo, nil
}
