// Package fetcher resolves a tile's payload reference into a decoded image,
// waiting for references that the page populates asynchronously.
package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/v0xg/artgrab/internal/tile"
)

// Retriever dereferences a payload reference into raw bytes
type Retriever interface {
	Retrieve(ctx context.Context, ref string) ([]byte, error)
}

// Options configures fetch behavior
type Options struct {
	PollInterval time.Duration
	// MaxPollAttempts bounds the wait for an empty source. Zero waits forever.
	MaxPollAttempts int
	// Scratch, when set, receives a copy of every tile's raw bytes
	Scratch *Scratch
	Logger  *slog.Logger
}

// Fetcher retrieves and decodes tiles one at a time
type Fetcher struct {
	retriever Retriever
	poller    Poller
	scratch   *Scratch
	log       *slog.Logger
}

// New creates a Fetcher backed by r
func New(r Retriever, opts Options) *Fetcher {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Fetcher{
		retriever: r,
		poller:    Poller{Interval: opts.PollInterval, MaxAttempts: opts.MaxPollAttempts},
		scratch:   opts.Scratch,
		log:       opts.Logger,
	}
}

// Fetch waits for el's source to be populated, retrieves it and decodes it.
// seq is the tile's position among valid tiles and keys scratch files.
func (f *Fetcher) Fetch(ctx context.Context, seq int, el tile.Element) (image.Image, error) {
	ref, err := f.awaitSource(ctx, seq, el)
	if err != nil {
		return nil, err
	}

	data, err := f.retriever.Retrieve(ctx, ref)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		fetchErr := &FetchError{Sequence: seq, Ref: ref, Err: err}
		var sc statusCoder
		if errors.As(err, &sc) {
			fetchErr.Status = sc.StatusCode()
		}
		return nil, fetchErr
	}
	f.log.Debug("fetcher: got tile", "tile", seq, "ref", ref, "bytes", len(data))

	if f.scratch != nil {
		if err := f.scratch.Write(seq, data); err != nil {
			f.log.Warn("fetcher: scratch write failed", "tile", seq, "error", err)
		}
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Sequence: seq, Ref: ref, Size: len(data), Err: err}
	}
	return img, nil
}

// awaitSource polls el.Source until it is non-empty
func (f *Fetcher) awaitSource(ctx context.Context, seq int, el tile.Element) (string, error) {
	var ref string
	attempts, err := f.poller.Until(ctx, func(ctx context.Context) (bool, error) {
		src, err := el.Source(ctx)
		if err != nil {
			return false, fmt.Errorf("read source of tile %d: %w", seq, err)
		}
		ref = src
		return ref != "", nil
	})
	if errors.Is(err, ErrPollExhausted) {
		return "", &FetchTimeoutError{Sequence: seq, Attempts: attempts}
	}
	if err != nil {
		return "", err
	}
	if attempts > 1 {
		f.log.Debug("fetcher: source populated", "tile", seq, "attempts", attempts)
	}
	return ref, nil
}
