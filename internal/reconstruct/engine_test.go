package reconstruct

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	"github.com/v0xg/artgrab/internal/compose"
	"github.com/v0xg/artgrab/internal/fetcher"
	"github.com/v0xg/artgrab/internal/grid"
	"github.com/v0xg/artgrab/internal/tile"
)

type fakeElement struct {
	style      string
	src        string
	emptyReads int
	reads      int
}

func (e *fakeElement) Style(context.Context) (string, error) { return e.style, nil }

func (e *fakeElement) Source(context.Context) (string, error) {
	e.reads++
	if e.reads <= e.emptyReads {
		return "", nil
	}
	return e.src, nil
}

type fakeSession struct {
	title     string
	elements  []tile.Element
	payloads  map[string][]byte
	navigated string
	closed    bool
}

func (s *fakeSession) Navigate(_ context.Context, url string) error {
	s.navigated = url
	return nil
}

func (s *fakeSession) Title(context.Context) (string, error) { return s.title, nil }

func (s *fakeSession) Images(context.Context) ([]tile.Element, error) { return s.elements, nil }

func (s *fakeSession) Retrieve(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, ok := s.payloads[ref]
	if !ok {
		return nil, statusErr(404)
	}
	return data, nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

type statusErr int

func (s statusErr) Error() string   { return fmt.Sprintf("status %d", int(s)) }
func (s statusErr) StatusCode() int { return int(s) }

func tileColor(col, row int) color.NRGBA {
	return color.NRGBA{R: uint8(40 + col*100), G: uint8(30 + row*60), B: 90, A: 255}
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// page builds a session with three chrome images followed by a columns x rows
// grid of size x size tiles, discovered column by column.
func page(t *testing.T, columns, rows, size int) *fakeSession {
	t.Helper()
	s := &fakeSession{title: "Test Artwork", payloads: map[string][]byte{}}
	for i := 0; i < 3; i++ {
		s.elements = append(s.elements, &fakeElement{style: "display: block", src: "https://example.com/logo.png"})
	}
	for col := 0; col < columns; col++ {
		for row := 0; row < rows; row++ {
			ref := fmt.Sprintf("blob:https://example.com/%d-%d", col, row)
			s.payloads[ref] = encodePNG(t, imaging.New(size, size, tileColor(col, row)))
			s.elements = append(s.elements, &fakeElement{
				style: fmt.Sprintf("position: absolute; transform: translate3d(%dpx, %dpx, 0px);", col*size, row*size),
				src:   ref,
			})
		}
	}
	return s
}

func testOptions(t *testing.T) Options {
	t.Helper()
	dir := t.TempDir()
	return Options{
		URL:             "https://artsandculture.google.com/asset/test/abc",
		SkipPrefix:      tile.DefaultSkipPrefix,
		PollInterval:    time.Millisecond,
		MaxPollAttempts: 10,
		OutputDir:       filepath.Join(dir, "output"),
		OutputFilename:  "mosaic.png",
		ScratchDir:      filepath.Join(dir, "partial"),
	}
}

func mkdirs(t *testing.T, opts Options) {
	t.Helper()
	for _, d := range []string{opts.OutputDir, opts.ScratchDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
}

func opener(sessions ...*fakeSession) (Opener, *int) {
	calls := 0
	return func(context.Context) (Session, error) {
		s := sessions[min(calls, len(sessions)-1)]
		calls++
		return s, nil
	}, &calls
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("%s not empty: %d entries", dir, len(entries))
	}
}

func TestRun_TwoByThree(t *testing.T) {
	opts := testOptions(t)
	mkdirs(t, opts)
	session := page(t, 2, 3, 100)
	// One tile is still loading when first looked at.
	session.elements[4].(*fakeElement).emptyReads = 3
	open, _ := opener(session)

	res, err := New(open, opts).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Topology != (grid.Topology{Columns: 2, Rows: 3}) || res.Tiles != 6 || res.Attempts != 1 {
		t.Errorf("result = %+v", res)
	}
	if res.Width != 200 || res.Height != 300 {
		t.Errorf("mosaic %dx%d, want 200x300", res.Width, res.Height)
	}
	if session.navigated != opts.URL || !session.closed {
		t.Errorf("session navigated=%q closed=%v", session.navigated, session.closed)
	}

	img, err := imaging.Open(res.Path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	nrgba := imaging.Clone(img)
	for col := 0; col < 2; col++ {
		for row := 0; row < 3; row++ {
			if got := nrgba.NRGBAAt(col*100+50, row*100+50); got != tileColor(col, row) {
				t.Errorf("cell (%d,%d) = %v, want %v", col, row, got, tileColor(col, row))
			}
		}
	}
	assertEmptyDir(t, opts.ScratchDir)
}

func TestRun_DefaultFilename(t *testing.T) {
	opts := testOptions(t)
	opts.OutputFilename = ""
	mkdirs(t, opts)
	open, _ := opener(page(t, 1, 1, 10))

	res, err := New(open, opts).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := filepath.Join(opts.OutputDir, "test-artwork.jpg"); res.Path != want {
		t.Errorf("path = %q, want %q", res.Path, want)
	}
}

func TestRun_GridMismatch(t *testing.T) {
	opts := testOptions(t)
	mkdirs(t, opts)
	session := page(t, 2, 3, 100)
	session.elements = session.elements[:len(session.elements)-1]
	open, _ := opener(session)

	_, err := New(open, opts).Run(context.Background())
	var mismatch *grid.GridMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("error = %v, want GridMismatchError", err)
	}
	if mismatch.Tiles != 5 || mismatch.Columns != 2 || mismatch.Rows != 3 {
		t.Errorf("mismatch = %+v", mismatch)
	}
	assertEmptyDir(t, opts.OutputDir)
	assertEmptyDir(t, opts.ScratchDir)
	if !session.closed {
		t.Error("session not closed")
	}
}

func TestRun_NoTiles(t *testing.T) {
	opts := testOptions(t)
	mkdirs(t, opts)
	session := page(t, 0, 0, 10)
	open, _ := opener(session)

	_, err := New(open, opts).Run(context.Background())
	var empty *grid.EmptyGridError
	if !errors.As(err, &empty) {
		t.Fatalf("error = %v, want EmptyGridError", err)
	}
}

func TestRun_SkipsNonTiles(t *testing.T) {
	opts := testOptions(t)
	mkdirs(t, opts)
	session := page(t, 2, 2, 20)
	// An unstyled image and one with a style but no translation, both after the chrome.
	extra := []tile.Element{
		&fakeElement{style: ""},
		&fakeElement{style: "transform: scale(1);"},
	}
	session.elements = append(session.elements[:3], append(extra, session.elements[3:]...)...)
	open, _ := opener(session)

	res, err := New(open, opts).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Tiles != 4 || res.Width != 40 || res.Height != 40 {
		t.Errorf("result = %+v", res)
	}
}

func TestRun_MalformedOffset(t *testing.T) {
	opts := testOptions(t)
	mkdirs(t, opts)
	session := page(t, 2, 2, 20)
	session.elements[5].(*fakeElement).style = "transform: translate3d(20px, 0px, 0px)"
	open, _ := opener(session)

	_, err := New(open, opts).Run(context.Background())
	var malformed *grid.MalformedOffsetError
	if !errors.As(err, &malformed) {
		t.Fatalf("error = %v, want MalformedOffsetError", err)
	}
	assertEmptyDir(t, opts.OutputDir)
}

func TestRun_FetchErrorAborts(t *testing.T) {
	opts := testOptions(t)
	opts.MaxRetries = 3
	mkdirs(t, opts)
	session := page(t, 2, 2, 20)
	delete(session.payloads, "blob:https://example.com/1-0")
	open, calls := opener(session)

	_, err := New(open, opts).Run(context.Background())
	var fetchErr *fetcher.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("error = %v, want FetchError", err)
	}
	if fetchErr.Status != 404 || fetchErr.Sequence != 2 {
		t.Errorf("fetch error = %+v", fetchErr)
	}
	if *calls != 1 {
		t.Errorf("fetch failure retried: %d sessions opened", *calls)
	}
	assertEmptyDir(t, opts.OutputDir)
	assertEmptyDir(t, opts.ScratchDir)
}

func TestRun_RetriesUndecodableTile(t *testing.T) {
	opts := testOptions(t)
	opts.MaxRetries = 2
	opts.SettleStep = time.Millisecond
	mkdirs(t, opts)

	broken := page(t, 2, 2, 20)
	broken.payloads["blob:https://example.com/0-1"] = []byte("half a jpeg")
	good := page(t, 2, 2, 20)
	open, calls := opener(broken, good)

	res, err := New(open, opts).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Attempts != 2 || *calls != 2 {
		t.Errorf("attempts = %d, sessions = %d; want 2, 2", res.Attempts, *calls)
	}
	if !broken.closed || !good.closed {
		t.Error("sessions not closed")
	}
}

func TestRun_RetriesExhausted(t *testing.T) {
	opts := testOptions(t)
	opts.MaxRetries = 1
	mkdirs(t, opts)

	broken := page(t, 1, 1, 20)
	broken.payloads["blob:https://example.com/0-0"] = []byte("garbage")
	open, calls := opener(broken)

	_, err := New(open, opts).Run(context.Background())
	if !fetcher.IsRetryable(err) {
		t.Fatalf("error = %v, want DecodeError", err)
	}
	if *calls != 2 {
		t.Errorf("sessions = %d, want 2", *calls)
	}
}

func TestRun_Cancelled(t *testing.T) {
	opts := testOptions(t)
	opts.SettleDelay = time.Hour
	mkdirs(t, opts)
	session := page(t, 1, 1, 10)
	open, _ := opener(session)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := New(open, opts).Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want DeadlineExceeded", err)
	}
	if !session.closed {
		t.Error("session not released")
	}
	assertEmptyDir(t, opts.OutputDir)
}

func TestAssemble_OrderIndependent(t *testing.T) {
	var tiles []tile.Decoded
	seq := 0
	for col := 0; col < 3; col++ {
		for row := 0; row < 2; row++ {
			tiles = append(tiles, tile.Decoded{
				Sequence: seq,
				Offset:   grid.Offset{X: col * 8, Y: row * 8},
				Image:    imaging.New(8, 8, tileColor(col, row)),
			})
			seq++
		}
	}
	reversed := make([]tile.Decoded, len(tiles))
	for i, d := range tiles {
		reversed[len(tiles)-1-i] = d
	}

	a, _, topo, err := Assemble(tiles, compose.Options{})
	if err != nil {
		t.Fatal(err)
	}
	b, _, _, err := Assemble(reversed, compose.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if topo != (grid.Topology{Columns: 3, Rows: 2}) {
		t.Errorf("topology = %+v", topo)
	}
	if !bytes.Equal(a.Pix, b.Pix) {
		t.Error("completion order changed the mosaic")
	}
	if got := a.NRGBAAt(2*8+1, 1*8+1); got != tileColor(2, 1) {
		t.Errorf("cell (2,1) = %v", got)
	}
}

func TestAssemble_IrregularLattice(t *testing.T) {
	img := imaging.New(4, 4, color.Black)
	tiles := []tile.Decoded{
		{Sequence: 0, Offset: grid.Offset{X: 0, Y: 0}, Image: img},
		{Sequence: 1, Offset: grid.Offset{X: 0, Y: 4}, Image: img},
		{Sequence: 2, Offset: grid.Offset{X: 4, Y: 4}, Image: img},
		{Sequence: 3, Offset: grid.Offset{X: 4, Y: 4}, Image: img},
	}
	_, _, _, err := Assemble(tiles, compose.Options{})
	var irregular *grid.IrregularLatticeError
	if !errors.As(err, &irregular) {
		t.Fatalf("error = %v, want IrregularLatticeError", err)
	}
}
