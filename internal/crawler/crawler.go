package crawler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/v0xg/artgrab/internal/tile"
)

// Options configures the browser session
type Options struct {
	Bin          string // Chrome/Chromium binary; empty looks one up or downloads it
	Headless     bool
	Stealth      bool
	UserAgent    string
	ViewportSize int // square emulated viewport; tile resolution follows it
	Logger       *slog.Logger
}

// Browser wraps the Rod browser and the single page tiles are read from
type Browser struct {
	browser *rod.Browser
	page    *rod.Page
	lnch    *launcher.Launcher
	log     *slog.Logger
}

// Launch starts a browser and opens an emulated mobile page
func Launch(ctx context.Context, opts Options) (*Browser, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ViewportSize <= 0 {
		opts.ViewportSize = 12000
	}
	log := opts.Logger

	path := opts.Bin
	if path == "" {
		path, _ = launcher.LookPath()
	}
	l := launcher.New().Context(ctx).Headless(opts.Headless).
		Set("disable-blink-features", "AutomationControlled")
	if path != "" {
		l = l.Bin(path)
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("browser: launch: %w", err)
	}
	log.Debug("browser: launched", "url", u, "bin", path, "headless", opts.Headless)

	b := &Browser{browser: rod.New().ControlURL(u), lnch: l, log: log}
	if err := b.browser.Connect(); err != nil {
		b.Close()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}

	if opts.Stealth {
		b.page, err = stealth.Page(b.browser)
	} else {
		b.page, err = b.browser.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("browser: create page: %w", err)
	}

	// Device scale 1 keeps CSS offsets equal to tile pixels.
	err = b.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             opts.ViewportSize,
		Height:            opts.ViewportSize,
		DeviceScaleFactor: 1,
		Mobile:            true,
	})
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("browser: set viewport: %w", err)
	}
	if opts.UserAgent != "" {
		if err := b.page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: opts.UserAgent}); err != nil {
			b.Close()
			return nil, fmt.Errorf("browser: set user agent: %w", err)
		}
	}

	return b, nil
}

// Close cleans up browser resources
func (b *Browser) Close() error {
	if b.page != nil {
		b.page.Close()
		b.page = nil
	}
	if b.browser != nil {
		b.browser.Close()
		b.browser = nil
	}
	if b.lnch != nil {
		b.lnch.Cleanup()
		b.lnch = nil
	}
	return nil
}

// Page returns the underlying Rod page
func (b *Browser) Page() *rod.Page {
	return b.page
}

// Navigate loads url and waits for the load event
func (b *Browser) Navigate(ctx context.Context, url string) error {
	page := b.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("browser: wait load %s: %w", url, err)
	}
	b.log.Debug("browser: loaded", "url", url)
	return nil
}

// Title returns the document title
func (b *Browser) Title(ctx context.Context) (string, error) {
	res, err := b.page.Context(ctx).Eval(`() => document.title`)
	if err != nil {
		return "", fmt.Errorf("browser: read title: %w", err)
	}
	return res.Value.Str(), nil
}

// Images returns every img element on the page in DOM order
func (b *Browser) Images(ctx context.Context) ([]tile.Element, error) {
	els, err := b.page.Context(ctx).Elements("img")
	if err != nil {
		return nil, fmt.Errorf("browser: list images: %w", err)
	}

	out := make([]tile.Element, len(els))
	for i, el := range els {
		out[i] = &Image{el: el}
	}
	return out, nil
}

// Retrieve fetches ref from inside the page, so blob: URLs owned by the page
// resolve, and returns the decoded bytes.
func (b *Browser) Retrieve(ctx context.Context, ref string) ([]byte, error) {
	res, err := b.page.Context(ctx).Eval(retrieveJS, ref)
	if err != nil {
		return nil, fmt.Errorf("browser: eval fetch: %w", err)
	}
	return decodePayload(res.Value)
}
