package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/v0xg/artgrab/internal/config"
	"github.com/v0xg/artgrab/internal/crawler"
	"github.com/v0xg/artgrab/internal/reconstruct"
)

var (
	configPath   string
	output       string
	outputDir    string
	scratchDir   string
	keepScratch  bool
	viewport     int
	settle       time.Duration
	settleStep   time.Duration
	pollInterval time.Duration
	maxPoll      int
	skip         int
	retries      int
	timeout      time.Duration
	bin          string
	headful      bool
	noStealth    bool
	anyHost      bool
	maxSize      uint
	quality      int
	debugGrid    bool
	verbose      bool
)

func main() {
	// Load .env file if present (silently ignore if not found)
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "artgrab [url]",
		Short: "Download a full-resolution artwork from its tiled web viewer",
		Long: `artgrab opens an artwork page in a headless browser, collects the image tiles
the viewer renders, works out their grid from each tile's CSS offset, and stitches
them into a single image.

Example:
  artgrab "https://artsandculture.google.com/asset/madame-moitessier/hQFUe-elM1npbw"`,
		Args: cobra.MaximumNArgs(1),
		RunE: run,
	}

	rootCmd.Flags().StringVar(&configPath, "config", "", "YAML config file")
	rootCmd.Flags().StringVarP(&output, "output", "o", "", "Output filename (default: slugified page title + .jpg)")
	rootCmd.Flags().StringVar(&outputDir, "output-dir", "output", "Directory for the finished image")
	rootCmd.Flags().StringVar(&scratchDir, "scratch-dir", "partial", "Directory for raw tile copies")
	rootCmd.Flags().BoolVar(&keepScratch, "keep-scratch", false, "Keep raw tile copies after the run")
	rootCmd.Flags().IntVar(&viewport, "size", 12000, "Emulated viewport size; larger loads higher-resolution tiles")
	rootCmd.Flags().DurationVar(&settle, "settle", 5*time.Second, "Wait after page load before reading tiles")
	rootCmd.Flags().DurationVar(&settleStep, "settle-step", 10*time.Second, "Extra settle delay added on each retry")
	rootCmd.Flags().DurationVar(&pollInterval, "poll-interval", 2*time.Second, "Interval between checks for a tile's source")
	rootCmd.Flags().IntVar(&maxPoll, "max-poll", 30, "Checks per tile before giving up (0 waits forever)")
	rootCmd.Flags().IntVar(&skip, "skip", 3, "Leading images that belong to the viewer, not the artwork")
	rootCmd.Flags().IntVar(&retries, "retries", 2, "Re-runs with a longer settle delay when a tile fails to decode")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "Abort the whole run after this long")
	rootCmd.Flags().StringVar(&bin, "bin", "", "Chrome/Chromium binary (default: detect or download)")
	rootCmd.Flags().BoolVar(&headful, "headful", false, "Show the browser window")
	rootCmd.Flags().BoolVar(&noStealth, "no-stealth", false, "Disable stealth page setup")
	rootCmd.Flags().BoolVar(&anyHost, "any-host", false, "Accept URLs outside "+config.DefaultHost)
	rootCmd.Flags().UintVar(&maxSize, "max-size", 0, "Downscale so neither side exceeds this (0 keeps full size)")
	rootCmd.Flags().IntVar(&quality, "quality", 95, "JPEG quality")
	rootCmd.Flags().BoolVar(&debugGrid, "debug-grid", false, "Draw tile boundaries on the output")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed progress")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	logger := newLogger()
	logger.Debug("artgrab: config", "url", cfg.URL, "output_dir", cfg.OutputDir,
		"settle", cfg.SettleDelay, "poll", cfg.PollInterval, "skip", cfg.SkipPrefix)

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	browserOpts := crawler.Options{
		Bin:          cfg.BrowserBin,
		Headless:     cfg.Headless,
		Stealth:      cfg.Stealth,
		UserAgent:    cfg.UserAgent,
		ViewportSize: cfg.ViewportSize,
		Logger:       logger,
	}
	open := func(ctx context.Context) (reconstruct.Session, error) {
		b, err := crawler.Launch(ctx, browserOpts)
		if err != nil {
			return nil, err
		}
		return b, nil
	}

	engine := reconstruct.New(open, reconstruct.Options{
		URL:             cfg.URL,
		SettleDelay:     cfg.SettleDelay,
		SettleStep:      cfg.SettleStep,
		MaxRetries:      cfg.MaxRetries,
		SkipPrefix:      cfg.SkipPrefix,
		PollInterval:    cfg.PollInterval,
		MaxPollAttempts: cfg.MaxPollAttempts,
		OutputDir:       cfg.OutputDir,
		OutputFilename:  cfg.OutputFilename,
		ScratchDir:      cfg.ScratchDir,
		KeepScratch:     cfg.KeepScratch,
		JPEGQuality:     cfg.JPEGQuality,
		MaxDimension:    cfg.MaxDimension,
		DebugGrid:       cfg.DebugGrid,
		Logger:          logger,
	})

	fmt.Printf("→ Reconstructing %s... ", cfg.URL)
	if verbose {
		fmt.Println()
	}
	res, err := engine.Run(ctx)
	if err != nil {
		fmt.Println("failed")
		return fmt.Errorf("reconstruction failed: %w", err)
	}
	fmt.Printf("done (%d tiles, %d columns x %d rows)\n", res.Tiles, res.Topology.Columns, res.Topology.Rows)
	if res.Attempts > 1 {
		fmt.Printf("  needed %d attempts\n", res.Attempts)
	}

	fmt.Printf("✓ Saved to %s (%dx%d, %.1f MB)\n", res.Path, res.Width, res.Height, float64(res.Bytes)/(1024*1024))
	return nil
}

// loadConfig layers defaults, environment, the optional YAML file, and any
// flags the user actually set.
func loadConfig(cmd *cobra.Command, args []string) (config.Config, error) {
	cfg := config.Load()
	if configPath != "" {
		var err error
		if cfg, err = config.LoadFile(configPath); err != nil {
			return cfg, err
		}
	}

	if len(args) == 1 {
		cfg.URL = args[0]
	}

	f := cmd.Flags()
	if f.Changed("output") {
		cfg.OutputFilename = output
	}
	if f.Changed("output-dir") {
		cfg.OutputDir = outputDir
	}
	if f.Changed("scratch-dir") {
		cfg.ScratchDir = scratchDir
	}
	if f.Changed("keep-scratch") {
		cfg.KeepScratch = keepScratch
	}
	if f.Changed("size") {
		cfg.ViewportSize = viewport
	}
	if f.Changed("settle") {
		cfg.SettleDelay = settle
	}
	if f.Changed("settle-step") {
		cfg.SettleStep = settleStep
	}
	if f.Changed("poll-interval") {
		cfg.PollInterval = pollInterval
	}
	if f.Changed("max-poll") {
		cfg.MaxPollAttempts = maxPoll
	}
	if f.Changed("skip") {
		cfg.SkipPrefix = skip
	}
	if f.Changed("retries") {
		cfg.MaxRetries = retries
	}
	if f.Changed("timeout") {
		cfg.Timeout = timeout
	}
	if f.Changed("bin") {
		cfg.BrowserBin = bin
	}
	if f.Changed("headful") {
		cfg.Headless = !headful
	}
	if f.Changed("no-stealth") {
		cfg.Stealth = !noStealth
	}
	if f.Changed("any-host") && anyHost {
		cfg.AllowedHost = ""
	}
	if f.Changed("max-size") {
		cfg.MaxDimension = maxSize
	}
	if f.Changed("quality") {
		cfg.JPEGQuality = quality
	}
	if f.Changed("debug-grid") {
		cfg.DebugGrid = debugGrid
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
