package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultHost is the artwork site the crawler was built for.
const DefaultHost = "artsandculture.google.com"

// DefaultUserAgent is a mobile UA; the viewer serves its tiled layout to it.
const DefaultUserAgent = "Mozilla/5.0 (Linux; Android 4.2.1; en-us; Nexus 5 Build/JOP40D) AppleWebKit/535.19 " +
	"(KHTML, like Gecko) Chrome/18.0.1025.166 Mobile Safari/535.19"

type Config struct {
	URL string `yaml:"url"`
	// AllowedHost restricts URL to one host. Empty accepts any host.
	AllowedHost string `yaml:"allowed_host"`

	// Browser
	BrowserBin   string `yaml:"browser_bin"`
	Headless     bool   `yaml:"headless"`
	Stealth      bool   `yaml:"stealth"`
	UserAgent    string `yaml:"user_agent"`
	ViewportSize int    `yaml:"viewport_size"`

	// Timing
	SettleDelay     time.Duration `yaml:"settle_delay"`
	SettleStep      time.Duration `yaml:"settle_step"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	MaxPollAttempts int           `yaml:"max_poll_attempts"`
	MaxRetries      int           `yaml:"max_retries"`
	Timeout         time.Duration `yaml:"timeout"`

	// Tiles
	SkipPrefix int `yaml:"skip_prefix"`

	// Output
	OutputDir      string `yaml:"output_dir"`
	OutputFilename string `yaml:"output_filename"`
	ScratchDir     string `yaml:"scratch_dir"`
	KeepScratch    bool   `yaml:"keep_scratch"`
	JPEGQuality    int    `yaml:"jpeg_quality"`
	MaxDimension   uint   `yaml:"max_dimension"`
	DebugGrid      bool   `yaml:"debug_grid"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		AllowedHost: DefaultHost,

		Headless:     true,
		Stealth:      true,
		UserAgent:    DefaultUserAgent,
		ViewportSize: 12000,

		SettleDelay:     5 * time.Second,
		SettleStep:      10 * time.Second,
		PollInterval:    2 * time.Second,
		MaxPollAttempts: 30,
		MaxRetries:      2,
		Timeout:         10 * time.Minute,

		SkipPrefix: 3,

		OutputDir:   "output",
		ScratchDir:  "partial",
		JPEGQuality: 95,
	}
}

// Load returns the defaults overlaid with ARTGRAB_* environment variables.
func Load() Config {
	cfg := Default()
	cfg.applyEnv()
	return cfg
}

// LoadFile reads a YAML file on top of the defaults, then applies the environment.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.URL = envOr("ARTGRAB_URL", c.URL)
	c.AllowedHost = envOr("ARTGRAB_ALLOWED_HOST", c.AllowedHost)

	c.BrowserBin = envOr("ARTGRAB_BROWSER_BIN", c.BrowserBin)
	c.Headless = envBool("ARTGRAB_HEADLESS", c.Headless)
	c.Stealth = envBool("ARTGRAB_STEALTH", c.Stealth)
	c.UserAgent = envOr("ARTGRAB_USER_AGENT", c.UserAgent)
	c.ViewportSize = envInt("ARTGRAB_VIEWPORT_SIZE", c.ViewportSize)

	c.SettleDelay = envDuration("ARTGRAB_SETTLE_DELAY", c.SettleDelay)
	c.SettleStep = envDuration("ARTGRAB_SETTLE_STEP", c.SettleStep)
	c.PollInterval = envDuration("ARTGRAB_POLL_INTERVAL", c.PollInterval)
	c.MaxPollAttempts = envInt("ARTGRAB_MAX_POLL_ATTEMPTS", c.MaxPollAttempts)
	c.MaxRetries = envInt("ARTGRAB_MAX_RETRIES", c.MaxRetries)
	c.Timeout = envDuration("ARTGRAB_TIMEOUT", c.Timeout)

	c.SkipPrefix = envInt("ARTGRAB_SKIP_PREFIX", c.SkipPrefix)

	c.OutputDir = envOr("ARTGRAB_OUTPUT_DIR", c.OutputDir)
	c.OutputFilename = envOr("ARTGRAB_OUTPUT_FILENAME", c.OutputFilename)
	c.ScratchDir = envOr("ARTGRAB_SCRATCH_DIR", c.ScratchDir)
	c.KeepScratch = envBool("ARTGRAB_KEEP_SCRATCH", c.KeepScratch)
	c.JPEGQuality = envInt("ARTGRAB_JPEG_QUALITY", c.JPEGQuality)
	c.DebugGrid = envBool("ARTGRAB_DEBUG_GRID", c.DebugGrid)
}

// Validate normalises the URL and clamps out-of-range values back to defaults.
func (c *Config) Validate() error {
	u, err := NormalizeURL(c.URL, c.AllowedHost)
	if err != nil {
		return err
	}
	c.URL = u

	def := Default()
	if c.ViewportSize <= 0 {
		c.ViewportSize = def.ViewportSize
	}
	if c.SettleDelay < 0 {
		c.SettleDelay = def.SettleDelay
	}
	if c.SettleStep < 0 {
		c.SettleStep = def.SettleStep
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.MaxPollAttempts < 0 {
		c.MaxPollAttempts = 0
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.SkipPrefix < 0 {
		c.SkipPrefix = def.SkipPrefix
	}
	if c.JPEGQuality <= 0 || c.JPEGQuality > 100 {
		c.JPEGQuality = def.JPEGQuality
	}
	if c.OutputDir == "" {
		c.OutputDir = def.OutputDir
	}
	if c.ScratchDir == "" {
		c.ScratchDir = def.ScratchDir
	}
	return nil
}

// NormalizeURL checks that raw points at allowedHost (when set) and rewrites it
// to https://host/path, dropping query and fragment.
func NormalizeURL(raw, allowedHost string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("config: url is required")
	}
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("config: invalid url: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("config: url %q has no host", raw)
	}
	if allowedHost != "" && !strings.EqualFold(u.Hostname(), allowedHost) {
		return "", fmt.Errorf("config: url host %q is not %s", u.Hostname(), allowedHost)
	}
	return "https://" + u.Host + u.Path, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
