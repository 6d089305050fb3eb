// Package config provides centralized configuration for the uicheck CLI.
// It loads settings from UICHECK_* environment variables, applies command-line
// overrides, validates the result, and provides sensible defaults.
//
// The S3 artifact store also honours the standard AWS_* variables so the
// harness can share credentials with other tooling.
package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kuitang/uicheck/internal/artifacts"
)

const (
	DriverPlaywright = "playwright"
	DriverFake       = "fake"

	defaultS3Region = "auto"
)

var (
	drivers   = []string{DriverPlaywright, DriverFake}
	browsers  = []string{"chromium", "firefox", "webkit"}
	logLevels = []string{"debug", "info", "warn", "error"}
)

// Config holds all harness configuration.
type Config struct {
	// Browser
	Driver   string // playwright or fake
	Browser  string // chromium, firefox or webkit
	Headless bool

	// Scenario defaults, overridden per file and per scenario
	BaseURL           string
	Timeout           time.Duration
	PollInterval      time.Duration
	NavigationTimeout time.Duration
	Budget            time.Duration
	ViewportWidth     int
	ViewportHeight    int

	// Scheduling
	Parallelism int
	LaunchRate  float64 // new sessions per second; 0 = unlimited
	LaunchBurst int

	// Failure artifacts: a local directory or an S3 bucket, not both
	ArtifactDir       string
	S3Endpoint        string // UICHECK_S3_ENDPOINT, falls back to AWS_ENDPOINT_URL_S3
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Bucket          string
	S3Prefix          string
	S3PublicURL       string
	S3UsePathStyle    bool

	// Observability
	LogLevel    string
	MetricsFile string // node_exporter textfile written after a run
	TraceFile   string // JSON span export
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Driver:            DriverPlaywright,
		Browser:           "chromium",
		Headless:          true,
		Timeout:           5 * time.Second,
		PollInterval:      100 * time.Millisecond,
		NavigationTimeout: 30 * time.Second,
		Budget:            2 * time.Minute,
		ViewportWidth:     1280,
		ViewportHeight:    720,
		Parallelism:       2,
		LaunchRate:        2,
		LaunchBurst:       1,
		S3Region:          defaultS3Region,
		LogLevel:          "info",
	}
}

// Load reads the environment on top of Default, applies overrides in order,
// and validates the result.
func Load(overrides ...func(*Config)) (*Config, error) {
	cfg := Default()
	var problems []string
	env := envReader{problems: &problems}

	cfg.Driver = env.str("UICHECK_DRIVER", cfg.Driver)
	cfg.Browser = env.str("UICHECK_BROWSER", cfg.Browser)
	cfg.Headless = env.boolean("UICHECK_HEADLESS", cfg.Headless)

	cfg.BaseURL = env.str("UICHECK_BASE_URL", cfg.BaseURL)
	cfg.Timeout = env.duration("UICHECK_TIMEOUT", cfg.Timeout)
	cfg.PollInterval = env.duration("UICHECK_POLL_INTERVAL", cfg.PollInterval)
	cfg.NavigationTimeout = env.duration("UICHECK_NAVIGATION_TIMEOUT", cfg.NavigationTimeout)
	cfg.Budget = env.duration("UICHECK_BUDGET", cfg.Budget)
	cfg.ViewportWidth = env.integer("UICHECK_VIEWPORT_WIDTH", cfg.ViewportWidth)
	cfg.ViewportHeight = env.integer("UICHECK_VIEWPORT_HEIGHT", cfg.ViewportHeight)

	cfg.Parallelism = env.integer("UICHECK_PARALLELISM", cfg.Parallelism)
	cfg.LaunchRate = env.float("UICHECK_LAUNCH_RATE", cfg.LaunchRate)
	cfg.LaunchBurst = env.integer("UICHECK_LAUNCH_BURST", cfg.LaunchBurst)

	cfg.ArtifactDir = env.str("UICHECK_ARTIFACT_DIR", "")
	cfg.S3Endpoint = env.str("UICHECK_S3_ENDPOINT", env.str("AWS_ENDPOINT_URL_S3", ""))
	cfg.S3Region = env.str("UICHECK_S3_REGION", env.str("AWS_REGION", cfg.S3Region))
	cfg.S3AccessKeyID = env.str("AWS_ACCESS_KEY_ID", "")
	cfg.S3SecretAccessKey = env.str("AWS_SECRET_ACCESS_KEY", "")
	cfg.S3Bucket = env.str("UICHECK_ARTIFACT_BUCKET", "")
	cfg.S3Prefix = env.str("UICHECK_ARTIFACT_PREFIX", "")
	cfg.S3PublicURL = env.str("UICHECK_ARTIFACT_PUBLIC_URL", "")
	cfg.S3UsePathStyle = env.boolean("UICHECK_S3_PATH_STYLE", cfg.S3UsePathStyle)

	cfg.LogLevel = env.str("UICHECK_LOG_LEVEL", cfg.LogLevel)
	cfg.MetricsFile = env.str("UICHECK_METRICS_FILE", "")
	cfg.TraceFile = env.str("UICHECK_TRACE_FILE", "")

	for _, o := range overrides {
		o(&cfg)
	}
	if cfg.Driver == DriverFake {
		// The replicas share one fake clock; concurrent scenarios would
		// advance it for each other. Launch pacing is real time and buys nothing.
		cfg.Parallelism = 1
		cfg.LaunchRate = 0
	}

	if err := cfg.validate(problems); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration is complete and consistent.
func (c *Config) Validate() error {
	return c.validate(nil)
}

func (c *Config) validate(problems []string) error {
	errs := append([]string(nil), problems...)

	if !contains(drivers, c.Driver) {
		errs = append(errs, fmt.Sprintf("UICHECK_DRIVER must be one of %s, got %q", strings.Join(drivers, ", "), c.Driver))
	}
	if !contains(browsers, c.Browser) {
		errs = append(errs, fmt.Sprintf("UICHECK_BROWSER must be one of %s, got %q", strings.Join(browsers, ", "), c.Browser))
	}
	if c.Timeout < 0 {
		errs = append(errs, "UICHECK_TIMEOUT must not be negative")
	}
	if c.PollInterval <= 0 {
		errs = append(errs, "UICHECK_POLL_INTERVAL must be positive")
	}
	if c.NavigationTimeout <= 0 {
		errs = append(errs, "UICHECK_NAVIGATION_TIMEOUT must be positive")
	}
	if c.Budget <= 0 {
		errs = append(errs, "UICHECK_BUDGET must be positive")
	}
	if c.ViewportWidth <= 0 || c.ViewportHeight <= 0 {
		errs = append(errs, "UICHECK_VIEWPORT_WIDTH and UICHECK_VIEWPORT_HEIGHT must be positive")
	}
	if c.Parallelism <= 0 {
		errs = append(errs, "UICHECK_PARALLELISM must be positive")
	}
	if c.LaunchRate < 0 {
		errs = append(errs, "UICHECK_LAUNCH_RATE must not be negative")
	}
	if c.LaunchBurst <= 0 {
		errs = append(errs, "UICHECK_LAUNCH_BURST must be positive")
	}
	if c.ArtifactDir != "" && c.S3Bucket != "" {
		errs = append(errs, "UICHECK_ARTIFACT_DIR and UICHECK_ARTIFACT_BUCKET are mutually exclusive")
	}
	if (c.S3AccessKeyID == "") != (c.S3SecretAccessKey == "") && c.S3Bucket != "" {
		errs = append(errs, "AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set together")
	}
	if !contains(logLevels, strings.ToLower(c.LogLevel)) {
		errs = append(errs, fmt.Sprintf("UICHECK_LOG_LEVEL must be one of %s, got %q", strings.Join(logLevels, ", "), c.LogLevel))
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// S3 returns the artifact store settings, or false when no bucket is configured.
func (c *Config) S3() (artifacts.S3Config, bool) {
	if c.S3Bucket == "" {
		return artifacts.S3Config{}, false
	}
	return artifacts.S3Config{
		Endpoint:        c.S3Endpoint,
		Region:          c.S3Region,
		AccessKeyID:     c.S3AccessKeyID,
		SecretAccessKey: c.S3SecretAccessKey,
		BucketName:      c.S3Bucket,
		Prefix:          c.S3Prefix,
		PublicURL:       c.S3PublicURL,
		UsePathStyle:    c.S3UsePathStyle,
	}, true
}

// PrintSummary writes a human-readable summary of the configuration to w.
func (c *Config) PrintSummary(w io.Writer) {
	fmt.Fprintln(w, "uicheck configuration:")
	if c.Driver == DriverFake {
		fmt.Fprintln(w, "  Driver:    fake (in-memory replicas)")
	} else {
		fmt.Fprintf(w, "  Driver:    playwright (%s, headless=%t)\n", c.Browser, c.Headless)
	}
	if c.BaseURL != "" {
		fmt.Fprintf(w, "  Base URL:  %s\n", c.BaseURL)
	}
	fmt.Fprintf(w, "  Timeouts:  expect %s, poll %s, navigation %s, budget %s\n",
		c.Timeout, c.PollInterval, c.NavigationTimeout, c.Budget)
	fmt.Fprintf(w, "  Sessions:  %d parallel, viewport %dx%d\n", c.Parallelism, c.ViewportWidth, c.ViewportHeight)
	switch {
	case c.S3Bucket != "":
		fmt.Fprintf(w, "  Artifacts: s3://%s (endpoint: %s)\n", c.S3Bucket, orDefault(c.S3Endpoint, "AWS default"))
	case c.ArtifactDir != "":
		fmt.Fprintf(w, "  Artifacts: %s\n", c.ArtifactDir)
	default:
		fmt.Fprintln(w, "  Artifacts: disabled")
	}
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// envReader parses environment variables, recording malformed values
// instead of silently falling back.
type envReader struct {
	problems *[]string
}

func (r envReader) lookup(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func (r envReader) bad(key, kind, value string) {
	*r.problems = append(*r.problems, fmt.Sprintf("%s must be %s, got %q", key, kind, value))
}

func (r envReader) str(key, def string) string {
	if v, ok := r.lookup(key); ok {
		return v
	}
	return def
}

func (r envReader) integer(key string, def int) int {
	v, ok := r.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.bad(key, "an integer", v)
		return def
	}
	return n
}

func (r envReader) float(key string, def float64) float64 {
	v, ok := r.lookup(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.bad(key, "a number", v)
		return def
	}
	return f
}

func (r envReader) boolean(key string, def bool) bool {
	v, ok := r.lookup(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.bad(key, "a boolean", v)
		return def
	}
	return b
}

// duration accepts Go durations ("1.5s") or bare integers in milliseconds.
func (r envReader) duration(key string, def time.Duration) time.Duration {
	v, ok := r.lookup(key)
	if !ok {
		return def
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		if ms < 0 || ms > maxDuration.Milliseconds() {
			r.bad(key, "a duration up to "+maxDuration.String(), v)
			return def
		}
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 || d > maxDuration {
		r.bad(key, "a duration up to "+maxDuration.String(), v)
		return def
	}
	return d
}

// maxDuration bounds duration settings so millisecond values cannot overflow.
const maxDuration = 24 * time.Hour
