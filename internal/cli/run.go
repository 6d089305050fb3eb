package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"time"

	"github.com/spf13/cobra"

	"github.com/kuitang/uicheck/internal/artifacts"
	"github.com/kuitang/uicheck/internal/browser"
	"github.com/kuitang/uicheck/internal/browser/fakedom"
	"github.com/kuitang/uicheck/internal/browser/pwdriver"
	"github.com/kuitang/uicheck/internal/clock"
	"github.com/kuitang/uicheck/internal/config"
	"github.com/kuitang/uicheck/internal/obs"
	"github.com/kuitang/uicheck/internal/scenario"
	"github.com/kuitang/uicheck/internal/sites"
)

// RunOptions holds flags for the run command. They override UICHECK_*
// environment variables only when set on the command line.
type RunOptions struct {
	Match       string
	Driver      string
	Browser     string
	Headed      bool
	BaseURL     string
	Timeout     time.Duration
	Budget      time.Duration
	Parallelism int
	ArtifactDir string
	Bucket      string
	MetricsFile string
	TraceFile   string
	LogLevel    string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run <file-or-dir>...",
		Short: "Run scenarios and report the outcome of each",
		Long: `Run every scenario in the given YAML files or directories.

Each scenario gets its own browser session. A failing scenario never stops the
others. Exit status is 0 when all pass, 1 when any fails, errors or times out,
and 2 when the files or configuration are invalid.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, rootOpts, opts, args)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.Match, "run", "r", "", "only run scenarios whose name matches this regexp")
	f.StringVar(&opts.Driver, "driver", config.DriverPlaywright, "browser driver (playwright|fake)")
	f.StringVar(&opts.Browser, "browser", "chromium", "browser for the playwright driver (chromium|firefox|webkit)")
	f.BoolVar(&opts.Headed, "headed", false, "show the browser window")
	f.StringVar(&opts.BaseURL, "base-url", "", "base URL for scenarios that do not set one")
	f.DurationVar(&opts.Timeout, "timeout", 5*time.Second, "default expectation timeout")
	f.DurationVar(&opts.Budget, "budget", 2*time.Minute, "default time budget per scenario")
	f.IntVarP(&opts.Parallelism, "parallel", "p", 2, "scenarios run at once")
	f.StringVar(&opts.ArtifactDir, "artifact-dir", "", "write failure captures to this directory")
	f.StringVar(&opts.Bucket, "bucket", "", "upload failure captures to this S3 bucket")
	f.StringVar(&opts.MetricsFile, "metrics-file", "", "write Prometheus metrics to this textfile after the run")
	f.StringVar(&opts.TraceFile, "trace-file", "", "write spans as JSON to this file")
	f.StringVar(&opts.LogLevel, "log-level", "info", "log level (debug|info|warn|error)")

	return cmd
}

// overrides returns a config override that applies the flags set on the command line.
func (o *RunOptions) overrides(set func(name string) bool, verbose bool) func(*config.Config) {
	return func(c *config.Config) {
		if set("driver") {
			c.Driver = o.Driver
		}
		if set("browser") {
			c.Browser = o.Browser
		}
		if set("headed") {
			c.Headless = !o.Headed
		}
		if set("base-url") {
			c.BaseURL = o.BaseURL
		}
		if set("timeout") {
			c.Timeout = o.Timeout
		}
		if set("budget") {
			c.Budget = o.Budget
		}
		if set("parallel") {
			c.Parallelism = o.Parallelism
		}
		if set("artifact-dir") {
			c.ArtifactDir = o.ArtifactDir
		}
		if set("bucket") {
			c.S3Bucket = o.Bucket
		}
		if set("metrics-file") {
			c.MetricsFile = o.MetricsFile
		}
		if set("trace-file") {
			c.TraceFile = o.TraceFile
		}
		if set("log-level") {
			c.LogLevel = o.LogLevel
		}
		if verbose {
			c.LogLevel = "debug"
		}
	}
}

func runRun(cmd *cobra.Command, rootOpts *RootOptions, opts *RunOptions, paths []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(opts.overrides(cmd.Flags().Changed, rootOpts.Verbose))
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	obs.SetLevel(obs.ParseLevel(cfg.LogLevel))
	if rootOpts.Verbose {
		cfg.PrintSummary(cmd.ErrOrStderr())
	}

	plans, err := loadPlans(paths, opts.Match)
	if err != nil {
		return err
	}

	if cfg.TraceFile != "" {
		shutdown, err := startTracing(cfg.TraceFile)
		if err != nil {
			return WrapExitError(ExitCommandError, "start tracing", err)
		}
		defer shutdown()
	}

	store, err := openArtifacts(ctx, cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "open artifact store", err)
	}

	provider, clk, err := openProvider(cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "start browser", err)
	}
	defer func() {
		if err := provider.Close(); err != nil {
			obs.Pkg("cli").Warn("close browser", "error", err)
		}
	}()

	metrics := obs.NewMetrics()
	runner, err := scenario.NewRunner(scenario.Options{
		Provider:          provider,
		Clock:             clk,
		Parallelism:       cfg.Parallelism,
		LaunchRate:        cfg.LaunchRate,
		LaunchBurst:       cfg.LaunchBurst,
		BaseURL:           cfg.BaseURL,
		Timeout:           cfg.Timeout,
		PollInterval:      cfg.PollInterval,
		NavigationTimeout: cfg.NavigationTimeout,
		Budget:            cfg.Budget,
		ViewportWidth:     cfg.ViewportWidth,
		ViewportHeight:    cfg.ViewportHeight,
		Metrics:           metrics,
		Artifacts:         store,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "create runner", err)
	}

	report := runner.Run(ctx, plans)

	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			obs.Pkg("cli").Warn("write metrics textfile", "path", cfg.MetricsFile, "error", err)
		}
	}

	if err := writeReport(cmd.OutOrStdout(), rootOpts.Format, report); err != nil {
		return WrapExitError(ExitCommandError, "write report", err)
	}
	if !report.OK() {
		t := report.Totals
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios did not pass", t.Scenarios-t.Passed, t.Scenarios))
	}
	return nil
}

func writeReport(w io.Writer, format string, report *scenario.Report) error {
	if format == "json" {
		return report.WriteJSON(w)
	}
	return report.WriteText(w)
}

// loadPlans reads every scenario file and keeps the plans whose name matches pattern.
func loadPlans(paths []string, pattern string) ([]scenario.Plan, error) {
	plans, err := scenario.LoadAll(paths)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load scenarios", err)
	}
	if pattern == "" {
		return plans, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid --run pattern", err)
	}
	var kept []scenario.Plan
	for _, p := range plans {
		if re.MatchString(p.Name) {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("no scenario matches %q", pattern))
	}
	return kept, nil
}

// openProvider starts the configured driver. The fake driver serves the
// bundled site replicas on a fake clock shared with the runner.
func openProvider(cfg *config.Config) (browser.Provider, clock.Clock, error) {
	if cfg.Driver == config.DriverFake {
		clk := clock.NewFake(time.Now())
		b := fakedom.New(clk)
		sites.Register(b)
		return b, clk, nil
	}
	d, err := pwdriver.Launch(pwdriver.Options{
		Browser:           cfg.Browser,
		Headless:          cfg.Headless,
		ActionTimeout:     cfg.Timeout,
		NavigationTimeout: cfg.NavigationTimeout,
	})
	if err != nil {
		return nil, nil, err
	}
	return d, clock.Real{}, nil
}

func openArtifacts(ctx context.Context, cfg *config.Config) (artifacts.Store, error) {
	if s3cfg, ok := cfg.S3(); ok {
		return artifacts.NewS3Store(ctx, s3cfg)
	}
	if cfg.ArtifactDir != "" {
		return artifacts.NewDirStore(cfg.ArtifactDir)
	}
	return nil, nil
}

func startTracing(path string) (func(), error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	tp, err := obs.NewTracerProvider(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := errors.Join(tp.Shutdown(ctx), f.Close()); err != nil {
			obs.Pkg("cli").Warn("flush traces", "path", path, "error", err)
		}
	}, nil
}
