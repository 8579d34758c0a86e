// Package cli provides the command-line interface for tellix. It implements
// the Cobra command tree: the stdio, MCP and HTTP adapters plus commands for
// running probes and managing API keys by hand.
package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/anstrom/tellix/internal/config"
	"github.com/anstrom/tellix/internal/logging"
	"github.com/anstrom/tellix/internal/probe"
)

const (
	envPrefix = "TELLIX"

	// shutdownGrace bounds the wait for in-flight requests after a signal.
	// It covers the executor's kill and pipe wait delay.
	shutdownGrace = 5 * time.Second
)

var (
	cfgFile string
	verbose bool
)

// Build information, set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "tellix",
	Short: "HTTP reconnaissance for agents",
	Long: `Tellix wraps the httpx HTTP prober behind small request protocols so that
automated agents can probe web targets and get structured JSON back.

It speaks a newline-delimited JSON protocol on stdin/stdout, the Model Context
Protocol for tool-calling agents, and an HTTP API with WebSocket support.`,
	Version:       getVersion(),
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the root command. ctx is canceled on SIGINT or SIGTERM.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml or ~/.config/tellix/config.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	flags.String("binary", "", "probing binary name or path (default httpx)")
	flags.String("scratch-dir", "", "directory for per-invocation workspaces")
	flags.Duration("timeout", 0, "upper bound on a single binary run")

	bindFlags(flags, map[string]string{
		"probe.binary":      "binary",
		"probe.scratch_dir": "scratch-dir",
		"probe.timeout":     "timeout",
	})
}

// bindFlags binds flags to viper keys, warning on failure like the rest of
// the startup path.
func bindFlags(flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to bind %s flag: %v\n", name, err)
		}
	}
}

// initConfig locates the config file and enables environment overrides.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "tellix"))
		}
		viper.SetConfigName("config")
	}

	// TELLIX_PROBE_BINARY overrides probe.binary and so on
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !stderrors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "Warning: failed to read config: %v\n", err)
		}
	} else if verbose {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig loads the discovered config file and applies flag and
// environment overrides on top of it.
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		path = viper.ConfigFileUsed()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	applyOverrides(cfg, viper.GetViper())
	if verbose {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyOverrides copies explicitly set viper keys onto cfg. Unset flags do
// not count, so file values survive.
func applyOverrides(cfg *config.Config, v *viper.Viper) {
	if v.IsSet("probe.binary") {
		cfg.Probe.Binary = v.GetString("probe.binary")
	}
	if v.IsSet("probe.scratch_dir") {
		cfg.Probe.ScratchDir = v.GetString("probe.scratch_dir")
	}
	if v.IsSet("probe.timeout") {
		cfg.Probe.Timeout = v.GetDuration("probe.timeout")
	}
	if v.IsSet("probe.max_concurrent") {
		cfg.Probe.MaxConcurrent = v.GetInt("probe.max_concurrent")
	}
	if v.IsSet("api.listen_addr") {
		cfg.API.ListenAddr = v.GetString("api.listen_addr")
	}
	if v.IsSet("api.port") {
		cfg.API.Port = v.GetInt("api.port")
	}
	if v.IsSet("logging.level") {
		cfg.Logging.Level = v.GetString("logging.level")
	}
	if v.IsSet("logging.format") {
		cfg.Logging.Format = v.GetString("logging.format")
	}
}

// app bundles what every adapter command needs.
type app struct {
	cfg     *config.Config
	logger  *logging.Logger
	prober  *probe.Prober
	janitor *probe.Janitor
}

// newApp loads configuration, installs the default logger and creates
// the prober.
func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.LoggerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	logging.SetDefault(logger)

	return &app{
		cfg:    cfg,
		logger: logger,
		prober: probe.New(probe.OptionsFromConfig(cfg.Probe), nil, logger),
	}, nil
}

// startJanitor starts the scratch sweeper when it is enabled.
func (a *app) startJanitor() error {
	if !a.cfg.Janitor.Enabled {
		return nil
	}
	a.janitor = probe.NewJanitor(a.cfg.Probe.ScratchDir, a.cfg.Janitor.Schedule, a.cfg.Janitor.MaxAge, a.logger)
	return a.janitor.Start()
}

func (a *app) close() {
	if a.janitor != nil {
		a.janitor.Stop()
	}
	if err := a.prober.Close(); err != nil {
		a.logger.Warn("Failed to close prober", "error", err)
	}
}

// runUntilCanceled runs serve and returns when it finishes or ctx is
// canceled. After cancellation it waits up to shutdownGrace for serve so
// in-flight invocations can kill their process and remove their workspace.
// A read blocked on stdin cannot observe ctx, so serve may be abandoned once
// the grace period ends.
func runUntilCanceled(ctx context.Context, serve func(context.Context) error) error {
	errCh := make(chan error, 1)
	go func() { errCh <- serve(ctx) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	select {
	case err := <-errCh:
		if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	case <-time.After(shutdownGrace):
		return nil
	}
}

func getVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime)
}

// SetVersion sets the version information (called from main).
func SetVersion(v, c, bt string) {
	version = v
	commit = c
	buildTime = bt
	rootCmd.Version = getVersion()
}
