package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/pd-runtime/config"
	"github.com/wippyai/pd-runtime/engine"
	"github.com/wippyai/pd-runtime/metrics"
	"github.com/wippyai/pd-runtime/pd"
)

// app holds what every subcommand shares once flags are parsed.
var app struct {
	cfg      *config.Config
	log      *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Collector
}

var rootCmd = &cobra.Command{
	Use:   "pdrun",
	Short: "Run Pure Data patches from the command line",
	Long: `pdrun opens a Pure Data patch in its own engine instance, delivers what the
patch sends to subscribed receivers, and lets you send messages into it.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "YAML configuration file")
	flags.String("engine", "", "engine backend: sim or libpd")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-file", "", "write logs to this file instead of stderr")
	flags.StringSlice("path", nil, "additional patch search path (repeatable)")
}

// setup loads configuration, applies flag overrides and builds the logger
// and metrics shared by the subcommands.
func setup(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if flags.Changed("engine") {
		cfg.Engine, _ = flags.GetString("engine")
	}
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if extra, _ := flags.GetStringSlice("path"); len(extra) > 0 {
		cfg.SearchPaths = append(cfg.SearchPaths, extra...)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logFile, _ := flags.GetString("log-file")
	log, err := buildLogger(cfg, logFile)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	engine.SetLogger(log.Named("engine"))
	pd.SetLogger(log.Named("pd"))

	app.registry = prometheus.NewRegistry()
	app.metrics, err = metrics.New(app.registry)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	app.cfg = cfg
	app.log = log
	return nil
}

func buildLogger(cfg *config.Config, file string) (*zap.Logger, error) {
	lvl, err := cfg.ZapLevel()
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if cfg.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	if file != "" {
		zc.OutputPaths = []string{file}
		zc.ErrorOutputPaths = []string{file}
	}
	return zc.Build()
}
