package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aouyang1/go-forecast-pipeline/config"
	"github.com/aouyang1/go-forecast-pipeline/pipeline"
	"github.com/pkg/profile"
	"github.com/spf13/cobra"
)

// Profile modes
const (
	profileCPU = "cpu"
	profileMem = "mem"
)

var (
	cfgFile     string
	dataset     string
	rootDir     string
	profileMode string
	verbose     bool

	profiler interface{ Stop() }
)

var rootCmd = &cobra.Command{
	Use:   "forecast-pipeline",
	Short: "Download, fit, forecast and plot a time series",
	Long: `forecast-pipeline runs a forecasting pipeline over the airline passengers or a stock
price dataset. Each step writes its outputs under the root directory:

  data/raw                 downloaded dataset
  data/processed           cleaned ds,y series
  models                   model, forecast and metrics
  results/visualizations   plots, dashboard and future forecast table

Running without a subcommand executes every step in order.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
	RunE:               runAll,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml when present)")
	flags.StringVar(&dataset, "dataset", "", "dataset preset (airline or stock)")
	flags.StringVar(&rootDir, "root", "", "output root directory (default is the config root)")
	flags.StringVar(&profileMode, "profile", "", "write a cpu or mem profile to the working directory")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func setup(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	switch profileMode {
	case "":
	case profileCPU:
		profiler = profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.Quiet)
	case profileMem:
		profiler = profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.Quiet)
	default:
		return fmt.Errorf("unknown profile mode %q, expected %s or %s", profileMode, profileCPU, profileMem)
	}
	return nil
}

func teardown(cmd *cobra.Command, args []string) error {
	if profiler != nil {
		profiler.Stop()
	}
	return nil
}

// newPipeline loads the configuration and builds the pipeline
func newPipeline() (*pipeline.Pipeline, error) {
	cfg, err := config.Load(cfgFile, dataset)
	if err != nil {
		slog.Error("unable to load configuration", "error", err)
		return nil, err
	}
	if rootDir != "" {
		cfg.Root = rootDir
	}
	p, err := pipeline.New(cfg)
	if err != nil {
		slog.Error("unable to create pipeline", "error", err)
		return nil, err
	}
	return p, nil
}

func runAll(cmd *cobra.Command, args []string) error {
	p, err := newPipeline()
	if err != nil {
		return err
	}
	if _, err := p.Run(cmd.Context()); err != nil {
		p.Logger().Error("pipeline failed", "error", err)
		return err
	}
	return nil
}
