package main

import (
	"github.com/aouyang1/go-forecast-pipeline/pipeline"
	"github.com/spf13/cobra"
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download the raw dataset",
	RunE: stepRunner("download", func(cmd *cobra.Command, p *pipeline.Pipeline) error {
		return p.Download(cmd.Context())
	}),
}

var preprocessCmd = &cobra.Command{
	Use:   "preprocess",
	Short: "Clean the raw dataset into a ds,y series",
	RunE: stepRunner("preprocess", func(cmd *cobra.Command, p *pipeline.Pipeline) error {
		_, err := p.Preprocess(cmd.Context())
		return err
	}),
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Fit the model and forecast the horizon",
	RunE: stepRunner("train", func(cmd *cobra.Command, p *pipeline.Pipeline) error {
		_, err := p.Train(cmd.Context())
		return err
	}),
}

var visualizeCmd = &cobra.Command{
	Use:   "visualize",
	Short: "Render plots, the dashboard and the future forecast table",
	RunE: stepRunner("visualize", func(cmd *cobra.Command, p *pipeline.Pipeline) error {
		return p.Visualize(cmd.Context())
	}),
}

func init() {
	rootCmd.AddCommand(downloadCmd, preprocessCmd, trainCmd, visualizeCmd)
}

// stepRunner runs a single pipeline step after creating the output directories
func stepRunner(name string, fn func(*cobra.Command, *pipeline.Pipeline) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline()
		if err != nil {
			return err
		}
		if err := p.CreateDirectories(); err != nil {
			return err
		}
		if err := fn(cmd, p); err != nil {
			p.Logger().Error("step failed", "step", name, "error", err)
			return err
		}
		return nil
	}
}
