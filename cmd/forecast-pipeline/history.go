package main

import (
	"fmt"

	"github.com/aouyang1/go-forecast-pipeline/history"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded runs of the dataset",
	Long:  `Displays the most recent pipeline runs from the history ledger, newest first.`,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum number of runs to show, 0 for all")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	p, err := newPipeline()
	if err != nil {
		return err
	}
	if p.Config().HistoryPath() == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "history ledger is disabled")
		return nil
	}
	runs, err := p.History(cmd.Context(), historyLimit)
	if err != nil {
		return fmt.Errorf("unable to list runs, %w", err)
	}
	if len(runs) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "no runs recorded in %s\n", p.Config().HistoryPath())
		return nil
	}
	return history.Print(cmd.OutOrStdout(), runs)
}
