package pipeline

import (
	"context"
	"errors"

	"github.com/aouyang1/go-forecast-pipeline/history"
)

// metricsTolerance is the relative difference allowed between runs on the same processed data
const metricsTolerance = 1e-9

// record stores the run in the history ledger and compares it with the previous run of the
// same dataset. Nothing is recorded when the ledger is disabled.
func (p *Pipeline) record(ctx context.Context, sum *Summary) error {
	path := p.cfg.HistoryPath()
	if path == "" {
		return nil
	}
	store, err := history.Open(ctx, path)
	if err != nil {
		return err
	}
	defer store.Close()

	dataset := p.src.Name()
	last, err := store.LastRun(ctx, dataset)
	switch {
	case errors.Is(err, history.ErrNoRuns):
		p.logger.Info("first recorded run for dataset")
	case err != nil:
		return err
	case last.ProcessedSHA256 != sum.ProcessedSHA256:
		p.logger.Info("processed data changed since last run",
			"last_run_id", last.ID.String(),
			"last_sha256", last.ProcessedSHA256,
			"sha256", sum.ProcessedSHA256,
		)
	case !last.Metrics.Equal(sum.Metrics, metricsTolerance):
		p.logger.Warn("metrics differ from last run on identical processed data",
			"last_run_id", last.ID.String(),
			"last_mae", last.Metrics.MAE,
			"mae", sum.Metrics.MAE,
		)
	default:
		p.logger.Info("processed data and metrics unchanged since last run", "last_run_id", last.ID.String())
	}

	return store.RecordRun(ctx, &history.Run{
		ID:              sum.RunID,
		Dataset:         dataset,
		StartedAt:       sum.StartedAt,
		Duration:        sum.Duration,
		ProcessedSHA256: sum.ProcessedSHA256,
		Rows:            sum.Report.RowsOut,
		Metrics:         sum.Metrics,
	})
}

// History lists the most recent runs of the configured dataset, newest first
func (p *Pipeline) History(ctx context.Context, limit int) ([]history.Run, error) {
	path := p.cfg.HistoryPath()
	if path == "" {
		return nil, nil
	}
	store, err := history.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.ListRuns(ctx, p.src.Name(), limit)
}
