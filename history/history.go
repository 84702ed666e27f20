// Package history keeps a ledger of pipeline runs in a sqlite database so reruns on the same
// input can be compared.
package history

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/aouyang1/go-forecast-pipeline/evaluate"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var ErrNoRuns = errors.New("no recorded runs")

const DefaultFilename = "history.db"

// Run is one completed pipeline run
type Run struct {
	ID              uuid.UUID
	Dataset         string
	StartedAt       time.Time
	Duration        time.Duration
	ProcessedSHA256 string
	Rows            int
	Metrics         evaluate.Metrics
}

// Store persists runs
type Store struct {
	conn *sql.DB
}

// Open opens or creates the ledger at path and initializes the schema
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("unable to create history directory, %w", err)
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("unable to open history database, %w", err)
	}
	conn.SetMaxOpenConns(1)

	s := &Store{conn: conn}
	if err := s.initSchema(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to initialize history schema, %w", err)
	}
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		dataset TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		duration_ns INTEGER NOT NULL,
		processed_sha256 TEXT NOT NULL,
		row_count INTEGER NOT NULL,
		mae REAL NOT NULL,
		rmse REAL NOT NULL,
		mape REAL NOT NULL,
		r2 REAL NOT NULL,
		n INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_dataset_started ON runs(dataset, started_at);
	`
	_, err := s.conn.ExecContext(ctx, schema)
	return err
}

// RecordRun inserts a run. A run without an id is assigned a new one.
func (s *Store) RecordRun(ctx context.Context, run *Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	query := `
	INSERT INTO runs (id, dataset, started_at, duration_ns, processed_sha256, row_count, mae, rmse, mape, r2, n)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.conn.ExecContext(ctx, query,
		run.ID.String(),
		run.Dataset,
		run.StartedAt.UnixNano(),
		int64(run.Duration),
		run.ProcessedSHA256,
		run.Rows,
		run.Metrics.MAE,
		run.Metrics.RMSE,
		run.Metrics.MAPE,
		run.Metrics.R2,
		run.Metrics.N,
	)
	if err != nil {
		return fmt.Errorf("unable to insert run, %w", err)
	}
	return nil
}

// LastRun returns the most recent run of a dataset
func (s *Store) LastRun(ctx context.Context, dataset string) (*Run, error) {
	runs, err := s.ListRuns(ctx, dataset, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("%s, %w", dataset, ErrNoRuns)
	}
	return &runs[0], nil
}

// ListRuns returns runs newest first. An empty dataset lists every dataset and a non positive
// limit returns all runs.
func (s *Store) ListRuns(ctx context.Context, dataset string, limit int) ([]Run, error) {
	query := `
	SELECT id, dataset, started_at, duration_ns, processed_sha256, row_count, mae, rmse, mape, r2, n
	FROM runs
	WHERE (? = '' OR dataset = ?)
	ORDER BY started_at DESC, id
	`
	args := []any{dataset, dataset}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("unable to query runs, %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run       Run
			id        string
			startedAt int64
			duration  int64
		)
		err := rows.Scan(
			&id,
			&run.Dataset,
			&startedAt,
			&duration,
			&run.ProcessedSHA256,
			&run.Rows,
			&run.Metrics.MAE,
			&run.Metrics.RMSE,
			&run.Metrics.MAPE,
			&run.Metrics.R2,
			&run.Metrics.N,
		)
		if err != nil {
			return nil, fmt.Errorf("unable to scan run, %w", err)
		}
		run.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("unable to parse run id, %w", err)
		}
		run.StartedAt = time.Unix(0, startedAt).UTC()
		run.Duration = time.Duration(duration)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("unable to iterate runs, %w", err)
	}
	return runs, nil
}

// Print writes the runs as an aligned table
func Print(w io.Writer, runs []Run) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDataset\tStarted\tDuration\tRows\tMAE\tRMSE\tMAPE\tR2\tProcessed")
	for _, run := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%.3f\t%.3f\t%.3f\t%.4f\t%s\n",
			run.ID.String()[:8],
			run.Dataset,
			run.StartedAt.Format(time.RFC3339),
			run.Duration.Round(time.Millisecond),
			run.Rows,
			run.Metrics.MAE,
			run.Metrics.RMSE,
			run.Metrics.MAPE,
			run.Metrics.R2,
			shortHash(run.ProcessedSHA256),
		)
	}
	return tw.Flush()
}

// HashFile returns the hex encoded sha256 of a file's contents
func HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("unable to open file to hash, %w", err)
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", fmt.Errorf("unable to hash file, %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	if h == "" {
		return "-"
	}
	return h
}
