package history

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aouyang1/go-forecast-pipeline/evaluate"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "state", DefaultFilename))
	require.Nil(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndList(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.LastRun(ctx, "airline")
	assert.ErrorIs(t, err, ErrNoRuns)

	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	runs := []*Run{
		{Dataset: "airline", StartedAt: start, Duration: 1500 * time.Millisecond, ProcessedSHA256: "aaa", Rows: 144, Metrics: evaluate.Metrics{MAE: 1, RMSE: 2, MAPE: 3, R2: 0.9, N: 144}},
		{Dataset: "aapl", StartedAt: start.Add(time.Minute), Duration: time.Second, ProcessedSHA256: "bbb", Rows: 1000},
		{Dataset: "airline", StartedAt: start.Add(time.Hour), Duration: 2 * time.Second, ProcessedSHA256: "ccc", Rows: 144, Metrics: evaluate.Metrics{MAE: 1.5, N: 144}},
	}
	for _, run := range runs {
		require.Nil(t, s.RecordRun(ctx, run))
		assert.NotEqual(t, uuid.Nil, run.ID)
	}

	last, err := s.LastRun(ctx, "airline")
	require.Nil(t, err)
	assert.Equal(t, runs[2].ID, last.ID)
	assert.Equal(t, "ccc", last.ProcessedSHA256)
	assert.True(t, runs[2].StartedAt.Equal(last.StartedAt))
	assert.Equal(t, 2*time.Second, last.Duration)
	assert.Equal(t, runs[2].Metrics, last.Metrics)

	testData := map[string]struct {
		dataset  string
		limit    int
		expected []uuid.UUID
	}{
		"all": {
			expected: []uuid.UUID{runs[2].ID, runs[1].ID, runs[0].ID},
		},
		"dataset": {
			dataset:  "airline",
			expected: []uuid.UUID{runs[2].ID, runs[0].ID},
		},
		"limit": {
			limit:    1,
			expected: []uuid.UUID{runs[2].ID},
		},
		"unknown dataset": {
			dataset: "msft",
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			res, err := s.ListRuns(ctx, td.dataset, td.limit)
			require.Nil(t, err)
			ids := make([]uuid.UUID, 0, len(res))
			for _, run := range res {
				ids = append(ids, run.ID)
			}
			if len(td.expected) == 0 {
				assert.Empty(t, ids)
				return
			}
			assert.Equal(t, td.expected, ids)
		})
	}

	// duplicate ids are rejected
	assert.NotNil(t, s.RecordRun(ctx, runs[0]))
}

func TestReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), DefaultFilename)

	s, err := Open(ctx, path)
	require.Nil(t, err)
	run := &Run{Dataset: "airline", StartedAt: time.Now(), ProcessedSHA256: "abc"}
	require.Nil(t, s.RecordRun(ctx, run))
	require.Nil(t, s.Close())

	s, err = Open(ctx, path)
	require.Nil(t, err)
	defer s.Close()
	last, err := s.LastRun(ctx, "airline")
	require.Nil(t, err)
	assert.Equal(t, run.ID, last.ID)
}

func TestPrint(t *testing.T) {
	id := uuid.MustParse("0b5e7ac4-0d3b-4f4e-9d8f-2f1b7f0c9a11")
	runs := []Run{
		{
			ID:              id,
			Dataset:         "airline",
			StartedAt:       time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
			Duration:        1234567 * time.Microsecond,
			ProcessedSHA256: "0123456789abcdef",
			Rows:            144,
			Metrics:         evaluate.Metrics{MAE: 10.5, RMSE: 12.25, MAPE: 4.125, R2: 0.97654},
		},
	}

	var buf bytes.Buffer
	require.Nil(t, Print(&buf, runs))
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	fields := strings.Fields(lines[1])
	assert.Equal(t, []string{
		"0b5e7ac4", "airline", "2024-01-01T12:00:00Z", "1.235s", "144",
		"10.500", "12.250", "4.125", "0.9765", "0123456789ab",
	}, fields)
}

func TestHashFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	require.Nil(t, os.WriteFile(path, []byte("abc"), 0o644))

	h, err := HashFile(path)
	require.Nil(t, err)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", h)

	_, err = HashFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.NotNil(t, err)
}
