package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/mailspend/internal/domain/ledger"
	"github.com/FACorreiaa/mailspend/internal/pipeline"
)

func TestWriteLedgerCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.csv")

	rows := []ledger.Transaction{
		{
			AmountMinor: 1800,
			Currency:    "USD",
			Direction:   ledger.DirectionDebit,
			Vendor:      "City Gym",
			Category:    "Health",
			OccurredAt:  time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
			Status:      ledger.StatusConfirmed,
		},
		{
			AmountMinor:      4250,
			Currency:         "USD",
			Direction:        ledger.DirectionDebit,
			Vendor:           "Acme Coffee",
			Category:         "Food & Drink",
			OccurredAt:       time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			Status:           ledger.StatusConfirmed,
			SourceMessageIDs: []string{"m1", "m2"},
			MergeCount:       1,
		},
	}

	require.NoError(t, WriteLedgerCSV(path, rows))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	lines := strings.Split(strings.TrimSpace(content), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "vendor")
	assert.Contains(t, lines[1], "Acme Coffee", "rows are ordered oldest first")
	assert.Contains(t, lines[1], "42.5")
	assert.Contains(t, lines[1], "m1;m2")
	assert.Contains(t, lines[2], "City Gym")
}

func TestAppendJobStatsCreatesAndAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job_stats.xlsx")
	started := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	first := pipeline.JobStats{
		JobName:    "ingest",
		StartedAt:  started,
		FinishedAt: started.Add(2 * time.Second),
		Processed:  10,
		Status:     "ok",
	}
	second := pipeline.JobStats{
		JobName:    "ingest",
		StartedAt:  started.Add(time.Hour),
		FinishedAt: started.Add(time.Hour + 5*time.Second),
		Processed:  3,
		Errors:     1,
		Status:     "partial",
	}

	require.NoError(t, AppendJobStats(path, first))
	require.NoError(t, AppendJobStats(path, second))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(statsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus one row per run")

	assert.Equal(t, "Job_Name", rows[0][0])
	assert.Equal(t, "ingest", rows[1][0])
	assert.Equal(t, "ok", rows[1][6])
	assert.Equal(t, "partial", rows[2][6])
}
