package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/mailspend/internal/pipeline"
)

const statsSheet = "Job Stats"

var statsHeader = []string{
	"Job_Name", "Start_Time", "End_Time", "Duration_Seconds",
	"Processed", "Errors", "Status",
}

// AppendJobStats appends one run record to the job-stats workbook,
// creating the workbook and header row on first use.
func AppendJobStats(path string, stats pipeline.JobStats) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create export dir: %w", err)
	}

	f, fresh, err := openStatsWorkbook(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if fresh {
		for i, col := range statsHeader {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			if err := f.SetCellValue(statsSheet, cell, col); err != nil {
				return fmt.Errorf("failed to write stats header: %w", err)
			}
		}
	}

	rows, err := f.GetRows(statsSheet)
	if err != nil {
		return fmt.Errorf("failed to read stats sheet: %w", err)
	}
	next := len(rows) + 1

	values := []any{
		stats.JobName,
		stats.StartedAt.Format("2006-01-02 15:04:05"),
		stats.FinishedAt.Format("2006-01-02 15:04:05"),
		stats.Duration().Seconds(),
		stats.Processed,
		stats.Errors,
		stats.Status,
	}
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, next)
		if err := f.SetCellValue(statsSheet, cell, v); err != nil {
			return fmt.Errorf("failed to write stats row: %w", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save stats workbook: %w", err)
	}
	return nil
}

func openStatsWorkbook(path string) (*excelize.File, bool, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		f := excelize.NewFile()
		f.SetSheetName("Sheet1", statsSheet)
		return f, true, nil
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("failed to open stats workbook: %w", err)
	}
	if idx, err := f.GetSheetIndex(statsSheet); err != nil || idx < 0 {
		if _, err := f.NewSheet(statsSheet); err != nil {
			return nil, false, fmt.Errorf("failed to create stats sheet: %w", err)
		}
		return f, true, nil
	}
	return f, false, nil
}
