// Package export writes ledger and run artifacts for spreadsheet
// review: a CSV view of the ledger and an appended job-stats workbook.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/FACorreiaa/mailspend/internal/domain/ledger"
	"github.com/FACorreiaa/mailspend/pkg/money"
)

type ledgerRow struct {
	Date       string `csv:"date"`
	Vendor     string `csv:"vendor"`
	Category   string `csv:"category"`
	Direction  string `csv:"direction"`
	Amount     string `csv:"amount"`
	Currency   string `csv:"currency"`
	Status     string `csv:"status"`
	MergeCount int    `csv:"merge_count"`
	Sources    string `csv:"source_message_ids"`
}

// WriteLedgerCSV renders the full ledger to a CSV file, oldest first.
func WriteLedgerCSV(path string, rows []ledger.Transaction) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create export dir: %w", err)
	}

	sorted := append([]ledger.Transaction(nil), rows...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].OccurredAt.Before(sorted[j].OccurredAt)
	})

	records := make([]ledgerRow, 0, len(sorted))
	for _, tx := range sorted {
		amount := money.New(tx.AmountMinor, tx.Currency)
		records = append(records, ledgerRow{
			Date:       tx.OccurredAt.Format("2006-01-02"),
			Vendor:     tx.Vendor,
			Category:   tx.Category,
			Direction:  string(tx.Direction),
			Amount:     amount.Decimal().String(),
			Currency:   tx.Currency,
			Status:     string(tx.Status),
			MergeCount: tx.MergeCount,
			Sources:    strings.Join(tx.SourceMessageIDs, ";"),
		})
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create ledger csv: %w", err)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(&records, f); err != nil {
		return fmt.Errorf("failed to write ledger csv: %w", err)
	}
	return nil
}
