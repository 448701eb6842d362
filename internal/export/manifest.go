package export

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/receipts-compiler/internal/layout"
)

const manifestSheet = "Receipts"

// ManifestInfo is the run metadata printed above the group table.
type ManifestInfo struct {
	RunID       string
	SubjectName string
	PeriodLabel string
	CreatedAt   time.Time
}

// BuildManifest returns an XLSX workbook (as bytes) listing every input
// expense with how many of its receipts made it into the document.
func BuildManifest(doc *layout.Document, info ManifestInfo, logger *slog.Logger) ([]byte, error) {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if index, _ := f.GetSheetIndex(manifestSheet); index == -1 {
		if _, err := f.NewSheet(manifestSheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(manifestSheet)
	f.SetActiveSheet(activeIndex)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("xlsx delete default sheet: %w", err)
	}

	write := func(col, row int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(manifestSheet, cell, v)
	}

	write(1, 1, "Run")
	write(2, 1, info.RunID)
	write(1, 2, "Name")
	write(2, 2, info.SubjectName)
	write(1, 3, "Period")
	write(2, 3, info.PeriodLabel)
	write(1, 4, "Created")
	write(2, 4, info.CreatedAt.UTC().Format(time.RFC3339))

	const headerRow = 6
	headers := []string{"Expense ID", "Job No", "Status", "Receipts Found", "Receipts Included"}
	for i, h := range headers {
		write(i+1, headerRow, h)
	}

	row := headerRow + 1
	for _, g := range doc.Groups {
		write(1, row, g.ExpenseID)
		write(2, row, truncate(g.JobNo, 64))
		write(3, row, string(g.Status))
		write(4, row, g.Resolved)
		write(5, row, g.Placed)
		row++
	}

	_ = f.SetColWidth(manifestSheet, "A", "A", 38) // ids
	_ = f.SetColWidth(manifestSheet, "B", "B", 18)
	_ = f.SetColWidth(manifestSheet, "C", "C", 28)
	_ = f.SetColWidth(manifestSheet, "D", "E", 18)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	logger.Info("export.manifest.ok",
		"run_id", info.RunID,
		"rows", len(doc.Groups),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
