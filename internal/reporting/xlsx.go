package reporting

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

// Sheet names in the rendered workbook.
const (
	sheetScreen  = "Screen"
	sheetSummary = "Summary"
)

// RenderXLSX renders the report as an Excel workbook: a Screen sheet with
// the full column set and a Summary sheet with run stats, coverage checks,
// and the fee assumptions.
func RenderXLSX(r *Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetScreen); err != nil {
		return nil, err
	}
	if err := writeScreenSheet(f, r); err != nil {
		return nil, err
	}
	if err := writeSummarySheet(f, r); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeScreenSheet(f *excelize.File, r *Report) error {
	headers := []interface{}{
		"Brand", "Reference", "Name", "Date", "Median Price", "Listings Active",
		"DOM Median", "eBay Activity", "Δ7d%", "Δ14d%", "Δ30d%", "Z90",
		"DOM Δ14%", "Supply Δ14%", "eBay Mom30", "Heat", "Hot",
		"Resale Net", "Max Bid (8%)", "Max Bid (10%)",
	}
	if err := f.SetSheetRow(sheetScreen, "A1", &headers); err != nil {
		return err
	}
	if err := f.SetColWidth(sheetScreen, "A", "C", 20); err != nil {
		return err
	}

	for i, row := range r.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []interface{}{
			row.Brand, row.Reference, row.Nickname, row.Date.Format("2006-01-02"),
			xlsxFloat(row.MedianPrice), xlsxInt(row.ListingsActive),
			xlsxFloat(row.DOMMedian), xlsxFloat(row.EbayActivity),
			xlsxFloat(row.Pct7), xlsxFloat(row.Pct14), xlsxFloat(row.Pct30),
			xlsxFloat(row.Z90), xlsxFloat(row.DOMDelta14), xlsxFloat(row.SupplyDelta14),
			xlsxFloat(row.EbayMom30), row.Heat, row.IsHot,
			xlsxFloat(row.ResaleNet), xlsxFloat(row.MaxBidMarginLow), xlsxFloat(row.MaxBidMarginHigh),
		}
		if err := f.SetSheetRow(sheetScreen, cell, &values); err != nil {
			return err
		}
	}

	return styleScreenSheet(f, len(r.Rows))
}

// styleScreenSheet applies the header font and number formats. Builtin
// format 3 is "#,##0", format 2 is "0.00".
func styleScreenSheet(f *excelize.File, rows int) error {
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetScreen, "A1", "T1", bold); err != nil {
		return err
	}
	if rows == 0 {
		return nil
	}
	last := rows + 1

	money, err := f.NewStyle(&excelize.Style{NumFmt: 3})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetScreen, "E2", fmt.Sprintf("E%d", last), money); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetScreen, "R2", fmt.Sprintf("T%d", last), money); err != nil {
		return err
	}

	twoDecimals, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheetScreen, "P2", fmt.Sprintf("P%d", last), twoDecimals)
}

func writeSummarySheet(f *excelize.File, r *Report) error {
	if _, err := f.NewSheet(sheetSummary); err != nil {
		return err
	}

	stats := [][]interface{}{
		{"Run Date", r.RunDate.Format("2006-01-02")},
		{"Generated", r.GeneratedAt.Format(time.RFC3339)},
		{"Total Watches", r.Summary.TotalWatches},
		{"Hot Watches", r.Summary.HotWatches},
		{"Avg Heat Score", r.Summary.AvgHeat},
		{"Max Heat Score", r.Summary.MaxHeat},
	}
	for i := range stats {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetSummary, cell, &stats[i]); err != nil {
			return err
		}
	}

	headerRow := len(stats) + 2
	header := []interface{}{"Coverage Check", "Threshold", "Actual", "Status"}
	cell, err := excelize.CoordinatesToCellName(1, headerRow)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheetSummary, cell, &header); err != nil {
		return err
	}
	for i, check := range r.Coverage.Checks {
		status := "FAIL"
		if check.Pass {
			status = "PASS"
		}
		row := []interface{}{check.Name, check.Threshold, check.Actual, status}
		cell, err := excelize.CoordinatesToCellName(1, headerRow+1+i)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetSummary, cell, &row); err != nil {
			return err
		}
	}

	noteRow := headerRow + len(r.Coverage.Checks) + 2
	cell, err = excelize.CoordinatesToCellName(1, noteRow)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheetSummary, cell, feeLine(r.Fees))
}

// xlsxFloat converts an optional float to a cell value, blank when missing.
func xlsxFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// xlsxInt converts an optional integer to a cell value, blank when missing.
func xlsxInt(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
