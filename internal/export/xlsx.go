package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"hcms/internal/report"
)

const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type section struct {
	sheet string
	title []string
	rows  [][]any
}

// WriteDoctorXLSX renders a doctor export as a workbook with Summary,
// Services and Labs sheets.
func WriteDoctorXLSX(w io.Writer, exp report.DoctorExport) error {
	return writeWorkbook(w, []section{
		{sheet: "Summary", title: []string{exp.Title(), exp.RangeLabel()}, rows: SummaryTable(exp)},
		{sheet: "Services", rows: ChargeTable(exp.Services, "Service")},
		{sheet: "Labs", rows: ChargeTable(exp.Labs, "Lab Test")},
	})
}

// WriteScreenXLSX renders the full report screen, one sheet per table.
func WriteScreenXLSX(w io.Writer, s report.Screen) error {
	sum := s.Summary
	return writeWorkbook(w, []section{
		{sheet: "Totals", rows: TotalsTable(sum.Totals, sum.Expenses)},
		{sheet: "Doctors", rows: DoctorTable(sum.Doctors)},
		{sheet: "References", rows: ReferenceTable(sum.References)},
		{sheet: "Outbound", rows: OutboundTable(sum.Outbound)},
		{sheet: "Services", rows: ChargeTable(s.Services, "Service")},
		{sheet: "Labs", rows: ChargeTable(s.Labs, "Lab Test")},
		{sheet: "Expenses", rows: ExpenseTable(sum.Expenses.Items)},
	})
}

// SaveDoctorXLSX writes the export into dir under its canonical file name and
// returns the full path.
func SaveDoctorXLSX(dir string, exp report.DoctorExport) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}
	path := filepath.Join(dir, exp.FileName("xlsx"))
	if filepath.Dir(path) != filepath.Clean(dir) {
		return "", fmt.Errorf("export file name %q escapes %s", exp.FileName("xlsx"), dir)
	}
	tmp, err := os.CreateTemp(dir, ".export-*.xlsx")
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteDoctorXLSX(tmp, exp); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close export file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("publish export file: %w", err)
	}
	return path, nil
}

func writeWorkbook(w io.Writer, sections []section) error {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"F0F0F0"}},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for i, sec := range sections {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sec.sheet); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sec.sheet); err != nil {
			return fmt.Errorf("create sheet %s: %w", sec.sheet, err)
		}

		row := 1
		for _, line := range sec.title {
			if err := f.SetCellValue(sec.sheet, cell(1, row), line); err != nil {
				return err
			}
			row++
		}
		if len(sec.title) > 0 {
			row++
		}
		header := row
		for _, r := range sec.rows {
			if err := f.SetSheetRow(sec.sheet, cell(1, row), &r); err != nil {
				return fmt.Errorf("write %s row %d: %w", sec.sheet, row, err)
			}
			row++
		}
		if len(sec.rows) > 0 {
			if err := f.SetRowStyle(sec.sheet, header, header, bold); err != nil {
				return fmt.Errorf("style %s header: %w", sec.sheet, err)
			}
		}
		if err := f.SetColWidth(sec.sheet, "A", "H", 18); err != nil {
			return fmt.Errorf("size %s columns: %w", sec.sheet, err)
		}
	}
	f.SetActiveSheet(0)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
