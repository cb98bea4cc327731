// Package export renders report payloads into documents. The table builders
// here are shared by every renderer so an XLSX file and a published
// spreadsheet carry the same cells.
package export

import (
	"hcms/internal/core"
	"hcms/internal/report"
)

const dateLayout = "2006-01-02"

// SummaryTable is the Metric/Value table of a doctor export.
func SummaryTable(exp report.DoctorExport) [][]any {
	m := exp.Metrics
	return [][]any{
		{"Metric", "Value"},
		{"Patients Handled", m.Patients},
		{"Services Performed", m.Services},
		{"Lab Records", m.Labs},
		{"Total Collected", int64(m.Collected)},
		{"Doctor Share (Payout)", int64(m.DoctorShare)},
		{"Hospital Share", int64(m.HospitalShare)},
	}
}

// ChargeTable lists charge rows under a header naming the item column.
func ChargeTable(t report.ChargeTable, itemHeader string) [][]any {
	out := make([][]any, 0, len(t.Rows)+2)
	out = append(out, []any{"Date", itemHeader, "Patient", "Amount", "Doc Share"})
	for _, r := range t.Rows {
		out = append(out, []any{r.Date.UTC().Format(dateLayout), r.Item, r.Patient, int64(r.Total), int64(r.DoctorShare)})
	}
	out = append(out, []any{"Total", "", "", int64(t.Total), int64(t.DoctorShare)})
	return out
}

// DoctorTable is the per-doctor payout table of the report screen.
func DoctorTable(rows []report.DoctorRow) [][]any {
	out := [][]any{{"Doctor", "Patients", "Services", "Labs", "Collected", "Doctor Share", "Hospital Share", "Payout"}}
	for _, r := range rows {
		out = append(out, []any{r.Doctor, r.Patients, r.Services, r.Labs,
			int64(r.Collected), int64(r.DoctorShare), int64(r.HospitalShare), int64(r.Payout)})
	}
	return out
}

func TotalsTable(t report.Totals, e report.ExpenseSummary) [][]any {
	return [][]any{
		{"Metric", "Value"},
		{"Total Collected", int64(t.Collected)},
		{"Doctor Share", int64(t.DoctorShare)},
		{"Hospital Share", int64(t.HospitalShare)},
		{"Referral Payout", int64(t.ReferralPayout)},
		{"Expenses", int64(e.Total)},
		{"Hospital Net", int64(e.Net)},
	}
}

func ReferenceTable(rows []report.ReferenceRow) [][]any {
	out := [][]any{{"Source", "Patients", "Avg Referral %"}}
	for _, r := range rows {
		out = append(out, []any{r.Source, r.Count, r.AvgReferralPercent})
	}
	return out
}

func OutboundTable(rows []report.OutboundRow) [][]any {
	out := [][]any{{"Date", "Patient", "Phone", "Doctor", "Referred Hospital", "Referred Doctor"}}
	for _, r := range rows {
		out = append(out, []any{r.Date.UTC().Format(dateLayout), r.Patient, r.Phone, r.Doctor,
			r.ReferredToHospital, r.ReferredToDoctor})
	}
	return out
}

func ExpenseTable(items []core.Expense) [][]any {
	out := [][]any{{"Date", "Expense", "Amount"}}
	for _, e := range items {
		out = append(out, []any{e.Date.UTC().Format(dateLayout), e.Name, int64(e.Amount)})
	}
	return out
}
