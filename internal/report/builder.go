package report

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"

	"hcms/internal/core"
)

const (
	// Placeholder is shown for a patient or doctor that cannot be resolved.
	Placeholder = "—"
	// UnknownItem is shown for a catalog item that no longer exists.
	UnknownItem = "Unknown"
)

var (
	ErrDoctorRequired = errors.New("doctor is required")
	ErrDoctorNotFound = errors.New("doctor not found")
)

type ChargeKind string

const (
	KindService ChargeKind = "service"
	KindLab     ChargeKind = "lab"
)

// ChargeRow is one service or lab charge with its resolved names and shares.
type ChargeRow struct {
	ID            string     `json:"id"`
	Kind          ChargeKind `json:"kind"`
	Date          time.Time  `json:"dateISO"`
	Item          string     `json:"item"`
	Patient       string     `json:"patient"`
	Doctor        string     `json:"doctor"`
	DoctorID      string     `json:"doctorId,omitempty"`
	Total         core.Money `json:"total"`
	DoctorShare   core.Money `json:"doctorShare"`
	HospitalShare core.Money `json:"hospitalShare"`
}

type ChargeTable struct {
	Rows          []ChargeRow `json:"rows"`
	Count         int         `json:"count"`
	Total         core.Money  `json:"total"`
	DoctorShare   core.Money  `json:"doctorShare"`
	HospitalShare core.Money  `json:"hospitalShare"`
}

func (t *ChargeTable) append(r ChargeRow) {
	t.Rows = append(t.Rows, r)
	t.Count++
	t.Total += r.Total
	t.DoctorShare += r.DoctorShare
	t.HospitalShare += r.HospitalShare
}

// Screen is the multi-table report view: the summary plus service and lab
// detail tables.
type Screen struct {
	Summary  Summary     `json:"summary"`
	Services ChargeTable `json:"services"`
	Labs     ChargeTable `json:"labs"`
}

// BuildScreen aggregates snap for sel and adds the detail tables, restricted
// to the selected doctor when one is set.
func BuildScreen(snap core.Snapshot, sel Selection) (Screen, error) {
	sum, err := Aggregate(snap, sel)
	if err != nil {
		return Screen{}, err
	}
	idx := core.NewIndex(snap)
	screen := Screen{
		Summary:  sum,
		Services: ChargeTable{Rows: []ChargeRow{}},
		Labs:     ChargeTable{Rows: []ChargeRow{}},
	}

	for _, r := range snap.ServiceRecords {
		item := UnknownItem
		if s, ok := idx.Service(r.ServiceID); ok {
			item = s.Name
		}
		row, keep, err := chargeRow(idx, sel, KindService, r.ChargeRecord, item)
		if err != nil {
			return Screen{}, err
		}
		if keep {
			screen.Services.append(row)
		}
	}
	for _, r := range snap.LabRecords {
		item := UnknownItem
		if t, ok := idx.LabTest(r.LabTestID); ok {
			item = t.Name
		}
		row, keep, err := chargeRow(idx, sel, KindLab, r.ChargeRecord, item)
		if err != nil {
			return Screen{}, err
		}
		if keep {
			screen.Labs.append(row)
		}
	}
	sortCharges(screen.Services.Rows)
	sortCharges(screen.Labs.Rows)
	return screen, nil
}

func chargeRow(idx *core.Index, sel Selection, kind ChargeKind, r core.ChargeRecord, item string) (ChargeRow, bool, error) {
	if !sel.Range.Contains(r.Date) {
		return ChargeRow{}, false, nil
	}
	docID, sh, err := chargeShares(idx, r)
	if err != nil {
		return ChargeRow{}, false, fmt.Errorf("%s record: %w", kind, err)
	}
	if sel.DoctorID != "" && docID != sel.DoctorID {
		return ChargeRow{}, false, nil
	}
	return ChargeRow{
		ID:            r.ID,
		Kind:          kind,
		Date:          r.Date,
		Item:          item,
		Patient:       chargePatientName(idx, r, Placeholder),
		Doctor:        doctorName(idx, docID),
		DoctorID:      docID,
		Total:         r.Total,
		DoctorShare:   sh.DoctorShare,
		HospitalShare: sh.HospitalShare,
	}, true, nil
}

// sortCharges orders rows newest first.
func sortCharges(rows []ChargeRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.After(rows[j].Date)
		}
		return rows[i].ID < rows[j].ID
	})
}

// DoctorExport is the single-doctor payload rendered into export documents.
type DoctorExport struct {
	Doctor   core.Doctor   `json:"doctor"`
	Range    core.DayRange `json:"range"`
	Metrics  DoctorMetrics `json:"metrics"`
	Services ChargeTable   `json:"services"`
	Labs     ChargeTable   `json:"labs"`
}

// BuildDoctorExport builds the export for one doctor over rng. It is derived
// from the same screen the doctor-filtered report shows, so every figure
// matches that view exactly.
func BuildDoctorExport(snap core.Snapshot, doctorID string, rng core.DayRange) (DoctorExport, error) {
	if doctorID == "" {
		return DoctorExport{}, ErrDoctorRequired
	}
	doc, ok := core.NewIndex(snap).Doctor(doctorID)
	if !ok {
		return DoctorExport{}, fmt.Errorf("%w: %s", ErrDoctorNotFound, doctorID)
	}
	screen, err := BuildScreen(snap, Selection{Range: rng, DoctorID: doctorID})
	if err != nil {
		return DoctorExport{}, err
	}
	exp := DoctorExport{
		Doctor:   doc,
		Range:    rng,
		Services: screen.Services,
		Labs:     screen.Labs,
	}
	for _, row := range screen.Summary.Doctors {
		if row.DoctorID == doctorID {
			exp.Metrics = row.DoctorMetrics
			break
		}
	}
	return exp, nil
}

// MetricRow is a label/value pair of the export's summary table.
type MetricRow struct {
	Label string
	Value string
}

// SummaryRows returns the summary metrics table in display order.
func (e DoctorExport) SummaryRows() []MetricRow {
	m := e.Metrics
	return []MetricRow{
		{"Patients Handled", fmt.Sprint(m.Patients)},
		{"Services Performed", fmt.Sprint(m.Services)},
		{"Lab Records", fmt.Sprint(m.Labs)},
		{"Total Collected", m.Collected.String()},
		{"Doctor Share (Payout)", m.DoctorShare.String()},
		{"Hospital Share", m.HospitalShare.String()},
	}
}

// Title is the heading printed above the export.
func (e DoctorExport) Title() string {
	return "Doctor Report: " + e.Doctor.Name
}

// RangeLabel describes the export's date range; open bounds print as "all".
func (e DoctorExport) RangeLabel() string {
	return fmt.Sprintf("Date Range: %s → %s", boundKey(e.Range.Start), boundKey(e.Range.End))
}

var (
	whitespace = regexp.MustCompile(`\s+`)
	unsafeRune = regexp.MustCompile(`[^\p{L}\p{N}._-]`)
)

// FileName is report_<Doctor_Name>_<start>_to_<end>.<ext>. Whitespace runs
// and any rune other than a letter, digit, '.', '-' or '_' become '_', so
// the name never carries a path separator.
func (e DoctorExport) FileName(ext string) string {
	name := whitespace.ReplaceAllString(e.Doctor.Name, "_")
	name = unsafeRune.ReplaceAllString(name, "_")
	return fmt.Sprintf("report_%s_%s_to_%s.%s", name, boundKey(e.Range.Start), boundKey(e.Range.End), ext)
}

func boundKey(d core.Date) string {
	if d.IsEmpty() {
		return "all"
	}
	return d.Key()
}

func doctorName(idx *core.Index, id string) string {
	if d, ok := idx.Doctor(id); ok {
		return d.Name
	}
	return Placeholder
}

// chargePatientName prefers the name captured on the record, then the linked
// patient's name, then fallback.
func chargePatientName(idx *core.Index, r core.ChargeRecord, fallback string) string {
	if r.PatientName != "" {
		return r.PatientName
	}
	if p, ok := idx.Patient(r.PatientID); ok && p.Name != "" {
		return p.Name
	}
	return fallback
}

func dashIfBlank(s string) string {
	if s == "" {
		return Placeholder
	}
	return s
}
