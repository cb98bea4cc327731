package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"hcms/internal/core"
)

// EntryKind distinguishes the transaction types shown in the records ledger.
type EntryKind string

const (
	EntryPatient EntryKind = "patient"
	EntryService EntryKind = "service"
	EntryLab     EntryKind = "lab"
)

// GeneralPatient labels service and lab entries not tied to anyone.
const GeneralPatient = "(General)"

func ParseEntryKind(s string) (EntryKind, error) {
	switch k := EntryKind(strings.ToLower(strings.TrimSpace(s))); k {
	case "", "all":
		return "", nil
	case EntryPatient, EntryService, EntryLab:
		return k, nil
	default:
		return "", fmt.Errorf("unknown record type %q", s)
	}
}

type LedgerEntry struct {
	ID      string     `json:"id"`
	Kind    EntryKind  `json:"type"`
	Date    time.Time  `json:"dateISO"`
	Name    string     `json:"name"`
	Patient string     `json:"patientName"`
	Doctor  string     `json:"doctorName,omitempty"`
	Amount  core.Money `json:"amount"`
	Details string     `json:"details"`
}

// LedgerFilter selects ledger entries. A blank kind means every kind.
type LedgerFilter struct {
	Kind   EntryKind
	Range  core.DayRange
	Search string
}

type Ledger struct {
	Entries []LedgerEntry `json:"entries"`
	Total   core.Money    `json:"total"`
}

// BuildLedger lists every patient registration, service and lab charge that
// matches f, newest first. Doctor names use the same attribution as reports.
func BuildLedger(snap core.Snapshot, f LedgerFilter) Ledger {
	idx := core.NewIndex(snap)
	var all []LedgerEntry

	for _, p := range snap.Patients {
		all = append(all, LedgerEntry{
			ID:      p.ID,
			Kind:    EntryPatient,
			Date:    p.Date,
			Name:    "Patient Registration",
			Patient: p.Name,
			Doctor:  optionalDoctorName(idx, p.DoctorID),
			Amount:  p.Fee,
			Details: fmt.Sprintf("%s • %s • %dy %s", p.Name, p.Phone, p.Age, p.Gender),
		})
	}
	for _, r := range snap.ServiceRecords {
		name := "Service"
		if s, ok := idx.Service(r.ServiceID); ok {
			name = s.Name
		}
		all = append(all, chargeEntry(idx, EntryService, r.ChargeRecord, name))
	}
	for _, r := range snap.LabRecords {
		name := "Lab Test"
		if t, ok := idx.LabTest(r.LabTestID); ok {
			name = t.Name
		}
		all = append(all, chargeEntry(idx, EntryLab, r.ChargeRecord, name))
	}

	term := strings.ToLower(strings.TrimSpace(f.Search))
	out := Ledger{Entries: []LedgerEntry{}}
	for _, e := range all {
		if f.Kind != "" && e.Kind != f.Kind {
			continue
		}
		if !f.Range.Contains(e.Date) {
			continue
		}
		if term != "" && !e.matches(term) {
			continue
		}
		out.Entries = append(out.Entries, e)
		out.Total += e.Amount
	}
	sort.SliceStable(out.Entries, func(i, j int) bool {
		a, b := out.Entries[i], out.Entries[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		return a.ID < b.ID
	})
	return out
}

func chargeEntry(idx *core.Index, kind EntryKind, r core.ChargeRecord, item string) LedgerEntry {
	// linked patient first here, unlike report rows
	patient := GeneralPatient
	if p, ok := idx.Patient(r.PatientID); ok && p.Name != "" {
		patient = p.Name
	} else if r.PatientName != "" {
		patient = r.PatientName
	}
	return LedgerEntry{
		ID:      r.ID,
		Kind:    kind,
		Date:    r.Date,
		Name:    item,
		Patient: patient,
		Doctor:  optionalDoctorName(idx, idx.EffectiveDoctorID(r)),
		Amount:  r.Total,
		Details: item + " → " + patient,
	}
}

func (e LedgerEntry) matches(term string) bool {
	for _, field := range []string{e.Name, e.Patient, e.Doctor, e.Details} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

func optionalDoctorName(idx *core.Index, id string) string {
	if d, ok := idx.Doctor(id); ok {
		return d.Name
	}
	return ""
}
