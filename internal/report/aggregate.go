// Package report folds a record snapshot into the revenue summaries, doctor
// payout rows and export payloads the clinic works from. Everything here is a
// pure function of its inputs.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"hcms/internal/core"
)

// UnknownReference is the bucket for patients without an inbound source.
const UnknownReference = "Unknown"

// Selection narrows a report. The range applies to every figure; the doctor,
// when set, narrows the doctor rows, outbound referrals and detail tables.
type Selection struct {
	Range    core.DayRange `json:"range"`
	DoctorID string        `json:"doctorId,omitempty"`
}

// ShareSplit is a doctor/hospital pair of summed shares.
type ShareSplit struct {
	DoctorShare   core.Money `json:"doctorShare"`
	HospitalShare core.Money `json:"hospitalShare"`
}

func (s *ShareSplit) add(sh core.Shares) {
	s.DoctorShare += sh.DoctorShare
	s.HospitalShare += sh.HospitalShare
}

type Totals struct {
	Collected      core.Money `json:"collected"`
	DoctorShare    core.Money `json:"doctorShare"`
	HospitalShare  core.Money `json:"hospitalShare"`
	ReferralPayout core.Money `json:"referralPayout"`
	FromPatients   ShareSplit `json:"fromPatients"`
	FromServices   ShareSplit `json:"fromServices"`
	FromLabs       ShareSplit `json:"fromLabs"`
}

// DoctorMetrics is everything credited to one doctor in a selection.
type DoctorMetrics struct {
	Patients      int        `json:"patients"`
	Services      int        `json:"services"`
	Labs          int        `json:"labs"`
	Collected     core.Money `json:"collected"`
	DoctorShare   core.Money `json:"doctorShare"`
	HospitalShare core.Money `json:"hospitalShare"`
}

type DoctorRow struct {
	DoctorID       string `json:"doctorId"`
	Doctor         string `json:"doctor"`
	Specialization string `json:"specialization"`
	DoctorMetrics
	// Payout is what the clinic owes the doctor for the selection.
	Payout core.Money `json:"payout"`
}

// ReferenceRow groups patients by their inbound source.
type ReferenceRow struct {
	Source             string  `json:"source"`
	Count              int     `json:"count"`
	AvgReferralPercent float64 `json:"avgReferralPercent"`
}

// OutboundRow lists a patient referred onward to an external doctor or hospital.
type OutboundRow struct {
	PatientID          string     `json:"patientId"`
	Date               time.Time  `json:"dateISO"`
	Patient            string     `json:"patient"`
	Phone              string     `json:"phone"`
	DoctorID           string     `json:"doctorId"`
	Doctor             string     `json:"doctor"`
	ReferredToDoctor   string     `json:"referredToDoctor"`
	ReferredToHospital string     `json:"referredToHospital"`
	ReferredDate       *time.Time `json:"referredDate,omitempty"`
}

type ExpenseSummary struct {
	Items []core.Expense `json:"items"`
	Total core.Money     `json:"total"`
	// Net is the hospital share less referral payouts and expenses, never
	// below zero.
	Net core.Money `json:"net"`
}

type Summary struct {
	Selection  Selection      `json:"selection"`
	Totals     Totals         `json:"totals"`
	Doctors    []DoctorRow    `json:"doctors"`
	References []ReferenceRow `json:"references"`
	Outbound   []OutboundRow  `json:"outbound"`
	Expenses   ExpenseSummary `json:"expenses"`
}

// Empty reports whether the selection matched no activity at all.
func (s Summary) Empty() bool {
	return s.Totals.Collected == 0 && len(s.References) == 0 && len(s.Expenses.Items) == 0
}

// chargeShares returns the shares of a service or lab charge and the doctor
// it is credited to. Stored shares win; otherwise the split is recomputed at
// the attributed doctor's current rate, and at 0% when nobody is
// attributable or the doctor no longer exists.
func chargeShares(idx *core.Index, r core.ChargeRecord) (string, core.Shares, error) {
	docID := idx.EffectiveDoctorID(r)
	if r.Shares != nil {
		return docID, *r.Shares, nil
	}
	pct := 0
	if d, ok := idx.Doctor(docID); ok {
		pct = d.DoctorSharePercent
	}
	sh, err := core.ComputeShares(r.Total, pct)
	if err != nil {
		return "", core.Shares{}, fmt.Errorf("charge %s: %w", r.ID, err)
	}
	return docID, sh, nil
}

// Aggregate folds a snapshot into the summary for sel. Money-rule violations
// (negative totals, out-of-range percents) are returned; unresolvable ids are
// not errors and simply contribute nothing to any doctor.
func Aggregate(snap core.Snapshot, sel Selection) (Summary, error) {
	idx := core.NewIndex(snap)
	out := Summary{
		Selection:  sel,
		Doctors:    []DoctorRow{},
		References: []ReferenceRow{},
		Outbound:   []OutboundRow{},
		Expenses:   ExpenseSummary{Items: []core.Expense{}},
	}

	perDoctor := make(map[string]*DoctorMetrics, len(snap.Doctors))
	for _, d := range snap.Doctors {
		if sel.DoctorID != "" && d.ID != sel.DoctorID {
			continue
		}
		perDoctor[d.ID] = &DoctorMetrics{}
	}

	type refAcc struct {
		count  int
		pctSum int64
	}
	refs := make(map[string]*refAcc)

	t := &out.Totals
	for _, p := range snap.Patients {
		if !sel.Range.Contains(p.Date) {
			continue
		}
		payout, err := core.ReferralPayout(p.Fee, p.ReferralPercent)
		if err != nil {
			return Summary{}, fmt.Errorf("patient %s: %w", p.ID, err)
		}
		sh := core.Shares{DoctorShare: p.DoctorShare, HospitalShare: p.HospitalShare}
		t.Collected += p.Fee
		t.ReferralPayout += payout
		t.FromPatients.add(sh)

		if m, ok := perDoctor[p.DoctorID]; ok {
			m.Patients++
			m.Collected += p.Fee
			m.DoctorShare += sh.DoctorShare
			m.HospitalShare += sh.HospitalShare
		}

		key := referenceKey(p.Reference)
		acc, ok := refs[key]
		if !ok {
			acc = &refAcc{}
			refs[key] = acc
		}
		acc.count++
		acc.pctSum += int64(p.ReferralPercent)

		if p.HasOutboundReferral() && (sel.DoctorID == "" || p.DoctorID == sel.DoctorID) {
			out.Outbound = append(out.Outbound, outboundRow(idx, p))
		}
	}

	for _, r := range snap.ServiceRecords {
		if !sel.Range.Contains(r.Date) {
			continue
		}
		docID, sh, err := chargeShares(idx, r.ChargeRecord)
		if err != nil {
			return Summary{}, fmt.Errorf("service record: %w", err)
		}
		t.Collected += r.Total
		t.FromServices.add(sh)
		if m, ok := perDoctor[docID]; ok {
			m.Services++
			m.Collected += r.Total
			m.DoctorShare += sh.DoctorShare
			m.HospitalShare += sh.HospitalShare
		}
	}

	for _, r := range snap.LabRecords {
		if !sel.Range.Contains(r.Date) {
			continue
		}
		docID, sh, err := chargeShares(idx, r.ChargeRecord)
		if err != nil {
			return Summary{}, fmt.Errorf("lab record: %w", err)
		}
		t.Collected += r.Total
		t.FromLabs.add(sh)
		if m, ok := perDoctor[docID]; ok {
			m.Labs++
			m.Collected += r.Total
			m.DoctorShare += sh.DoctorShare
			m.HospitalShare += sh.HospitalShare
		}
	}

	t.DoctorShare = t.FromPatients.DoctorShare + t.FromServices.DoctorShare + t.FromLabs.DoctorShare
	t.HospitalShare = t.FromPatients.HospitalShare + t.FromServices.HospitalShare + t.FromLabs.HospitalShare

	for _, e := range snap.Expenses {
		if !sel.Range.Contains(e.Date) {
			continue
		}
		if err := e.Amount.Validate(); err != nil {
			return Summary{}, fmt.Errorf("expense %s: %w", e.ID, err)
		}
		out.Expenses.Items = append(out.Expenses.Items, e)
		out.Expenses.Total += e.Amount
	}
	out.Expenses.Net = NetPosition(t.HospitalShare, t.ReferralPayout, out.Expenses.Total)
	sort.SliceStable(out.Expenses.Items, func(i, j int) bool {
		a, b := out.Expenses.Items[i], out.Expenses.Items[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		return a.ID < b.ID
	})

	for _, d := range snap.Doctors {
		m, ok := perDoctor[d.ID]
		if !ok {
			continue
		}
		out.Doctors = append(out.Doctors, DoctorRow{
			DoctorID:       d.ID,
			Doctor:         d.Name,
			Specialization: d.Specialization,
			DoctorMetrics:  *m,
			Payout:         m.DoctorShare,
		})
	}
	sort.SliceStable(out.Doctors, func(i, j int) bool {
		a, b := out.Doctors[i], out.Doctors[j]
		if a.Doctor != b.Doctor {
			return a.Doctor < b.Doctor
		}
		return a.DoctorID < b.DoctorID
	})

	for source, acc := range refs {
		out.References = append(out.References, ReferenceRow{
			Source:             source,
			Count:              acc.count,
			AvgReferralPercent: averagePercent(acc.pctSum, acc.count),
		})
	}
	sort.Slice(out.References, func(i, j int) bool {
		return out.References[i].Source < out.References[j].Source
	})

	sort.SliceStable(out.Outbound, func(i, j int) bool {
		a, b := out.Outbound[i], out.Outbound[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		return a.PatientID < b.PatientID
	})

	return out, nil
}

// NetPosition is max(0, hospital - referrals - expenses).
func NetPosition(hospitalShare, referralPayout, expenses core.Money) core.Money {
	net := hospitalShare - referralPayout - expenses
	if net < 0 {
		return 0
	}
	return net
}

func referenceKey(ref string) string {
	if k := strings.TrimSpace(ref); k != "" {
		return k
	}
	return UnknownReference
}

// averagePercent is sum/count rounded to one decimal place.
func averagePercent(sum int64, count int) float64 {
	if count == 0 {
		return 0
	}
	return decimal.NewFromInt(sum).
		Div(decimal.NewFromInt(int64(count))).
		Round(1).
		InexactFloat64()
}

func outboundRow(idx *core.Index, p core.Patient) OutboundRow {
	row := OutboundRow{
		PatientID:          p.ID,
		Date:               p.Date,
		Patient:            p.Name,
		Phone:              p.Phone,
		DoctorID:           p.DoctorID,
		Doctor:             doctorName(idx, p.DoctorID),
		ReferredToDoctor:   dashIfBlank(p.ReferredToDoctor),
		ReferredToHospital: dashIfBlank(p.ReferredToHospital),
		ReferredDate:       p.ReferredDate,
	}
	return row
}
