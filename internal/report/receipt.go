package report

import (
	"errors"
	"fmt"
	"time"

	"hcms/internal/core"
)

type ReceiptKind string

const (
	ReceiptAppointment ReceiptKind = "appointment"
	ReceiptService     ReceiptKind = "service"
	ReceiptLab         ReceiptKind = "lab"
)

var (
	ErrReceiptNotFound    = errors.New("receipt not found")
	ErrUnknownReceiptKind = errors.New("unknown receipt kind")
)

// Receipt is the printable payload for one transaction.
type Receipt struct {
	Kind                 ReceiptKind `json:"kind"`
	Type                 string      `json:"type"`
	ID                   string      `json:"id"`
	Date                 time.Time   `json:"dateISO"`
	PatientName          string      `json:"patientName"`
	PatientAge           *int        `json:"patientAge,omitempty"`
	PatientPhone         string      `json:"patientPhone,omitempty"`
	DoctorName           string      `json:"doctorName,omitempty"`
	DoctorSpecialization string      `json:"doctorSpecialization,omitempty"`
	ItemName             string      `json:"itemName,omitempty"`
	Fee                  core.Money  `json:"fee"`
}

func BuildReceipt(snap core.Snapshot, kind ReceiptKind, id string) (Receipt, error) {
	idx := core.NewIndex(snap)
	switch kind {
	case ReceiptAppointment:
		p, ok := idx.Patient(id)
		if !ok {
			return Receipt{}, fmt.Errorf("%w: appointment %s", ErrReceiptNotFound, id)
		}
		age := p.Age
		rc := Receipt{
			Kind:         kind,
			Type:         "Appointment",
			ID:           p.ID,
			Date:         p.Date,
			PatientName:  p.Name,
			PatientAge:   &age,
			PatientPhone: p.Phone,
			DoctorName:   Placeholder,
			Fee:          p.Fee,
		}
		if d, ok := idx.Doctor(p.DoctorID); ok {
			rc.DoctorName = d.Name
			rc.DoctorSpecialization = d.Specialization
		}
		return rc, nil

	case ReceiptService:
		for _, r := range snap.ServiceRecords {
			if r.ID != id {
				continue
			}
			item := UnknownItem
			if s, ok := idx.Service(r.ServiceID); ok {
				item = s.Name
			}
			return chargeReceipt(idx, kind, "Service", r.ChargeRecord, item), nil
		}
		return Receipt{}, fmt.Errorf("%w: service %s", ErrReceiptNotFound, id)

	case ReceiptLab:
		for _, r := range snap.LabRecords {
			if r.ID != id {
				continue
			}
			item := UnknownItem
			if t, ok := idx.LabTest(r.LabTestID); ok {
				item = t.Name
			}
			return chargeReceipt(idx, kind, "Lab", r.ChargeRecord, item), nil
		}
		return Receipt{}, fmt.Errorf("%w: lab %s", ErrReceiptNotFound, id)
	}
	return Receipt{}, fmt.Errorf("%w: %q", ErrUnknownReceiptKind, kind)
}

func chargeReceipt(idx *core.Index, kind ReceiptKind, label string, r core.ChargeRecord, item string) Receipt {
	return Receipt{
		Kind:        kind,
		Type:        label,
		ID:          r.ID,
		Date:        r.Date,
		PatientName: chargePatientName(idx, r, Placeholder),
		ItemName:    item,
		Fee:         r.Total,
	}
}
