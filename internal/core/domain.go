package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type (
	// Money is an amount in the smallest currency unit.
	Money int64

	// Shares is the split of one monetary event between doctor and hospital.
	Shares struct {
		DoctorShare   Money `json:"doctorShare"`
		HospitalShare Money `json:"hospitalShare"`
	}

	Doctor struct {
		ID                 string `json:"id"`
		Name               string `json:"name"`
		Specialization     string `json:"specialization"`
		Fee                Money  `json:"fee"`
		DoctorSharePercent int    `json:"doctorSharePercent"`
	}

	// Patient is a visit registered at intake. Fee and shares are a
	// point-in-time snapshot taken from the doctor at creation.
	Patient struct {
		ID              string    `json:"id"`
		Name            string    `json:"name"`
		Phone           string    `json:"phone"`
		Age             int       `json:"age"`
		Gender          string    `json:"gender"`
		Address         string    `json:"address"`
		DoctorID        string    `json:"doctorId"`
		Date            time.Time `json:"dateISO"`
		Fee             Money     `json:"fee"`
		DoctorShare     Money     `json:"doctorShare"`
		HospitalShare   Money     `json:"hospitalShare"`
		Reference       string    `json:"reference,omitempty"`
		DiscountPercent int       `json:"discountPercent,omitempty"`
		ReferralPercent int       `json:"referralPercent,omitempty"`
		Attended        bool      `json:"attended"`

		ReferredToHospital string     `json:"referredToHospital,omitempty"`
		ReferredToDoctor   string     `json:"referredToDoctor,omitempty"`
		ReferredDate       *time.Time `json:"referredDate,omitempty"`
	}

	// Service is a catalog item for ad-hoc service charges.
	Service struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Price Money  `json:"price"`
	}

	// LabTest is a catalog item for ad-hoc lab charges.
	LabTest struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Price Money  `json:"price"`
	}

	// ChargeRecord holds the fields shared by service and lab transactions.
	// Shares is nil when no doctor was attributable at creation.
	ChargeRecord struct {
		ID          string    `json:"id"`
		Date        time.Time `json:"dateISO"`
		PatientID   string    `json:"patientId,omitempty"`
		PatientName string    `json:"patientName,omitempty"`
		DoctorID    string    `json:"doctorId,omitempty"`
		Total       Money     `json:"total"`
		Shares      *Shares   `json:"shares,omitempty"`
	}

	ServiceRecord struct {
		ChargeRecord
		ServiceID string `json:"serviceId"`
	}

	LabRecord struct {
		ChargeRecord
		LabTestID string `json:"labTestId"`
	}

	Expense struct {
		ID     string    `json:"id"`
		Date   time.Time `json:"dateISO"`
		Name   string    `json:"name"`
		Amount Money     `json:"amount"`
	}
)

var (
	ErrNegativeAmount    = errors.New("amount must not be negative")
	ErrPercentOutOfRange = errors.New("percent must be between 0 and 100")
	ErrShareMismatch     = errors.New("doctor and hospital shares do not add up to the total")
	ErrEmptyName         = errors.New("empty name")
	ErrMissingDoctor     = errors.New("missing doctor")
	ErrInvalidDate       = errors.New("invalid date")
)

func (m Money) Validate() error {
	if m < 0 {
		return ErrNegativeAmount
	}
	return nil
}

// String formats the amount the way receipts and reports print it.
func (m Money) String() string {
	return fmt.Sprintf("₹ %d", int64(m))
}

// Sum returns the amount both shares add up to.
func (s Shares) Sum() Money {
	return s.DoctorShare + s.HospitalShare
}

func validatePercent(p int) error {
	if p < 0 || p > 100 {
		return ErrPercentOutOfRange
	}
	return nil
}

func (d Doctor) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return ErrEmptyName
	}
	if err := d.Fee.Validate(); err != nil {
		return fmt.Errorf("fee: %w", err)
	}
	if err := validatePercent(d.DoctorSharePercent); err != nil {
		return fmt.Errorf("doctor share: %w", err)
	}
	return nil
}

func (p Patient) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(p.DoctorID) == "" {
		return ErrMissingDoctor
	}
	if p.Date.IsZero() {
		return ErrInvalidDate
	}
	for _, m := range []Money{p.Fee, p.DoctorShare, p.HospitalShare} {
		if err := m.Validate(); err != nil {
			return err
		}
	}
	if p.DoctorShare+p.HospitalShare != p.Fee {
		return ErrShareMismatch
	}
	if err := validatePercent(p.DiscountPercent); err != nil {
		return fmt.Errorf("discount: %w", err)
	}
	if err := validatePercent(p.ReferralPercent); err != nil {
		return fmt.Errorf("referral: %w", err)
	}
	return nil
}

// HasOutboundReferral reports whether the patient was referred onward.
func (p Patient) HasOutboundReferral() bool {
	return strings.TrimSpace(p.ReferredToDoctor) != "" || strings.TrimSpace(p.ReferredToHospital) != ""
}

func (s Service) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrEmptyName
	}
	return s.Price.Validate()
}

func (t LabTest) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return ErrEmptyName
	}
	return t.Price.Validate()
}

func (r ChargeRecord) Validate() error {
	if r.Date.IsZero() {
		return ErrInvalidDate
	}
	if err := r.Total.Validate(); err != nil {
		return err
	}
	if r.Shares != nil {
		if r.Shares.DoctorShare < 0 || r.Shares.HospitalShare < 0 {
			return ErrNegativeAmount
		}
		if r.Shares.Sum() != r.Total {
			return ErrShareMismatch
		}
	}
	return nil
}

func (e Expense) Validate() error {
	if e.Date.IsZero() {
		return ErrInvalidDate
	}
	if strings.TrimSpace(e.Name) == "" {
		return ErrEmptyName
	}
	if len(e.Name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	return e.Amount.Validate()
}
