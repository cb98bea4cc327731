package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"hcms/internal/core"
	"hcms/internal/records"
)

var ErrInvalidInput = errors.New("invalid input")

// Store is the write side of the record repository.
type Store interface {
	records.DoctorStore
	records.PatientStore
	records.CatalogStore
	records.ChargeStore
	records.ExpenseStore
}

type (
	DoctorInput struct {
		Name               string `json:"name" validate:"required,max=200"`
		Specialization     string `json:"specialization" validate:"max=200"`
		Fee                int64  `json:"fee" validate:"gte=0"`
		DoctorSharePercent int    `json:"doctorSharePercent" validate:"gte=0,lte=100"`
	}

	CatalogItemInput struct {
		Name  string `json:"name" validate:"required,max=200"`
		Price int64  `json:"price" validate:"gte=0"`
	}

	// PatientInput registers a visit. ServiceID and LabTestID optionally
	// charge a service or lab test to the new patient in the same step.
	PatientInput struct {
		Name            string `json:"name" validate:"required,max=200"`
		Phone           string `json:"phone" validate:"max=30"`
		Age             int    `json:"age" validate:"gte=0,lte=150"`
		Gender          string `json:"gender" validate:"max=20"`
		Address         string `json:"address" validate:"max=500"`
		DoctorID        string `json:"doctorId" validate:"required"`
		Date            string `json:"dateISO"`
		Reference       string `json:"reference" validate:"max=200"`
		DiscountPercent int    `json:"discountPercent"`
		ReferralPercent int    `json:"referralPercent" validate:"gte=0,lte=100"`
		ServiceID       string `json:"serviceId"`
		LabTestID       string `json:"labTestId"`
	}

	ChargeInput struct {
		ItemID      string `json:"itemId" validate:"required"`
		PatientID   string `json:"patientId"`
		PatientName string `json:"patientName" validate:"max=200"`
		DoctorID    string `json:"doctorId"`
		Date        string `json:"dateISO"`
	}

	ReferralInput struct {
		ToDoctor   string `json:"referredToDoctor" validate:"required_without=ToHospital,max=200"`
		ToHospital string `json:"referredToHospital" validate:"required_without=ToDoctor,max=200"`
		Date       string `json:"referredDate"`
	}

	ExpenseInput struct {
		Name   string `json:"name" validate:"required,max=200"`
		Amount int64  `json:"amount" validate:"gte=0"`
		Date   string `json:"dateISO"`
	}

	// Registration is a new patient plus any charges made at intake.
	Registration struct {
		Patient core.Patient        `json:"patient"`
		Service *core.ServiceRecord `json:"serviceRecord,omitempty"`
		Lab     *core.LabRecord     `json:"labRecord,omitempty"`
	}
)

// IntakeService creates and maintains the records reports are built from.
// Patient fees and charge shares are fixed here, at creation time.
type IntakeService struct {
	store       Store
	validate    *validator.Validate
	now         func() time.Time
	newID       func(prefix string) string
	phoneRegion string
}

func NewIntakeService(store Store) *IntakeService {
	return &IntakeService{
		store:       store,
		validate:    validator.New(),
		now:         func() time.Time { return time.Now().UTC() },
		newID:       func(prefix string) string { return prefix + "_" + uuid.NewString() },
		phoneRegion: DefaultPhoneRegion,
	}
}

// WithClock replaces the time source used for defaulted dates.
func (s *IntakeService) WithClock(now func() time.Time) *IntakeService {
	s.now = now
	return s
}

// WithPhoneRegion sets the region patient phone numbers are parsed in.
func (s *IntakeService) WithPhoneRegion(region string) *IntakeService {
	if region != "" {
		s.phoneRegion = region
	}
	return s
}

func (s *IntakeService) check(v any) error {
	if err := s.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

// eventTime parses an optional timestamp, defaulting to now. A bare day is
// taken as midnight UTC.
func (s *IntakeService) eventTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return s.now(), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	d, err := core.ParseDate(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q: %v", ErrInvalidInput, raw, err)
	}
	return d.Time, nil
}

func (s *IntakeService) AddDoctor(ctx context.Context, in DoctorInput) (core.Doctor, error) {
	if err := s.check(in); err != nil {
		return core.Doctor{}, err
	}
	d := core.Doctor{
		ID:                 s.newID("doc"),
		Name:               strings.TrimSpace(in.Name),
		Specialization:     strings.TrimSpace(in.Specialization),
		Fee:                core.Money(in.Fee),
		DoctorSharePercent: in.DoctorSharePercent,
	}
	if err := s.store.SaveDoctor(ctx, d); err != nil {
		return core.Doctor{}, fmt.Errorf("add doctor: %w", err)
	}
	return d, nil
}

// UpdateDoctor changes a doctor's details. Existing patients keep the fee and
// shares they were registered with.
func (s *IntakeService) UpdateDoctor(ctx context.Context, id string, in DoctorInput) (core.Doctor, error) {
	if err := s.check(in); err != nil {
		return core.Doctor{}, err
	}
	if _, err := s.store.GetDoctor(ctx, id); err != nil {
		return core.Doctor{}, err
	}
	d := core.Doctor{
		ID:                 id,
		Name:               strings.TrimSpace(in.Name),
		Specialization:     strings.TrimSpace(in.Specialization),
		Fee:                core.Money(in.Fee),
		DoctorSharePercent: in.DoctorSharePercent,
	}
	if err := s.store.SaveDoctor(ctx, d); err != nil {
		return core.Doctor{}, fmt.Errorf("update doctor: %w", err)
	}
	return d, nil
}

func (s *IntakeService) DeleteDoctor(ctx context.Context, id string) error {
	return s.store.DeleteDoctor(ctx, id)
}

func (s *IntakeService) AddService(ctx context.Context, in CatalogItemInput) (core.Service, error) {
	if err := s.check(in); err != nil {
		return core.Service{}, err
	}
	sv := core.Service{ID: s.newID("srv"), Name: strings.TrimSpace(in.Name), Price: core.Money(in.Price)}
	if err := s.store.SaveService(ctx, sv); err != nil {
		return core.Service{}, fmt.Errorf("add service: %w", err)
	}
	return sv, nil
}

func (s *IntakeService) DeleteService(ctx context.Context, id string) error {
	return s.store.DeleteService(ctx, id)
}

func (s *IntakeService) AddLabTest(ctx context.Context, in CatalogItemInput) (core.LabTest, error) {
	if err := s.check(in); err != nil {
		return core.LabTest{}, err
	}
	t := core.LabTest{ID: s.newID("lab"), Name: strings.TrimSpace(in.Name), Price: core.Money(in.Price)}
	if err := s.store.SaveLabTest(ctx, t); err != nil {
		return core.LabTest{}, fmt.Errorf("add lab test: %w", err)
	}
	return t, nil
}

func (s *IntakeService) DeleteLabTest(ctx context.Context, id string) error {
	return s.store.DeleteLabTest(ctx, id)
}

// RegisterPatient snapshots the doctor's fee, less the clamped discount, and
// splits it at the doctor's current share percent.
func (s *IntakeService) RegisterPatient(ctx context.Context, in PatientInput) (Registration, error) {
	if err := s.check(in); err != nil {
		return Registration{}, err
	}
	doc, err := s.store.GetDoctor(ctx, in.DoctorID)
	if errors.Is(err, records.ErrNotFound) {
		return Registration{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err != nil {
		return Registration{}, err
	}
	at, err := s.eventTime(in.Date)
	if err != nil {
		return Registration{}, err
	}
	phone, err := NormalizePhone(in.Phone, s.phoneRegion)
	if err != nil {
		return Registration{}, err
	}
	discount := core.ClampPercent(in.DiscountPercent)
	fee, sh, err := core.PatientShares(doc, discount)
	if err != nil {
		return Registration{}, fmt.Errorf("price visit: %w", err)
	}

	p := core.Patient{
		ID:              s.newID("pat"),
		Name:            strings.TrimSpace(in.Name),
		Phone:           phone,
		Age:             in.Age,
		Gender:          in.Gender,
		Address:         strings.TrimSpace(in.Address),
		DoctorID:        doc.ID,
		Date:            at,
		Fee:             fee,
		DoctorShare:     sh.DoctorShare,
		HospitalShare:   sh.HospitalShare,
		Reference:       strings.TrimSpace(in.Reference),
		DiscountPercent: discount,
		ReferralPercent: in.ReferralPercent,
	}
	if err := p.Validate(); err != nil {
		return Registration{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	reg := Registration{Patient: p}
	dateISO := at.Format(time.RFC3339Nano)
	var (
		svc  []core.ServiceRecord
		labs []core.LabRecord
	)
	if in.ServiceID != "" {
		rec, err := s.serviceRecord(ctx, ChargeInput{ItemID: in.ServiceID, PatientID: p.ID, Date: dateISO}, &p)
		if err != nil {
			return Registration{}, err
		}
		reg.Service = &rec
		svc = append(svc, rec)
	}
	if in.LabTestID != "" {
		rec, err := s.labRecord(ctx, ChargeInput{ItemID: in.LabTestID, PatientID: p.ID, Date: dateISO}, &p)
		if err != nil {
			return Registration{}, err
		}
		reg.Lab = &rec
		labs = append(labs, rec)
	}
	if err := s.store.SaveRegistration(ctx, p, svc, labs); err != nil {
		return Registration{}, fmt.Errorf("register patient: %w", err)
	}
	slog.InfoContext(ctx, "Patient registered", "id", p.ID, "doctor_id", p.DoctorID,
		"fee", int64(p.Fee), "charges", len(svc)+len(labs))
	return reg, nil
}

func (s *IntakeService) MarkAttended(ctx context.Context, patientID string, attended bool) (core.Patient, error) {
	p, err := s.store.GetPatient(ctx, patientID)
	if err != nil {
		return core.Patient{}, err
	}
	p.Attended = attended
	if err := s.store.SavePatient(ctx, p); err != nil {
		return core.Patient{}, fmt.Errorf("mark attended: %w", err)
	}
	return p, nil
}

// ReferOut records an outbound referral. Blank targets clear that side.
func (s *IntakeService) ReferOut(ctx context.Context, patientID string, in ReferralInput) (core.Patient, error) {
	in.ToDoctor = strings.TrimSpace(in.ToDoctor)
	in.ToHospital = strings.TrimSpace(in.ToHospital)
	if err := s.check(in); err != nil {
		return core.Patient{}, err
	}
	at, err := s.eventTime(in.Date)
	if err != nil {
		return core.Patient{}, err
	}
	p, err := s.store.GetPatient(ctx, patientID)
	if err != nil {
		return core.Patient{}, err
	}
	p.ReferredToDoctor = in.ToDoctor
	p.ReferredToHospital = in.ToHospital
	p.ReferredDate = &at
	if err := s.store.SavePatient(ctx, p); err != nil {
		return core.Patient{}, fmt.Errorf("refer patient: %w", err)
	}
	return p, nil
}

func (s *IntakeService) RecordService(ctx context.Context, in ChargeInput) (core.ServiceRecord, error) {
	rec, err := s.serviceRecord(ctx, in, nil)
	if err != nil {
		return core.ServiceRecord{}, err
	}
	if err := s.store.SaveServiceRecord(ctx, rec); err != nil {
		return core.ServiceRecord{}, fmt.Errorf("record service: %w", err)
	}
	return rec, nil
}

func (s *IntakeService) RecordLab(ctx context.Context, in ChargeInput) (core.LabRecord, error) {
	rec, err := s.labRecord(ctx, in, nil)
	if err != nil {
		return core.LabRecord{}, err
	}
	if err := s.store.SaveLabRecord(ctx, rec); err != nil {
		return core.LabRecord{}, fmt.Errorf("record lab: %w", err)
	}
	return rec, nil
}

func (s *IntakeService) serviceRecord(ctx context.Context, in ChargeInput, linked *core.Patient) (core.ServiceRecord, error) {
	var price core.Money
	if sv, err := s.store.GetService(ctx, in.ItemID); err == nil {
		price = sv.Price
	} else if !errors.Is(err, records.ErrNotFound) {
		return core.ServiceRecord{}, err
	}
	c, err := s.newCharge(ctx, in, price, "srec", linked)
	if err != nil {
		return core.ServiceRecord{}, err
	}
	return core.ServiceRecord{ChargeRecord: c, ServiceID: in.ItemID}, nil
}

func (s *IntakeService) labRecord(ctx context.Context, in ChargeInput, linked *core.Patient) (core.LabRecord, error) {
	var price core.Money
	if t, err := s.store.GetLabTest(ctx, in.ItemID); err == nil {
		price = t.Price
	} else if !errors.Is(err, records.ErrNotFound) {
		return core.LabRecord{}, err
	}
	c, err := s.newCharge(ctx, in, price, "lrec", linked)
	if err != nil {
		return core.LabRecord{}, err
	}
	return core.LabRecord{ChargeRecord: c, LabTestID: in.ItemID}, nil
}

// newCharge resolves attribution once and freezes it on the record: the
// effective doctor is stored, and shares are stored whenever a doctor is
// attributable. An unknown catalog item charges 0; an unknown doctor gets 0%.
// A nil linked patient is looked up by in.PatientID.
func (s *IntakeService) newCharge(ctx context.Context, in ChargeInput, total core.Money, prefix string, linked *core.Patient) (core.ChargeRecord, error) {
	if err := s.check(in); err != nil {
		return core.ChargeRecord{}, err
	}
	at, err := s.eventTime(in.Date)
	if err != nil {
		return core.ChargeRecord{}, err
	}
	c := core.ChargeRecord{
		ID:          s.newID(prefix),
		Date:        at,
		PatientID:   in.PatientID,
		PatientName: strings.TrimSpace(in.PatientName),
		DoctorID:    in.DoctorID,
		Total:       total,
	}

	if linked == nil && in.PatientID != "" {
		p, err := s.store.GetPatient(ctx, in.PatientID)
		switch {
		case err == nil:
			linked = &p
		case !errors.Is(err, records.ErrNotFound):
			return core.ChargeRecord{}, err
		}
	}
	lookup := func(string) (core.Patient, bool) {
		if linked == nil {
			return core.Patient{}, false
		}
		return *linked, true
	}
	c.DoctorID = core.ResolveDoctorID(c, lookup)
	if c.PatientName == "" && linked != nil {
		c.PatientName = linked.Name
	}

	if c.DoctorID != "" {
		pct := 0
		doc, err := s.store.GetDoctor(ctx, c.DoctorID)
		switch {
		case err == nil:
			pct = doc.DoctorSharePercent
		case !errors.Is(err, records.ErrNotFound):
			return core.ChargeRecord{}, err
		}
		sh, err := core.ComputeShares(total, pct)
		if err != nil {
			return core.ChargeRecord{}, fmt.Errorf("price charge: %w", err)
		}
		c.Shares = &sh
	}
	return c, nil
}

func (s *IntakeService) AddExpense(ctx context.Context, in ExpenseInput) (core.Expense, error) {
	if err := s.check(in); err != nil {
		return core.Expense{}, err
	}
	at, err := s.eventTime(in.Date)
	if err != nil {
		return core.Expense{}, err
	}
	e := core.Expense{ID: s.newID("exp"), Date: at, Name: strings.TrimSpace(in.Name), Amount: core.Money(in.Amount)}
	if err := e.Validate(); err != nil {
		return core.Expense{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.store.SaveExpense(ctx, e); err != nil {
		return core.Expense{}, fmt.Errorf("add expense: %w", err)
	}
	return e, nil
}

func (s *IntakeService) DeleteExpense(ctx context.Context, id string) error {
	return s.store.DeleteExpense(ctx, id)
}
