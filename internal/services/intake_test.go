package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"hcms/internal/core"
	"hcms/internal/records"
	"hcms/internal/records/memory"
)

var fixedNow = time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

func newTestIntake() (*IntakeService, *memory.Store) {
	store := memory.New(records.DefaultSeed())
	svc := NewIntakeService(store).WithClock(func() time.Time { return fixedNow })
	n := 0
	svc.newID = func(prefix string) string {
		n++
		return fmt.Sprintf("%s_%d", prefix, n)
	}
	return svc, store
}

func TestRegisterPatientSnapshotsShares(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestIntake()

	reg, err := svc.RegisterPatient(ctx, PatientInput{Name: "Ramesh", DoctorID: "doc_1", DiscountPercent: 10, ReferralPercent: 5})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	p := reg.Patient
	if p.Fee != 360 || p.DoctorShare != 180 || p.HospitalShare != 180 {
		t.Fatalf("unexpected snapshot %+v", p)
	}
	if !p.Date.Equal(fixedNow) || p.Attended {
		t.Fatalf("expected defaulted date and attended=false, got %+v", p)
	}

	// later fee changes never touch the stored visit
	if _, err := svc.UpdateDoctor(ctx, "doc_1", DoctorInput{Name: "Dr. A. Khan", Fee: 1000, DoctorSharePercent: 90}); err != nil {
		t.Fatalf("update doctor: %v", err)
	}
	again, err := svc.MarkAttended(ctx, p.ID, true)
	if err != nil {
		t.Fatalf("mark attended: %v", err)
	}
	if again.Fee != 360 || again.DoctorShare != 180 || !again.Attended {
		t.Fatalf("visit was recomputed: %+v", again)
	}
}

func TestRegisterPatientClampsDiscount(t *testing.T) {
	svc, _ := newTestIntake()
	reg, err := svc.RegisterPatient(context.Background(), PatientInput{Name: "A", DoctorID: "doc_2", DiscountPercent: 150})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if reg.Patient.Fee != 0 || reg.Patient.DiscountPercent != 100 {
		t.Fatalf("discount not clamped: %+v", reg.Patient)
	}
}

func TestRegisterPatientWithCharges(t *testing.T) {
	svc, store := newTestIntake()
	reg, err := svc.RegisterPatient(context.Background(), PatientInput{
		Name: "Sita", DoctorID: "doc_2", Date: "2024-03-05", ServiceID: "srv_iv", LabTestID: "lab_cbc",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if reg.Service == nil || reg.Lab == nil {
		t.Fatalf("expected both intake charges, got %+v", reg)
	}
	if reg.Service.DoctorID != "doc_2" || reg.Service.Shares == nil || reg.Service.Shares.DoctorShare != 210 {
		t.Fatalf("service not attributed at 60%%: %+v", reg.Service)
	}
	if reg.Lab.PatientName != "Sita" || !reg.Lab.Date.Equal(reg.Patient.Date) {
		t.Fatalf("lab record %+v", reg.Lab)
	}
	snap, _ := store.Snapshot(context.Background())
	if len(snap.ServiceRecords) != 1 || len(snap.LabRecords) != 1 {
		t.Fatalf("charges not stored: %d %d", len(snap.ServiceRecords), len(snap.LabRecords))
	}
}

type failingStore struct {
	*memory.Store
	labErr, saveErr error
}

func (f failingStore) GetLabTest(ctx context.Context, id string) (core.LabTest, error) {
	if f.labErr != nil {
		return core.LabTest{}, f.labErr
	}
	return f.Store.GetLabTest(ctx, id)
}

func (f failingStore) SaveRegistration(ctx context.Context, p core.Patient, svc []core.ServiceRecord, labs []core.LabRecord) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.Store.SaveRegistration(ctx, p, svc, labs)
}

func TestRegisterPatientLeavesNothingOnFailure(t *testing.T) {
	boom := errors.New("disk full")
	cases := []struct {
		name  string
		store failingStore
	}{
		{"lab lookup fails", failingStore{labErr: boom}},
		{"save fails", failingStore{saveErr: boom}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			mem := memory.New(records.DefaultSeed())
			tc.store.Store = mem
			svc := NewIntakeService(tc.store).WithClock(func() time.Time { return fixedNow })
			svc.newID = func(prefix string) string { return prefix + "_x" }

			_, err := svc.RegisterPatient(ctx, PatientInput{
				Name: "Sita", DoctorID: "doc_2", ServiceID: "srv_iv", LabTestID: "lab_cbc",
			})
			if !errors.Is(err, boom) {
				t.Fatalf("expected %v, got %v", boom, err)
			}
			if _, err := mem.GetPatient(ctx, "pat_x"); !errors.Is(err, records.ErrNotFound) {
				t.Fatalf("patient stored after failed registration: %v", err)
			}
			snap, _ := mem.Snapshot(ctx)
			if len(snap.ServiceRecords) != 0 || len(snap.LabRecords) != 0 {
				t.Fatalf("charges stored after failed registration: %d %d", len(snap.ServiceRecords), len(snap.LabRecords))
			}
		})
	}
}

func TestRegisterPatientValidation(t *testing.T) {
	svc, _ := newTestIntake()
	cases := []PatientInput{
		{Name: "", DoctorID: "doc_1"},
		{Name: "A"},
		{Name: "A", DoctorID: "doc_missing"},
		{Name: "A", DoctorID: "doc_1", ReferralPercent: 101},
		{Name: "A", DoctorID: "doc_1", Age: -1},
		{Name: "A", DoctorID: "doc_1", Date: "yesterday"},
	}
	for i, in := range cases {
		if _, err := svc.RegisterPatient(context.Background(), in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
	}
}

func TestRecordServiceAttribution(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestIntake()
	reg, _ := svc.RegisterPatient(ctx, PatientInput{Name: "Ramesh", DoctorID: "doc_1"})
	pid := reg.Patient.ID

	cases := []struct {
		name      string
		in        ChargeInput
		doctor    string
		total     int64
		docShare  int64
		hasShares bool
		patient   string
	}{
		{"inherited", ChargeInput{ItemID: "srv_neb", PatientID: pid}, "doc_1", 200, 100, true, "Ramesh"},
		{"explicit override", ChargeInput{ItemID: "srv_neb", PatientID: pid, DoctorID: "doc_2"}, "doc_2", 200, 120, true, "Ramesh"},
		{"general", ChargeInput{ItemID: "srv_iv", PatientName: "Walk-in"}, "", 350, 0, false, "Walk-in"},
		{"unknown doctor", ChargeInput{ItemID: "srv_inj", DoctorID: "doc_gone"}, "doc_gone", 150, 0, true, ""},
		{"unknown service", ChargeInput{ItemID: "srv_gone", PatientID: pid}, "doc_1", 0, 0, true, "Ramesh"},
		{"unknown patient", ChargeInput{ItemID: "srv_neb", PatientID: "pat_gone"}, "", 200, 0, false, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, err := svc.RecordService(ctx, tc.in)
			if err != nil {
				t.Fatalf("record: %v", err)
			}
			if rec.DoctorID != tc.doctor || int64(rec.Total) != tc.total || rec.PatientName != tc.patient {
				t.Fatalf("unexpected record %+v", rec)
			}
			if (rec.Shares != nil) != tc.hasShares {
				t.Fatalf("shares presence = %v, want %v", rec.Shares != nil, tc.hasShares)
			}
			if rec.Shares != nil {
				if int64(rec.Shares.DoctorShare) != tc.docShare || rec.Shares.Sum() != rec.Total {
					t.Fatalf("shares %+v", rec.Shares)
				}
			}
		})
	}
}

func TestRecordLabRequiresItem(t *testing.T) {
	svc, _ := newTestIntake()
	if _, err := svc.RecordLab(context.Background(), ChargeInput{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestReferOut(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestIntake()
	reg, _ := svc.RegisterPatient(ctx, PatientInput{Name: "A", DoctorID: "doc_1"})

	blank := []ReferralInput{
		{},
		{ToDoctor: " "},
		{ToHospital: "\t", ToDoctor: "  "},
	}
	for i, in := range blank {
		if _, err := svc.ReferOut(ctx, reg.Patient.ID, in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("case %d: expected ErrInvalidInput for blank referral, got %v", i, err)
		}
	}
	if p, _ := store.GetPatient(ctx, reg.Patient.ID); p.ReferredDate != nil || p.HasOutboundReferral() {
		t.Fatalf("blank referral changed patient: %+v", p)
	}
	p, err := svc.ReferOut(ctx, reg.Patient.ID, ReferralInput{ToHospital: " City Hospital "})
	if err != nil {
		t.Fatalf("refer: %v", err)
	}
	if p.ReferredToHospital != "City Hospital" || p.ReferredDate == nil || !p.ReferredDate.Equal(fixedNow) {
		t.Fatalf("unexpected referral %+v", p)
	}
	if !p.HasOutboundReferral() {
		t.Fatalf("expected outbound referral")
	}
	if _, err := svc.ReferOut(ctx, "pat_gone", ReferralInput{ToDoctor: "Dr. X"}); !errors.Is(err, records.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCatalogDoctorAndExpenses(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestIntake()

	if _, err := svc.AddDoctor(ctx, DoctorInput{Name: "Dr. X", Fee: 300, DoctorSharePercent: 101}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for share > 100, got %v", err)
	}
	d, err := svc.AddDoctor(ctx, DoctorInput{Name: " Dr. X ", Fee: 300, DoctorSharePercent: 40})
	if err != nil || d.Name != "Dr. X" {
		t.Fatalf("add doctor: %+v %v", d, err)
	}
	if _, err := svc.UpdateDoctor(ctx, "doc_none", DoctorInput{Name: "Dr. Y"}); !errors.Is(err, records.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	item, err := svc.AddService(ctx, CatalogItemInput{Name: "ECG", Price: 300})
	if err != nil {
		t.Fatalf("add service: %v", err)
	}
	rec, _ := svc.RecordService(ctx, ChargeInput{ItemID: item.ID, PatientName: "Walk-in"})
	if err := svc.DeleteService(ctx, item.ID); err != nil {
		t.Fatalf("delete service: %v", err)
	}
	snap, _ := store.Snapshot(ctx)
	if len(snap.ServiceRecords) != 1 || snap.ServiceRecords[0].Total != 300 || snap.ServiceRecords[0].ID != rec.ID {
		t.Fatalf("deleting a service must keep its records: %+v", snap.ServiceRecords)
	}
	if _, err := svc.AddLabTest(ctx, CatalogItemInput{Name: "TSH", Price: -1}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	e, err := svc.AddExpense(ctx, ExpenseInput{Name: "Rent", Amount: 500, Date: "2024-03-01"})
	if err != nil {
		t.Fatalf("add expense: %v", err)
	}
	if e.Date.Format("2006-01-02") != "2024-03-01" {
		t.Fatalf("expense date %v", e.Date)
	}
	if _, err := svc.AddExpense(ctx, ExpenseInput{Name: "Bad", Amount: -5}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if err := svc.DeleteExpense(ctx, e.ID); err != nil {
		t.Fatalf("delete expense: %v", err)
	}
}

func TestRegisterPatientNormalisesPhone(t *testing.T) {
	svc, _ := newTestIntake()
	ctx := context.Background()

	reg, err := svc.RegisterPatient(ctx, PatientInput{Name: "A", DoctorID: "doc_1", Phone: "98765 43210"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if reg.Patient.Phone != "+919876543210" {
		t.Fatalf("phone = %q", reg.Patient.Phone)
	}
	if _, err := svc.RegisterPatient(ctx, PatientInput{Name: "B", DoctorID: "doc_1", Phone: "12"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for bad phone, got %v", err)
	}

	svc.WithPhoneRegion("GB")
	reg, err = svc.RegisterPatient(ctx, PatientInput{Name: "C", DoctorID: "doc_1", Phone: "020 7946 0018"})
	if err != nil || reg.Patient.Phone != "+442079460018" {
		t.Fatalf("GB phone = %q, %v", reg.Patient.Phone, err)
	}
}
