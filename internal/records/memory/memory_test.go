package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"hcms/internal/core"
	"hcms/internal/records"
)

func TestStoreSeedAndSnapshotIsolation(t *testing.T) {
	ctx := context.Background()
	s := New(records.DefaultSeed())

	snap, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Doctors) != 2 || len(snap.Services) != 4 || len(snap.LabTests) != 2 {
		t.Fatalf("unexpected seed: %d doctors, %d services, %d lab tests", len(snap.Doctors), len(snap.Services), len(snap.LabTests))
	}

	rec := core.ServiceRecord{
		ChargeRecord: core.ChargeRecord{ID: "r1", Date: time.Now(), Total: 200, Shares: &core.Shares{DoctorShare: 100, HospitalShare: 100}},
		ServiceID:    "srv_neb",
	}
	if err := s.SaveServiceRecord(ctx, rec); err != nil {
		t.Fatalf("save: %v", err)
	}
	snap, _ = s.Snapshot(ctx)
	snap.ServiceRecords[0].Shares.DoctorShare = 999
	snap.Doctors[0].Name = "mutated"

	again, _ := s.Snapshot(ctx)
	if again.ServiceRecords[0].Shares.DoctorShare != 100 || again.Doctors[0].Name == "mutated" {
		t.Fatalf("snapshot shares state with the store")
	}
}

func TestStoreUpsertAndDelete(t *testing.T) {
	ctx := context.Background()
	s := New(records.DefaultSeed())

	d, err := s.GetDoctor(ctx, "doc_1")
	if err != nil {
		t.Fatalf("get doctor: %v", err)
	}
	d.Fee = 450
	if err := s.SaveDoctor(ctx, d); err != nil {
		t.Fatalf("save doctor: %v", err)
	}
	if got, _ := s.GetDoctor(ctx, "doc_1"); got.Fee != 450 {
		t.Fatalf("upsert did not replace: %+v", got)
	}
	snap, _ := s.Snapshot(ctx)
	if len(snap.Doctors) != 2 {
		t.Fatalf("upsert duplicated doctor: %d", len(snap.Doctors))
	}

	if err := s.DeleteService(ctx, "srv_iv"); err != nil {
		t.Fatalf("delete service: %v", err)
	}
	if _, err := s.GetService(ctx, "srv_iv"); !errors.Is(err, records.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteExpense(ctx, "missing"); !errors.Is(err, records.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveRegistration(t *testing.T) {
	ctx := context.Background()
	s := New(records.DefaultSeed())
	now := time.Now().UTC()
	shares := &core.Shares{DoctorShare: 210, HospitalShare: 140}
	p := core.Patient{ID: "p1", Name: "Sita", DoctorID: "doc_2", Date: now, Fee: 500, DoctorShare: 300, HospitalShare: 200}
	svc := []core.ServiceRecord{{ServiceID: "srv_iv", ChargeRecord: core.ChargeRecord{ID: "s1", Date: now, PatientID: "p1", Total: 350, Shares: shares}}}
	labs := []core.LabRecord{{LabTestID: "lab_cbc", ChargeRecord: core.ChargeRecord{ID: "l1", Date: now, PatientID: "p1", Total: 300}}}

	if err := s.SaveRegistration(ctx, p, svc, labs); err != nil {
		t.Fatalf("save registration: %v", err)
	}
	shares.DoctorShare = 0

	snap, _ := s.Snapshot(ctx)
	if len(snap.Patients) != 1 || len(snap.ServiceRecords) != 1 || len(snap.LabRecords) != 1 {
		t.Fatalf("stored %d patients, %d services, %d labs", len(snap.Patients), len(snap.ServiceRecords), len(snap.LabRecords))
	}
	if snap.ServiceRecords[0].Shares.DoctorShare != 210 {
		t.Fatalf("registration shares state with the caller")
	}
}

func TestDeleteDoctorCascadesToPatients(t *testing.T) {
	ctx := context.Background()
	s := New(records.DefaultSeed())
	for _, p := range []core.Patient{
		{ID: "p1", Name: "A", DoctorID: "doc_1", Date: time.Now()},
		{ID: "p2", Name: "B", DoctorID: "doc_2", Date: time.Now()},
		{ID: "p3", Name: "C", DoctorID: "doc_1", Date: time.Now()},
	} {
		if err := s.SavePatient(ctx, p); err != nil {
			t.Fatalf("save patient: %v", err)
		}
	}
	if err := s.DeleteDoctor(ctx, "doc_1"); err != nil {
		t.Fatalf("delete doctor: %v", err)
	}
	snap, _ := s.Snapshot(ctx)
	if len(snap.Patients) != 1 || snap.Patients[0].ID != "p2" {
		t.Fatalf("expected only p2 to remain, got %+v", snap.Patients)
	}
	if err := s.DeleteDoctor(ctx, "doc_1"); !errors.Is(err, records.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestNewFromFile(t *testing.T) {
	dir := t.TempDir()

	s, err := NewFromFile(filepath.Join(dir, "missing.json"))
	if err != nil {
		t.Fatalf("missing file should fall back to defaults: %v", err)
	}
	snap, _ := s.Snapshot(context.Background())
	if len(snap.Doctors) != 2 {
		t.Fatalf("expected default doctors, got %d", len(snap.Doctors))
	}

	path := filepath.Join(dir, "seed.json")
	content := `{"doctors":[{"id":"d9","name":"Dr. Z","fee":300,"doctorSharePercent":40}],
	"expenses":[{"id":"e1","dateISO":"2024-03-01T00:00:00Z","name":"Rent","amount":1000}]}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	s, err = NewFromFile(path)
	if err != nil {
		t.Fatalf("load seed: %v", err)
	}
	snap, _ = s.Snapshot(context.Background())
	if len(snap.Doctors) != 1 || snap.Doctors[0].ID != "d9" || len(snap.Expenses) != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	if err := os.WriteFile(path, []byte("{"), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	if _, err := NewFromFile(path); err == nil {
		t.Fatalf("expected decode error")
	}
}
