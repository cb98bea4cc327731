// Package records defines the ports of the record repository that owns the
// clinic's collections. Report code only ever reads a Snapshot; writes go
// through the intake service.
package records

import (
	"context"
	"errors"

	"hcms/internal/core"
)

var ErrNotFound = errors.New("record not found")

// Saves are upserts keyed by id.
type (
	SnapshotReader interface {
		// Snapshot returns a consistent copy of every collection.
		Snapshot(ctx context.Context) (core.Snapshot, error)
	}

	DoctorStore interface {
		GetDoctor(ctx context.Context, id string) (core.Doctor, error)
		SaveDoctor(ctx context.Context, d core.Doctor) error
		// DeleteDoctor removes the doctor together with its patients.
		DeleteDoctor(ctx context.Context, id string) error
	}

	PatientStore interface {
		GetPatient(ctx context.Context, id string) (core.Patient, error)
		SavePatient(ctx context.Context, p core.Patient) error
		// SaveRegistration stores a patient and the charges made at intake
		// atomically.
		SaveRegistration(ctx context.Context, p core.Patient, svc []core.ServiceRecord, labs []core.LabRecord) error
	}

	CatalogStore interface {
		GetService(ctx context.Context, id string) (core.Service, error)
		SaveService(ctx context.Context, s core.Service) error
		DeleteService(ctx context.Context, id string) error
		GetLabTest(ctx context.Context, id string) (core.LabTest, error)
		SaveLabTest(ctx context.Context, t core.LabTest) error
		DeleteLabTest(ctx context.Context, id string) error
	}

	ChargeStore interface {
		SaveServiceRecord(ctx context.Context, r core.ServiceRecord) error
		SaveLabRecord(ctx context.Context, r core.LabRecord) error
	}

	ExpenseStore interface {
		SaveExpense(ctx context.Context, e core.Expense) error
		DeleteExpense(ctx context.Context, id string) error
	}

	// Repository is the full record store a backend provides.
	Repository interface {
		SnapshotReader
		DoctorStore
		PatientStore
		CatalogStore
		ChargeStore
		ExpenseStore
		Close() error
	}
)

// Seed is the initial catalog a fresh store starts with.
type Seed struct {
	Doctors  []core.Doctor  `json:"doctors"`
	Services []core.Service `json:"services"`
	LabTests []core.LabTest `json:"labTests"`
}

// DefaultSeed is the catalog the clinic starts with.
func DefaultSeed() Seed {
	return Seed{
		Doctors: []core.Doctor{
			{ID: "doc_1", Name: "Dr. A. Khan", Specialization: "General Physician", Fee: 400, DoctorSharePercent: 50},
			{ID: "doc_2", Name: "Dr. S. Mehta", Specialization: "Pediatrics", Fee: 500, DoctorSharePercent: 60},
		},
		Services: []core.Service{
			{ID: "srv_neb", Name: "Nebulization", Price: 200},
			{ID: "srv_iv", Name: "IV", Price: 350},
			{ID: "srv_inj", Name: "Injection", Price: 150},
			{ID: "srv_drs", Name: "Dressing", Price: 250},
		},
		LabTests: []core.LabTest{
			{ID: "lab_cbc", Name: "CBC", Price: 450},
			{ID: "lab_lft", Name: "LFT", Price: 600},
		},
	}
}
