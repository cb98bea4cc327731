package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"hcms/internal/core"
	"hcms/internal/records"
)

// Store keeps every collection in insertion order behind one mutex.
type Store struct {
	mu             sync.Mutex
	doctors        []core.Doctor
	patients       []core.Patient
	services       []core.Service
	serviceRecords []core.ServiceRecord
	labTests       []core.LabTest
	labRecords     []core.LabRecord
	expenses       []core.Expense
}

func New(seed records.Seed) *Store {
	return &Store{
		doctors:  append([]core.Doctor(nil), seed.Doctors...),
		services: append([]core.Service(nil), seed.Services...),
		labTests: append([]core.LabTest(nil), seed.LabTests...),
	}
}

// NewFromFile seeds the store from a JSON snapshot file. A missing file falls
// back to the default seed.
func NewFromFile(path string) (*Store, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return New(records.DefaultSeed()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	var snap core.Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, fmt.Errorf("decode seed %s: %w", path, err)
	}
	s := &Store{}
	s.load(snap)
	return s, nil
}

func (s *Store) load(snap core.Snapshot) {
	c := copySnapshot(snap)
	s.doctors, s.patients = c.Doctors, c.Patients
	s.services, s.serviceRecords = c.Services, c.ServiceRecords
	s.labTests, s.labRecords = c.LabTests, c.LabRecords
	s.expenses = c.Expenses
}

func (s *Store) Close() error { return nil }

// Snapshot returns a deep copy so callers can compute without holding the lock.
func (s *Store) Snapshot(_ context.Context) (core.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copySnapshot(core.Snapshot{
		Doctors:        s.doctors,
		Patients:       s.patients,
		Services:       s.services,
		ServiceRecords: s.serviceRecords,
		LabTests:       s.labTests,
		LabRecords:     s.labRecords,
		Expenses:       s.expenses,
	}), nil
}

func (s *Store) GetDoctor(_ context.Context, id string) (core.Doctor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.doctors {
		if d.ID == id {
			return d, nil
		}
	}
	return core.Doctor{}, fmt.Errorf("doctor %s: %w", id, records.ErrNotFound)
}

func (s *Store) SaveDoctor(_ context.Context, d core.Doctor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doctors = upsert(s.doctors, d, func(x core.Doctor) string { return x.ID })
	return nil
}

func (s *Store) DeleteDoctor(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ok bool
	if s.doctors, ok = remove(s.doctors, id, func(x core.Doctor) string { return x.ID }); !ok {
		return fmt.Errorf("doctor %s: %w", id, records.ErrNotFound)
	}
	kept := s.patients[:0]
	for _, p := range s.patients {
		if p.DoctorID != id {
			kept = append(kept, p)
		}
	}
	s.patients = kept
	return nil
}

func (s *Store) GetPatient(_ context.Context, id string) (core.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.patients {
		if p.ID == id {
			return copyPatient(p), nil
		}
	}
	return core.Patient{}, fmt.Errorf("patient %s: %w", id, records.ErrNotFound)
}

func (s *Store) SavePatient(_ context.Context, p core.Patient) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patients = upsert(s.patients, copyPatient(p), func(x core.Patient) string { return x.ID })
	return nil
}

func (s *Store) SaveRegistration(_ context.Context, p core.Patient, svc []core.ServiceRecord, labs []core.LabRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patients = upsert(s.patients, copyPatient(p), func(x core.Patient) string { return x.ID })
	for _, r := range svc {
		r.ChargeRecord = copyCharge(r.ChargeRecord)
		s.serviceRecords = upsert(s.serviceRecords, r, func(x core.ServiceRecord) string { return x.ID })
	}
	for _, r := range labs {
		r.ChargeRecord = copyCharge(r.ChargeRecord)
		s.labRecords = upsert(s.labRecords, r, func(x core.LabRecord) string { return x.ID })
	}
	return nil
}

func (s *Store) GetService(_ context.Context, id string) (core.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sv := range s.services {
		if sv.ID == id {
			return sv, nil
		}
	}
	return core.Service{}, fmt.Errorf("service %s: %w", id, records.ErrNotFound)
}

func (s *Store) SaveService(_ context.Context, sv core.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services = upsert(s.services, sv, func(x core.Service) string { return x.ID })
	return nil
}

func (s *Store) DeleteService(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ok bool
	if s.services, ok = remove(s.services, id, func(x core.Service) string { return x.ID }); !ok {
		return fmt.Errorf("service %s: %w", id, records.ErrNotFound)
	}
	return nil
}

func (s *Store) GetLabTest(_ context.Context, id string) (core.LabTest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.labTests {
		if t.ID == id {
			return t, nil
		}
	}
	return core.LabTest{}, fmt.Errorf("lab test %s: %w", id, records.ErrNotFound)
}

func (s *Store) SaveLabTest(_ context.Context, t core.LabTest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.labTests = upsert(s.labTests, t, func(x core.LabTest) string { return x.ID })
	return nil
}

func (s *Store) DeleteLabTest(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ok bool
	if s.labTests, ok = remove(s.labTests, id, func(x core.LabTest) string { return x.ID }); !ok {
		return fmt.Errorf("lab test %s: %w", id, records.ErrNotFound)
	}
	return nil
}

func (s *Store) SaveServiceRecord(_ context.Context, r core.ServiceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ChargeRecord = copyCharge(r.ChargeRecord)
	s.serviceRecords = upsert(s.serviceRecords, r, func(x core.ServiceRecord) string { return x.ID })
	return nil
}

func (s *Store) SaveLabRecord(_ context.Context, r core.LabRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ChargeRecord = copyCharge(r.ChargeRecord)
	s.labRecords = upsert(s.labRecords, r, func(x core.LabRecord) string { return x.ID })
	return nil
}

func (s *Store) SaveExpense(_ context.Context, e core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expenses = upsert(s.expenses, e, func(x core.Expense) string { return x.ID })
	return nil
}

func (s *Store) DeleteExpense(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ok bool
	if s.expenses, ok = remove(s.expenses, id, func(x core.Expense) string { return x.ID }); !ok {
		return fmt.Errorf("expense %s: %w", id, records.ErrNotFound)
	}
	return nil
}

func upsert[T any](items []T, v T, key func(T) string) []T {
	k := key(v)
	for i := range items {
		if key(items[i]) == k {
			items[i] = v
			return items
		}
	}
	return append(items, v)
}

func remove[T any](items []T, id string, key func(T) string) ([]T, bool) {
	for i := range items {
		if key(items[i]) == id {
			return append(items[:i:i], items[i+1:]...), true
		}
	}
	return items, false
}

func copyPatient(p core.Patient) core.Patient {
	if p.ReferredDate != nil {
		d := *p.ReferredDate
		p.ReferredDate = &d
	}
	return p
}

func copyCharge(r core.ChargeRecord) core.ChargeRecord {
	if r.Shares != nil {
		sh := *r.Shares
		r.Shares = &sh
	}
	return r
}

func copySnapshot(in core.Snapshot) core.Snapshot {
	out := core.Snapshot{
		Doctors:        append([]core.Doctor{}, in.Doctors...),
		Patients:       make([]core.Patient, len(in.Patients)),
		Services:       append([]core.Service{}, in.Services...),
		ServiceRecords: make([]core.ServiceRecord, len(in.ServiceRecords)),
		LabTests:       append([]core.LabTest{}, in.LabTests...),
		LabRecords:     make([]core.LabRecord, len(in.LabRecords)),
		Expenses:       append([]core.Expense{}, in.Expenses...),
	}
	for i, p := range in.Patients {
		out.Patients[i] = copyPatient(p)
	}
	for i, r := range in.ServiceRecords {
		r.ChargeRecord = copyCharge(r.ChargeRecord)
		out.ServiceRecords[i] = r
	}
	for i, r := range in.LabRecords {
		r.ChargeRecord = copyCharge(r.ChargeRecord)
		out.LabRecords[i] = r
	}
	return out
}
