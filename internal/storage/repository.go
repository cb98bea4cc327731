package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"hcms/internal/core"
	"hcms/internal/records"

	_ "modernc.org/sqlite"
)

const (
	kindService = "service"
	kindLab     = "lab"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// single connection serialises writers
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Snapshot implements records.SnapshotReader. All tables are read inside one
// transaction so the collections are mutually consistent.
func (r *SQLiteRepository) Snapshot(ctx context.Context) (core.Snapshot, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback()

	var snap core.Snapshot
	if snap.Doctors, err = loadDoctors(ctx, tx); err != nil {
		return core.Snapshot{}, err
	}
	if snap.Patients, err = loadPatients(ctx, tx); err != nil {
		return core.Snapshot{}, err
	}
	if snap.Services, err = loadCatalog(ctx, tx, "services", func(id, name string, price core.Money) core.Service {
		return core.Service{ID: id, Name: name, Price: price}
	}); err != nil {
		return core.Snapshot{}, err
	}
	if snap.LabTests, err = loadCatalog(ctx, tx, "lab_tests", func(id, name string, price core.Money) core.LabTest {
		return core.LabTest{ID: id, Name: name, Price: price}
	}); err != nil {
		return core.Snapshot{}, err
	}
	charges, err := loadCharges(ctx, tx)
	if err != nil {
		return core.Snapshot{}, err
	}
	for _, c := range charges {
		switch c.kind {
		case kindService:
			snap.ServiceRecords = append(snap.ServiceRecords, core.ServiceRecord{ChargeRecord: c.ChargeRecord, ServiceID: c.itemID})
		case kindLab:
			snap.LabRecords = append(snap.LabRecords, core.LabRecord{ChargeRecord: c.ChargeRecord, LabTestID: c.itemID})
		}
	}
	if snap.Expenses, err = loadExpenses(ctx, tx); err != nil {
		return core.Snapshot{}, err
	}
	return snap, tx.Commit()
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func loadDoctors(ctx context.Context, q queryer) ([]core.Doctor, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, name, specialization, fee, doctor_share_percent FROM doctors ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query doctors: %w", err)
	}
	defer rows.Close()
	var out []core.Doctor
	for rows.Next() {
		var d core.Doctor
		if err := rows.Scan(&d.ID, &d.Name, &d.Specialization, &d.Fee, &d.DoctorSharePercent); err != nil {
			return nil, fmt.Errorf("scan doctor: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

const patientColumns = `id, name, phone, age, gender, address, doctor_id, visit_at, fee,
	doctor_share, hospital_share, reference, discount_percent, referral_percent, attended,
	referred_to_hospital, referred_to_doctor, referred_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPatient(s rowScanner) (core.Patient, error) {
	var (
		p          core.Patient
		visitAt    string
		referredAt sql.NullString
	)
	err := s.Scan(&p.ID, &p.Name, &p.Phone, &p.Age, &p.Gender, &p.Address, &p.DoctorID, &visitAt,
		&p.Fee, &p.DoctorShare, &p.HospitalShare, &p.Reference, &p.DiscountPercent, &p.ReferralPercent,
		&p.Attended, &p.ReferredToHospital, &p.ReferredToDoctor, &referredAt)
	if err != nil {
		return core.Patient{}, err
	}
	if p.Date, err = parseTime(visitAt); err != nil {
		return core.Patient{}, fmt.Errorf("patient %s visit time: %w", p.ID, err)
	}
	if referredAt.Valid {
		t, err := parseTime(referredAt.String)
		if err != nil {
			return core.Patient{}, fmt.Errorf("patient %s referral time: %w", p.ID, err)
		}
		p.ReferredDate = &t
	}
	return p, nil
}

func loadPatients(ctx context.Context, q queryer) ([]core.Patient, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+patientColumns+` FROM patients ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query patients: %w", err)
	}
	defer rows.Close()
	var out []core.Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan patient: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func loadCatalog[T any](ctx context.Context, q queryer, table string, build func(id, name string, price core.Money) T) ([]T, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, name, price FROM `+table+` ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()
	var out []T
	for rows.Next() {
		var (
			id, name string
			price    core.Money
		)
		if err := rows.Scan(&id, &name, &price); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		out = append(out, build(id, name, price))
	}
	return out, rows.Err()
}

type chargeRow struct {
	core.ChargeRecord
	kind   string
	itemID string
}

func loadCharges(ctx context.Context, q queryer) ([]chargeRow, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, kind, item_id, charged_at, patient_id, patient_name,
		doctor_id, total, doctor_share, hospital_share FROM charges ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query charges: %w", err)
	}
	defer rows.Close()
	var out []chargeRow
	for rows.Next() {
		var (
			c         chargeRow
			chargedAt string
			doc, hosp sql.NullInt64
		)
		if err := rows.Scan(&c.ID, &c.kind, &c.itemID, &chargedAt, &c.PatientID, &c.PatientName,
			&c.DoctorID, &c.Total, &doc, &hosp); err != nil {
			return nil, fmt.Errorf("scan charge: %w", err)
		}
		if c.Date, err = parseTime(chargedAt); err != nil {
			return nil, fmt.Errorf("charge %s time: %w", c.ID, err)
		}
		if doc.Valid && hosp.Valid {
			c.Shares = &core.Shares{DoctorShare: core.Money(doc.Int64), HospitalShare: core.Money(hosp.Int64)}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func loadExpenses(ctx context.Context, q queryer) ([]core.Expense, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, spent_at, name, amount FROM expenses ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()
	var out []core.Expense
	for rows.Next() {
		var (
			e       core.Expense
			spentAt string
		)
		if err := rows.Scan(&e.ID, &spentAt, &e.Name, &e.Amount); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		if e.Date, err = parseTime(spentAt); err != nil {
			return nil, fmt.Errorf("expense %s time: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetDoctor(ctx context.Context, id string) (core.Doctor, error) {
	var d core.Doctor
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, specialization, fee, doctor_share_percent FROM doctors WHERE id = ?`, id).
		Scan(&d.ID, &d.Name, &d.Specialization, &d.Fee, &d.DoctorSharePercent)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Doctor{}, fmt.Errorf("doctor %s: %w", id, records.ErrNotFound)
	}
	if err != nil {
		return core.Doctor{}, fmt.Errorf("get doctor: %w", err)
	}
	return d, nil
}

func (r *SQLiteRepository) SaveDoctor(ctx context.Context, d core.Doctor) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO doctors (id, name, specialization, fee, doctor_share_percent)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, specialization = excluded.specialization,
			fee = excluded.fee, doctor_share_percent = excluded.doctor_share_percent`,
		d.ID, d.Name, d.Specialization, int64(d.Fee), d.DoctorSharePercent)
	if err != nil {
		return fmt.Errorf("save doctor: %w", err)
	}
	slog.InfoContext(ctx, "Doctor saved to SQLite", "id", d.ID, "share_percent", d.DoctorSharePercent)
	return nil
}

// DeleteDoctor removes the doctor and the doctor's patients in one transaction.
func (r *SQLiteRepository) DeleteDoctor(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete doctor: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM doctors WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete doctor: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("doctor %s: %w", id, records.ErrNotFound)
	}
	res, err = tx.ExecContext(ctx, `DELETE FROM patients WHERE doctor_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete doctor patients: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete doctor: %w", err)
	}
	removed, _ := res.RowsAffected()
	slog.InfoContext(ctx, "Doctor deleted from SQLite", "id", id, "patients_removed", removed)
	return nil
}

func (r *SQLiteRepository) GetPatient(ctx context.Context, id string) (core.Patient, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+patientColumns+` FROM patients WHERE id = ?`, id)
	p, err := scanPatient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Patient{}, fmt.Errorf("patient %s: %w", id, records.ErrNotFound)
	}
	if err != nil {
		return core.Patient{}, fmt.Errorf("get patient: %w", err)
	}
	return p, nil
}

// SavePatient upserts a patient row.
func (r *SQLiteRepository) SavePatient(ctx context.Context, p core.Patient) error {
	if err := savePatient(ctx, r.db, p); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Patient saved to SQLite", "id", p.ID, "doctor_id", p.DoctorID, "fee", int64(p.Fee))
	return nil
}

// SaveRegistration stores a patient and its intake charges in one
// transaction; either all rows land or none do.
func (r *SQLiteRepository) SaveRegistration(ctx context.Context, p core.Patient, svc []core.ServiceRecord, labs []core.LabRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin registration: %w", err)
	}
	defer tx.Rollback()

	if err := savePatient(ctx, tx, p); err != nil {
		return err
	}
	for _, rec := range svc {
		if err := saveCharge(ctx, tx, kindService, rec.ServiceID, rec.ChargeRecord); err != nil {
			return err
		}
	}
	for _, rec := range labs {
		if err := saveCharge(ctx, tx, kindLab, rec.LabTestID, rec.ChargeRecord); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit registration: %w", err)
	}
	slog.InfoContext(ctx, "Registration saved to SQLite", "id", p.ID,
		"services", len(svc), "labs", len(labs))
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func savePatient(ctx context.Context, ex execer, p core.Patient) error {
	var referredAt any
	if p.ReferredDate != nil {
		referredAt = formatTime(*p.ReferredDate)
	}
	_, err := ex.ExecContext(ctx, `INSERT INTO patients (`+patientColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, phone = excluded.phone, age = excluded.age,
			gender = excluded.gender, address = excluded.address, doctor_id = excluded.doctor_id,
			visit_at = excluded.visit_at, fee = excluded.fee, doctor_share = excluded.doctor_share,
			hospital_share = excluded.hospital_share, reference = excluded.reference,
			discount_percent = excluded.discount_percent, referral_percent = excluded.referral_percent,
			attended = excluded.attended, referred_to_hospital = excluded.referred_to_hospital,
			referred_to_doctor = excluded.referred_to_doctor, referred_at = excluded.referred_at`,
		p.ID, p.Name, p.Phone, p.Age, p.Gender, p.Address, p.DoctorID, formatTime(p.Date),
		int64(p.Fee), int64(p.DoctorShare), int64(p.HospitalShare), p.Reference,
		p.DiscountPercent, p.ReferralPercent, p.Attended,
		p.ReferredToHospital, p.ReferredToDoctor, referredAt)
	if err != nil {
		return fmt.Errorf("save patient: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetService(ctx context.Context, id string) (core.Service, error) {
	var s core.Service
	err := r.db.QueryRowContext(ctx, `SELECT id, name, price FROM services WHERE id = ?`, id).
		Scan(&s.ID, &s.Name, &s.Price)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Service{}, fmt.Errorf("service %s: %w", id, records.ErrNotFound)
	}
	if err != nil {
		return core.Service{}, fmt.Errorf("get service: %w", err)
	}
	return s, nil
}

func (r *SQLiteRepository) SaveService(ctx context.Context, s core.Service) error {
	return r.saveCatalogItem(ctx, "services", s.ID, s.Name, s.Price)
}

func (r *SQLiteRepository) DeleteService(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "services", "service", id)
}

func (r *SQLiteRepository) GetLabTest(ctx context.Context, id string) (core.LabTest, error) {
	var t core.LabTest
	err := r.db.QueryRowContext(ctx, `SELECT id, name, price FROM lab_tests WHERE id = ?`, id).
		Scan(&t.ID, &t.Name, &t.Price)
	if errors.Is(err, sql.ErrNoRows) {
		return core.LabTest{}, fmt.Errorf("lab test %s: %w", id, records.ErrNotFound)
	}
	if err != nil {
		return core.LabTest{}, fmt.Errorf("get lab test: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) SaveLabTest(ctx context.Context, t core.LabTest) error {
	return r.saveCatalogItem(ctx, "lab_tests", t.ID, t.Name, t.Price)
}

func (r *SQLiteRepository) DeleteLabTest(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "lab_tests", "lab test", id)
}

func (r *SQLiteRepository) saveCatalogItem(ctx context.Context, table, id, name string, price core.Money) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO `+table+` (id, name, price) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, price = excluded.price`,
		id, name, int64(price))
	if err != nil {
		return fmt.Errorf("save %s: %w", table, err)
	}
	return nil
}

func (r *SQLiteRepository) deleteByID(ctx context.Context, table, label, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", label, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s %s: %w", label, id, records.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) SaveServiceRecord(ctx context.Context, rec core.ServiceRecord) error {
	if err := saveCharge(ctx, r.db, kindService, rec.ServiceID, rec.ChargeRecord); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Charge saved to SQLite", "id", rec.ID, "kind", kindService, "total", int64(rec.Total))
	return nil
}

func (r *SQLiteRepository) SaveLabRecord(ctx context.Context, rec core.LabRecord) error {
	if err := saveCharge(ctx, r.db, kindLab, rec.LabTestID, rec.ChargeRecord); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Charge saved to SQLite", "id", rec.ID, "kind", kindLab, "total", int64(rec.Total))
	return nil
}

func saveCharge(ctx context.Context, ex execer, kind, itemID string, c core.ChargeRecord) error {
	var doc, hosp sql.NullInt64
	if c.Shares != nil {
		doc = sql.NullInt64{Int64: int64(c.Shares.DoctorShare), Valid: true}
		hosp = sql.NullInt64{Int64: int64(c.Shares.HospitalShare), Valid: true}
	}
	_, err := ex.ExecContext(ctx, `INSERT INTO charges (id, kind, item_id, charged_at, patient_id,
			patient_name, doctor_id, total, doctor_share, hospital_share)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET kind = excluded.kind, item_id = excluded.item_id,
			charged_at = excluded.charged_at, patient_id = excluded.patient_id,
			patient_name = excluded.patient_name, doctor_id = excluded.doctor_id, total = excluded.total,
			doctor_share = excluded.doctor_share, hospital_share = excluded.hospital_share`,
		c.ID, kind, itemID, formatTime(c.Date), c.PatientID, c.PatientName, c.DoctorID,
		int64(c.Total), doc, hosp)
	if err != nil {
		return fmt.Errorf("save %s record: %w", kind, err)
	}
	return nil
}

func (r *SQLiteRepository) SaveExpense(ctx context.Context, e core.Expense) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO expenses (id, spent_at, name, amount) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET spent_at = excluded.spent_at, name = excluded.name, amount = excluded.amount`,
		e.ID, formatTime(e.Date), e.Name, int64(e.Amount))
	if err != nil {
		return fmt.Errorf("save expense: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "expenses", "expense", id)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
