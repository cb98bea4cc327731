package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2024-03-01", "2024-03-01", true},
		{" 2024-03-01 ", "2024-03-01", true},
		{"2024-03-01T10:15:00Z", "2024-03-01", true},
		{"2024-03-01T23:30:00-02:00", "2024-03-02", true}, // UTC day
		{"2024-03-01T01:00:00+05:30", "2024-02-29", true},
		{"01/03/2024", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseDate(tc.in)
		if tc.ok {
			if err != nil || got.Key() != tc.want {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.want, got.Key(), err)
			}
		} else if !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("%q expected ErrInvalidDate, got %v", tc.in, err)
		}
	}
}

func TestDateJSON(t *testing.T) {
	var r DayRange
	if err := json.Unmarshal([]byte(`{"start":"2024-01-05","end":null}`), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.Start.Key() != "2024-01-05" || !r.End.IsEmpty() {
		t.Fatalf("unexpected range %+v", r)
	}
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"start":"2024-01-05","end":null}` {
		t.Fatalf("unexpected json %s", b)
	}
}

func TestDateUnmarshalJSON(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr error
	}{
		{`"2024-03-01"`, "2024-03-01", nil},
		{`null`, "", nil},
		{`""`, "", nil},
		{`"  "`, "", nil},
		{`20240301`, "", ErrInvalidDate},
		{`true`, "", ErrInvalidDate},
		{`{"day":1}`, "", ErrInvalidDate},
		{`"2024-02-30"`, "", ErrInvalidDate},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			d := Date{Time: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)}
			err := d.UnmarshalJSON([]byte(tc.in))
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
			if tc.wantErr == nil && d.Key() != tc.want {
				t.Fatalf("date = %q, want %q", d.Key(), tc.want)
			}
		})
	}

	var r DayRange
	if err := json.Unmarshal([]byte(`{"start":20240301}`), &r); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate from a numeric bound, got %v", err)
	}
}

func TestInRangeBoundaries(t *testing.T) {
	start, end := NewDate(2024, 3, 1), NewDate(2024, 3, 31)
	at := func(y, m, d, h int) time.Time { return time.Date(y, time.Month(m), d, h, 0, 0, 0, time.UTC) }
	cases := []struct {
		name string
		t    time.Time
		want bool
	}{
		{"start day midnight", at(2024, 3, 1, 0), true},
		{"start day late", at(2024, 3, 1, 23), true},
		{"end day late", at(2024, 3, 31, 23), true},
		{"day before start", at(2024, 2, 29, 23), false},
		{"day after end", at(2024, 4, 1, 0), false},
		{"middle", at(2024, 3, 15, 12), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := InRange(tc.t, start, end); got != tc.want {
				t.Fatalf("InRange(%s) = %v, want %v", tc.t, got, tc.want)
			}
		})
	}
}

func TestDayRangeOpenBounds(t *testing.T) {
	ts := time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)
	if !(DayRange{}).Contains(ts) {
		t.Fatalf("open range must contain everything")
	}
	r, err := NewDayRange("2000-01-01", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Contains(ts) {
		t.Fatalf("start bound not applied")
	}
	if !r.Contains(time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("open end must not constrain")
	}
	if _, err := NewDayRange("nope", ""); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestResolveDoctorID(t *testing.T) {
	patients := map[string]Patient{
		"p1": {ID: "p1", DoctorID: "doc_1"},
		"p2": {ID: "p2"},
	}
	lookup := func(id string) (Patient, bool) {
		p, ok := patients[id]
		return p, ok
	}
	cases := []struct {
		name string
		rec  ChargeRecord
		want string
	}{
		{"explicit wins over patient", ChargeRecord{DoctorID: "doc_2", PatientID: "p1"}, "doc_2"},
		{"inherited from patient", ChargeRecord{PatientID: "p1"}, "doc_1"},
		{"patient without doctor", ChargeRecord{PatientID: "p2"}, ""},
		{"unknown patient", ChargeRecord{PatientID: "ghost"}, ""},
		{"general record", ChargeRecord{PatientName: "Walk-in"}, ""},
		{"explicit unknown doctor kept", ChargeRecord{DoctorID: "doc_x"}, "doc_x"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ResolveDoctorID(tc.rec, lookup); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
	if got := ResolveDoctorID(ChargeRecord{PatientID: "p1"}, nil); got != "" {
		t.Fatalf("nil lookup should resolve nothing, got %q", got)
	}
}

func TestIndexLookupsAreTotal(t *testing.T) {
	idx := NewIndex(Snapshot{
		Doctors:  []Doctor{{ID: "doc_1", Name: "Dr. A"}},
		Patients: []Patient{{ID: "p1", DoctorID: "doc_1"}},
	})
	if _, ok := idx.Doctor(""); ok {
		t.Fatalf("empty id must not resolve")
	}
	if _, ok := idx.Service("srv_missing"); ok {
		t.Fatalf("unknown service must not resolve")
	}
	if got := idx.EffectiveDoctorID(ChargeRecord{PatientID: "p1"}); got != "doc_1" {
		t.Fatalf("got %q", got)
	}
}

func TestPatientValidate(t *testing.T) {
	good := Patient{
		Name: "Asha", DoctorID: "doc_1", Date: time.Now(),
		Fee: 360, DoctorShare: 180, HospitalShare: 180, DiscountPercent: 10,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	mismatch := good
	mismatch.HospitalShare = 100
	if err := mismatch.Validate(); !errors.Is(err, ErrShareMismatch) {
		t.Fatalf("expected ErrShareMismatch, got %v", err)
	}
	noDoc := good
	noDoc.DoctorID = " "
	if err := noDoc.Validate(); !errors.Is(err, ErrMissingDoctor) {
		t.Fatalf("expected ErrMissingDoctor, got %v", err)
	}
	badRef := good
	badRef.ReferralPercent = 101
	if err := badRef.Validate(); !errors.Is(err, ErrPercentOutOfRange) {
		t.Fatalf("expected ErrPercentOutOfRange, got %v", err)
	}
}

func TestChargeRecordValidate(t *testing.T) {
	r := ChargeRecord{Date: time.Now(), Total: 200}
	if err := r.Validate(); err != nil {
		t.Fatalf("general record should be valid: %v", err)
	}
	r.Shares = &Shares{DoctorShare: 120, HospitalShare: 80}
	if err := r.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	r.Shares = &Shares{DoctorShare: 120, HospitalShare: 70}
	if err := r.Validate(); !errors.Is(err, ErrShareMismatch) {
		t.Fatalf("expected ErrShareMismatch, got %v", err)
	}
}

func TestDoctorAndExpenseValidate(t *testing.T) {
	if err := (Doctor{Name: "Dr. A", Fee: 400, DoctorSharePercent: 50}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bads := []Doctor{
		{Name: "", Fee: 400, DoctorSharePercent: 50},
		{Name: "Dr. A", Fee: -1, DoctorSharePercent: 50},
		{Name: "Dr. A", Fee: 400, DoctorSharePercent: 101},
	}
	for i, d := range bads {
		if err := d.Validate(); err == nil {
			t.Fatalf("doctor case %d expected error", i)
		}
	}

	if err := (Expense{Date: time.Now(), Name: "Rent", Amount: 0}).Validate(); err != nil {
		t.Fatalf("zero expense should be valid: %v", err)
	}
	if err := (Expense{Date: time.Now(), Name: "Rent", Amount: -1}).Validate(); !errors.Is(err, ErrNegativeAmount) {
		t.Fatalf("expected ErrNegativeAmount, got %v", err)
	}
}
