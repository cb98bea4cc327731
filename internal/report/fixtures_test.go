package report

import (
	"fmt"
	"math/rand"
	"time"

	"hcms/internal/core"
)

func day(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 9, 30, 0, 0, time.UTC)
}

func mustRange(start, end string) core.DayRange {
	r, err := core.NewDayRange(start, end)
	if err != nil {
		panic(err)
	}
	return r
}

func shares(doc, hosp core.Money) *core.Shares {
	return &core.Shares{DoctorShare: doc, HospitalShare: hosp}
}

// patientFor registers a visit the way intake does.
func patientFor(id string, doc core.Doctor, at time.Time, discount int) core.Patient {
	fee, sh, err := core.PatientShares(doc, discount)
	if err != nil {
		panic(err)
	}
	return core.Patient{
		ID: id, Name: "Patient " + id, Phone: "98" + id, DoctorID: doc.ID, Date: at,
		Fee: fee, DoctorShare: sh.DoctorShare, HospitalShare: sh.HospitalShare,
		DiscountPercent: discount,
	}
}

var (
	drKhan  = core.Doctor{ID: "doc_1", Name: "Dr. A. Khan", Specialization: "General Physician", Fee: 400, DoctorSharePercent: 50}
	drMehta = core.Doctor{ID: "doc_2", Name: "Dr. S. Mehta", Specialization: "Pediatrics", Fee: 500, DoctorSharePercent: 60}
)

func catalog() ([]core.Service, []core.LabTest) {
	return []core.Service{
			{ID: "srv_neb", Name: "Nebulization", Price: 200},
			{ID: "srv_iv", Name: "IV", Price: 350},
		}, []core.LabTest{
			{ID: "lab_cbc", Name: "CBC", Price: 450},
		}
}

// randomSnapshot builds a consistent but messy snapshot: stored and missing
// shares, explicit and inherited attribution, unknown ids and blank sources.
func randomSnapshot(seed int64) core.Snapshot {
	rng := rand.New(rand.NewSource(seed))
	services, labs := catalog()
	doctors := []core.Doctor{drKhan, drMehta,
		{ID: "doc_3", Name: "Dr. R. Iyer", Specialization: "ENT", Fee: 350, DoctorSharePercent: 45}}
	snap := core.Snapshot{Doctors: doctors, Services: services, LabTests: labs}

	refs := []string{"", "  ", "Dr. Bose", "City Hospital", "Dr. Bose "}
	for i := 0; i < 40; i++ {
		doc := doctors[rng.Intn(len(doctors))]
		p := patientFor(fmt.Sprintf("p%02d", i), doc, day(2024, 3, 1+rng.Intn(31)), rng.Intn(30))
		p.Reference = refs[rng.Intn(len(refs))]
		p.ReferralPercent = rng.Intn(20)
		if rng.Intn(4) == 0 {
			p.ReferredToHospital = "General Hospital"
		}
		if rng.Intn(5) == 0 {
			p.ReferredToDoctor = "Dr. Outside"
		}
		snap.Patients = append(snap.Patients, p)
	}

	docIDs := []string{"", "", "doc_1", "doc_2", "doc_3", "doc_ghost"}
	charge := func(i int, price core.Money) core.ChargeRecord {
		r := core.ChargeRecord{
			ID:       fmt.Sprintf("r%03d", i),
			Date:     day(2024, 3, 1+rng.Intn(31)),
			DoctorID: docIDs[rng.Intn(len(docIDs))],
			Total:    price,
		}
		switch rng.Intn(3) {
		case 0:
			r.PatientID = snap.Patients[rng.Intn(len(snap.Patients))].ID
		case 1:
			r.PatientID = "p_missing"
		default:
			r.PatientName = "Walk-in"
		}
		if rng.Intn(2) == 0 {
			sh, _ := core.ComputeShares(price, rng.Intn(101))
			r.Shares = &sh
		}
		return r
	}
	for i := 0; i < 60; i++ {
		s := services[rng.Intn(len(services))]
		id := s.ID
		if rng.Intn(10) == 0 {
			id = "srv_deleted"
		}
		snap.ServiceRecords = append(snap.ServiceRecords, core.ServiceRecord{ChargeRecord: charge(i, s.Price), ServiceID: id})
	}
	for i := 60; i < 100; i++ {
		t := labs[rng.Intn(len(labs))]
		snap.LabRecords = append(snap.LabRecords, core.LabRecord{ChargeRecord: charge(i, t.Price), LabTestID: t.ID})
	}
	for i := 0; i < 10; i++ {
		snap.Expenses = append(snap.Expenses, core.Expense{
			ID: fmt.Sprintf("e%02d", i), Date: day(2024, 3, 1+rng.Intn(31)),
			Name: "Supplies", Amount: core.Money(rng.Intn(800)),
		})
	}
	return snap
}

// shuffled returns a copy of snap with every collection reordered.
func shuffled(snap core.Snapshot, seed int64) core.Snapshot {
	rng := rand.New(rand.NewSource(seed))
	out := core.Snapshot{
		Doctors:        append([]core.Doctor(nil), snap.Doctors...),
		Patients:       append([]core.Patient(nil), snap.Patients...),
		Services:       append([]core.Service(nil), snap.Services...),
		ServiceRecords: append([]core.ServiceRecord(nil), snap.ServiceRecords...),
		LabTests:       append([]core.LabTest(nil), snap.LabTests...),
		LabRecords:     append([]core.LabRecord(nil), snap.LabRecords...),
		Expenses:       append([]core.Expense(nil), snap.Expenses...),
	}
	rng.Shuffle(len(out.Doctors), func(i, j int) { out.Doctors[i], out.Doctors[j] = out.Doctors[j], out.Doctors[i] })
	rng.Shuffle(len(out.Patients), func(i, j int) { out.Patients[i], out.Patients[j] = out.Patients[j], out.Patients[i] })
	rng.Shuffle(len(out.ServiceRecords), func(i, j int) {
		out.ServiceRecords[i], out.ServiceRecords[j] = out.ServiceRecords[j], out.ServiceRecords[i]
	})
	rng.Shuffle(len(out.LabRecords), func(i, j int) { out.LabRecords[i], out.LabRecords[j] = out.LabRecords[j], out.LabRecords[i] })
	rng.Shuffle(len(out.Expenses), func(i, j int) { out.Expenses[i], out.Expenses[j] = out.Expenses[j], out.Expenses[i] })
	return out
}
