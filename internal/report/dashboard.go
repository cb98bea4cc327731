package report

import (
	"time"

	"hcms/internal/core"
)

type DoctorActivity struct {
	DoctorID       string `json:"doctorId"`
	Doctor         string `json:"doctor"`
	Specialization string `json:"specialization"`
	Patients       int    `json:"patients"`
	PatientsToday  int    `json:"patientsToday"`
}

type Dashboard struct {
	Today         string           `json:"today"`
	PatientsToday int              `json:"patientsToday"`
	DoctorCount   int              `json:"doctorCount"`
	Totals        Totals           `json:"totals"`
	Income        ShareSplit       `json:"income"`
	Doctors       []DoctorActivity `json:"doctors"`
}

// BuildDashboard summarises all-time activity and the activity of the UTC
// day containing now.
func BuildDashboard(snap core.Snapshot, now time.Time) (Dashboard, error) {
	sum, err := Aggregate(snap, Selection{})
	if err != nil {
		return Dashboard{}, err
	}
	today := core.DayOf(now)
	dash := Dashboard{
		Today:       today.Key(),
		DoctorCount: len(snap.Doctors),
		Totals:      sum.Totals,
		Income: ShareSplit{
			DoctorShare:   sum.Totals.DoctorShare,
			HospitalShare: sum.Totals.HospitalShare,
		},
		Doctors: make([]DoctorActivity, 0, len(snap.Doctors)),
	}

	pos := make(map[string]int, len(snap.Doctors))
	for _, d := range snap.Doctors {
		pos[d.ID] = len(dash.Doctors)
		dash.Doctors = append(dash.Doctors, DoctorActivity{
			DoctorID:       d.ID,
			Doctor:         d.Name,
			Specialization: d.Specialization,
		})
	}
	todayRange := core.DayRange{Start: today, End: today}
	for _, p := range snap.Patients {
		isToday := todayRange.Contains(p.Date)
		if isToday {
			dash.PatientsToday++
		}
		i, ok := pos[p.DoctorID]
		if !ok {
			continue
		}
		dash.Doctors[i].Patients++
		if isToday {
			dash.Doctors[i].PatientsToday++
		}
	}
	return dash, nil
}
