package core

// Snapshot is the full set of collections one computation reads. Callers
// take it once per request and must not mutate it while it is in use.
type Snapshot struct {
	Doctors        []Doctor        `json:"doctors"`
	Patients       []Patient       `json:"patients"`
	Services       []Service       `json:"services"`
	ServiceRecords []ServiceRecord `json:"serviceRecords"`
	LabTests       []LabTest       `json:"labTests"`
	LabRecords     []LabRecord     `json:"labRecords"`
	Expenses       []Expense       `json:"expenses"`
}

// Index provides id lookups over a Snapshot. Lookups are total: an empty or
// unknown id simply reports false.
type Index struct {
	doctors  map[string]Doctor
	patients map[string]Patient
	services map[string]Service
	labTests map[string]LabTest
}

func NewIndex(s Snapshot) *Index {
	idx := &Index{
		doctors:  make(map[string]Doctor, len(s.Doctors)),
		patients: make(map[string]Patient, len(s.Patients)),
		services: make(map[string]Service, len(s.Services)),
		labTests: make(map[string]LabTest, len(s.LabTests)),
	}
	for _, d := range s.Doctors {
		idx.doctors[d.ID] = d
	}
	for _, p := range s.Patients {
		idx.patients[p.ID] = p
	}
	for _, sv := range s.Services {
		idx.services[sv.ID] = sv
	}
	for _, t := range s.LabTests {
		idx.labTests[t.ID] = t
	}
	return idx
}

func (i *Index) Doctor(id string) (Doctor, bool) {
	if id == "" {
		return Doctor{}, false
	}
	d, ok := i.doctors[id]
	return d, ok
}

func (i *Index) Patient(id string) (Patient, bool) {
	if id == "" {
		return Patient{}, false
	}
	p, ok := i.patients[id]
	return p, ok
}

func (i *Index) Service(id string) (Service, bool) {
	if id == "" {
		return Service{}, false
	}
	s, ok := i.services[id]
	return s, ok
}

func (i *Index) LabTest(id string) (LabTest, bool) {
	if id == "" {
		return LabTest{}, false
	}
	t, ok := i.labTests[id]
	return t, ok
}

// EffectiveDoctorID resolves attribution for a charge against this index.
func (i *Index) EffectiveDoctorID(r ChargeRecord) string {
	return ResolveDoctorID(r, i.Patient)
}
