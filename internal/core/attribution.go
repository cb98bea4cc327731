package core

// PatientLookup finds a patient by id.
type PatientLookup func(id string) (Patient, bool)

// ResolveDoctorID returns the doctor a charge is credited to, or "" when
// nobody is attributable.
//
// An explicit doctor on the record always wins, even over the linked
// patient's doctor. Otherwise the doctor is inherited from the linked patient
// when that patient can be found.
func ResolveDoctorID(r ChargeRecord, patients PatientLookup) string {
	if r.DoctorID != "" {
		return r.DoctorID
	}
	if r.PatientID == "" || patients == nil {
		return ""
	}
	if p, ok := patients(r.PatientID); ok {
		return p.DoctorID
	}
	return ""
}
