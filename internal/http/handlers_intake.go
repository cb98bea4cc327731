package http

import (
	"fmt"
	"net/http"

	applog "hcms/internal/log"
	"hcms/internal/services"
)

// created writes a successful write result and drops cached screens.
func (s *Server) created(w http.ResponseWriter, status int, v any) {
	s.invalidate()
	writeJSON(w, status, v)
}

func (s *Server) deleted(w http.ResponseWriter) {
	s.invalidate()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddDoctor(w http.ResponseWriter, r *http.Request) {
	var in services.DoctorInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	d, err := s.intake.AddDoctor(r.Context(), in)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	s.created(w, http.StatusCreated, d)
}

func (s *Server) handleUpdateDoctor(w http.ResponseWriter, r *http.Request) {
	var in services.DoctorInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	d, err := s.intake.UpdateDoctor(r.Context(), r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	s.created(w, http.StatusOK, d)
}

func (s *Server) handleDeleteDoctor(w http.ResponseWriter, r *http.Request) {
	if err := s.intake.DeleteDoctor(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}
	s.deleted(w)
}

func (s *Server) handleAddService(w http.ResponseWriter, r *http.Request) {
	var in services.CatalogItemInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	sv, err := s.intake.AddService(r.Context(), in)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	s.created(w, http.StatusCreated, sv)
}

func (s *Server) handleDeleteService(w http.ResponseWriter, r *http.Request) {
	if err := s.intake.DeleteService(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}
	s.deleted(w)
}

func (s *Server) handleAddLabTest(w http.ResponseWriter, r *http.Request) {
	var in services.CatalogItemInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	t, err := s.intake.AddLabTest(r.Context(), in)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	s.created(w, http.StatusCreated, t)
}

func (s *Server) handleDeleteLabTest(w http.ResponseWriter, r *http.Request) {
	if err := s.intake.DeleteLabTest(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}
	s.deleted(w)
}

func (s *Server) handleRegisterPatient(w http.ResponseWriter, r *http.Request) {
	var in services.PatientInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	reg, err := s.intake.RegisterPatient(r.Context(), in)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	s.created(w, http.StatusCreated, reg)
}

type attendedRequest struct {
	Attended *bool `json:"attended"`
}

func (s *Server) handleMarkAttended(w http.ResponseWriter, r *http.Request) {
	var in attendedRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	if in.Attended == nil {
		writeError(w, r, applog.OpUpdate, fmt.Errorf("%w: attended is required", services.ErrInvalidInput))
		return
	}
	p, err := s.intake.MarkAttended(r.Context(), r.PathValue("id"), *in.Attended)
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	s.created(w, http.StatusOK, p)
}

func (s *Server) handleReferOut(w http.ResponseWriter, r *http.Request) {
	var in services.ReferralInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	p, err := s.intake.ReferOut(r.Context(), r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	s.created(w, http.StatusOK, p)
}

func (s *Server) handleRecordService(w http.ResponseWriter, r *http.Request) {
	var in services.ChargeInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	rec, err := s.intake.RecordService(r.Context(), in)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	s.created(w, http.StatusCreated, rec)
}

func (s *Server) handleRecordLab(w http.ResponseWriter, r *http.Request) {
	var in services.ChargeInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	rec, err := s.intake.RecordLab(r.Context(), in)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	s.created(w, http.StatusCreated, rec)
}

func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	var in services.ExpenseInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	e, err := s.intake.AddExpense(r.Context(), in)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	s.created(w, http.StatusCreated, e)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.intake.DeleteExpense(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}
	s.deleted(w)
}
