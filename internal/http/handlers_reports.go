package http

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"hcms/internal/amqp"
	"hcms/internal/core"
	"hcms/internal/export"
	applog "hcms/internal/log"
	"hcms/internal/report"
)

// screen returns the report screen for sel, building it from a fresh
// snapshot on a cache miss.
func (s *Server) screen(ctx context.Context, sel report.Selection) (report.Screen, error) {
	key := selectionKey(sel)
	if cached, ok := s.screens.Get(key); ok {
		return cached, nil
	}
	gen := s.screenGeneration()
	snap, err := s.records.Snapshot(ctx)
	if err != nil {
		return report.Screen{}, fmt.Errorf("read records: %w", err)
	}
	screen, err := report.BuildScreen(snap, sel)
	if err != nil {
		return report.Screen{}, err
	}
	s.cacheScreen(gen, key, screen)
	return screen, nil
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sel, err := parseSelection(r.URL.Query())
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	screen, err := s.screen(r.Context(), sel)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	if !wantsXLSX(r) {
		writeJSON(w, http.StatusOK, screen)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteScreenXLSX(&buf, screen); err != nil {
		writeError(w, r, applog.OpExport, err)
		return
	}
	name := fmt.Sprintf("report_summary_%s_to_%s.xlsx", boundLabel(sel.Range.Start), boundLabel(sel.Range.End))
	writeAttachment(w, name, buf.Bytes())
}

func (s *Server) handleDoctorExport(w http.ResponseWriter, r *http.Request) {
	rng, err := parseRange(r.URL.Query())
	if err != nil {
		writeError(w, r, applog.OpExport, err)
		return
	}
	snap, err := s.records.Snapshot(r.Context())
	if err != nil {
		writeError(w, r, applog.OpExport, fmt.Errorf("read records: %w", err))
		return
	}
	exp, err := report.BuildDoctorExport(snap, r.PathValue("id"), rng)
	if err != nil {
		writeError(w, r, applog.OpExport, err)
		return
	}
	if !wantsXLSX(r) {
		writeJSON(w, http.StatusOK, exp)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteDoctorXLSX(&buf, exp); err != nil {
		writeError(w, r, applog.OpExport, err)
		return
	}
	writeAttachment(w, exp.FileName("xlsx"), buf.Bytes())
}

type exportJobResponse struct {
	JobID    string `json:"jobId"`
	DoctorID string `json:"doctorId"`
	Start    string `json:"start,omitempty"`
	End      string `json:"end,omitempty"`
}

// handleCreateExportJob queues a doctor export for the worker. The doctor
// and range are checked here so a bad job never reaches the queue.
func (s *Server) handleCreateExportJob(w http.ResponseWriter, r *http.Request) {
	if s.jobs == nil {
		writeError(w, r, applog.OpExport, errJobsDisabled)
		return
	}
	rng, err := parseRange(r.URL.Query())
	if err != nil {
		writeError(w, r, applog.OpExport, err)
		return
	}
	doctorID := r.PathValue("id")
	snap, err := s.records.Snapshot(r.Context())
	if err != nil {
		writeError(w, r, applog.OpExport, fmt.Errorf("read records: %w", err))
		return
	}
	if _, ok := core.NewIndex(snap).Doctor(doctorID); !ok {
		writeError(w, r, applog.OpExport, fmt.Errorf("%w: %s", report.ErrDoctorNotFound, doctorID))
		return
	}

	req := amqp.NewExportRequest(s.newJob(), doctorID, rng.Start.Key(), rng.End.Key())
	if err := s.jobs.PublishExportRequest(r.Context(), req); err != nil {
		writeError(w, r, applog.OpExport, fmt.Errorf("queue export job: %w", err))
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Export job queued",
		applog.FieldJobID, req.JobID, applog.FieldDoctorID, doctorID)
	writeJSON(w, http.StatusAccepted, exportJobResponse{
		JobID: req.JobID, DoctorID: doctorID, Start: req.Start, End: req.End,
	})
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	f, err := parseLedgerFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	snap, err := s.records.Snapshot(r.Context())
	if err != nil {
		writeError(w, r, applog.OpList, fmt.Errorf("read records: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, report.BuildLedger(snap, f))
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	snap, err := s.records.Snapshot(r.Context())
	if err != nil {
		writeError(w, r, applog.OpRead, fmt.Errorf("read records: %w", err))
		return
	}
	dash, err := report.BuildDashboard(snap, s.now())
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

func (s *Server) handleReceipt(w http.ResponseWriter, r *http.Request) {
	snap, err := s.records.Snapshot(r.Context())
	if err != nil {
		writeError(w, r, applog.OpRead, fmt.Errorf("read records: %w", err))
		return
	}
	rc, err := report.BuildReceipt(snap, report.ReceiptKind(r.PathValue("kind")), r.PathValue("id"))
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, rc)
}

func writeAttachment(w http.ResponseWriter, name string, body []byte) {
	w.Header().Set("Content-Type", export.ContentTypeXLSX)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func boundLabel(d core.Date) string {
	if d.IsEmpty() {
		return "all"
	}
	return d.Key()
}
