// Package worker processes doctor export jobs delivered over AMQP.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"hcms/internal/amqp"
	"hcms/internal/core"
	"hcms/internal/export"
	"hcms/internal/records"
	"hcms/internal/report"
	"hcms/internal/sheets"
)

// Job is one doctor export over a day range.
type Job struct {
	ID       string
	DoctorID string
	Range    core.DayRange
}

// Result reports where a job's export ended up.
type Result struct {
	JobID    string
	File     string
	SheetRef string
	Export   report.DoctorExport
}

// ExportWorker builds doctor exports from the record store, writes them to
// exportDir and, when a publisher is set, copies them to a spreadsheet.
type ExportWorker struct {
	records   records.SnapshotReader
	publisher sheets.ReportPublisher
	exportDir string
}

func NewExportWorker(rs records.SnapshotReader, publisher sheets.ReportPublisher, exportDir string) *ExportWorker {
	return &ExportWorker{records: rs, publisher: publisher, exportDir: exportDir}
}

// JobFromRequest parses the day bounds of an export request.
func JobFromRequest(req *amqp.ExportRequest) (Job, error) {
	rng, err := core.NewDayRange(req.Start, req.End)
	if err != nil {
		return Job{}, fmt.Errorf("job %s: %w", req.JobID, err)
	}
	return Job{ID: req.JobID, DoctorID: req.DoctorID, Range: rng}, nil
}

// HandleExportRequest is the AMQP handler. Requests that can never succeed
// (bad dates, unknown doctor) are marked permanent so they are dropped
// instead of requeued.
func (w *ExportWorker) HandleExportRequest(ctx context.Context, req *amqp.ExportRequest) error {
	job, err := JobFromRequest(req)
	if err != nil {
		return amqp.Permanent(err)
	}
	if _, err := w.Run(ctx, job); err != nil {
		if errors.Is(err, report.ErrDoctorNotFound) || errors.Is(err, report.ErrDoctorRequired) {
			return amqp.Permanent(err)
		}
		return err
	}
	return nil
}

// Run builds the export for job and delivers it to every configured output.
func (w *ExportWorker) Run(ctx context.Context, job Job) (Result, error) {
	slog.InfoContext(ctx, "Processing export job",
		"job_id", job.ID,
		"doctor_id", job.DoctorID,
		"start", job.Range.Start.String(),
		"end", job.Range.End.String())

	snap, err := w.records.Snapshot(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load records: %w", err)
	}
	exp, err := report.BuildDoctorExport(snap, job.DoctorID, job.Range)
	if err != nil {
		return Result{}, fmt.Errorf("build export: %w", err)
	}

	res := Result{JobID: job.ID, Export: exp}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		path, err := export.SaveDoctorXLSX(w.exportDir, exp)
		if err != nil {
			return fmt.Errorf("save xlsx: %w", err)
		}
		res.File = path
		return nil
	})
	if w.publisher != nil {
		g.Go(func() error {
			ref, err := w.publisher.PublishDoctorExport(gctx, exp)
			if err != nil {
				return fmt.Errorf("publish to sheets: %w", err)
			}
			res.SheetRef = ref
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		slog.ErrorContext(ctx, "Export job failed", "job_id", job.ID, "error", err)
		return Result{}, err
	}

	slog.InfoContext(ctx, "Export job completed",
		"job_id", job.ID,
		"file", res.File,
		"sheet_ref", res.SheetRef,
		"services", exp.Services.Count,
		"labs", exp.Labs.Count)
	return res, nil
}
