package sheets

import (
	"context"

	"hcms/internal/report"
)

// ReportPublisher copies a doctor export into an external spreadsheet and
// returns a reference to where it was written.
type ReportPublisher interface {
	PublishDoctorExport(ctx context.Context, exp report.DoctorExport) (ref string, err error)
}
