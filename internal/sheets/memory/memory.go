package memory

import (
	"context"
	"sync"

	"hcms/internal/report"
	ports "hcms/internal/sheets"
	"hcms/internal/sheets/google"
)

// Publisher keeps published exports in memory, keyed by sheet title, with
// the same rows the Google adapter would write.
type Publisher struct {
	mu     sync.Mutex
	sheets map[string][][]any
	order  []string
}

var _ ports.ReportPublisher = (*Publisher)(nil)

func New() *Publisher {
	return &Publisher{sheets: make(map[string][][]any)}
}

func (p *Publisher) PublishDoctorExport(ctx context.Context, exp report.DoctorExport) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	title := google.SheetTitle(exp)
	values := google.ExportValues(exp)

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.sheets[title]; !ok {
		p.order = append(p.order, title)
	}
	p.sheets[title] = values
	return title, nil
}

// Sheet returns the rows last published under title.
func (p *Publisher) Sheet(title string) ([][]any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.sheets[title]
	return v, ok
}

// Titles lists sheet titles in first-publish order.
func (p *Publisher) Titles() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.order...)
}
