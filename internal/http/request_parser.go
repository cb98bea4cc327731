package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"hcms/internal/core"
	"hcms/internal/report"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads a single JSON object from the request body into v.
// Unknown fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadRequest)
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON object", errBadRequest)
	}
	return nil
}

func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s))
}

// parseRange reads the optional start and end query parameters.
func parseRange(q url.Values) (core.DayRange, error) {
	return core.NewDayRange(sanitizeInput(q.Get("start")), sanitizeInput(q.Get("end")))
}

// parseSelection reads start, end and doctor from the query string.
func parseSelection(q url.Values) (report.Selection, error) {
	rng, err := parseRange(q)
	if err != nil {
		return report.Selection{}, err
	}
	return report.Selection{Range: rng, DoctorID: sanitizeInput(q.Get("doctor"))}, nil
}

func parseLedgerFilter(q url.Values) (report.LedgerFilter, error) {
	rng, err := parseRange(q)
	if err != nil {
		return report.LedgerFilter{}, err
	}
	kind, err := report.ParseEntryKind(q.Get("type"))
	if err != nil {
		return report.LedgerFilter{}, fmt.Errorf("%w: %v", errInvalidQuery, err)
	}
	return report.LedgerFilter{Kind: kind, Range: rng, Search: sanitizeInput(q.Get("q"))}, nil
}

// selectionKey identifies a report selection in the screen cache.
func selectionKey(sel report.Selection) string {
	return sel.Range.Start.Key() + "|" + sel.Range.End.Key() + "|" + sel.DoctorID
}

func wantsXLSX(r *http.Request) bool {
	if strings.EqualFold(r.URL.Query().Get("format"), "xlsx") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "spreadsheetml")
}
