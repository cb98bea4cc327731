package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"hcms/internal/core"
	applog "hcms/internal/log"
	"hcms/internal/records"
	"hcms/internal/report"
	"hcms/internal/services"
)

var (
	errBadRequest   = errors.New("malformed request")
	errInvalidQuery = errors.New("invalid query")
	errJobsDisabled = errors.New("export jobs are not configured")
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorStatus maps an operation error to its HTTP status.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, errInvalidQuery),
		errors.Is(err, report.ErrDoctorRequired),
		errors.Is(err, report.ErrUnknownReceiptKind):
		return http.StatusUnprocessableEntity
	case errors.Is(err, records.ErrNotFound),
		errors.Is(err, report.ErrDoctorNotFound),
		errors.Is(err, report.ErrReceiptNotFound):
		return http.StatusNotFound
	case errors.Is(err, errJobsDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func errorType(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return applog.ErrorTypeValidation
	case http.StatusNotFound:
		return applog.ErrorTypeNotFound
	default:
		return applog.ErrorTypeInternal
	}
}

// writeError logs err and writes it as {"error": "..."}. Internal errors are
// not echoed to the client.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := errorStatus(err)
	logger := applog.FromContext(r.Context())
	fields := applog.NewFields().WithErrorType(errorType(status))
	msg := err.Error()
	if status >= 500 {
		applog.LogError(r.Context(), logger, "Request failed", err, op, fields)
		msg = http.StatusText(status)
	} else {
		logger.WarnContext(r.Context(), "Request rejected", fields.WithError(err).WithOperation(op).ToSlice()...)
	}
	writeJSON(w, status, errorBody{Error: msg})
}
