package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// ExportRequest asks the worker to build one doctor's export. It carries only
// the selection; the worker reads the records itself.
type ExportRequest struct {
	JobID     string    `json:"job_id"`
	DoctorID  string    `json:"doctor_id"`
	Start     string    `json:"start,omitempty"`
	End       string    `json:"end,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewExportRequest(jobID, doctorID, start, end string) *ExportRequest {
	return &ExportRequest{
		JobID:     jobID,
		DoctorID:  doctorID,
		Start:     start,
		End:       end,
		Timestamp: time.Now().UTC(),
	}
}

func (m *ExportRequest) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExportRequestFromJSON decodes a request and rejects one without a doctor.
func ExportRequestFromJSON(data []byte) (*ExportRequest, error) {
	var msg ExportRequest
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.DoctorID == "" {
		return nil, errors.New("export request without doctor_id")
	}
	return &msg, nil
}
