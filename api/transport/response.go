package transport

import (
	"encoding/json"

	"github.com/fastygo/taskwarlock/domain"
)

// Envelope statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// CodeDegraded answers health checks while Taskwarrior is unreachable.
const CodeDegraded = "DEGRADED"

// Envelope wraps every API response. Error carries the message of a failed
// request and Code its domain error code.
type Envelope struct {
	Status string `json:"status"`
	Code   string `json:"code,omitempty"`
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
	Meta   any    `json:"meta,omitempty"`
}

// NewSuccess returns a success envelope.
func NewSuccess(data, meta any) Envelope {
	return Envelope{Status: StatusSuccess, Data: data, Meta: meta}
}

// NewError returns an error envelope. meta may carry diagnostics such as the
// health report.
func NewError(code, message string, meta any) Envelope {
	return Envelope{Status: StatusError, Code: code, Error: message, Meta: meta}
}

// Encode marshals the envelope. If the payload cannot be marshalled the body
// is an INTERNAL error envelope instead and err reports the cause.
func (e Envelope) Encode() ([]byte, error) {
	body, err := json.Marshal(e)
	if err == nil {
		return body, nil
	}
	fallback, _ := json.Marshal(NewError(string(domain.ErrCodeInternal), "response could not be encoded", nil))
	return fallback, err
}
