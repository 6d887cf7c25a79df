package relay

import "net/http"

// Webhook response statuses. The wording is what the gateway integration
// has always received and is kept verbatim.
const (
	StatusSuccess          = "sucesso"
	StatusIgnored          = "ignorado"
	StatusInternalError    = "erro_interno"
	StatusStoreUnavailable = "erro_redis"
)

// StatusResponse is the webhook response body.
type StatusResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Outcome is the result of handling one webhook.
type Outcome struct {
	// Status is one of the Status* constants.
	Status string

	// HTTPCode is the code returned to the gateway.
	HTTPCode int

	// Key is the conversation key when the event was actionable.
	Key string

	// Reason explains an ignored event.
	Reason string

	// Err is the failure behind an error status.
	Err error

	// DispatchErr is set when the reply was generated and stored but could
	// not be delivered. It does not change Status.
	DispatchErr error
}

func succeeded(key string, dispatchErr error) Outcome {
	return Outcome{Status: StatusSuccess, HTTPCode: http.StatusOK, Key: key, DispatchErr: dispatchErr}
}

func ignored(reason string) Outcome {
	return Outcome{Status: StatusIgnored, HTTPCode: http.StatusOK, Reason: reason}
}

func internalError(key string, err error) Outcome {
	return Outcome{Status: StatusInternalError, HTTPCode: http.StatusInternalServerError, Key: key, Err: err}
}

func storeUnavailable(key string, err error) Outcome {
	return Outcome{Status: StatusStoreUnavailable, HTTPCode: http.StatusInternalServerError, Key: key, Err: err}
}

// Response returns the body to send for o.
func (o Outcome) Response() StatusResponse {
	return StatusResponse{Status: o.Status}
}
