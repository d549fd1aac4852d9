package apierror

import "net/http"

// Envelope is the uniform client-facing shape of a proxy failure.
type Envelope struct {
	Status int    `json:"status"`
	Text   string `json:"text"`
}

// Normalize converts any error into an Envelope. The status is always a
// valid HTTP status code; anything outside 100-599 becomes 502.
func Normalize(err error) Envelope {
	if err == nil {
		return Envelope{Status: http.StatusInternalServerError, Text: "unknown error"}
	}

	e := As(err)
	status := e.Status
	if !ValidStatus(status) {
		status = http.StatusBadGateway
	}

	text := e.Text
	if e.Kind == KindUpstreamTransport && e.Cause != nil {
		text += ": " + e.Cause.Error()
	}
	return Envelope{Status: status, Text: text}
}

// ValidStatus reports whether status is a valid HTTP status code.
func ValidStatus(status int) bool {
	return status >= 100 && status <= 599
}
