package errors

import (
	"encoding/json"
	"errors"
	"net/http"
)

var errorStatusCodes = map[error]int{
	ErrNotFound:            http.StatusNotFound,
	ErrInvalidInput:        http.StatusBadRequest,
	ErrInternalError:       http.StatusInternalServerError,
	ErrUnavailable:         http.StatusServiceUnavailable,
	ErrTimeout:             http.StatusGatewayTimeout,
	ErrInvalidConversation: http.StatusBadRequest,
	ErrUnknownView:         http.StatusBadRequest,
	ErrUnsupportedFormat:   http.StatusUnsupportedMediaType,
	ErrEmptyRecord:         http.StatusBadRequest,
	ErrPublishFailed:       http.StatusBadGateway,
}

// AsJSON renders the error as a response body.
func (e *Error) AsJSON() map[string]interface{} {
	out := map[string]interface{}{
		"error": e.Error(),
	}
	if len(e.fields) > 0 {
		out["details"] = e.fields
	}
	return out
}

// WriteError writes err to w as a JSON body with the mapped status code.
func WriteError(w http.ResponseWriter, err error) {
	var statusCode int
	var response map[string]interface{}

	var serr *Error
	switch {
	case err == nil:
		statusCode = http.StatusInternalServerError
		response = map[string]interface{}{"error": "unknown error"}
	case errors.As(err, &serr):
		statusCode = HTTPStatusFromError(serr.original)
		response = serr.AsJSON()
	default:
		statusCode = HTTPStatusFromError(err)
		response = map[string]interface{}{"error": err.Error()}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(response)
}

// HTTPStatusFromError maps an error chain to an HTTP status code.
func HTTPStatusFromError(err error) int {
	for err != nil {
		if code, ok := errorStatusCodes[err]; ok {
			return code
		}
		err = errors.Unwrap(err)
	}
	return http.StatusInternalServerError
}
