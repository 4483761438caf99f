package errutil

import "net/http"

// CoreStatus is a transport-agnostic error code.
type CoreStatus string

const (
	StatusBadRequest       CoreStatus = "bad_request"
	StatusValidationFailed CoreStatus = "validation_failed"
	StatusNotFound         CoreStatus = "not_found"
	StatusConflict         CoreStatus = "conflict"
	StatusTimeout          CoreStatus = "timeout"
	StatusInternal         CoreStatus = "internal"
	StatusUnknown          CoreStatus = "unknown"
)

func (s CoreStatus) HTTPStatus() int {
	switch s {
	case StatusBadRequest, StatusValidationFailed:
		return http.StatusBadRequest
	case StatusNotFound:
		return http.StatusNotFound
	case StatusConflict:
		return http.StatusConflict
	case StatusTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// StatusOf extracts the CoreStatus from err, defaulting to internal.
func StatusOf(err error) CoreStatus {
	if coder, ok := err.(interface{ Status() CoreStatus }); ok {
		return coder.Status()
	}
	return StatusInternal
}
