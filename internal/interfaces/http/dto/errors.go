package dto

import "net/http"

// Error codes returned in ErrorInfo.Code
const (
	// ErrCodeBadRequest is used for malformed or invalid query parameters
	ErrCodeBadRequest = "BAD_REQUEST"
	// ErrCodeUpstreamError is used when the dashboard API fails or rejects the call
	ErrCodeUpstreamError = "UPSTREAM_ERROR"
	// ErrCodeTokenExpired is used when the forwarded bearer token has expired
	ErrCodeTokenExpired = "TOKEN_EXPIRED"
	// ErrCodeExportFailed is used when a report cannot be rendered or stored
	ErrCodeExportFailed = "EXPORT_FAILED"
	// ErrCodeRequestTooLarge is used when a request body exceeds the limit
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
	// ErrCodeNotFound is used for unknown routes
	ErrCodeNotFound = "NOT_FOUND"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "INTERNAL_ERROR"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeUpstreamError:   http.StatusBadGateway,
	ErrCodeTokenExpired:    http.StatusUnauthorized,
	ErrCodeExportFailed:    http.StatusInternalServerError,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeNotFound:        http.StatusNotFound,
	ErrCodeInternal:        http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes map to 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
