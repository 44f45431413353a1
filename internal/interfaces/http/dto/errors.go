package dto

import "net/http"

// Error codes returned in ErrorInfo.Code. Format: ERR_<DESCRIPTION>

// General error codes
const (
	ErrCodeInternal = "ERR_INTERNAL"
	ErrCodeUpstream = "ERR_UPSTREAM"
)

// Input error codes
const (
	ErrCodeValidation      = "ERR_VALIDATION"
	ErrCodeBadRequest      = "ERR_BAD_REQUEST"
	ErrCodeInvalidJSON     = "ERR_INVALID_JSON"
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// Resource and state error codes
const (
	ErrCodeNotFound          = "ERR_NOT_FOUND"
	ErrCodeInvalidState      = "ERR_INVALID_STATE"
	ErrCodeOperationInFlight = "ERR_OPERATION_IN_FLIGHT"
	ErrCodeSyncInProgress    = "ERR_SYNC_IN_PROGRESS"
)

// Access error codes
const (
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeRateLimited  = "ERR_RATE_LIMITED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal: http.StatusInternalServerError,
	ErrCodeUpstream: http.StatusBadGateway,

	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	ErrCodeNotFound:          http.StatusNotFound,
	ErrCodeInvalidState:      http.StatusConflict,
	ErrCodeOperationInFlight: http.StatusConflict,
	ErrCodeSyncInProgress:    http.StatusConflict,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeRateLimited:  http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status for an error code, 500 when unknown
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// LegacyErrorCodeMapping maps shared.DomainError codes to response codes
var LegacyErrorCodeMapping = map[string]string{
	"NOT_FOUND":           ErrCodeNotFound,
	"INVALID_INPUT":       ErrCodeBadRequest,
	"INVALID_STATE":       ErrCodeInvalidState,
	"VALIDATION_ERROR":    ErrCodeValidation,
	"OPERATION_IN_FLIGHT": ErrCodeOperationInFlight,
	"INTERNAL_ERROR":      ErrCodeInternal,
}

// NormalizeErrorCode converts a domain error code to its response code.
// Unknown codes are returned unchanged.
func NormalizeErrorCode(code string) string {
	if newCode, ok := LegacyErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
