package cloud

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies record store failures. Values match the
// serverErrorCode strings used on the wire.
type ErrorCode string

const (
	CodeNetworkFailure         ErrorCode = "NETWORK_FAILURE"
	CodeAuthenticationRequired ErrorCode = "AUTHENTICATION_REQUIRED"
	CodeAccessDenied           ErrorCode = "ACCESS_DENIED"
	CodeThrottled              ErrorCode = "THROTTLED"
	CodeBadRequest             ErrorCode = "BAD_REQUEST"
	CodeZoneNotFound           ErrorCode = "ZONE_NOT_FOUND"
	CodeNotFound               ErrorCode = "NOT_FOUND"
	CodeInternal               ErrorCode = "INTERNAL_ERROR"
	CodeUnknown                ErrorCode = "UNKNOWN_ERROR"
)

// Error is a classified record store failure.
type Error struct {
	Code   ErrorCode
	Reason string
	Status int   // HTTP status when the failure came from a response
	Err    error // underlying cause, if any
}

func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds an *Error with a formatted reason.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the code from err, or CodeUnknown when err carries none.
// A nil error has no code.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return CodeUnknown
}

// CodeForStatus maps an HTTP status to the code used when a response body
// carried no serverErrorCode.
func CodeForStatus(status int) ErrorCode {
	switch {
	case status == http.StatusUnauthorized:
		return CodeAuthenticationRequired
	case status == http.StatusForbidden:
		return CodeAccessDenied
	case status == http.StatusNotFound:
		return CodeNotFound
	case status == http.StatusBadRequest:
		return CodeBadRequest
	case status == http.StatusTooManyRequests, status == http.StatusServiceUnavailable:
		return CodeThrottled
	case status >= 500:
		return CodeInternal
	}
	return CodeUnknown
}

// StatusForCode is the inverse of CodeForStatus, used by the record service.
func StatusForCode(code ErrorCode) int {
	switch code {
	case CodeAuthenticationRequired:
		return http.StatusUnauthorized
	case CodeAccessDenied:
		return http.StatusForbidden
	case CodeZoneNotFound, CodeNotFound:
		return http.StatusNotFound
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeThrottled:
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}
