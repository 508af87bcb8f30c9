// Package stitcherr defines the error taxonomy of the request layer. Every
// public operation fails with exactly one of these types; callers match them
// with errors.Is and errors.As.
package stitcherr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotAuthenticated is returned when an authenticated call is made
	// without an active session.
	ErrNotAuthenticated = errors.New("stitch: not authenticated")

	// ErrSessionExpired is returned when the server rejected the access token
	// and the refresh token could not repair the session.
	ErrSessionExpired = errors.New("stitch: session expired")

	// ErrBodyAndDocument is returned before any network activity when a
	// request carries both a raw body and a structured document.
	ErrBodyAndDocument = errors.New("stitch: request has both a body and a document")
)

// ErrorCode is the server-defined code carried by the error envelope.
type ErrorCode string

const (
	CodeUnknown                    ErrorCode = "Unknown"
	CodeInvalidSession             ErrorCode = "InvalidSession"
	CodeMissingAuthReq             ErrorCode = "MissingAuthReq"
	CodeUserAppDomainMismatch      ErrorCode = "UserAppDomainMismatch"
	CodeDomainNotAllowed           ErrorCode = "DomainNotAllowed"
	CodeInvalidParameter           ErrorCode = "InvalidParameter"
	CodeUserNotFound               ErrorCode = "UserNotFound"
	CodeUserDisabled               ErrorCode = "UserDisabled"
	CodeAuthProviderNotFound       ErrorCode = "AuthProviderNotFound"
	CodeAuthProviderDisabled       ErrorCode = "AuthProviderDisabled"
	CodeAuthProviderAlreadyExists  ErrorCode = "AuthProviderAlreadyExists"
	CodeUserpassUserNotFound       ErrorCode = "UserpassUserNotFound"
	CodeInvalidPassword            ErrorCode = "InvalidPassword"
	CodeUserAlreadyConfirmed       ErrorCode = "UserAlreadyConfirmed"
	CodeAccountNameInUse           ErrorCode = "AccountNameInUse"
	CodeAPIKeyNotFound             ErrorCode = "APIKeyNotFound"
	CodeFunctionNotFound           ErrorCode = "FunctionNotFound"
	CodeFunctionExecutionError     ErrorCode = "FunctionExecutionError"
	CodeServiceNotFound            ErrorCode = "ServiceNotFound"
	CodeExecutionTimeLimitExceeded ErrorCode = "ExecutionTimeLimitExceeded"
)

// TransportError wraps a failure of the transport capability itself
// (connection refused, DNS, timeout). It is never retried by the core.
type TransportError struct {
	Method string
	URL    string
	Cause  error
}

func (e *TransportError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("stitch: transport error: %s %s: %v", e.Method, e.URL, e.Cause)
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// RequestError is a decoded application-level error from a non-2xx response.
type RequestError struct {
	HTTPStatus int
	Code       ErrorCode
	Message    string
	Category   ErrorCategory
}

// NewRequestError builds a RequestError and classifies it.
func NewRequestError(status int, code ErrorCode, message string) *RequestError {
	if code == "" {
		code = CodeUnknown
	}
	return &RequestError{
		HTTPStatus: status,
		Code:       code,
		Message:    message,
		Category:   CategorizeError(status, code, message),
	}
}

func (e *RequestError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message == "" {
		return fmt.Sprintf("stitch: request failed with status %d (%s)", e.HTTPStatus, e.Code)
	}
	return fmt.Sprintf("stitch: %s: %s", e.Code, e.Message)
}

// StatusCode exposes the HTTP status for callers that only know the
// StatusCodeError interface.
func (e *RequestError) StatusCode() int {
	if e == nil {
		return 0
	}
	return e.HTTPStatus
}

// StatusCodeError is implemented by errors that carry an HTTP-like status.
type StatusCodeError interface {
	error
	StatusCode() int
}

// ReentrantRebindError reports a binder that tried to start a session
// transition while a rebind broadcast was being delivered.
type ReentrantRebindError struct {
	// Operation is the transition the binder attempted (login, logout, ...).
	Operation string
}

func (e *ReentrantRebindError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("stitch: re-entrant %s during rebind broadcast", e.Operation)
}

// IsAuthRejected reports whether err means the access token was refused and
// a refresh may repair the session. It is internal to the refresh protocol;
// callers never receive such an error.
func IsAuthRejected(err error) bool {
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		return false
	}
	return reqErr.Category == CategoryAuthError
}

// IsTransport reports whether err originated in the transport layer.
func IsTransport(err error) bool {
	var tErr *TransportError
	return errors.As(err, &tErr)
}

// HasCode reports whether err is a RequestError carrying code.
func HasCode(err error, code ErrorCode) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr) && reqErr.Code == code
}

// IsNotFound reports whether err is a 404 RequestError.
func IsNotFound(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr) && reqErr.HTTPStatus == http.StatusNotFound
}
