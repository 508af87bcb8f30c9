package stitcherr

import (
	"net/http"
	"strings"
)

// ErrorCategory classifies request errors for the refresh protocol and callers.
type ErrorCategory int

const (
	// CategoryUnknown is the default category for unclassified errors
	CategoryUnknown ErrorCategory = iota

	// CategoryUserError covers bad requests; surfaced immediately
	CategoryUserError

	// CategoryAuthError means the access token was refused; drives one refresh
	CategoryAuthError

	// CategoryAuthRevoked means the session cannot be repaired by refreshing
	CategoryAuthRevoked

	// CategoryQuotaError covers rate limiting
	CategoryQuotaError

	// CategoryTransient covers server-side failures
	CategoryTransient

	// CategoryNotFound covers missing resources
	CategoryNotFound
)

func (c ErrorCategory) String() string {
	switch c {
	case CategoryUserError:
		return "user_error"
	case CategoryAuthError:
		return "auth_error"
	case CategoryAuthRevoked:
		return "auth_revoked"
	case CategoryQuotaError:
		return "quota_error"
	case CategoryTransient:
		return "transient"
	case CategoryNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// IsUserFault returns true if error is caused by the caller's request
func (c ErrorCategory) IsUserFault() bool {
	return c == CategoryUserError || c == CategoryNotFound
}

// CategorizeHTTPStatus determines category from HTTP status code
func CategorizeHTTPStatus(statusCode int) ErrorCategory {
	switch statusCode {
	case http.StatusBadRequest:
		return CategoryUserError
	case http.StatusUnauthorized:
		return CategoryAuthError
	case http.StatusForbidden:
		return CategoryAuthRevoked
	case http.StatusNotFound:
		return CategoryNotFound
	case http.StatusTooManyRequests:
		return CategoryQuotaError
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return CategoryTransient
	default:
		if statusCode >= 400 && statusCode < 500 {
			return CategoryUserError
		}
		if statusCode >= 500 {
			return CategoryTransient
		}
		return CategoryUnknown
	}
}

// CategorizeError determines the category from the server error code first,
// then the message, then the status code.
func CategorizeError(statusCode int, code ErrorCode, message string) ErrorCategory {
	switch code {
	case CodeInvalidSession:
		return CategoryAuthError
	case CodeUserDisabled, CodeUserAppDomainMismatch, CodeDomainNotAllowed:
		return CategoryAuthRevoked
	}
	if isRevokedMessage(message) {
		return CategoryAuthRevoked
	}
	return CategorizeHTTPStatus(statusCode)
}

func isRevokedMessage(msg string) bool {
	if msg == "" {
		return false
	}
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "invalid_grant") ||
		strings.Contains(lower, "token has been revoked") ||
		strings.Contains(lower, "user disabled")
}
