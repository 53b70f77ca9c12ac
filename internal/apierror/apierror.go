// Package apierror provides standardized error response structures for the API.
// All errors returned to clients go through this package to ensure consistency
// and to prevent leaking internal details (stack traces, DB errors, etc.).
package apierror

// Stable error codes returned in the "error" field. Clients branch on these,
// never on the human-readable detail.
const (
	CodeInvalidPIN         = "invalid_pin"
	CodeInvalidPINFormat   = "invalid_pin_format"
	CodeAccountLocked      = "account_locked"
	CodeUserNotFound       = "user_not_found"
	CodeUserInactive       = "user_inactive"
	CodeSessionNotFound    = "session_not_found"
	CodeSessionEnded       = "session_ended"
	CodeSessionTimeout     = "session_timeout"
	CodePermissionDenied   = "permission_denied"
	CodeSelfActionRejected = "self_action_rejected"
	CodeProtectedAccount   = "protected_account"
	CodeValidation         = "validation_error"
	CodeRateLimited        = "rate_limited"
	CodeInternal           = "internal_error"
)

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Code   string `json:"error"`
	Detail string `json:"detail"`

	// AttemptsRemaining is set only on invalid_pin responses.
	AttemptsRemaining *int `json:"attempts_remaining,omitempty"`
	// LockedUntil is set only on account_locked responses (RFC 3339).
	LockedUntil string `json:"locked_until,omitempty"`
}

func New(code, msg string) *APIError {
	return &APIError{Code: code, Detail: msg}
}

// Internal is the safe catch-all for datastore and other infrastructure
// failures — the only retryable class.
func Internal() *APIError {
	return &APIError{Code: CodeInternal, Detail: "Internal server error"}
}

// Validation wraps multiple field errors.
type ValidationError struct {
	Code   string            `json:"error"`
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Code: CodeValidation, Detail: "Validation error", Fields: fields}
}
