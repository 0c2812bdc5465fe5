// Package domainerrors defines the stable error taxonomy for the exam ledger.
//
// Every failing operation reports exactly one Code. Codes are part of the
// external contract: callers branch on them and the HTTP layer translates
// them to status codes, so they must never be renamed.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a stable failure kind.
type Code string

const (
	// CodeValidation covers malformed or out-of-range input. Never retried.
	CodeValidation Code = "validation_error"

	// CodeInvalidPage covers pagination parameters outside the 1-indexed range.
	CodeInvalidPage Code = "invalid_page"

	// State-precondition violations. Permanent for the identity in question;
	// retrying the same call can never succeed.
	CodeDuplicateCode    Code = "duplicate_code"
	CodeAlreadyEnrolled  Code = "already_enrolled"
	CodeAlreadySubmitted Code = "already_submitted"
	CodeNotEnrolled      Code = "not_enrolled"

	// Exact-match payment checks. The caller must resubmit with the
	// corrected value.
	CodeInsufficientFee Code = "insufficient_fee"
	CodeWrongFee        Code = "wrong_fee"
	CodeWrongAmount     Code = "wrong_amount"

	CodeScoreOutOfRange Code = "score_out_of_range"

	// CodeUnauthorized means the caller identity is not privileged or not a
	// recognized exam instance.
	CodeUnauthorized Code = "unauthorized"

	// Lookup misses.
	CodeNotFound           Code = "not_found"
	CodeUnknownExam        Code = "unknown_exam"
	CodeCredentialNotFound Code = "credential_not_found"
	CodeUnknownToken       Code = "unknown_token"

	CodeNothingToWithdraw Code = "nothing_to_withdraw"

	// CodeTransferFailed means the payment rail rejected a value movement.
	// The operation is fully rolled back; the caller may retry once the
	// underlying cause is fixed.
	CodeTransferFailed Code = "transfer_failed"

	CodeInternal Code = "internal"
)

// Error carries a Code plus a human-readable message. It optionally wraps an
// underlying cause for diagnostics; the Code alone is the external contract.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a domain error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap builds a domain error that preserves an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// CodeOf extracts the code from err, defaulting to CodeInternal for
// non-domain errors and "" for nil.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to the HTTP status the transport layer reports.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation, CodeInvalidPage, CodeScoreOutOfRange:
		return http.StatusBadRequest
	case CodeInsufficientFee, CodeWrongFee, CodeWrongAmount:
		return http.StatusPaymentRequired
	case CodeDuplicateCode, CodeAlreadyEnrolled, CodeAlreadySubmitted, CodeNotEnrolled, CodeNothingToWithdraw:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusForbidden
	case CodeNotFound, CodeUnknownExam, CodeCredentialNotFound, CodeUnknownToken:
		return http.StatusNotFound
	case CodeTransferFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
