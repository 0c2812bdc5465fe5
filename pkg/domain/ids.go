// Package domain holds the typed identifiers and enums shared by the
// registry and exam instances.
package domain

import (
	"strings"

	dErrors "examledger/pkg/domain-errors"
)

// Address identifies a ledger participant, owner, or deployed instance.
// Addresses are opaque; equality is the only operation the core relies on.
type Address string

func (a Address) String() string { return string(a) }

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool { return a == "" }

// ExamCode is the human-chosen unique key identifying one exam across the
// whole registry.
//
// Usage: construct via ParseExamCode at trust boundaries; direct casting
// bypasses validation.
type ExamCode string

// MinExamCodeLen is the exclusive lower bound on code length.
const MinExamCodeLen = 3

// ParseExamCode validates external input into an ExamCode.
func ParseExamCode(s string) (ExamCode, error) {
	s = strings.TrimSpace(s)
	if len(s) <= MinExamCodeLen {
		return "", dErrors.New(dErrors.CodeValidation, "exam code must be longer than 3 characters")
	}
	return ExamCode(s), nil
}

func (c ExamCode) String() string { return string(c) }

// CertificateID is the human-facing credential identifier, derived from the
// exam code and the minted token id.
type CertificateID string

func (c CertificateID) String() string { return string(c) }
