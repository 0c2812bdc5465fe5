package domain

import dErrors "examledger/pkg/domain-errors"

// ParticipantStatus tracks one participant's lifecycle within one exam.
// Legal transitions: NotEnrolled -> Enrolled -> {Passed|Failed}. Passed and
// Failed are terminal; nothing transitions out of them.
type ParticipantStatus string

const (
	StatusNotEnrolled ParticipantStatus = "not_enrolled"
	StatusEnrolled    ParticipantStatus = "enrolled"
	StatusPassed      ParticipantStatus = "passed"
	StatusFailed      ParticipantStatus = "failed"
)

var validStatuses = map[ParticipantStatus]bool{
	StatusNotEnrolled: true,
	StatusEnrolled:    true,
	StatusPassed:      true,
	StatusFailed:      true,
}

// ParseParticipantStatus constructs a ParticipantStatus from external input.
func ParseParticipantStatus(s string) (ParticipantStatus, error) {
	p := ParticipantStatus(s)
	if !validStatuses[p] {
		return "", dErrors.New(dErrors.CodeValidation, "invalid participant status")
	}
	return p, nil
}

// IsValid checks if the status is one of the supported enum values.
func (p ParticipantStatus) IsValid() bool { return validStatuses[p] }

// Terminal reports whether the status admits no further transitions.
func (p ParticipantStatus) Terminal() bool {
	return p == StatusPassed || p == StatusFailed
}

func (p ParticipantStatus) String() string { return string(p) }
