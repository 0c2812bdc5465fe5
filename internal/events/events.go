// Package events defines the notifications the ledger emits for off-chain
// observers. Each event is emitted exactly once, after the corresponding
// state transition is finalized; an emitted event is the only externally
// observable proof that an operation succeeded.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"examledger/internal/payment"
	"examledger/pkg/domain"
)

// Type discriminates event payloads.
type Type string

const (
	TypeExamCreated         Type = "exam_created"
	TypeParticipantEnrolled Type = "participant_enrolled"
	TypeExamSubmitted       Type = "exam_submitted"
	TypeCredentialLinked    Type = "credential_linked"
	TypeFeesWithdrawn       Type = "fees_withdrawn"
)

// Event carries the identities relevant to one state transition. Fields that
// do not apply to a given Type are left zero.
type Event struct {
	ID            string                   `json:"id"`
	Type          Type                     `json:"type"`
	Timestamp     time.Time                `json:"timestamp"`
	Instance      domain.Address           `json:"instance,omitempty"`
	Participant   domain.Address           `json:"participant,omitempty"`
	ExamCode      domain.ExamCode          `json:"exam_code,omitempty"`
	CertificateID domain.CertificateID     `json:"certificate_id,omitempty"`
	Status        domain.ParticipantStatus `json:"status,omitempty"`
	Amount        payment.Amount           `json:"amount,omitempty"`
}

// Publisher is the sink for emitted events. Emit failures must not unwind
// the already-finalized state transition; callers log and move on.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}

// Stamp fills the bookkeeping fields an emitter should not have to set.
func Stamp(event Event) Event {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	return event
}
