package registry

import (
	"context"
	"errors"

	"examledger/internal/exam"
	"examledger/pkg/domain"
)

// Store-level sentinels. The service translates them into domain errors; a
// raw sentinel never crosses the service boundary.
var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate")
)

// Store persists the registry's durable state: the code-keyed exam
// directory, the recognized-instance allow-list, per-participant history
// with its (participant, code) index, and the credential mappings. The
// service serializes access, so implementations only need their own
// internal consistency.
type Store interface {
	// SaveExam records a new directory entry. Returns ErrDuplicate if the
	// code is already registered.
	SaveExam(ctx context.Context, record exam.Record) error
	// DeleteExam removes a directory entry. Rollback path only; a
	// successfully created exam is never deleted.
	DeleteExam(ctx context.Context, code domain.ExamCode) error
	GetExam(ctx context.Context, code domain.ExamCode) (exam.Record, error)
	// ListExams returns records [offset, offset+limit) in creation order
	// plus the total directory size.
	ListExams(ctx context.Context, offset, limit int) ([]exam.Record, int, error)

	Recognize(ctx context.Context, instance domain.Address) error
	IsRecognized(ctx context.Context, instance domain.Address) (bool, error)

	// AppendHistory adds a new entry for the participant and records its
	// position under (participant, entry.ExamCode).
	AppendHistory(ctx context.Context, participant domain.Address, entry HistoryEntry) error
	// UpdateHistory mutates the indexed entry in place. Returns ErrNotFound
	// if no enrollment entry exists for the pair.
	UpdateHistory(ctx context.Context, participant domain.Address, code domain.ExamCode, result exam.Result, status domain.ParticipantStatus) error
	HistoryFor(ctx context.Context, participant domain.Address) ([]HistoryEntry, error)
	HistoryEntry(ctx context.Context, participant domain.Address, code domain.ExamCode) (HistoryEntry, error)

	// LinkCredential records the bidirectional credential mapping.
	LinkCredential(ctx context.Context, participant domain.Address, code domain.ExamCode, certificateID domain.CertificateID) error
	// ExamForCertificate resolves (participant, certificateID) to the exam
	// code. Returns ErrNotFound if unmapped.
	ExamForCertificate(ctx context.Context, participant domain.Address, certificateID domain.CertificateID) (domain.ExamCode, error)
	// CertificateFor resolves (participant, code) to the certificate id.
	CertificateFor(ctx context.Context, participant domain.Address, code domain.ExamCode) (domain.CertificateID, error)
}
