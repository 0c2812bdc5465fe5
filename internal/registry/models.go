package registry

import (
	"examledger/internal/exam"
	"examledger/pkg/domain"
)

// HistoryEntry is one row of a participant's cross-exam history. The entry
// is appended when the participant enrolls and then mutated in place when
// the result is reported, so one (participant, exam) pair never produces a
// duplicate row.
type HistoryEntry struct {
	Instance    domain.Address           `json:"instance"`
	ExamCode    domain.ExamCode          `json:"exam_code"`
	Title       string                   `json:"title"`
	Description string                   `json:"description"`
	Result      exam.Result              `json:"result"`
	Status      domain.ParticipantStatus `json:"status"`
}

// CertificateView is what a verifier sees for a credential: exam identity
// joined with the submission timestamp from the matching history entry.
type CertificateView struct {
	Participant   domain.Address       `json:"participant"`
	ExamCode      domain.ExamCode      `json:"exam_code"`
	ExamTitle     string               `json:"exam_title"`
	Description   string               `json:"description"`
	CertificateID domain.CertificateID `json:"certificate_id"`
	SubmittedAt   string               `json:"submitted_at"`
	Instance      domain.Address       `json:"instance"`
}

// Page is one slice of the exam directory in creation order.
type Page struct {
	Exams      []exam.Record `json:"exams"`
	Page       int           `json:"page"`
	TotalPages int           `json:"total_pages"`
	HasPrev    bool          `json:"has_prev"`
	HasNext    bool          `json:"has_next"`
}
