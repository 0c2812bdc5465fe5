package exam

import (
	"time"

	"examledger/internal/credential"
	"examledger/internal/payment"
	"examledger/pkg/domain"
	dErrors "examledger/pkg/domain-errors"
)

// Config is the immutable-after-creation description of one exam.
type Config struct {
	Code            domain.ExamCode `json:"code"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	DurationMinutes int             `json:"duration_minutes"`
	TotalQuestions  int             `json:"total_questions"`
	MinimumScore    int             `json:"minimum_score"`
	NativeCost      payment.Amount  `json:"native_cost"`
	TokenCost       payment.Amount  `json:"token_cost"`
}

const minTitleLen = 5

// Validate enforces the creation-time constraints. Code uniqueness is the
// registry's concern, not the config's.
func (c Config) Validate() error {
	if len(c.Code) <= domain.MinExamCodeLen {
		return dErrors.New(dErrors.CodeValidation, "exam code must be longer than 3 characters")
	}
	if len(c.Title) <= minTitleLen {
		return dErrors.New(dErrors.CodeValidation, "exam title must be longer than 5 characters")
	}
	if c.MinimumScore < 0 || c.MinimumScore > 100 {
		return dErrors.New(dErrors.CodeValidation, "minimum score must be between 0 and 100")
	}
	return nil
}

// Record is the full exam identity the registry stores: config, credential
// token identity, and the creator/instance addresses. Created exactly once
// at registry-validated creation time; never deleted.
type Record struct {
	Config      Config            `json:"config"`
	TokenConfig credential.Config `json:"token_config"`
	Creator     domain.Address    `json:"creator"`
	Instance    domain.Address    `json:"instance"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Result is a participant's submitted outcome. TimeTaken and SubmittedAt are
// caller-supplied opaque strings; the core never interprets them.
type Result struct {
	TimeTaken      string `json:"time_taken"`
	SubmittedAt    string `json:"submitted_at"`
	CorrectAnswers int    `json:"correct_answers"`
	Score          int    `json:"score"`
}
